package cashsession

import (
	"errors"
	"time"
)

// Status of a cash register session.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Session is one cash register session. A user has at most one open
// session at a time; sales require one.
type Session struct {
	ID             int64
	UserID         int64
	OpeningAmount  float64
	DeclaredAmount float64
	Status         Status
	OpenedAt       time.Time
	ClosedAt       time.Time
}

// ErrSessionAlreadyOpen indicates the user already has an open session.
var ErrSessionAlreadyOpen = errors.New("cashsession: session already open")

// ErrNoOpenSession indicates the user has no open session to close.
var ErrNoOpenSession = errors.New("cashsession: no open session")

// ErrInvalidAmount indicates a negative opening or declared amount.
var ErrInvalidAmount = errors.New("cashsession: amount must be >= 0")
