package cashsession

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type auditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages the cash session lifecycle.
type Service struct {
	store Store
	audit auditRecorder
	log   *slog.Logger
}

// NewService constructs Service. audit may be nil.
func NewService(store Store, audit auditRecorder, log *slog.Logger) *Service {
	return &Service{store: store, audit: audit, log: log}
}

// Open starts a session for the user. A user keeps at most one open
// session; opening a second one fails with ErrSessionAlreadyOpen.
func (s *Service) Open(ctx context.Context, userID int64, openingAmount float64) (Session, error) {
	if openingAmount < 0 {
		return Session{}, ErrInvalidAmount
	}
	existing, err := s.store.FindOpenByUser(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	if existing != nil {
		return Session{}, fmt.Errorf("user %d has session %d: %w", userID, existing.ID, ErrSessionAlreadyOpen)
	}
	sess := Session{
		UserID:        userID,
		OpeningAmount: openingAmount,
		Status:        StatusOpen,
		OpenedAt:      time.Now().UTC(),
	}
	sess.ID, err = s.store.Insert(ctx, sess)
	if err != nil {
		return Session{}, err
	}
	s.recordAudit(ctx, userID, "cash_session.open", sess.ID, map[string]any{"opening_amount": openingAmount})
	return sess, nil
}

// Close ends the user's open session recording the declared amount.
func (s *Service) Close(ctx context.Context, userID int64, declaredAmount float64) (Session, error) {
	if declaredAmount < 0 {
		return Session{}, ErrInvalidAmount
	}
	sess, err := s.store.FindOpenByUser(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	if sess == nil {
		return Session{}, fmt.Errorf("user %d: %w", userID, ErrNoOpenSession)
	}
	closedAt := time.Now().UTC()
	if err := s.store.Close(ctx, sess.ID, declaredAmount, closedAt); err != nil {
		return Session{}, err
	}
	sess.Status = StatusClosed
	sess.DeclaredAmount = declaredAmount
	sess.ClosedAt = closedAt
	s.recordAudit(ctx, userID, "cash_session.close", sess.ID, map[string]any{"declared_amount": declaredAmount})
	return *sess, nil
}

// CurrentOpen returns the user's open session, or nil when none exists.
func (s *Service) CurrentOpen(ctx context.Context, userID int64) (*Session, error) {
	return s.store.FindOpenByUser(ctx, userID)
}

func (s *Service) recordAudit(ctx context.Context, userID int64, action string, sessionID int64, detail map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  userID,
		Category: "cashsession",
		Action:   action,
		Entity:   "cash_session",
		EntityID: fmt.Sprintf("%d", sessionID),
		New:      detail,
	})
	if err != nil && s.log != nil {
		s.log.Warn("audit record failed", "entity", "cash_session", "err", err)
	}
}
