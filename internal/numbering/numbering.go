// Package numbering issues gapless document numbers from configured series.
package numbering

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoActiveSeries indicates no active series exists for the document type.
var ErrNoActiveSeries = errors.New("numbering: no active series")

// ErrSeriesExhausted indicates the series reached its maximum number.
var ErrSeriesExhausted = errors.New("numbering: series exhausted")

// Series is one numbering sequence, e.g. prefix "INV" padded to 6 digits.
type Series struct {
	ID         int64
	DocType    string
	Prefix     string
	NextNumber int64
	MaxNumber  int64
	Padding    int
	Active     bool
}

// advance formats the current number and returns the series with the
// counter incremented. It is pure so the formatting rules are testable
// without a database.
func advance(s Series) (string, Series, error) {
	if !s.Active {
		return "", s, ErrNoActiveSeries
	}
	if s.MaxNumber > 0 && s.NextNumber > s.MaxNumber {
		return "", s, fmt.Errorf("%s %d/%d: %w", s.DocType, s.NextNumber, s.MaxNumber, ErrSeriesExhausted)
	}
	padding := s.Padding
	if padding <= 0 {
		padding = 6
	}
	number := fmt.Sprintf("%s-%0*d", s.Prefix, padding, s.NextNumber)
	s.NextNumber++
	return number, s, nil
}

// Service allocates document numbers. Allocation locks the series row so
// two documents never share a number.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs Service.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// NextNumberTx allocates the next number for docType inside the caller's
// transaction. Orchestrators call it so the number is released on rollback.
func (s *Service) NextNumberTx(ctx context.Context, tx pgx.Tx, docType string) (string, error) {
	var series Series
	err := tx.QueryRow(ctx, `SELECT id, doc_type, prefix, next_number, max_number, padding, is_active
FROM document_series WHERE doc_type=$1 AND is_active ORDER BY id LIMIT 1 FOR UPDATE`, docType).
		Scan(&series.ID, &series.DocType, &series.Prefix, &series.NextNumber, &series.MaxNumber, &series.Padding, &series.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%s: %w", docType, ErrNoActiveSeries)
		}
		return "", err
	}
	number, next, err := advance(series)
	if err != nil {
		return "", err
	}
	if _, err := tx.Exec(ctx, `UPDATE document_series SET next_number=$2 WHERE id=$1`, series.ID, next.NextNumber); err != nil {
		return "", err
	}
	return number, nil
}

// NextNumber allocates a number in its own transaction.
func (s *Service) NextNumber(ctx context.Context, docType string) (string, error) {
	if s == nil || s.pool == nil {
		return "", errors.New("numbering service not initialised")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	number, err := s.NextNumberTx(ctx, tx, docType)
	if err != nil {
		_ = tx.Rollback(ctx)
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return number, nil
}
