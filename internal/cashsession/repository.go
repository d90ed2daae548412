package cashsession

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the persistence surface for cash sessions.
type Store interface {
	Insert(ctx context.Context, sess Session) (int64, error)
	FindOpenByUser(ctx context.Context, userID int64) (*Session, error)
	Close(ctx context.Context, sessionID int64, declaredAmount float64, closedAt time.Time) error
}

// Repository persists cash sessions in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, sess Session) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO cash_sessions (user_id, opening_amount, status, opened_at)
VALUES ($1,$2,$3,$4) RETURNING id`, sess.UserID, sess.OpeningAmount, string(sess.Status), sess.OpenedAt).Scan(&id)
	return id, err
}

func (r *Repository) FindOpenByUser(ctx context.Context, userID int64) (*Session, error) {
	var sess Session
	var closedAt *time.Time
	err := r.pool.QueryRow(ctx, `SELECT id, user_id, opening_amount, declared_amount, status, opened_at, closed_at
FROM cash_sessions WHERE user_id=$1 AND status='OPEN' ORDER BY opened_at DESC LIMIT 1`, userID).
		Scan(&sess.ID, &sess.UserID, &sess.OpeningAmount, &sess.DeclaredAmount, &sess.Status, &sess.OpenedAt, &closedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if closedAt != nil {
		sess.ClosedAt = *closedAt
	}
	return &sess, nil
}

func (r *Repository) Close(ctx context.Context, sessionID int64, declaredAmount float64, closedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE cash_sessions SET status='CLOSED', declared_amount=$2, closed_at=$3 WHERE id=$1 AND status='OPEN'`,
		sessionID, declaredAmount, closedAt)
	return err
}
