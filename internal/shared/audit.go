package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog represents a record stored in audit_logs. Old and New carry
// before/after snapshots for mutations; both may be empty for append-only
// events such as ledger movements.
type AuditLog struct {
	ActorID  int64
	Category string
	Action   string
	Entity   string
	EntityID string
	Old      map[string]any
	New      map[string]any
	At       time.Time
}

// AuditLogger writes records into audit_logs. Callers treat it as
// fire-and-forget: an audit failure never rolls back the business
// transaction that produced it.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	oldJSON, err := json.Marshal(log.Old)
	if err != nil {
		return err
	}
	newJSON, err := json.Marshal(log.New)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (actor_id, category, action, entity, entity_id, old_value, new_value, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))`,
		log.ActorID, log.Category, log.Action, log.Entity, log.EntityID, oldJSON, newJSON, log.At)
	return err
}
