package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
	jobmetrics "github.com/meridian-erp/meridian-erp/internal/jobs"
)

const (
	integrityWorkers = 4
	qtyTolerance     = 1e-6
)

// LedgerIntegrityJob replays every movement chain and compares the result
// against the stored balance.
type LedgerIntegrityJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLedgerIntegrityJob initialises the chain verification handler.
func NewLedgerIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{Pool: pool, Logger: logger, Metrics: metrics}
}

type balanceKey struct {
	WarehouseID int64
	ProductID   int64
}

// Handle walks every (warehouse, product) chain concurrently.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskLedgerIntegrity)
	var resultErr error
	defer func() { _ = tracker.End(resultErr) }()

	rows, err := j.Pool.Query(ctx, `SELECT warehouse_id, product_id, qty FROM stock_balances`)
	if err != nil {
		resultErr = err
		return err
	}
	balances := make(map[balanceKey]float64)
	for rows.Next() {
		var key balanceKey
		var qty float64
		if err := rows.Scan(&key.WarehouseID, &key.ProductID, &qty); err != nil {
			rows.Close()
			resultErr = err
			return err
		}
		balances[key] = qty
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		resultErr = err
		return err
	}

	var breaks atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(integrityWorkers)
	for key, qty := range balances {
		g.Go(func() error {
			found, err := j.verifyChain(gctx, key, qty)
			if err != nil {
				return err
			}
			breaks.Add(int64(found))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		resultErr = err
		return err
	}

	total := int(breaks.Load())
	j.Metrics.AddIntegrityBreaks("chain", total)
	if j.Logger != nil {
		j.Logger.Info("ledger integrity check finished",
			slog.Int("chains", len(balances)), slog.Int("breaks", total))
	}
	return nil
}

// verifyChain replays one movement chain. Each entry must start where the
// previous one ended, move by its signed quantity, and the final balance
// must match the stored stock_balances row.
func (j *LedgerIntegrityJob) verifyChain(ctx context.Context, key balanceKey, stored float64) (int, error) {
	rows, err := j.Pool.Query(ctx, `SELECT id, movement_type, qty, stock_before, stock_after
FROM stock_movements
WHERE warehouse_id=$1 AND product_id=$2
ORDER BY posted_at ASC, id ASC`, key.WarehouseID, key.ProductID)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	breaks := 0
	running := 0.0
	for rows.Next() {
		var id int64
		var movementType string
		var qty, before, after float64
		if err := rows.Scan(&id, &movementType, &qty, &before, &after); err != nil {
			return breaks, err
		}
		direction, err := inventory.MovementType(movementType).Direction()
		if err != nil {
			breaks++
			j.warn("unknown movement type in chain", key, id)
			continue
		}
		delta := qty
		if direction == inventory.DirectionOut {
			delta = -qty
		}
		if math.Abs(before-running) > qtyTolerance || math.Abs(after-(before+delta)) > qtyTolerance {
			breaks++
			j.warn("movement chain discontinuity", key, id)
		}
		running = after
	}
	if err := rows.Err(); err != nil {
		return breaks, err
	}
	if math.Abs(running-stored) > qtyTolerance {
		breaks++
		j.warn("chain tail does not match stored balance", key, 0)
	}
	return breaks, nil
}

func (j *LedgerIntegrityJob) warn(msg string, key balanceKey, movementID int64) {
	if j.Logger == nil {
		return
	}
	j.Logger.Warn(msg,
		slog.Int64("warehouse_id", key.WarehouseID),
		slog.Int64("product_id", key.ProductID),
		slog.Int64("movement_id", movementID))
}
