package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository persists the stock ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations the ledger engine
// needs. Orchestrators obtain one via NewTxRepository to enclose postings
// in their own umbrella transaction.
type TxRepository interface {
	WarehouseExists(ctx context.Context, warehouseID int64) (bool, error)
	ProductExists(ctx context.Context, productID int64) (bool, error)
	GetBalanceForUpdate(ctx context.Context, warehouseID, productID int64) (Balance, error)
	UpsertBalance(ctx context.Context, balance Balance) error
	GetProductCostForUpdate(ctx context.Context, productID int64) (float64, error)
	UpdateProductCost(ctx context.Context, productID int64, avgCost float64) error
	InsertMovement(ctx context.Context, rec MovementRecord) (int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an open pgx transaction so ledger postings can run
// inside a caller-owned transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// ErrBalanceNotFound indicates a missing balance row; the engine treats it
// as a zero balance.
var ErrBalanceNotFound = errors.New("inventory balance not found")

// WithTx executes the callback inside a row-locking transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// ListMovements returns ledger entries for a stock card.
func (r *Repository) ListMovements(ctx context.Context, filter StockCardFilter) ([]MovementRecord, error) {
	if r == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, warehouse_id, product_id, movement_type, qty, unit_cost, total_cost, stock_before, stock_after, ref_type, ref_id, note, actor_id, posted_at
FROM stock_movements
WHERE warehouse_id=$1 AND product_id=$2 AND posted_at BETWEEN COALESCE($3, '-infinity') AND COALESCE($4, 'infinity')
ORDER BY posted_at ASC, id ASC
LIMIT $5`, filter.WarehouseID, filter.ProductID, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := []MovementRecord{}
	for rows.Next() {
		var rec MovementRecord
		if err := rows.Scan(&rec.ID, &rec.WarehouseID, &rec.ProductID, &rec.Type, &rec.Qty, &rec.UnitCost, &rec.TotalCost, &rec.StockBefore, &rec.StockAfter, &rec.RefType, &rec.RefID, &rec.Note, &rec.ActorID, &rec.PostedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// ListLowStock returns balances at or below the product reorder level.
func (r *Repository) ListLowStock(ctx context.Context) ([]LowStockItem, error) {
	if r == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.sku, p.name, b.warehouse_id, b.qty, p.reorder_level
FROM stock_balances b
JOIN products p ON p.id = b.product_id
WHERE p.is_active AND p.reorder_level > 0 AND b.qty <= p.reorder_level
ORDER BY p.sku ASC, b.warehouse_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LowStockItem
	for rows.Next() {
		var item LowStockItem
		if err := rows.Scan(&item.ProductID, &item.SKU, &item.Name, &item.WarehouseID, &item.Qty, &item.ReorderLevel); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *txRepository) WarehouseExists(ctx context.Context, warehouseID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM warehouses WHERE id=$1 AND is_active)`, warehouseID).Scan(&exists)
	return exists, err
}

func (r *txRepository) ProductExists(ctx context.Context, productID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id=$1 AND deleted_at IS NULL)`, productID).Scan(&exists)
	return exists, err
}

func (r *txRepository) GetBalanceForUpdate(ctx context.Context, warehouseID, productID int64) (Balance, error) {
	var bal Balance
	err := r.tx.QueryRow(ctx, `SELECT warehouse_id, product_id, qty, updated_at FROM stock_balances WHERE warehouse_id=$1 AND product_id=$2 FOR UPDATE`, warehouseID, productID).
		Scan(&bal.WarehouseID, &bal.ProductID, &bal.Qty, &bal.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Balance{WarehouseID: warehouseID, ProductID: productID}, ErrBalanceNotFound
		}
		return Balance{}, err
	}
	return bal, nil
}

func (r *txRepository) UpsertBalance(ctx context.Context, balance Balance) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_balances (warehouse_id, product_id, qty, updated_at)
VALUES ($1,$2,$3,NOW())
ON CONFLICT (warehouse_id, product_id) DO UPDATE SET qty=EXCLUDED.qty, updated_at=NOW()`, balance.WarehouseID, balance.ProductID, balance.Qty)
	return err
}

func (r *txRepository) GetProductCostForUpdate(ctx context.Context, productID int64) (float64, error) {
	var avgCost float64
	err := r.tx.QueryRow(ctx, `SELECT avg_cost FROM products WHERE id=$1 AND deleted_at IS NULL FOR UPDATE`, productID).Scan(&avgCost)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.ErrNotFound
		}
		return 0, err
	}
	return avgCost, nil
}

func (r *txRepository) UpdateProductCost(ctx context.Context, productID int64, avgCost float64) error {
	_, err := r.tx.Exec(ctx, `UPDATE products SET avg_cost=$2, updated_at=NOW() WHERE id=$1`, productID, avgCost)
	return err
}

func (r *txRepository) InsertMovement(ctx context.Context, rec MovementRecord) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements (warehouse_id, product_id, movement_type, qty, unit_cost, total_cost, stock_before, stock_after, ref_type, ref_id, note, actor_id, posted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13) RETURNING id`,
		rec.WarehouseID, rec.ProductID, string(rec.Type), rec.Qty, rec.UnitCost, rec.TotalCost, rec.StockBefore, rec.StockAfter, rec.RefType, rec.RefID, rec.Note, nullInt(rec.ActorID), rec.PostedAt).Scan(&id)
	return id, err
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
