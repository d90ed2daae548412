package purchases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/numbering"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// TxRepository is the transactional surface for purchase creation. Ledger
// binds the stock ledger to the same transaction.
type TxRepository interface {
	InsertPurchase(ctx context.Context, purchase Purchase) (int64, error)
	InsertPurchaseLines(ctx context.Context, purchaseID int64, lines []PurchaseLine) error
	NextDocumentNumber(ctx context.Context, docType string) (string, error)
	Ledger() inventory.TxRepository
}

// Store is the full persistence surface for the purchases service.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPurchase(ctx context.Context, purchaseID int64) (*Purchase, error)
	ListPurchases(ctx context.Context, req ListPurchasesRequest) ([]Purchase, int, error)
}

// Repository persists purchases in PostgreSQL.
type Repository struct {
	pool    *pgxpool.Pool
	numbers *numbering.Service
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, numbers *numbering.Service) *Repository {
	return &Repository{pool: pool, numbers: numbers}
}

type txRepository struct {
	tx      pgx.Tx
	numbers *numbering.Service
}

// WithTx executes the callback inside a row-locking transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, numbers: r.numbers})
	})
}

// GetPurchase loads a purchase with its lines.
func (r *Repository) GetPurchase(ctx context.Context, purchaseID int64) (*Purchase, error) {
	var p Purchase
	err := r.pool.QueryRow(ctx, `SELECT id, doc_number, supplier_id, warehouse_id, status, subtotal, discount_pct, discount_amount, tax_pct, tax_amount, total, note, created_by, created_at
FROM purchases WHERE id=$1`, purchaseID).Scan(
		&p.ID, &p.DocNumber, &p.SupplierID, &p.WarehouseID, &p.Status,
		&p.Subtotal, &p.DiscountPct, &p.DiscountAmount, &p.TaxPct, &p.TaxAmount, &p.Total,
		&p.Note, &p.CreatedBy, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("purchase %d: %w", purchaseID, shared.ErrNotFound)
		}
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, purchase_id, product_id, qty, unit_cost, discount_pct, subtotal
FROM purchase_lines WHERE purchase_id=$1 ORDER BY id`, purchaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var line PurchaseLine
		if err := rows.Scan(&line.ID, &line.PurchaseID, &line.ProductID, &line.Qty, &line.UnitCost, &line.DiscountPct, &line.Subtotal); err != nil {
			return nil, err
		}
		p.Lines = append(p.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPurchases returns a filtered page of purchase headers plus the count.
func (r *Repository) ListPurchases(ctx context.Context, req ListPurchasesRequest) ([]Purchase, int, error) {
	where := `WHERE ($1 = 0 OR supplier_id = $1)
AND ($2 = 0 OR warehouse_id = $2)
AND created_at BETWEEN COALESCE($3, '-infinity') AND COALESCE($4, 'infinity')`
	args := []any{req.SupplierID, req.WarehouseID, nullTime(req.From), nullTime(req.To)}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchases `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page := shared.NewPagination(req.Page, req.PerPage, total)

	rows, err := r.pool.Query(ctx, `SELECT id, doc_number, supplier_id, warehouse_id, status, subtotal, discount_pct, discount_amount, tax_pct, tax_amount, total, note, created_by, created_at
FROM purchases `+where+` ORDER BY created_at DESC, id DESC LIMIT $5 OFFSET $6`,
		append(args, page.PerPage, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	purchases := []Purchase{}
	for rows.Next() {
		var p Purchase
		if err := rows.Scan(&p.ID, &p.DocNumber, &p.SupplierID, &p.WarehouseID, &p.Status,
			&p.Subtotal, &p.DiscountPct, &p.DiscountAmount, &p.TaxPct, &p.TaxAmount, &p.Total,
			&p.Note, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, 0, err
		}
		purchases = append(purchases, p)
	}
	return purchases, total, rows.Err()
}

func (r *txRepository) InsertPurchase(ctx context.Context, purchase Purchase) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO purchases (doc_number, supplier_id, warehouse_id, status, subtotal, discount_pct, discount_amount, tax_pct, tax_amount, total, note, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13) RETURNING id`,
		purchase.DocNumber, purchase.SupplierID, purchase.WarehouseID, string(purchase.Status),
		purchase.Subtotal, purchase.DiscountPct, purchase.DiscountAmount, purchase.TaxPct, purchase.TaxAmount, purchase.Total,
		purchase.Note, purchase.CreatedBy, purchase.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) InsertPurchaseLines(ctx context.Context, purchaseID int64, lines []PurchaseLine) error {
	for _, line := range lines {
		_, err := r.tx.Exec(ctx, `INSERT INTO purchase_lines (purchase_id, product_id, qty, unit_cost, discount_pct, subtotal)
VALUES ($1,$2,$3,$4,$5,$6)`, purchaseID, line.ProductID, line.Qty, line.UnitCost, line.DiscountPct, line.Subtotal)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) NextDocumentNumber(ctx context.Context, docType string) (string, error) {
	return r.numbers.NextNumberTx(ctx, r.tx, docType)
}

func (r *txRepository) Ledger() inventory.TxRepository {
	return inventory.NewTxRepository(r.tx)
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
