package sales

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

// TxRepository is the transactional surface CreateSale, AnnulSale and
// CreateReturn work against. Ledger exposes the stock ledger bound to the
// same transaction so document writes and movements commit together.
type TxRepository interface {
	InsertSale(ctx context.Context, sale Sale) (int64, error)
	InsertSaleLines(ctx context.Context, saleID int64, lines []SaleLine) error
	GetSaleForUpdate(ctx context.Context, saleID int64) (Sale, error)
	GetSaleLines(ctx context.Context, saleID int64) ([]SaleLine, error)
	MarkAnnulled(ctx context.Context, saleID, actorID int64, reason string, at time.Time) error
	SumReturnedQty(ctx context.Context, saleID, productID int64) (float64, error)
	InsertReturn(ctx context.Context, ret Return) (int64, error)
	InsertReturnLines(ctx context.Context, returnID int64, lines []ReturnLine) error
	NextDocumentNumber(ctx context.Context, docType string) (string, error)
	Ledger() inventory.TxRepository
}

// Store is the full persistence surface for the sales service.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetSale(ctx context.Context, saleID int64) (*Sale, error)
	ListSales(ctx context.Context, req ListSalesRequest) ([]Sale, int, error)
}

// Repository persists sales in PostgreSQL.
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

// GetSale loads a sale with its lines.
func (r *Repository) GetSale(ctx context.Context, saleID int64) (*Sale, error) {
	var sale Sale
	err := r.pool.QueryRow(ctx, `SELECT id, doc_number, customer_id, warehouse_id, cash_session_id, status, subtotal, discount_pct, discount_amount, tax_pct, tax_amount, total, note, created_by, created_at, annulled_by, annulled_at, annul_reason
FROM sales WHERE id=$1`, saleID).Scan(
		&sale.ID, &sale.DocNumber, &sale.CustomerID, &sale.WarehouseID, &sale.CashSessionID, &sale.Status,
		&sale.Subtotal, &sale.DiscountPct, &sale.DiscountAmount, &sale.TaxPct, &sale.TaxAmount, &sale.Total,
		&sale.Note, &sale.CreatedBy, &sale.CreatedAt, &sale.AnnulledBy, &sale.AnnulledAt, &sale.AnnulReason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("sale %d: %w", saleID, shared.ErrNotFound)
		}
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, sale_id, product_id, qty, unit_price, discount_pct, subtotal, unit_cost
FROM sale_lines WHERE sale_id=$1 ORDER BY id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var line SaleLine
		if err := rows.Scan(&line.ID, &line.SaleID, &line.ProductID, &line.Qty, &line.UnitPrice, &line.DiscountPct, &line.Subtotal, &line.UnitCost); err != nil {
			return nil, err
		}
		sale.Lines = append(sale.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &sale, nil
}

// ListSales returns a filtered page of sale headers plus the total count.
func (r *Repository) ListSales(ctx context.Context, req ListSalesRequest) ([]Sale, int, error) {
	where := `WHERE ($1 = 0 OR customer_id = $1)
AND ($2 = 0 OR warehouse_id = $2)
AND ($3 = '' OR status = $3)
AND created_at BETWEEN COALESCE($4, '-infinity') AND COALESCE($5, 'infinity')`
	args := []any{req.CustomerID, req.WarehouseID, string(req.Status), nullTime(req.From), nullTime(req.To)}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sales `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page := shared.NewPagination(req.Page, req.PerPage, total)

	rows, err := r.pool.Query(ctx, `SELECT id, doc_number, customer_id, warehouse_id, cash_session_id, status, subtotal, discount_pct, discount_amount, tax_pct, tax_amount, total, note, created_by, created_at, annulled_by, annulled_at, annul_reason
FROM sales `+where+` ORDER BY created_at DESC, id DESC LIMIT $6 OFFSET $7`,
		append(args, page.PerPage, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	sales := []Sale{}
	for rows.Next() {
		var sale Sale
		if err := rows.Scan(&sale.ID, &sale.DocNumber, &sale.CustomerID, &sale.WarehouseID, &sale.CashSessionID, &sale.Status,
			&sale.Subtotal, &sale.DiscountPct, &sale.DiscountAmount, &sale.TaxPct, &sale.TaxAmount, &sale.Total,
			&sale.Note, &sale.CreatedBy, &sale.CreatedAt, &sale.AnnulledBy, &sale.AnnulledAt, &sale.AnnulReason); err != nil {
			return nil, 0, err
		}
		sales = append(sales, sale)
	}
	return sales, total, rows.Err()
}

func (r *txRepository) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO sales (doc_number, customer_id, warehouse_id, cash_session_id, status, subtotal, discount_pct, discount_amount, tax_pct, tax_amount, total, note, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14) RETURNING id`,
		sale.DocNumber, sale.CustomerID, sale.WarehouseID, sale.CashSessionID, string(sale.Status),
		sale.Subtotal, sale.DiscountPct, sale.DiscountAmount, sale.TaxPct, sale.TaxAmount, sale.Total,
		sale.Note, sale.CreatedBy, sale.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) InsertSaleLines(ctx context.Context, saleID int64, lines []SaleLine) error {
	for _, line := range lines {
		_, err := r.tx.Exec(ctx, `INSERT INTO sale_lines (sale_id, product_id, qty, unit_price, discount_pct, subtotal, unit_cost)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, saleID, line.ProductID, line.Qty, line.UnitPrice, line.DiscountPct, line.Subtotal, line.UnitCost)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) GetSaleForUpdate(ctx context.Context, saleID int64) (Sale, error) {
	var sale Sale
	err := r.tx.QueryRow(ctx, `SELECT id, doc_number, customer_id, warehouse_id, cash_session_id, status, subtotal, total, created_by, created_at
FROM sales WHERE id=$1 FOR UPDATE`, saleID).Scan(
		&sale.ID, &sale.DocNumber, &sale.CustomerID, &sale.WarehouseID, &sale.CashSessionID, &sale.Status,
		&sale.Subtotal, &sale.Total, &sale.CreatedBy, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, fmt.Errorf("sale %d: %w", saleID, shared.ErrNotFound)
		}
		return Sale{}, err
	}
	return sale, nil
}

func (r *txRepository) GetSaleLines(ctx context.Context, saleID int64) ([]SaleLine, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, sale_id, product_id, qty, unit_price, discount_pct, subtotal, unit_cost
FROM sale_lines WHERE sale_id=$1 ORDER BY id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []SaleLine
	for rows.Next() {
		var line SaleLine
		if err := rows.Scan(&line.ID, &line.SaleID, &line.ProductID, &line.Qty, &line.UnitPrice, &line.DiscountPct, &line.Subtotal, &line.UnitCost); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *txRepository) MarkAnnulled(ctx context.Context, saleID, actorID int64, reason string, at time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE sales SET status='ANNULLED', annulled_by=$2, annulled_at=$3, annul_reason=$4 WHERE id=$1`,
		saleID, actorID, at, reason)
	return err
}

func (r *txRepository) SumReturnedQty(ctx context.Context, saleID, productID int64) (float64, error) {
	var qty float64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(l.qty), 0)
FROM sale_return_lines l JOIN sale_returns r ON r.id = l.return_id
WHERE r.sale_id=$1 AND l.product_id=$2`, saleID, productID).Scan(&qty)
	return qty, err
}

func (r *txRepository) InsertReturn(ctx context.Context, ret Return) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO sale_returns (doc_number, sale_id, reason, created_by, created_at)
VALUES ($1,$2,$3,$4,$5) RETURNING id`, ret.DocNumber, ret.SaleID, ret.Reason, ret.CreatedBy, ret.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) InsertReturnLines(ctx context.Context, returnID int64, lines []ReturnLine) error {
	for _, line := range lines {
		_, err := r.tx.Exec(ctx, `INSERT INTO sale_return_lines (return_id, product_id, qty, unit_cost)
VALUES ($1,$2,$3,$4)`, returnID, line.ProductID, line.Qty, line.UnitCost)
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
