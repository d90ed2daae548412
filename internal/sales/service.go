package sales

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/cashsession"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// docTypeSale and docTypeReturn are the numbering series consumed here.
const (
	docTypeSale   = "SALE"
	docTypeReturn = "RETURN"
)

type ledgerPoster interface {
	Post(ctx context.Context, tx inventory.TxRepository, input inventory.MovementInput) (inventory.MovementRecord, error)
}

type cashProvider interface {
	CurrentOpen(ctx context.Context, userID int64) (*cashsession.Session, error)
}

type auditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates sale documents. Stock effects go through the
// ledger inside the document transaction so a sale and its movements are
// indivisible.
type Service struct {
	store  Store
	ledger ledgerPoster
	cash   cashProvider
	audit  auditRecorder
	log    *slog.Logger
}

// NewService constructs Service. audit may be nil.
func NewService(store Store, ledger ledgerPoster, cash cashProvider, audit auditRecorder, log *slog.Logger) *Service {
	return &Service{store: store, ledger: ledger, cash: cash, audit: audit, log: log}
}

// CreateSale creates and completes a sale. The actor needs an open cash
// session; the check runs before any mutation. Header, lines and one SALE
// posting per line share a single transaction, so an InsufficientStock on
// the last line aborts the whole document.
func (s *Service) CreateSale(ctx context.Context, req CreateSaleRequest, actorID int64) (*Sale, error) {
	session, err := s.cash.CurrentOpen(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("lookup cash session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("user %d: %w", actorID, ErrNoOpenCashSession)
	}

	lines := make([]SaleLine, len(req.Lines))
	for i, lr := range req.Lines {
		lines[i] = SaleLine{
			ProductID:   lr.ProductID,
			Qty:         lr.Qty,
			UnitPrice:   lr.UnitPrice,
			DiscountPct: lr.DiscountPct,
		}
	}
	totals, err := computeTotals(lines, req.DiscountPct, req.TaxPct)
	if err != nil {
		return nil, err
	}

	sale := Sale{
		CustomerID:     req.CustomerID,
		WarehouseID:    req.WarehouseID,
		CashSessionID:  session.ID,
		Status:         StatusCompleted,
		Subtotal:       totals.Subtotal,
		DiscountPct:    req.DiscountPct,
		DiscountAmount: totals.DiscountAmount,
		TaxPct:         req.TaxPct,
		TaxAmount:      totals.TaxAmount,
		Total:          totals.Total,
		Note:           req.Note,
		CreatedBy:      actorID,
		CreatedAt:      time.Now().UTC(),
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale.DocNumber, err = tx.NextDocumentNumber(ctx, docTypeSale)
		if err != nil {
			return fmt.Errorf("allocate doc number: %w", err)
		}
		sale.ID, err = tx.InsertSale(ctx, sale)
		if err != nil {
			return fmt.Errorf("insert sale: %w", err)
		}
		ledger := tx.Ledger()
		for i := range lines {
			rec, err := s.ledger.Post(ctx, ledger, inventory.MovementInput{
				WarehouseID: req.WarehouseID,
				ProductID:   lines[i].ProductID,
				Type:        inventory.MovementSale,
				Qty:         lines[i].Qty,
				RefType:     docTypeSale,
				RefID:       sale.DocNumber,
				ActorID:     actorID,
			})
			if err != nil {
				return err
			}
			lines[i].UnitCost = rec.UnitCost
			lines[i].SaleID = sale.ID
		}
		return tx.InsertSaleLines(ctx, sale.ID, lines)
	})
	if err != nil {
		return nil, err
	}
	sale.Lines = lines
	s.recordAudit(ctx, actorID, "sale.create", sale.ID, map[string]any{"doc_number": sale.DocNumber, "total": sale.Total})
	return &sale, nil
}

// AnnulSale reverses a completed sale. One inbound RETURN posting per
// product restores the quantities not already covered by partial returns,
// at the recorded cost; the header moves to ANNULLED. The original
// movement records stay untouched.
func (s *Service) AnnulSale(ctx context.Context, saleID, actorID int64, reason string) (*Sale, error) {
	if reason == "" {
		return nil, fmt.Errorf("annulment requires a reason: %w", ErrInvalidLine)
	}
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		switch sale.Status {
		case StatusCompleted:
		case StatusAnnulled:
			return fmt.Errorf("sale %s: %w", sale.DocNumber, ErrAlreadyAnnulled)
		default:
			return fmt.Errorf("sale %s is %s: %w", sale.DocNumber, sale.Status, ErrInvalidStatus)
		}
		lines, err := tx.GetSaleLines(ctx, saleID)
		if err != nil {
			return err
		}
		sold := make(map[int64]SaleLine, len(lines))
		order := make([]int64, 0, len(lines))
		for _, line := range lines {
			agg, ok := sold[line.ProductID]
			if !ok {
				order = append(order, line.ProductID)
			}
			agg.ProductID = line.ProductID
			agg.Qty += line.Qty
			agg.UnitCost = line.UnitCost
			sold[line.ProductID] = agg
		}
		ledger := tx.Ledger()
		for _, productID := range order {
			line := sold[productID]
			returned, err := tx.SumReturnedQty(ctx, saleID, productID)
			if err != nil {
				return err
			}
			// Partial returns already restored their share.
			qty := line.Qty - returned
			if qty <= 0 {
				continue
			}
			_, err = s.ledger.Post(ctx, ledger, inventory.MovementInput{
				WarehouseID: sale.WarehouseID,
				ProductID:   productID,
				Type:        inventory.MovementReturn,
				Qty:         qty,
				UnitCost:    line.UnitCost,
				RefType:     "SALE_ANNULMENT",
				RefID:       sale.DocNumber,
				Note:        reason,
				ActorID:     actorID,
			})
			if err != nil {
				return err
			}
		}
		return tx.MarkAnnulled(ctx, saleID, actorID, reason, time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "sale.annul", saleID, map[string]any{"reason": reason})
	return s.store.GetSale(ctx, saleID)
}

// CreateReturn posts a partial customer return against a completed sale.
// Cumulative returned quantity per product never exceeds what was sold.
func (s *Service) CreateReturn(ctx context.Context, req CreateReturnRequest, actorID int64) (*Return, error) {
	ret := Return{
		SaleID:    req.SaleID,
		Reason:    req.Reason,
		CreatedBy: actorID,
		CreatedAt: time.Now().UTC(),
	}
	var lines []ReturnLine
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, req.SaleID)
		if err != nil {
			return err
		}
		if sale.Status != StatusCompleted {
			return fmt.Errorf("sale %s is %s: %w", sale.DocNumber, sale.Status, ErrInvalidStatus)
		}
		saleLines, err := tx.GetSaleLines(ctx, req.SaleID)
		if err != nil {
			return err
		}
		soldByProduct := make(map[int64]SaleLine, len(saleLines))
		for _, line := range saleLines {
			agg := soldByProduct[line.ProductID]
			agg.ProductID = line.ProductID
			agg.Qty += line.Qty
			agg.UnitCost = line.UnitCost
			soldByProduct[line.ProductID] = agg
		}

		ret.DocNumber, err = tx.NextDocumentNumber(ctx, docTypeReturn)
		if err != nil {
			return fmt.Errorf("allocate doc number: %w", err)
		}
		ledger := tx.Ledger()
		lines = lines[:0]
		// Lines in this request count against the cap too; persisted
		// return lines alone would let duplicates slip through.
		requested := make(map[int64]float64, len(req.Lines))
		for _, lr := range req.Lines {
			sold, ok := soldByProduct[lr.ProductID]
			if !ok {
				return fmt.Errorf("product %d not on sale %s: %w", lr.ProductID, sale.DocNumber, ErrInvalidLine)
			}
			returned, err := tx.SumReturnedQty(ctx, req.SaleID, lr.ProductID)
			if err != nil {
				return err
			}
			if returned+requested[lr.ProductID]+lr.Qty > sold.Qty {
				return fmt.Errorf("product %d: %.3f sold, %.3f already returned, %.3f requested: %w",
					lr.ProductID, sold.Qty, returned+requested[lr.ProductID], lr.Qty, ErrReturnExceedsSold)
			}
			requested[lr.ProductID] += lr.Qty
			rec, err := s.ledger.Post(ctx, ledger, inventory.MovementInput{
				WarehouseID: sale.WarehouseID,
				ProductID:   lr.ProductID,
				Type:        inventory.MovementReturn,
				Qty:         lr.Qty,
				UnitCost:    sold.UnitCost,
				RefType:     docTypeReturn,
				RefID:       ret.DocNumber,
				Note:        req.Reason,
				ActorID:     actorID,
			})
			if err != nil {
				return err
			}
			lines = append(lines, ReturnLine{ProductID: lr.ProductID, Qty: lr.Qty, UnitCost: rec.UnitCost})
		}
		ret.ID, err = tx.InsertReturn(ctx, ret)
		if err != nil {
			return err
		}
		return tx.InsertReturnLines(ctx, ret.ID, lines)
	})
	if err != nil {
		return nil, err
	}
	ret.Lines = lines
	s.recordAudit(ctx, actorID, "sale.return", ret.SaleID, map[string]any{"doc_number": ret.DocNumber})
	return &ret, nil
}

// GetSale loads one sale with lines.
func (s *Service) GetSale(ctx context.Context, saleID int64) (*Sale, error) {
	return s.store.GetSale(ctx, saleID)
}

// ListSales returns a filtered page of sales plus the total count.
func (s *Service) ListSales(ctx context.Context, req ListSalesRequest) ([]Sale, int, error) {
	return s.store.ListSales(ctx, req)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, saleID int64, detail map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Category: "sales",
		Action:   action,
		Entity:   "sale",
		EntityID: fmt.Sprintf("%d", saleID),
		New:      detail,
	})
	if err != nil && s.log != nil {
		s.log.Warn("audit record failed", "entity", "sale", "err", err)
	}
}
