package purchases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

const docTypePurchase = "PURCHASE"

type ledgerPoster interface {
	Post(ctx context.Context, tx inventory.TxRepository, input inventory.MovementInput) (inventory.MovementRecord, error)
}

type auditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates purchase documents.
type Service struct {
	store  Store
	ledger ledgerPoster
	audit  auditRecorder
	log    *slog.Logger
}

// NewService constructs Service. audit may be nil.
func NewService(store Store, ledger ledgerPoster, audit auditRecorder, log *slog.Logger) *Service {
	return &Service{store: store, ledger: ledger, audit: audit, log: log}
}

// CreatePurchase receives goods from a supplier. Header, lines and one
// PURCHASE posting per line share a transaction; the inbound postings are
// what revise each product's average cost.
func (s *Service) CreatePurchase(ctx context.Context, req CreatePurchaseRequest, actorID int64) (*Purchase, error) {
	lines := make([]PurchaseLine, len(req.Lines))
	for i, lr := range req.Lines {
		lines[i] = PurchaseLine{
			ProductID:   lr.ProductID,
			Qty:         lr.Qty,
			UnitCost:    lr.UnitCost,
			DiscountPct: lr.DiscountPct,
		}
	}
	totals, err := computeTotals(lines, req.DiscountPct, req.TaxPct)
	if err != nil {
		return nil, err
	}

	purchase := Purchase{
		SupplierID:     req.SupplierID,
		WarehouseID:    req.WarehouseID,
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
		purchase.DocNumber, err = tx.NextDocumentNumber(ctx, docTypePurchase)
		if err != nil {
			return fmt.Errorf("allocate doc number: %w", err)
		}
		purchase.ID, err = tx.InsertPurchase(ctx, purchase)
		if err != nil {
			return fmt.Errorf("insert purchase: %w", err)
		}
		ledger := tx.Ledger()
		for i := range lines {
			_, err := s.ledger.Post(ctx, ledger, inventory.MovementInput{
				WarehouseID: req.WarehouseID,
				ProductID:   lines[i].ProductID,
				Type:        inventory.MovementPurchase,
				Qty:         lines[i].Qty,
				UnitCost:    lines[i].UnitCost,
				RefType:     docTypePurchase,
				RefID:       purchase.DocNumber,
				ActorID:     actorID,
			})
			if err != nil {
				return err
			}
			lines[i].PurchaseID = purchase.ID
		}
		return tx.InsertPurchaseLines(ctx, purchase.ID, lines)
	})
	if err != nil {
		return nil, err
	}
	purchase.Lines = lines
	s.recordAudit(ctx, actorID, purchase)
	return &purchase, nil
}

// GetPurchase loads one purchase with lines.
func (s *Service) GetPurchase(ctx context.Context, purchaseID int64) (*Purchase, error) {
	return s.store.GetPurchase(ctx, purchaseID)
}

// ListPurchases returns a filtered page of purchases plus the total count.
func (s *Service) ListPurchases(ctx context.Context, req ListPurchasesRequest) ([]Purchase, int, error) {
	return s.store.ListPurchases(ctx, req)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, purchase Purchase) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Category: "purchases",
		Action:   "purchase.create",
		Entity:   "purchase",
		EntityID: fmt.Sprintf("%d", purchase.ID),
		New:      map[string]any{"doc_number": purchase.DocNumber, "total": purchase.Total},
	})
	if err != nil && s.log != nil {
		s.log.Warn("audit record failed", "entity", "purchase", "err", err)
	}
}
