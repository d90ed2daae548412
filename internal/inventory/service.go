package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// LedgerStore is the persistence surface the engine needs.
type LedgerStore interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListMovements(ctx context.Context, filter StockCardFilter) ([]MovementRecord, error)
	ListLowStock(ctx context.Context) ([]LowStockItem, error)
}

type auditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service is the stock ledger engine. Every movement flows through Post,
// which locks the balance row, applies the direction policy, updates the
// weighted-average cost and appends one immutable ledger record.
type Service struct {
	store LedgerStore
	audit auditRecorder
	log   *slog.Logger
}

// NewService constructs Service. audit may be nil.
func NewService(store LedgerStore, audit auditRecorder, log *slog.Logger) *Service {
	return &Service{store: store, audit: audit, log: log}
}

// RecordMovement posts a single movement inside its own transaction.
func (s *Service) RecordMovement(ctx context.Context, input MovementInput) (MovementRecord, error) {
	var rec MovementRecord
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		rec, err = s.Post(ctx, tx, input)
		return err
	})
	if err != nil {
		return MovementRecord{}, err
	}
	s.recordAudit(ctx, rec)
	return rec, nil
}

// Post applies one movement inside the caller's transaction. Orchestrators
// use it to make per-line postings atomic with their own document writes:
// either the document and all its movements commit, or none do.
func (s *Service) Post(ctx context.Context, tx TxRepository, input MovementInput) (MovementRecord, error) {
	direction, err := input.Type.Direction()
	if err != nil {
		return MovementRecord{}, err
	}
	if input.Qty <= 0 {
		return MovementRecord{}, ErrInvalidQuantity
	}
	if input.UnitCost < 0 {
		return MovementRecord{}, ErrInvalidUnitCost
	}

	ok, err := tx.WarehouseExists(ctx, input.WarehouseID)
	if err != nil {
		return MovementRecord{}, err
	}
	if !ok {
		return MovementRecord{}, fmt.Errorf("warehouse %d: %w", input.WarehouseID, shared.ErrNotFound)
	}
	ok, err = tx.ProductExists(ctx, input.ProductID)
	if err != nil {
		return MovementRecord{}, err
	}
	if !ok {
		return MovementRecord{}, fmt.Errorf("product %d: %w", input.ProductID, shared.ErrNotFound)
	}

	// Lock order is fixed (product, then balance) so concurrent postings
	// for the same pair serialise instead of deadlocking.
	avgCost, err := tx.GetProductCostForUpdate(ctx, input.ProductID)
	if err != nil {
		return MovementRecord{}, err
	}
	balance, err := tx.GetBalanceForUpdate(ctx, input.WarehouseID, input.ProductID)
	if err != nil && err != ErrBalanceNotFound {
		return MovementRecord{}, err
	}

	before := balance.Qty
	unitCost := input.UnitCost
	var after float64

	switch direction {
	case DirectionIn:
		after = before + input.Qty
		// Weighted average over the whole on-hand quantity. A zero or
		// negative prior balance resets the average to the incoming cost.
		newAvg := unitCost
		if before > 0 {
			newAvg = (before*avgCost + input.Qty*unitCost) / after
		}
		if err := tx.UpdateProductCost(ctx, input.ProductID, newAvg); err != nil {
			return MovementRecord{}, err
		}
	case DirectionOut:
		if before < input.Qty {
			return MovementRecord{}, fmt.Errorf("product %d in warehouse %d: have %.3f, need %.3f: %w",
				input.ProductID, input.WarehouseID, before, input.Qty, ErrInsufficientStock)
		}
		// Outbound movements never revise the average. The supplied cost is
		// recorded as-is for historical costing; it defaults to the carrying
		// average when the caller leaves it unset.
		if unitCost == 0 {
			unitCost = avgCost
		}
		after = before - input.Qty
	}

	balance.WarehouseID = input.WarehouseID
	balance.ProductID = input.ProductID
	balance.Qty = after
	if err := tx.UpsertBalance(ctx, balance); err != nil {
		return MovementRecord{}, err
	}

	rec := MovementRecord{
		WarehouseID: input.WarehouseID,
		ProductID:   input.ProductID,
		Type:        input.Type,
		Qty:         input.Qty,
		UnitCost:    unitCost,
		TotalCost:   input.Qty * unitCost,
		StockBefore: before,
		StockAfter:  after,
		RefType:     input.RefType,
		RefID:       input.RefID,
		Note:        input.Note,
		ActorID:     input.ActorID,
		PostedAt:    time.Now().UTC(),
	}
	rec.ID, err = tx.InsertMovement(ctx, rec)
	if err != nil {
		return MovementRecord{}, err
	}
	return rec, nil
}

// PostAdjustment records a manual correction. The sign of Qty picks the
// movement type: positive posts ADJUST_IN at the given unit cost, negative
// posts ADJUST_OUT at the carrying average.
func (s *Service) PostAdjustment(ctx context.Context, input AdjustmentInput) (MovementRecord, error) {
	if input.Qty == 0 {
		return MovementRecord{}, ErrInvalidQuantity
	}
	movement := MovementInput{
		WarehouseID: input.WarehouseID,
		ProductID:   input.ProductID,
		Qty:         input.Qty,
		UnitCost:    input.UnitCost,
		RefType:     input.RefType,
		RefID:       input.RefID,
		Note:        input.Note,
		ActorID:     input.ActorID,
	}
	if input.Qty > 0 {
		movement.Type = MovementAdjustIn
	} else {
		movement.Type = MovementAdjustOut
		movement.Qty = -input.Qty
		movement.UnitCost = 0
	}
	return s.RecordMovement(ctx, movement)
}

// PostTransfer moves stock between warehouses atomically. The outbound leg
// fixes the cost; the inbound leg receives at that same carrying cost so a
// transfer never changes the product valuation.
func (s *Service) PostTransfer(ctx context.Context, input TransferInput) (out, in MovementRecord, err error) {
	if input.SrcWarehouse == input.DstWarehouse {
		return MovementRecord{}, MovementRecord{}, fmt.Errorf("transfer within warehouse %d: %w", input.SrcWarehouse, ErrInvalidQuantity)
	}
	err = s.store.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		out, err = s.Post(ctx, tx, MovementInput{
			WarehouseID: input.SrcWarehouse,
			ProductID:   input.ProductID,
			Type:        MovementTransferOut,
			Qty:         input.Qty,
			RefType:     input.RefType,
			RefID:       input.RefID,
			Note:        input.Note,
			ActorID:     input.ActorID,
		})
		if err != nil {
			return err
		}
		in, err = s.Post(ctx, tx, MovementInput{
			WarehouseID: input.DstWarehouse,
			ProductID:   input.ProductID,
			Type:        MovementTransferIn,
			Qty:         input.Qty,
			UnitCost:    out.UnitCost,
			RefType:     input.RefType,
			RefID:       input.RefID,
			Note:        input.Note,
			ActorID:     input.ActorID,
		})
		return err
	})
	if err != nil {
		return MovementRecord{}, MovementRecord{}, err
	}
	s.recordAudit(ctx, out)
	s.recordAudit(ctx, in)
	return out, in, nil
}

// PostProductionOutput receives finished goods at the given unit cost.
func (s *Service) PostProductionOutput(ctx context.Context, input ProductionInput) (MovementRecord, error) {
	return s.RecordMovement(ctx, MovementInput{
		WarehouseID: input.WarehouseID,
		ProductID:   input.ProductID,
		Type:        MovementProductionOutput,
		Qty:         input.Qty,
		UnitCost:    input.UnitCost,
		RefType:     input.RefType,
		RefID:       input.RefID,
		Note:        input.Note,
		ActorID:     input.ActorID,
	})
}

// PostProductionConsumption issues raw material to production at the
// carrying average cost.
func (s *Service) PostProductionConsumption(ctx context.Context, input ProductionInput) (MovementRecord, error) {
	return s.RecordMovement(ctx, MovementInput{
		WarehouseID: input.WarehouseID,
		ProductID:   input.ProductID,
		Type:        MovementProductionConsumption,
		Qty:         input.Qty,
		RefType:     input.RefType,
		RefID:       input.RefID,
		Note:        input.Note,
		ActorID:     input.ActorID,
	})
}

// GetStockCard returns the ledger entries for one (warehouse, product)
// pair, oldest first.
func (s *Service) GetStockCard(ctx context.Context, filter StockCardFilter) ([]MovementRecord, error) {
	if filter.WarehouseID == 0 || filter.ProductID == 0 {
		return nil, fmt.Errorf("stock card requires warehouse and product: %w", ErrInvalidQuantity)
	}
	return s.store.ListMovements(ctx, filter)
}

// ListLowStock returns balances at or below their product reorder level.
func (s *Service) ListLowStock(ctx context.Context) ([]LowStockItem, error) {
	return s.store.ListLowStock(ctx)
}

func (s *Service) recordAudit(ctx context.Context, rec MovementRecord) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  rec.ActorID,
		Category: "inventory",
		Action:   "stock." + string(rec.Type),
		Entity:   "stock_movement",
		EntityID: fmt.Sprintf("%d", rec.ID),
		New: map[string]any{
			"warehouse_id": rec.WarehouseID,
			"product_id":   rec.ProductID,
			"qty":          rec.Qty,
			"unit_cost":    rec.UnitCost,
			"stock_after":  rec.StockAfter,
		},
		At: rec.PostedAt,
	})
	if err != nil && s.log != nil {
		s.log.Warn("audit record failed", "entity", "stock_movement", "err", err)
	}
}
