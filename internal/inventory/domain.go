package inventory

import (
	"errors"
	"time"
)

// MovementType enumerates supported stock ledger movements. The set is
// closed: every member maps to exactly one Direction and anything else is
// rejected before any state is touched.
type MovementType string

const (
	// MovementPurchase is goods received from a supplier.
	MovementPurchase MovementType = "PURCHASE"
	// MovementTransferIn is the receiving leg of a warehouse transfer.
	MovementTransferIn MovementType = "TRANSFER_IN"
	// MovementReturn restores stock from a customer return or annulment.
	MovementReturn MovementType = "RETURN"
	// MovementProductionOutput is finished goods coming out of production.
	MovementProductionOutput MovementType = "PRODUCTION_OUTPUT"
	// MovementAdjustIn is a positive manual correction.
	MovementAdjustIn MovementType = "ADJUST_IN"
	// MovementSale is goods leaving on a sale.
	MovementSale MovementType = "SALE"
	// MovementTransferOut is the issuing leg of a warehouse transfer.
	MovementTransferOut MovementType = "TRANSFER_OUT"
	// MovementProductionConsumption is raw material consumed by production.
	MovementProductionConsumption MovementType = "PRODUCTION_CONSUMPTION"
	// MovementAdjustOut is a negative manual correction.
	MovementAdjustOut MovementType = "ADJUST_OUT"
)

// Direction partitions movement types into the two policy classes.
type Direction int

const (
	// DirectionIn increases the balance and may revise the average cost.
	DirectionIn Direction = iota + 1
	// DirectionOut decreases the balance at the current average cost.
	DirectionOut
)

// Direction returns the policy class for the movement type. Unknown types
// yield ErrInvalidMovementType.
func (t MovementType) Direction() (Direction, error) {
	switch t {
	case MovementPurchase, MovementTransferIn, MovementReturn, MovementProductionOutput, MovementAdjustIn:
		return DirectionIn, nil
	case MovementSale, MovementTransferOut, MovementProductionConsumption, MovementAdjustOut:
		return DirectionOut, nil
	default:
		return 0, ErrInvalidMovementType
	}
}

// Balance summarises stock on hand in one warehouse for one product. Rows
// are created lazily on the first movement and never deleted.
type Balance struct {
	WarehouseID int64
	ProductID   int64
	Qty         float64
	UpdatedAt   time.Time
}

// MovementRecord is one immutable entry in the stock ledger. Records are
// only ever appended; they are the audit trail and the source of truth
// for historical valuation.
type MovementRecord struct {
	ID          int64
	WarehouseID int64
	ProductID   int64
	Type        MovementType
	Qty         float64
	UnitCost    float64
	TotalCost   float64
	StockBefore float64
	StockAfter  float64
	RefType     string
	RefID       string
	Note        string
	ActorID     int64
	PostedAt    time.Time
}

// MovementInput describes a single movement to record.
type MovementInput struct {
	WarehouseID int64
	ProductID   int64
	Type        MovementType
	Qty         float64
	UnitCost    float64
	RefType     string
	RefID       string
	Note        string
	ActorID     int64
}

// AdjustmentInput describes a manual stock correction. Qty is signed:
// positive posts ADJUST_IN, negative posts ADJUST_OUT.
type AdjustmentInput struct {
	WarehouseID int64
	ProductID   int64
	Qty         float64
	UnitCost    float64
	Note        string
	ActorID     int64
	RefType     string
	RefID       string
}

// TransferInput describes a transfer between warehouses.
type TransferInput struct {
	ProductID    int64
	Qty          float64
	SrcWarehouse int64
	DstWarehouse int64
	Note         string
	ActorID      int64
	RefType      string
	RefID        string
}

// ProductionInput describes production output or consumption.
type ProductionInput struct {
	WarehouseID int64
	ProductID   int64
	Qty         float64
	UnitCost    float64
	Note        string
	ActorID     int64
	RefType     string
	RefID       string
}

// StockCardFilter filters ledger entries for the stock card view.
type StockCardFilter struct {
	WarehouseID int64
	ProductID   int64
	From        time.Time
	To          time.Time
	Limit       int
}

// LowStockItem reports a balance at or below the product reorder level.
type LowStockItem struct {
	ProductID    int64
	SKU          string
	Name         string
	WarehouseID  int64
	Qty          float64
	ReorderLevel float64
}

// ErrInvalidMovementType is returned for types outside the closed set.
var ErrInvalidMovementType = errors.New("inventory: invalid movement type")

// ErrInsufficientStock triggered when an outbound movement exceeds the balance.
var ErrInsufficientStock = errors.New("inventory: insufficient stock")

// ErrInvalidQuantity indicates a non-positive quantity.
var ErrInvalidQuantity = errors.New("inventory: quantity must be positive")

// ErrInvalidUnitCost indicates an invalid cost value.
var ErrInvalidUnitCost = errors.New("inventory: unit cost must be >= 0")
