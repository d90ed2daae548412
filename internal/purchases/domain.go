package purchases

import (
	"errors"
	"time"
)

// PurchaseStatus models the purchase lifecycle. Purchases complete on
// creation and are corrected through stock adjustments, not annulment.
type PurchaseStatus string

const (
	StatusCompleted PurchaseStatus = "COMPLETED"
)

// Purchase is the document header.
type Purchase struct {
	ID             int64          `json:"id"`
	DocNumber      string         `json:"doc_number"`
	SupplierID     int64          `json:"supplier_id"`
	WarehouseID    int64          `json:"warehouse_id"`
	Status         PurchaseStatus `json:"status"`
	Subtotal       float64        `json:"subtotal"`
	DiscountPct    float64        `json:"discount_pct"`
	DiscountAmount float64        `json:"discount_amount"`
	TaxPct         float64        `json:"tax_pct"`
	TaxAmount      float64        `json:"tax_amount"`
	Total          float64        `json:"total"`
	Note           string         `json:"note,omitempty"`
	CreatedBy      int64          `json:"created_by"`
	CreatedAt      time.Time      `json:"created_at"`
	Lines          []PurchaseLine `json:"lines,omitempty"`
}

// PurchaseLine is one received item. UnitCost is what revises the
// product's average cost when the movement posts.
type PurchaseLine struct {
	ID          int64   `json:"id"`
	PurchaseID  int64   `json:"purchase_id"`
	ProductID   int64   `json:"product_id"`
	Qty         float64 `json:"qty"`
	UnitCost    float64 `json:"unit_cost"`
	DiscountPct float64 `json:"discount_pct"`
	Subtotal    float64 `json:"subtotal"`
}

// CreatePurchaseRequest is the payload for CreatePurchase.
type CreatePurchaseRequest struct {
	SupplierID  int64                 `json:"supplier_id" validate:"required"`
	WarehouseID int64                 `json:"warehouse_id" validate:"required"`
	DiscountPct float64               `json:"discount_pct" validate:"gte=0,lte=100"`
	TaxPct      float64               `json:"tax_pct" validate:"gte=0,lte=100"`
	Note        string                `json:"note"`
	Lines       []PurchaseLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// PurchaseLineRequest is one requested line.
type PurchaseLineRequest struct {
	ProductID   int64   `json:"product_id" validate:"required"`
	Qty         float64 `json:"qty" validate:"required,gt=0"`
	UnitCost    float64 `json:"unit_cost" validate:"gte=0"`
	DiscountPct float64 `json:"discount_pct" validate:"gte=0,lte=100"`
}

// ListPurchasesRequest filters the purchase listing.
type ListPurchasesRequest struct {
	SupplierID  int64
	WarehouseID int64
	From        time.Time
	To          time.Time
	Page        int
	PerPage     int
}

// ErrInvalidLine indicates a line with a bad quantity, cost or discount.
var ErrInvalidLine = errors.New("purchases: invalid line")
