package sales

import (
	"errors"
	"time"
)

// SaleStatus models the sale lifecycle. The only legal path is
// PENDING → COMPLETED → ANNULLED; ANNULLED is terminal.
type SaleStatus string

const (
	StatusPending   SaleStatus = "PENDING"
	StatusCompleted SaleStatus = "COMPLETED"
	StatusAnnulled  SaleStatus = "ANNULLED"
)

// Sale is the document header.
type Sale struct {
	ID             int64      `json:"id"`
	DocNumber      string     `json:"doc_number"`
	CustomerID     int64      `json:"customer_id"`
	WarehouseID    int64      `json:"warehouse_id"`
	CashSessionID  int64      `json:"cash_session_id"`
	Status         SaleStatus `json:"status"`
	Subtotal       float64    `json:"subtotal"`
	DiscountPct    float64    `json:"discount_pct"`
	DiscountAmount float64    `json:"discount_amount"`
	TaxPct         float64    `json:"tax_pct"`
	TaxAmount      float64    `json:"tax_amount"`
	Total          float64    `json:"total"`
	Note           string     `json:"note,omitempty"`
	CreatedBy      int64      `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	AnnulledBy     int64      `json:"annulled_by,omitempty"`
	AnnulledAt     *time.Time `json:"annulled_at,omitempty"`
	AnnulReason    string     `json:"annul_reason,omitempty"`
	Lines          []SaleLine `json:"lines,omitempty"`
}

// SaleLine is one sold item. UnitCost records the product's average cost
// at posting time so margins stay reproducible after later cost changes.
type SaleLine struct {
	ID          int64   `json:"id"`
	SaleID      int64   `json:"sale_id"`
	ProductID   int64   `json:"product_id"`
	Qty         float64 `json:"qty"`
	UnitPrice   float64 `json:"unit_price"`
	DiscountPct float64 `json:"discount_pct"`
	Subtotal    float64 `json:"subtotal"`
	UnitCost    float64 `json:"unit_cost"`
}

// Return is a customer return document against a completed sale.
type Return struct {
	ID        int64        `json:"id"`
	DocNumber string       `json:"doc_number"`
	SaleID    int64        `json:"sale_id"`
	Reason    string       `json:"reason"`
	CreatedBy int64        `json:"created_by"`
	CreatedAt time.Time    `json:"created_at"`
	Lines     []ReturnLine `json:"lines,omitempty"`
}

// ReturnLine is one returned item.
type ReturnLine struct {
	ID        int64   `json:"id"`
	ReturnID  int64   `json:"return_id"`
	ProductID int64   `json:"product_id"`
	Qty       float64 `json:"qty"`
	UnitCost  float64 `json:"unit_cost"`
}

// CreateSaleRequest is the payload for CreateSale.
type CreateSaleRequest struct {
	CustomerID  int64             `json:"customer_id" validate:"required"`
	WarehouseID int64             `json:"warehouse_id" validate:"required"`
	DiscountPct float64           `json:"discount_pct" validate:"gte=0,lte=100"`
	TaxPct      float64           `json:"tax_pct" validate:"gte=0,lte=100"`
	Note        string            `json:"note"`
	Lines       []SaleLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// SaleLineRequest is one requested line.
type SaleLineRequest struct {
	ProductID   int64   `json:"product_id" validate:"required"`
	Qty         float64 `json:"qty" validate:"required,gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
	DiscountPct float64 `json:"discount_pct" validate:"gte=0,lte=100"`
}

// CreateReturnRequest is the payload for CreateReturn.
type CreateReturnRequest struct {
	SaleID int64               `json:"sale_id" validate:"required"`
	Reason string              `json:"reason" validate:"required"`
	Lines  []ReturnLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// ReturnLineRequest is one requested return line.
type ReturnLineRequest struct {
	ProductID int64   `json:"product_id" validate:"required"`
	Qty       float64 `json:"qty" validate:"required,gt=0"`
}

// ListSalesRequest filters the sales listing.
type ListSalesRequest struct {
	CustomerID  int64
	WarehouseID int64
	Status      SaleStatus
	From        time.Time
	To          time.Time
	Page        int
	PerPage     int
}

// ErrNoOpenCashSession indicates the acting user has no open cash session.
var ErrNoOpenCashSession = errors.New("sales: no open cash session")

// ErrAlreadyAnnulled indicates a second annulment attempt.
var ErrAlreadyAnnulled = errors.New("sales: sale already annulled")

// ErrInvalidStatus indicates an operation not legal for the sale's status.
var ErrInvalidStatus = errors.New("sales: invalid sale status")

// ErrInvalidLine indicates a line with a bad quantity, price or discount.
var ErrInvalidLine = errors.New("sales: invalid line")

// ErrReturnExceedsSold indicates a return quantity above what was sold.
var ErrReturnExceedsSold = errors.New("sales: return exceeds sold quantity")
