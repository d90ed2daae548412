package products

import (
	"time"
)

// Product represents a catalog product. AvgCost is owned by the stock
// ledger; catalog updates never write it.
type Product struct {
	ID           int64      `json:"id"`
	SKU          string     `json:"sku"`
	Name         string     `json:"name"`
	AvgCost      float64    `json:"avg_cost"`
	SalePrice    float64    `json:"sale_price"`
	ReorderLevel float64    `json:"reorder_level"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}
