package warehouses

import "time"

// WarehouseType classifies a warehouse.
type WarehouseType string

const (
	TypeStore      WarehouseType = "store"
	TypeCentral    WarehouseType = "central"
	TypeProduction WarehouseType = "production"
	TypeVirtual    WarehouseType = "virtual"
)

// Warehouse represents a stock location.
type Warehouse struct {
	ID        int64         `json:"id"`
	Code      string        `json:"code"`
	Name      string        `json:"name"`
	Type      WarehouseType `json:"type"`
	IsActive  bool          `json:"is_active"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// ValidType reports whether t is a known warehouse type.
func ValidType(t WarehouseType) bool {
	switch t {
	case TypeStore, TypeCentral, TypeProduction, TypeVirtual:
		return true
	}
	return false
}
