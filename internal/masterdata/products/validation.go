package products

import (
	"fmt"
	"strings"

	"github.com/meridian-erp/meridian-erp/internal/masterdata/shared"
)

func (s *Service) validate(p Product) error {
	if strings.TrimSpace(p.SKU) == "" {
		return fmt.Errorf("sku: %w", shared.ErrRequiredField)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name: %w", shared.ErrRequiredField)
	}
	if p.SalePrice < 0 {
		return fmt.Errorf("sale_price must be >= 0: %w", shared.ErrValidation)
	}
	if p.ReorderLevel < 0 {
		return fmt.Errorf("reorder_level must be >= 0: %w", shared.ErrValidation)
	}
	return nil
}
