package warehouses

import (
	"fmt"
	"strings"

	"github.com/meridian-erp/meridian-erp/internal/masterdata/shared"
)

func (s *Service) validate(wh Warehouse) error {
	if strings.TrimSpace(wh.Code) == "" {
		return fmt.Errorf("code: %w", shared.ErrRequiredField)
	}
	if strings.TrimSpace(wh.Name) == "" {
		return fmt.Errorf("name: %w", shared.ErrRequiredField)
	}
	if !ValidType(wh.Type) {
		return fmt.Errorf("type %q: %w", wh.Type, shared.ErrValidation)
	}
	return nil
}
