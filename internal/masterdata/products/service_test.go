package products

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/masterdata/shared"
)

type memoryRepo struct {
	products map[int64]Product
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: map[int64]Product{}}
}

func (m *memoryRepo) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	var out []Product
	for _, p := range m.products {
		if filters.IsActive != nil && p.IsActive != *filters.IsActive {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (Product, error) {
	p, ok := m.products[id]
	if !ok {
		return Product{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *memoryRepo) GetBySKU(ctx context.Context, sku string) (Product, error) {
	for _, p := range m.products {
		if p.SKU == sku {
			return p, nil
		}
	}
	return Product{}, shared.ErrNotFound
}

func (m *memoryRepo) Create(ctx context.Context, product Product) (Product, error) {
	for _, p := range m.products {
		if p.SKU == product.SKU {
			return Product{}, shared.ErrDuplicate
		}
	}
	m.nextID++
	product.ID = m.nextID
	m.products[product.ID] = product
	return product, nil
}

func (m *memoryRepo) Update(ctx context.Context, id int64, product Product) error {
	existing, ok := m.products[id]
	if !ok {
		return shared.ErrNotFound
	}
	product.ID = id
	product.AvgCost = existing.AvgCost
	m.products[id] = product
	return nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.products[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.products, id)
	return nil
}

func TestCreateProduct(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	p, err := svc.Create(ctx, Product{SKU: "WID-001", Name: "Widget", SalePrice: 19.99, ReorderLevel: 5})
	require.NoError(t, err)
	require.NotZero(t, p.ID)
	require.True(t, p.IsActive)

	_, err = svc.Create(ctx, Product{SKU: "WID-001", Name: "Widget clone"})
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestCreateProductValidation(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, Product{Name: "No SKU"})
	require.ErrorIs(t, err, shared.ErrRequiredField)

	_, err = svc.Create(ctx, Product{SKU: "X", Name: " "})
	require.ErrorIs(t, err, shared.ErrRequiredField)

	_, err = svc.Create(ctx, Product{SKU: "X", Name: "Y", SalePrice: -1})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, Product{SKU: "X", Name: "Y", ReorderLevel: -2})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestGetInvalidID(t *testing.T) {
	svc := NewService(newMemoryRepo())
	_, err := svc.Get(context.Background(), 0)
	require.ErrorIs(t, err, shared.ErrInvalidID)
	_, err = svc.Get(context.Background(), 42)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateKeepsLedgerCost(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	p, err := svc.Create(ctx, Product{SKU: "WID-001", Name: "Widget"})
	require.NoError(t, err)

	// Simulate the ledger revising the average.
	stored := repo.products[p.ID]
	stored.AvgCost = 42.5
	repo.products[p.ID] = stored

	err = svc.Update(ctx, p.ID, Product{SKU: "WID-001", Name: "Widget v2", SalePrice: 25, IsActive: true})
	require.NoError(t, err)
	require.InDelta(t, 42.5, repo.products[p.ID].AvgCost, 0.0001)
	require.Equal(t, "Widget v2", repo.products[p.ID].Name)
}
