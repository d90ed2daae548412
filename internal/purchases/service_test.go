package purchases

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryStore struct {
	purchases map[int64]Purchase
	lines     map[int64][]PurchaseLine
	balances  map[string]inventory.Balance
	costs     map[int64]float64
	movements []inventory.MovementRecord
	docSeq    int64
	nextID    int64
	nextMove  int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		purchases: map[int64]Purchase{},
		lines:     map[int64][]PurchaseLine{},
		balances:  map[string]inventory.Balance{},
		costs:     map[int64]float64{},
	}
}

func balKey(warehouseID, productID int64) string {
	return fmt.Sprintf("%d:%d", warehouseID, productID)
}

func (m *memoryStore) seedProduct(productID int64, avgCost float64) {
	m.costs[productID] = avgCost
}

func (m *memoryStore) clone() memoryStore {
	c := *newMemoryStore()
	for k, v := range m.purchases {
		c.purchases[k] = v
	}
	for k, v := range m.lines {
		c.lines[k] = append([]PurchaseLine(nil), v...)
	}
	for k, v := range m.balances {
		c.balances[k] = v
	}
	for k, v := range m.costs {
		c.costs[k] = v
	}
	c.movements = append([]inventory.MovementRecord(nil), m.movements...)
	c.docSeq, c.nextID, c.nextMove = m.docSeq, m.nextID, m.nextMove
	return c
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := m.clone()
	if err := fn(ctx, &memoryTx{store: m}); err != nil {
		*m = snapshot
		return err
	}
	return nil
}

func (m *memoryStore) GetPurchase(ctx context.Context, purchaseID int64) (*Purchase, error) {
	p, ok := m.purchases[purchaseID]
	if !ok {
		return nil, fmt.Errorf("purchase %d: %w", purchaseID, shared.ErrNotFound)
	}
	p.Lines = append([]PurchaseLine(nil), m.lines[purchaseID]...)
	return &p, nil
}

func (m *memoryStore) ListPurchases(ctx context.Context, req ListPurchasesRequest) ([]Purchase, int, error) {
	var out []Purchase
	for _, p := range m.purchases {
		out = append(out, p)
	}
	return out, len(out), nil
}

type memoryTx struct {
	store *memoryStore
}

func (tx *memoryTx) InsertPurchase(ctx context.Context, purchase Purchase) (int64, error) {
	tx.store.nextID++
	purchase.ID = tx.store.nextID
	tx.store.purchases[purchase.ID] = purchase
	return purchase.ID, nil
}

func (tx *memoryTx) InsertPurchaseLines(ctx context.Context, purchaseID int64, lines []PurchaseLine) error {
	tx.store.lines[purchaseID] = append([]PurchaseLine(nil), lines...)
	return nil
}

func (tx *memoryTx) NextDocumentNumber(ctx context.Context, docType string) (string, error) {
	tx.store.docSeq++
	return fmt.Sprintf("%s-%06d", docType, tx.store.docSeq), nil
}

func (tx *memoryTx) Ledger() inventory.TxRepository {
	return &memoryLedgerTx{store: tx.store}
}

type memoryLedgerTx struct {
	store *memoryStore
}

func (tx *memoryLedgerTx) WarehouseExists(ctx context.Context, warehouseID int64) (bool, error) {
	return warehouseID > 0, nil
}

func (tx *memoryLedgerTx) ProductExists(ctx context.Context, productID int64) (bool, error) {
	_, ok := tx.store.costs[productID]
	return ok, nil
}

func (tx *memoryLedgerTx) GetBalanceForUpdate(ctx context.Context, warehouseID, productID int64) (inventory.Balance, error) {
	if bal, ok := tx.store.balances[balKey(warehouseID, productID)]; ok {
		return bal, nil
	}
	return inventory.Balance{WarehouseID: warehouseID, ProductID: productID}, inventory.ErrBalanceNotFound
}

func (tx *memoryLedgerTx) UpsertBalance(ctx context.Context, balance inventory.Balance) error {
	tx.store.balances[balKey(balance.WarehouseID, balance.ProductID)] = balance
	return nil
}

func (tx *memoryLedgerTx) GetProductCostForUpdate(ctx context.Context, productID int64) (float64, error) {
	return tx.store.costs[productID], nil
}

func (tx *memoryLedgerTx) UpdateProductCost(ctx context.Context, productID int64, avgCost float64) error {
	tx.store.costs[productID] = avgCost
	return nil
}

func (tx *memoryLedgerTx) InsertMovement(ctx context.Context, rec inventory.MovementRecord) (int64, error) {
	tx.store.nextMove++
	rec.ID = tx.store.nextMove
	tx.store.movements = append(tx.store.movements, rec)
	return rec.ID, nil
}

func TestCreatePurchaseReceivesStockAndRevisesCost(t *testing.T) {
	store := newMemoryStore()
	store.seedProduct(10, 0)
	svc := NewService(store, inventory.NewService(nil, nil, nil), nil, nil)
	ctx := context.Background()

	purchase, err := svc.CreatePurchase(ctx, CreatePurchaseRequest{
		SupplierID:  3,
		WarehouseID: 1,
		TaxPct:      12,
		Lines:       []PurchaseLineRequest{{ProductID: 10, Qty: 10, UnitCost: 100}},
	}, 1)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, purchase.Status)
	require.Equal(t, "PURCHASE-000001", purchase.DocNumber)
	require.InDelta(t, 1000.0, purchase.Subtotal, 0.001)
	require.InDelta(t, 120.0, purchase.TaxAmount, 0.001)
	require.InDelta(t, 1120.0, purchase.Total, 0.001)

	require.InDelta(t, 10.0, store.balances[balKey(1, 10)].Qty, 0.001)
	require.InDelta(t, 100.0, store.costs[10], 0.001)
	require.Len(t, store.movements, 1)
	require.Equal(t, inventory.MovementPurchase, store.movements[0].Type)

	// A second receipt at a higher cost shifts the average.
	_, err = svc.CreatePurchase(ctx, CreatePurchaseRequest{
		SupplierID:  3,
		WarehouseID: 1,
		Lines:       []PurchaseLineRequest{{ProductID: 10, Qty: 5, UnitCost: 130}},
	}, 1)
	require.NoError(t, err)
	require.InDelta(t, 15.0, store.balances[balKey(1, 10)].Qty, 0.001)
	require.InDelta(t, 110.0, store.costs[10], 0.001)
}

func TestCreatePurchaseUnknownProductRollsBack(t *testing.T) {
	store := newMemoryStore()
	store.seedProduct(10, 0)
	svc := NewService(store, inventory.NewService(nil, nil, nil), nil, nil)

	_, err := svc.CreatePurchase(context.Background(), CreatePurchaseRequest{
		SupplierID:  3,
		WarehouseID: 1,
		Lines: []PurchaseLineRequest{
			{ProductID: 10, Qty: 2, UnitCost: 10},
			{ProductID: 404, Qty: 1, UnitCost: 10},
		},
	}, 1)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, store.purchases)
	require.Empty(t, store.movements)
	require.Empty(t, store.balances)
}

func TestCreatePurchaseValidatesLines(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, inventory.NewService(nil, nil, nil), nil, nil)

	_, err := svc.CreatePurchase(context.Background(), CreatePurchaseRequest{SupplierID: 3, WarehouseID: 1}, 1)
	require.ErrorIs(t, err, ErrInvalidLine)

	_, err = svc.CreatePurchase(context.Background(), CreatePurchaseRequest{
		SupplierID:  3,
		WarehouseID: 1,
		Lines:       []PurchaseLineRequest{{ProductID: 10, Qty: -1, UnitCost: 10}},
	}, 1)
	require.ErrorIs(t, err, ErrInvalidLine)
}
