package inventory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryRepo struct {
	mu        sync.Mutex
	balances  map[string]Balance
	products  map[int64]float64
	missing   map[int64]bool
	movements []MovementRecord
	nextID    int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		balances: make(map[string]Balance),
		products: make(map[int64]float64),
		missing:  make(map[int64]bool),
	}
}

func key(warehouseID, productID int64) string {
	return fmt.Sprintf("%d:%d", warehouseID, productID)
}

// WithTx serialises callers with a mutex, standing in for the row locks
// the SQL repository takes.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := r.clone()
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.restore(snapshot)
		return err
	}
	return nil
}

func (r *memoryRepo) clone() *memoryRepo {
	c := newMemoryRepo()
	for k, v := range r.balances {
		c.balances[k] = v
	}
	for k, v := range r.products {
		c.products[k] = v
	}
	c.movements = append([]MovementRecord(nil), r.movements...)
	c.nextID = r.nextID
	return c
}

func (r *memoryRepo) restore(snapshot *memoryRepo) {
	r.balances = snapshot.balances
	r.products = snapshot.products
	r.movements = snapshot.movements
	r.nextID = snapshot.nextID
}

func (r *memoryRepo) ListMovements(ctx context.Context, filter StockCardFilter) ([]MovementRecord, error) {
	var out []MovementRecord
	for _, m := range r.movements {
		if m.WarehouseID == filter.WarehouseID && m.ProductID == filter.ProductID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListLowStock(ctx context.Context) ([]LowStockItem, error) {
	return nil, nil
}

func (tx *memoryTx) WarehouseExists(ctx context.Context, warehouseID int64) (bool, error) {
	return warehouseID > 0, nil
}

func (tx *memoryTx) ProductExists(ctx context.Context, productID int64) (bool, error) {
	return productID > 0 && !tx.repo.missing[productID], nil
}

func (tx *memoryTx) GetBalanceForUpdate(ctx context.Context, warehouseID, productID int64) (Balance, error) {
	if bal, ok := tx.repo.balances[key(warehouseID, productID)]; ok {
		return bal, nil
	}
	return Balance{WarehouseID: warehouseID, ProductID: productID}, ErrBalanceNotFound
}

func (tx *memoryTx) UpsertBalance(ctx context.Context, balance Balance) error {
	tx.repo.balances[key(balance.WarehouseID, balance.ProductID)] = balance
	return nil
}

func (tx *memoryTx) GetProductCostForUpdate(ctx context.Context, productID int64) (float64, error) {
	if tx.repo.missing[productID] {
		return 0, shared.ErrNotFound
	}
	return tx.repo.products[productID], nil
}

func (tx *memoryTx) UpdateProductCost(ctx context.Context, productID int64, avgCost float64) error {
	tx.repo.products[productID] = avgCost
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, rec MovementRecord) (int64, error) {
	tx.repo.nextID++
	rec.ID = tx.repo.nextID
	tx.repo.movements = append(tx.repo.movements, rec)
	return rec.ID, nil
}

func (r *memoryRepo) balanceQty(warehouseID, productID int64) float64 {
	return r.balances[key(warehouseID, productID)].Qty
}

func TestWeightedAverageCost(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	rec, err := svc.RecordMovement(ctx, MovementInput{WarehouseID: 1, ProductID: 1, Type: MovementPurchase, Qty: 10, UnitCost: 100, Note: "GRN#1"})
	require.NoError(t, err)
	require.InDelta(t, 0.0, rec.StockBefore, 0.0001)
	require.InDelta(t, 10.0, rec.StockAfter, 0.0001)
	require.InDelta(t, 100.0, repo.products[1], 0.0001)

	rec, err = svc.RecordMovement(ctx, MovementInput{WarehouseID: 1, ProductID: 1, Type: MovementPurchase, Qty: 5, UnitCost: 130, Note: "GRN#2"})
	require.NoError(t, err)
	require.InDelta(t, 15.0, rec.StockAfter, 0.0001)
	require.InDelta(t, 110.0, repo.products[1], 0.0001)
}

func TestOutboundConsumesAtAverage(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.RecordMovement(ctx, MovementInput{WarehouseID: 1, ProductID: 1, Type: MovementPurchase, Qty: 10, UnitCost: 100})
	require.NoError(t, err)
	_, err = svc.RecordMovement(ctx, MovementInput{WarehouseID: 1, ProductID: 1, Type: MovementPurchase, Qty: 5, UnitCost: 130})
	require.NoError(t, err)

	rec, err := svc.RecordMovement(ctx, MovementInput{WarehouseID: 1, ProductID: 1, Type: MovementSale, Qty: 8, RefType: "SALE", RefID: "S-1"})
	require.NoError(t, err)
	require.InDelta(t, 110.0, rec.UnitCost, 0.0001)
	require.InDelta(t, 880.0, rec.TotalCost, 0.0001)
	require.InDelta(t, 7.0, rec.StockAfter, 0.0001)
	// Average is untouched by the issue.
	require.InDelta(t, 110.0, repo.products[1], 0.0001)
}

func TestOutboundRecordsSuppliedCost(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.RecordMovement(ctx, MovementInput{WarehouseID: 1, ProductID: 1, Type: MovementPurchase, Qty: 10, UnitCost: 100})
	require.NoError(t, err)

	// A caller-supplied cost lands on the record as-is but never feeds
	// back into the average.
	rec, err := svc.RecordMovement(ctx, MovementInput{WarehouseID: 1, ProductID: 1, Type: MovementSale, Qty: 4, UnitCost: 85, RefType: "SALE", RefID: "S-2"})
	require.NoError(t, err)
	require.InDelta(t, 85.0, rec.UnitCost, 0.0001)
	require.InDelta(t, 340.0, rec.TotalCost, 0.0001)
	require.InDelta(t, 6.0, rec.StockAfter, 0.0001)
	require.InDelta(t, 100.0, repo.products[1], 0.0001)
}

func TestAverageResetsOnZeroBalance(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.RecordMovement(ctx, MovementInput{WarehouseID: 1, ProductID: 1, Type: MovementPurchase, Qty: 4, UnitCost: 100})
	require.NoError(t, err)
	_, err = svc.RecordMovement(ctx, MovementInput{WarehouseID: 1, ProductID: 1, Type: MovementSale, Qty: 4})
	require.NoError(t, err)

	_, err = svc.RecordMovement(ctx, MovementInput{WarehouseID: 1, ProductID: 1, Type: MovementPurchase, Qty: 3, UnitCost: 250})
	require.NoError(t, err)
	require.InDelta(t, 250.0, repo.products[1], 0.0001)
}

func TestInsufficientStockLeavesStateUntouched(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.RecordMovement(ctx, MovementInput{WarehouseID: 1, ProductID: 1, Type: MovementPurchase, Qty: 3, UnitCost: 50})
	require.NoError(t, err)
	movementsBefore := len(repo.movements)

	_, err = svc.RecordMovement(ctx, MovementInput{WarehouseID: 1, ProductID: 1, Type: MovementSale, Qty: 5})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.Len(t, repo.movements, movementsBefore)
	require.InDelta(t, 3.0, repo.balanceQty(1, 1), 0.0001)
	require.InDelta(t, 50.0, repo.products[1], 0.0001)
}

func TestInvalidMovementTypeRejectedBeforeAnyWrite(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.RecordMovement(ctx, MovementInput{WarehouseID: 1, ProductID: 1, Type: "TELEPORT", Qty: 1, UnitCost: 1})
	require.ErrorIs(t, err, ErrInvalidMovementType)
	require.Empty(t, repo.movements)
	require.Empty(t, repo.balances)
}

func TestUnknownProductNotFound(t *testing.T) {
	repo := newMemoryRepo()
	repo.missing[7] = true
	svc := NewService(repo, nil, nil)

	_, err := svc.RecordMovement(context.Background(), MovementInput{WarehouseID: 1, ProductID: 7, Type: MovementPurchase, Qty: 1, UnitCost: 1})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, repo.movements)
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.RecordMovement(ctx, MovementInput{WarehouseID: 1, ProductID: 1, Type: MovementPurchase, Qty: 5, UnitCost: 10})
	require.NoError(t, err)

	const workers = 12
	results := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordMovement(ctx, MovementInput{WarehouseID: 1, ProductID: 1, Type: MovementSale, Qty: 1})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, insufficient int
	for err := range results {
		switch {
		case err == nil:
			ok++
		default:
			require.ErrorIs(t, err, ErrInsufficientStock)
			insufficient++
		}
	}
	require.Equal(t, 5, ok)
	require.Equal(t, 7, insufficient)
	require.InDelta(t, 0.0, repo.balanceQty(1, 1), 0.0001)
}

func TestTransferKeepsValuation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.RecordMovement(ctx, MovementInput{WarehouseID: 1, ProductID: 1, Type: MovementPurchase, Qty: 20, UnitCost: 60})
	require.NoError(t, err)

	out, in, err := svc.PostTransfer(ctx, TransferInput{SrcWarehouse: 1, DstWarehouse: 2, ProductID: 1, Qty: 5, Note: "restock store"})
	require.NoError(t, err)
	require.Equal(t, MovementTransferOut, out.Type)
	require.Equal(t, MovementTransferIn, in.Type)
	require.InDelta(t, 60.0, out.UnitCost, 0.0001)
	require.InDelta(t, 60.0, in.UnitCost, 0.0001)
	require.InDelta(t, 15.0, repo.balanceQty(1, 1), 0.0001)
	require.InDelta(t, 5.0, repo.balanceQty(2, 1), 0.0001)
	require.InDelta(t, 60.0, repo.products[1], 0.0001)
}

func TestTransferRollsBackAtomically(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.RecordMovement(ctx, MovementInput{WarehouseID: 1, ProductID: 1, Type: MovementPurchase, Qty: 3, UnitCost: 10})
	require.NoError(t, err)

	_, _, err = svc.PostTransfer(ctx, TransferInput{SrcWarehouse: 1, DstWarehouse: 2, ProductID: 1, Qty: 50})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.InDelta(t, 3.0, repo.balanceQty(1, 1), 0.0001)
	require.InDelta(t, 0.0, repo.balanceQty(2, 1), 0.0001)
}

func TestAdjustmentSignPicksType(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	rec, err := svc.PostAdjustment(ctx, AdjustmentInput{WarehouseID: 1, ProductID: 1, Qty: 10, UnitCost: 40, Note: "opname surplus"})
	require.NoError(t, err)
	require.Equal(t, MovementAdjustIn, rec.Type)
	require.InDelta(t, 10.0, rec.StockAfter, 0.0001)

	rec, err = svc.PostAdjustment(ctx, AdjustmentInput{WarehouseID: 1, ProductID: 1, Qty: -4, Note: "opname shortage"})
	require.NoError(t, err)
	require.Equal(t, MovementAdjustOut, rec.Type)
	require.InDelta(t, 4.0, rec.Qty, 0.0001)
	require.InDelta(t, 40.0, rec.UnitCost, 0.0001)
	require.InDelta(t, 6.0, rec.StockAfter, 0.0001)

	_, err = svc.PostAdjustment(ctx, AdjustmentInput{WarehouseID: 1, ProductID: 1, Qty: 0, Note: "noop"})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestProductionOutputAndConsumption(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.RecordMovement(ctx, MovementInput{WarehouseID: 1, ProductID: 2, Type: MovementPurchase, Qty: 100, UnitCost: 5})
	require.NoError(t, err)

	cons, err := svc.PostProductionConsumption(ctx, ProductionInput{WarehouseID: 1, ProductID: 2, Qty: 40, RefID: "WO-9"})
	require.NoError(t, err)
	require.Equal(t, MovementProductionConsumption, cons.Type)
	require.InDelta(t, 5.0, cons.UnitCost, 0.0001)
	require.InDelta(t, 60.0, cons.StockAfter, 0.0001)

	out, err := svc.PostProductionOutput(ctx, ProductionInput{WarehouseID: 1, ProductID: 3, Qty: 10, UnitCost: 25, RefID: "WO-9"})
	require.NoError(t, err)
	require.Equal(t, MovementProductionOutput, out.Type)
	require.InDelta(t, 10.0, out.StockAfter, 0.0001)
	require.InDelta(t, 25.0, repo.products[3], 0.0001)
}

func TestStockCardChainIsContiguous(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	inputs := []MovementInput{
		{WarehouseID: 1, ProductID: 1, Type: MovementPurchase, Qty: 10, UnitCost: 100},
		{WarehouseID: 1, ProductID: 1, Type: MovementSale, Qty: 3},
		{WarehouseID: 1, ProductID: 1, Type: MovementReturn, Qty: 1, UnitCost: 100},
		{WarehouseID: 1, ProductID: 1, Type: MovementSale, Qty: 2},
	}
	for _, in := range inputs {
		_, err := svc.RecordMovement(ctx, in)
		require.NoError(t, err)
	}

	card, err := svc.GetStockCard(ctx, StockCardFilter{WarehouseID: 1, ProductID: 1})
	require.NoError(t, err)
	require.Len(t, card, len(inputs))

	running := 0.0
	for _, entry := range card {
		require.InDelta(t, running, entry.StockBefore, 0.0001)
		running = entry.StockAfter
	}
	require.InDelta(t, repo.balanceQty(1, 1), running, 0.0001)
}
