package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
	_ "github.com/meridian-erp/meridian-erp/internal/testing/guard"
)

type fakeLister struct {
	items []inventory.LowStockItem
}

func (f *fakeLister) ListLowStock(ctx context.Context) ([]inventory.LowStockItem, error) {
	return f.items, nil
}

type fakeEnqueuer struct {
	sent []SendEmailPayload
}

func (f *fakeEnqueuer) EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error) {
	f.sent = append(f.sent, payload)
	return &asynq.TaskInfo{}, nil
}

func reorderTask(t *testing.T, recipient string) *asynq.Task {
	t.Helper()
	task, err := NewReorderScanTask(time.Now().UTC(), recipient)
	require.NoError(t, err)
	return task
}

func TestReorderScanSendsDigest(t *testing.T) {
	lister := &fakeLister{items: []inventory.LowStockItem{
		{ProductID: 1, SKU: "SKU-001", Name: "Widget", WarehouseID: 2, Qty: 3, ReorderLevel: 10},
		{ProductID: 4, SKU: "SKU-004", Name: "Gadget", WarehouseID: 2, Qty: 0, ReorderLevel: 5},
	}}
	enqueuer := &fakeEnqueuer{}
	job := NewReorderScanJob(lister, enqueuer, nil, nil, "ops@example.com")

	require.NoError(t, job.Handle(context.Background(), reorderTask(t, "")))

	require.Len(t, enqueuer.sent, 1)
	mail := enqueuer.sent[0]
	require.Equal(t, "ops@example.com", mail.To)
	require.Contains(t, mail.Subject, "2 item(s)")
	require.Contains(t, mail.Body, "Widget (SKU-001)")
	require.Contains(t, mail.Body, "reorder at 5.00")
}

func TestReorderScanPayloadRecipientWins(t *testing.T) {
	lister := &fakeLister{items: []inventory.LowStockItem{
		{ProductID: 1, SKU: "SKU-001", Name: "Widget", WarehouseID: 1, Qty: 1, ReorderLevel: 2},
	}}
	enqueuer := &fakeEnqueuer{}
	job := NewReorderScanJob(lister, enqueuer, nil, nil, "ops@example.com")

	require.NoError(t, job.Handle(context.Background(), reorderTask(t, "warehouse@example.com")))

	require.Len(t, enqueuer.sent, 1)
	require.Equal(t, "warehouse@example.com", enqueuer.sent[0].To)
}

func TestReorderScanSkipsEmptyDigest(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	job := NewReorderScanJob(&fakeLister{}, enqueuer, nil, nil, "ops@example.com")

	require.NoError(t, job.Handle(context.Background(), reorderTask(t, "")))
	require.Empty(t, enqueuer.sent)
}

func TestReorderScanRejectsMalformedPayload(t *testing.T) {
	job := NewReorderScanJob(&fakeLister{}, nil, nil, nil, "")
	err := job.Handle(context.Background(), asynq.NewTask(TaskReorderScan, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
