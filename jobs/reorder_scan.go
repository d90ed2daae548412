package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
	jobmetrics "github.com/meridian-erp/meridian-erp/internal/jobs"
)

// LowStockLister yields balances at or below their reorder level.
type LowStockLister interface {
	ListLowStock(ctx context.Context) ([]inventory.LowStockItem, error)
}

// EmailEnqueuer submits digest emails to the queue.
type EmailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// ReorderScanJob scans stock balances and mails a replenishment digest.
type ReorderScanJob struct {
	Lister    LowStockLister
	Enqueuer  EmailEnqueuer
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	Recipient string
}

// NewReorderScanJob initialises the low-stock scan handler.
func NewReorderScanJob(lister LowStockLister, enqueuer EmailEnqueuer, logger *slog.Logger, metrics *jobmetrics.Metrics, recipient string) *ReorderScanJob {
	return &ReorderScanJob{Lister: lister, Enqueuer: enqueuer, Logger: logger, Metrics: metrics, Recipient: recipient}
}

// Handle executes the scan and enqueues the digest when items are found.
func (j *ReorderScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Lister == nil {
		return errors.New("reorder scan: handler not configured")
	}
	var payload ReorderScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskReorderScan)
	var resultErr error
	defer func() { _ = tracker.End(resultErr) }()

	items, err := j.Lister.ListLowStock(ctx)
	if err != nil {
		resultErr = err
		return err
	}
	j.Metrics.SetLowStock(len(items))
	if j.Logger != nil {
		j.Logger.Info("reorder scan finished", slog.Int("low_stock_items", len(items)))
	}
	if len(items) == 0 || j.Enqueuer == nil {
		return nil
	}

	recipient := payload.Recipient
	if recipient == "" {
		recipient = j.Recipient
	}
	if recipient == "" {
		return nil
	}
	if _, err := j.Enqueuer.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      recipient,
		Subject: fmt.Sprintf("Reorder digest: %d item(s) below reorder level", len(items)),
		Body:    formatReorderDigest(items),
	}); err != nil {
		resultErr = err
		return err
	}
	return nil
}

func formatReorderDigest(items []inventory.LowStockItem) string {
	printer := message.NewPrinter(language.English)
	var b strings.Builder
	b.WriteString("The following items are at or below their reorder level:\n\n")
	for _, item := range items {
		printer.Fprintf(&b, "- %s (%s) warehouse %d: on hand %.2f, reorder at %.2f\n",
			item.Name, item.SKU, item.WarehouseID, item.Qty, item.ReorderLevel)
	}
	return b.String()
}
