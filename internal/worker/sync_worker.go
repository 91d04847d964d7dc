package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"budgeteer/internal/amqp"
	"budgeteer/internal/export"
	applog "budgeteer/internal/log"
	"budgeteer/internal/storage"
)

// Store is the slice of the repository the worker needs.
type Store interface {
	GetReportByID(ctx context.Context, id int64) (storage.ReportSnapshot, error)
	ListPendingReports(ctx context.Context, limit int) ([]storage.ReportSnapshot, error)
	MarkReportSynced(ctx context.Context, id int64, sheetRef string) error
	MarkReportSyncFailed(ctx context.Context, id int64) error
}

// SyncWorker pushes stored report snapshots to the spreadsheet exporter.
type SyncWorker struct {
	store     Store
	exporter  export.ReportExporter
	batchSize int
}

func NewSyncWorker(store Store, exporter export.ReportExporter, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{
		store:     store,
		exporter:  exporter,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single report sync message from AMQP.
// A snapshot that no longer exists is acked away; it will never succeed.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.ReportSyncMessage) error {
	snap, err := w.store.GetReportByID(ctx, msg.ReportID)
	if errors.Is(err, storage.ErrNotFound) {
		slog.WarnContext(ctx, "Report snapshot gone, dropping sync message",
			applog.FieldReportID, msg.ReportID, applog.FieldUserID, msg.UserID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get report snapshot: %w", err)
	}

	if snap.SyncStatus == storage.SyncSynced {
		slog.InfoContext(ctx, "Report already synced, skipping",
			applog.FieldReportID, snap.ID, applog.FieldSheetRef, snap.SheetRef)
		return nil
	}
	if snap.SyncStatus == storage.SyncFailed {
		// Retry budget exhausted. Ack the delivery away instead of
		// requeueing it forever; a fresh SaveReport resets to pending.
		slog.WarnContext(ctx, "Report sync retries exhausted, dropping sync message",
			applog.FieldReportID, snap.ID, applog.FieldUserID, snap.UserID)
		return nil
	}

	return w.exportSnapshot(ctx, snap)
}

// ResyncPending pushes any snapshots still marked pending. This is the
// backup path for sync messages lost while the broker or worker was down.
func (w *SyncWorker) ResyncPending(ctx context.Context) error {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck drains a larger pending backlog once at worker startup.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	return w.processPending(ctx, w.batchSize*5)
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) error {
	pending, err := w.store.ListPendingReports(ctx, limit)
	if err != nil {
		return fmt.Errorf("list pending reports: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending report snapshots", "count", len(pending))

	synced := 0
	failed := 0
	for _, snap := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.exportSnapshot(ctx, snap); err != nil {
			slog.ErrorContext(ctx, "Failed to sync pending report",
				applog.FieldReportID, snap.ID, applog.FieldError, err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Pending sync pass completed",
		"total", len(pending), "synced", synced, "errors", failed)
	return nil
}

func (w *SyncWorker) exportSnapshot(ctx context.Context, snap storage.ReportSnapshot) error {
	ref, err := w.exporter.ExportReport(ctx, export.Report{
		UserID:     snap.UserID,
		Year:       snap.Year,
		Month:      snap.Month,
		Report:     snap.Report,
		Statuses:   snap.Statuses,
		Commentary: snap.Commentary,
	})
	if err != nil {
		if markErr := w.store.MarkReportSyncFailed(ctx, snap.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to record sync failure",
				applog.FieldReportID, snap.ID, applog.FieldError, markErr)
		}
		return fmt.Errorf("export report: %w", err)
	}

	if err := w.store.MarkReportSynced(ctx, snap.ID, ref); err != nil {
		// The export itself worked; do not fail and re-export.
		slog.ErrorContext(ctx, "Failed to mark report synced",
			applog.FieldReportID, snap.ID, applog.FieldError, err)
		return nil
	}

	slog.InfoContext(ctx, "Report synced",
		applog.FieldReportID, snap.ID,
		applog.FieldUserID, snap.UserID,
		applog.FieldYear, snap.Year,
		applog.FieldMonth, snap.Month,
		applog.FieldSheetRef, ref)
	return nil
}
