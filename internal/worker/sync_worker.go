// Package worker consumes change events and mirrors expenses into the
// spreadsheet, with periodic sweeps for anything the events missed.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"budgeteer/internal/amqp"
	"budgeteer/internal/core"
	"budgeteer/internal/log"
	"budgeteer/internal/records"
	"budgeteer/internal/sheets"
	"budgeteer/internal/storage"
)

// SyncTracker records which expense revisions reached the spreadsheet.
// *storage.SQLiteRepository satisfies it.
type SyncTracker interface {
	GetPendingSyncExpenses(ctx context.Context, limit int) ([]storage.PendingExpense, error)
	MarkSynced(ctx context.Context, id string, updatedAt time.Time) error
	MarkSyncError(ctx context.Context, id string) error
}

// SyncWorker exports expenses to the spreadsheet. Without a tracker it
// still handles events but has nothing to sweep.
type SyncWorker struct {
	expenses  records.ExpenseRepository
	tracker   SyncTracker
	exporter  sheets.ExpenseExporter
	remover   sheets.ExpenseRemover
	alerts    sheets.AlertSink
	batchSize int
}

func NewSyncWorker(
	expenses records.ExpenseRepository,
	tracker SyncTracker,
	exporter sheets.ExpenseExporter,
	remover sheets.ExpenseRemover,
	alerts sheets.AlertSink,
	batchSize int,
) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{
		expenses:  expenses,
		tracker:   tracker,
		exporter:  exporter,
		remover:   remover,
		alerts:    alerts,
		batchSize: batchSize,
	}
}

// Handlers routes queue messages to this worker.
func (w *SyncWorker) Handlers() amqp.Handlers {
	return amqp.Handlers{
		ExpenseSync:   w.HandleSyncMessage,
		ExpenseDelete: w.HandleDeleteMessage,
		BudgetAlert:   w.HandleBudgetAlert,
	}
}

// HandleSyncMessage exports the current state of the referenced expense.
// A message older than the stored revision is skipped: the newer save
// sent its own message.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.ExpenseSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"version", msg.Version)

	expense, err := w.expenses.GetExpense(ctx, msg.ID)
	if errors.Is(err, records.ErrNotFound) {
		slog.InfoContext(ctx, "Expense no longer exists, skipping sync", "id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get expense from storage: %w", err)
	}

	if msg.Version != 0 && msg.Version < expense.UpdatedAt.UnixNano() {
		slog.DebugContext(ctx, "Stale sync message, newer revision pending",
			"id", msg.ID,
			"version", msg.Version)
		return nil
	}

	return w.syncExpense(ctx, expense)
}

// HandleDeleteMessage removes the expense row from the spreadsheet.
func (w *SyncWorker) HandleDeleteMessage(ctx context.Context, msg *amqp.ExpenseDeleteMessage) error {
	slog.InfoContext(ctx, "Processing delete message", "id", msg.ID)

	if w.remover == nil {
		slog.WarnContext(ctx, "No expense remover configured, skipping deletion", "id", msg.ID)
		return nil
	}
	if err := w.remover.Remove(ctx, msg.ID); err != nil {
		return fmt.Errorf("remove expense: %w", err)
	}

	slog.InfoContext(ctx, "Successfully removed expense", "id", msg.ID)
	return nil
}

// HandleBudgetAlert records the alert in the alert sink, or only logs it
// when none is configured.
func (w *SyncWorker) HandleBudgetAlert(ctx context.Context, msg *amqp.BudgetAlertMessage) error {
	slog.WarnContext(ctx, "Budget alert received",
		"budget_id", msg.BudgetID,
		"name", msg.Name,
		"level", msg.Level,
		"progress", msg.Progress)

	if w.alerts == nil {
		return nil
	}
	err := w.alerts.RecordAlert(ctx, sheets.BudgetAlert{
		BudgetID:  msg.BudgetID,
		Name:      msg.Name,
		Level:     string(msg.Level),
		Amount:    msg.Amount,
		Remaining: msg.Remaining,
		Progress:  msg.Progress,
		At:        msg.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("record alert: %w", err)
	}
	return nil
}

// ProcessPendingExpenses exports up to one batch of expenses that were
// saved but never confirmed as synced. It backs up lost messages.
func (w *SyncWorker) ProcessPendingExpenses(ctx context.Context) (int, error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck sweeps a larger batch once at startup, to catch up on
// anything saved while the worker was down.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	n, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	slog.InfoContext(ctx, "Startup sync completed", "synced", n)
	return nil
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (int, error) {
	if w.tracker == nil {
		return 0, nil
	}

	pending, err := w.tracker.GetPendingSyncExpenses(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending expenses: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending expenses", "count", len(pending))

	synced := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		expense, err := w.expenses.GetExpense(ctx, p.ID)
		if err != nil {
			workerLog(ctx).LogError(ctx, "Failed to get expense", err, log.OpRead,
				log.NewFields().WithErrorType(log.ErrorTypeDatabase).WithExpense(p.ID, "", "", ""))
			w.markError(ctx, p.ID)
			continue
		}
		if err := w.syncExpense(ctx, expense); err != nil {
			workerLog(ctx).LogError(ctx, "Failed to sync expense", err, log.OpSync,
				log.NewFields().WithErrorType(log.ErrorTypeNetwork).
					WithExpense(expense.ID, expense.Description, expense.Amount.String(), expense.Category))
			continue
		}
		synced++
	}
	return synced, nil
}

func (w *SyncWorker) syncExpense(ctx context.Context, expense core.Expense) error {
	ref, err := w.exporter.Export(ctx, expense)
	if err != nil {
		w.markError(ctx, expense.ID)
		return fmt.Errorf("export to sheets: %w", err)
	}

	if w.tracker != nil {
		if err := w.tracker.MarkSynced(ctx, expense.ID, expense.UpdatedAt); err != nil {
			// The export worked; the row stays pending and is re-exported later.
			slog.ErrorContext(ctx, "Failed to mark as synced", "id", expense.ID, "error", err)
		}
	}

	fields := log.NewFields().
		WithOperation(log.OpSync).
		WithExpense(expense.ID, expense.Description, expense.Amount.String(), expense.Category)
	fields[log.FieldSheetsRef] = ref
	workerLog(ctx).InfoContext(ctx, "Successfully synced expense", fields.ToSlice()...)
	return nil
}

func workerLog(ctx context.Context) *log.Logger {
	return log.FromContext(ctx).WithComponent(log.ComponentWorker)
}

func (w *SyncWorker) markError(ctx context.Context, id string) {
	if w.tracker == nil {
		return
	}
	if err := w.tracker.MarkSyncError(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", err)
	}
}
