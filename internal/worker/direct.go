package worker

import (
	"context"

	"budgeteer/internal/amqp"
)

// DirectPublisher hands events straight to a SyncWorker. The worker uses
// it when no broker is configured, so the expenses it creates and the
// alerts it raises still reach the spreadsheet.
type DirectPublisher struct {
	worker *SyncWorker
}

func NewDirectPublisher(w *SyncWorker) *DirectPublisher {
	return &DirectPublisher{worker: w}
}

func (p *DirectPublisher) PublishExpenseSync(ctx context.Context, id string, version int64) error {
	return p.worker.HandleSyncMessage(ctx, amqp.NewExpenseSyncMessage(id, version))
}

func (p *DirectPublisher) PublishExpenseDelete(ctx context.Context, id string) error {
	return p.worker.HandleDeleteMessage(ctx, amqp.NewExpenseDeleteMessage(id))
}

func (p *DirectPublisher) PublishBudgetAlert(ctx context.Context, msg *amqp.BudgetAlertMessage) error {
	return p.worker.HandleBudgetAlert(ctx, msg)
}
