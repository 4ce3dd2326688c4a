package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"budgeteer/internal/amqp"
	"budgeteer/internal/core"
	"budgeteer/internal/log"
	"budgeteer/internal/records"
)

// EventPublisher announces changes to downstream consumers. *amqp.Client
// satisfies it.
type EventPublisher interface {
	PublishExpenseSync(ctx context.Context, id string, version int64) error
	PublishExpenseDelete(ctx context.Context, id string) error
	PublishBudgetAlert(ctx context.Context, msg *amqp.BudgetAlertMessage) error
}

// Dashboard is the derived view over all records. It is recomputed on
// every call.
type Dashboard struct {
	Stats         core.Stats          `json:"stats"`
	BudgetStatus  []core.BudgetStatus `json:"budgetStatus"`
	BudgetSummary core.BudgetSummary  `json:"budgetSummary"`
}

// Ledger is the single entry point for reading and writing records. Writes
// are validated, persisted and then announced; a failed announcement never
// fails the write.
type Ledger struct {
	store     records.Store
	validator core.Validator
	publisher EventPublisher
	now       func() time.Time
}

// LedgerOption customises a Ledger.
type LedgerOption func(*Ledger)

// WithPublisher sets the event publisher. A nil publisher disables events.
func WithPublisher(p EventPublisher) LedgerOption {
	return func(l *Ledger) { l.publisher = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(store records.Store, validator core.Validator, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		store:     store,
		validator: validator,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) Validator() core.Validator { return l.validator }

func (l *Ledger) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	return l.store.ListExpenses(ctx)
}

func (l *Ledger) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	return l.store.GetExpense(ctx, id)
}

func (l *Ledger) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	return l.store.ListBudgets(ctx)
}

func (l *Ledger) GetBudget(ctx context.Context, id string) (core.Budget, error) {
	return l.store.GetBudget(ctx, id)
}

// AddExpense validates e, assigns its identity and saves it. Any ID or
// timestamps on e are replaced.
func (l *Ledger) AddExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := l.validator.ValidateExpense(e).Err(); err != nil {
		return core.Expense{}, err
	}

	now := l.now().UTC()
	e.ID = uuid.NewString()
	e.CreatedAt = now
	e.UpdatedAt = now

	if err := l.store.SaveExpense(ctx, e); err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	ledgerLog(ctx).InfoContext(ctx, "Expense added", log.NewFields().
		WithOperation(log.OpCreate).
		WithExpense(e.ID, e.Description, e.Amount.String(), e.Category).
		ToSlice()...)

	l.publishSync(ctx, e)
	return e, nil
}

// UpdateExpense applies patch to the stored expense and re-validates the
// result before saving.
func (l *Ledger) UpdateExpense(ctx context.Context, id string, patch core.ExpensePatch) (core.Expense, error) {
	existing, err := l.store.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}

	updated := core.ApplyExpensePatch(existing, patch)
	if err := l.validator.ValidateExpense(updated).Err(); err != nil {
		return core.Expense{}, err
	}
	updated.UpdatedAt = l.now().UTC()

	if err := l.store.SaveExpense(ctx, updated); err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense updated", "id", id)
	l.publishSync(ctx, updated)
	return updated, nil
}

func (l *Ledger) DeleteExpense(ctx context.Context, id string) error {
	if err := l.store.DeleteExpense(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Expense deleted", "id", id)

	if l.publisher == nil {
		slog.WarnContext(ctx, "Event publisher not available, skipping delete message", "id", id)
		return nil
	}
	if err := l.publisher.PublishExpenseDelete(ctx, id); err != nil {
		ledgerLog(ctx).LogError(ctx, "Failed to publish delete message", err, log.OpDelete,
			log.NewFields().WithErrorType(log.ErrorTypeNetwork).WithExpense(id, "", "", ""))
	}
	return nil
}

func (l *Ledger) AddBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := l.validator.ValidateBudget(b).Err(); err != nil {
		return core.Budget{}, err
	}

	now := l.now().UTC()
	b.ID = uuid.NewString()
	b.CreatedAt = now
	b.UpdatedAt = now

	if err := l.store.SaveBudget(ctx, b); err != nil {
		return core.Budget{}, fmt.Errorf("save budget: %w", err)
	}

	slog.InfoContext(ctx, "Budget added",
		"id", b.ID,
		"name", b.Name,
		"amount", b.Amount.String(),
		"period", b.Period)
	return b, nil
}

func (l *Ledger) UpdateBudget(ctx context.Context, id string, patch core.BudgetPatch) (core.Budget, error) {
	existing, err := l.store.GetBudget(ctx, id)
	if err != nil {
		return core.Budget{}, err
	}

	updated := core.ApplyBudgetPatch(existing, patch)
	if err := l.validator.ValidateBudget(updated).Err(); err != nil {
		return core.Budget{}, err
	}
	updated.UpdatedAt = l.now().UTC()

	if err := l.store.SaveBudget(ctx, updated); err != nil {
		return core.Budget{}, fmt.Errorf("save budget: %w", err)
	}
	slog.InfoContext(ctx, "Budget updated", "id", id)
	return updated, nil
}

func (l *Ledger) SetBudgetActive(ctx context.Context, id string, active bool) (core.Budget, error) {
	return l.UpdateBudget(ctx, id, core.BudgetPatch{IsActive: &active})
}

func (l *Ledger) DeleteBudget(ctx context.Context, id string) error {
	if err := l.store.DeleteBudget(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Budget deleted", "id", id)
	return nil
}

func (l *Ledger) ActiveBudgets(ctx context.Context) ([]core.Budget, error) {
	budgets, err := l.store.ListBudgets(ctx)
	if err != nil {
		return nil, err
	}
	return core.ActiveBudgets(budgets), nil
}

// Stats computes statistics over the expenses matching filter.
func (l *Ledger) Stats(ctx context.Context, filter core.ExpenseFilter) (core.Stats, error) {
	expenses, err := l.store.ListExpenses(ctx)
	if err != nil {
		return core.Stats{}, err
	}
	return core.ComputeStats(core.FilterExpenses(expenses, filter)), nil
}

// Dashboard loads expenses and budgets concurrently and evaluates the
// active budgets against all expenses.
func (l *Ledger) Dashboard(ctx context.Context) (Dashboard, error) {
	var (
		expenses []core.Expense
		budgets  []core.Budget
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		expenses, err = l.store.ListExpenses(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		budgets, err = l.store.ListBudgets(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, fmt.Errorf("load dashboard: %w", err)
	}

	statuses := core.EvaluateBudgets(core.ActiveBudgets(budgets), expenses, l.now())
	return Dashboard{
		Stats:         core.ComputeStats(expenses),
		BudgetStatus:  statuses,
		BudgetSummary: core.SummarizeBudgets(statuses),
	}, nil
}

func (l *Ledger) publishSync(ctx context.Context, e core.Expense) {
	if l.publisher == nil {
		slog.WarnContext(ctx, "Event publisher not available, skipping sync message", "id", e.ID)
		return
	}
	if err := l.publisher.PublishExpenseSync(ctx, e.ID, e.UpdatedAt.UnixNano()); err != nil {
		ledgerLog(ctx).LogError(ctx, "Failed to publish sync message", err, log.OpSync,
			log.NewFields().WithErrorType(log.ErrorTypeNetwork).WithExpense(e.ID, e.Description, e.Amount.String(), e.Category))
	}
}

func ledgerLog(ctx context.Context) *log.Logger {
	return log.FromContext(ctx).WithComponent(log.ComponentLedger)
}
