// Package records defines the persistence ports the ledger reads and
// writes through, and the key-value backends that implement them.
package records

import (
	"context"
	"errors"
	"time"

	"budgeteer/internal/core"
)

var ErrNotFound = errors.New("record not found")

// Ports for outbound adapters.
type (
	ExpenseRepository interface {
		ListExpenses(ctx context.Context) ([]core.Expense, error)
		GetExpense(ctx context.Context, id string) (core.Expense, error)
		// SaveExpense inserts or replaces the expense with e.ID.
		SaveExpense(ctx context.Context, e core.Expense) error
		DeleteExpense(ctx context.Context, id string) error
	}

	BudgetRepository interface {
		ListBudgets(ctx context.Context) ([]core.Budget, error)
		GetBudget(ctx context.Context, id string) (core.Budget, error)
		SaveBudget(ctx context.Context, b core.Budget) error
		DeleteBudget(ctx context.Context, id string) error
	}

	// RecurringLedger remembers when each recurring template last produced
	// an expense.
	RecurringLedger interface {
		// LastRecurringRun returns the zero time when the template never ran.
		LastRecurringRun(ctx context.Context, expenseID string) (time.Time, error)
		RecordRecurringRun(ctx context.Context, expenseID string, at time.Time) error
	}

	Store interface {
		ExpenseRepository
		BudgetRepository
		RecurringLedger
		Close() error
	}
)
