// Package sheets defines the outbound ports used to mirror expenses and
// budget alerts into a spreadsheet.
package sheets

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"budgeteer/internal/core"
)

// BudgetAlert is one row of the alert log.
type BudgetAlert struct {
	BudgetID  string
	Name      string
	Level     string
	Amount    decimal.Decimal
	Remaining decimal.Decimal
	Progress  float64
	At        time.Time
}

// Ports for outbound adapters.
type (
	// ExpenseExporter writes e, replacing any row already exported for
	// the same ID.
	ExpenseExporter interface {
		Export(ctx context.Context, e core.Expense) (rowRef string, err error)
	}

	// ExpenseRemover removes an exported expense. Removing an ID that was
	// never exported is not an error.
	ExpenseRemover interface {
		Remove(ctx context.Context, id string) error
	}

	AlertSink interface {
		RecordAlert(ctx context.Context, a BudgetAlert) error
	}

	// Waiter blocks until a call under key may proceed.
	Waiter interface {
		Wait(ctx context.Context, key string) error
	}
)

// ThrottleKey is the limiter key shared by all spreadsheet requests.
const ThrottleKey = "sheets"

// ExpenseRow renders e in sheet column order: ID, date, description,
// category, amount, payment method, notes, last update.
func ExpenseRow(e core.Expense) []any {
	return []any{
		e.ID,
		e.Date.String(),
		e.Description,
		e.Category,
		e.Amount.StringFixed(2),
		string(e.PaymentMethod),
		e.Notes,
		e.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// ExpenseHeader names the columns written by ExpenseRow.
var ExpenseHeader = []any{"ID", "Date", "Description", "Category", "Amount", "Payment Method", "Notes", "Updated At"}

// AlertRow renders a in alert-log column order.
func AlertRow(a BudgetAlert) []any {
	return []any{
		a.At.UTC().Format(time.RFC3339),
		a.BudgetID,
		a.Name,
		a.Level,
		a.Amount.StringFixed(2),
		a.Remaining.StringFixed(2),
		a.Progress,
	}
}
