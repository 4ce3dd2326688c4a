package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"budgeteer/internal/core"
	"budgeteer/internal/records"
)

// RecurringProcessor creates expenses from recurring templates. A template
// is any stored expense with IsRecurring set and a frequency.
type RecurringProcessor struct {
	ledger *Ledger
	runs   records.RecurringLedger
}

func NewRecurringProcessor(ledger *Ledger, runs records.RecurringLedger) *RecurringProcessor {
	return &RecurringProcessor{ledger: ledger, runs: runs}
}

// ProcessDueExpenses creates one occurrence for every template due at now
// and returns how many were created. Failures on one template are logged
// and do not stop the others.
func (p *RecurringProcessor) ProcessDueExpenses(ctx context.Context, now time.Time) (int, error) {
	if p.ledger == nil || p.runs == nil {
		return 0, errors.New("processor not properly initialized")
	}

	expenses, err := p.ledger.ListExpenses(ctx)
	if err != nil {
		return 0, fmt.Errorf("list expenses: %w", err)
	}

	var templates []core.Expense
	for _, e := range expenses {
		if e.IsRecurring && e.RecurringFrequency != "" {
			templates = append(templates, e)
		}
	}

	slog.InfoContext(ctx, "Processing recurring expenses",
		"templates", len(templates),
		"processing_date", now.Format("2006-01-02"))

	processed := 0
	for _, tmpl := range templates {
		due, err := p.isDue(ctx, tmpl, now)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to check if expense is due",
				"template_id", tmpl.ID,
				"error", err)
			continue
		}
		if !due {
			continue
		}

		occurrence := core.Expense{
			Amount:        tmpl.Amount,
			Description:   tmpl.Description,
			Category:      tmpl.Category,
			Date:          core.DateOf(now),
			PaymentMethod: tmpl.PaymentMethod,
			Notes:         tmpl.Notes,
		}
		created, err := p.ledger.AddExpense(ctx, occurrence)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to create expense from recurring template",
				"template_id", tmpl.ID,
				"description", tmpl.Description,
				"error", err)
			continue
		}

		if err := p.runs.RecordRecurringRun(ctx, tmpl.ID, now); err != nil {
			// The occurrence exists; the next pass may duplicate it.
			slog.ErrorContext(ctx, "Failed to record recurring run",
				"template_id", tmpl.ID,
				"error", err)
		}

		processed++
		slog.InfoContext(ctx, "Created expense from recurring template",
			"template_id", tmpl.ID,
			"expense_id", created.ID,
			"amount", tmpl.Amount.String(),
			"frequency", tmpl.RecurringFrequency)
	}

	slog.InfoContext(ctx, "Recurring expense processing complete",
		"processed", processed,
		"total_checked", len(templates))

	return processed, nil
}

// isDue compares now against the template's last run, or against the
// template's own date when it has never run.
func (p *RecurringProcessor) isDue(ctx context.Context, tmpl core.Expense, now time.Time) (bool, error) {
	checker, err := GetDuenessChecker(tmpl.RecurringFrequency)
	if err != nil {
		return false, err
	}

	last, err := p.runs.LastRecurringRun(ctx, tmpl.ID)
	if err != nil {
		return false, fmt.Errorf("last recurring run: %w", err)
	}
	if last.IsZero() {
		last = tmpl.Date.Time
	}
	return checker.IsDue(last, now, tmpl.Date), nil
}
