package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"budgeteer/internal/amqp"
	"budgeteer/internal/cache"
	"budgeteer/internal/core"
)

// DefaultAlertThreshold is the progress percentage that triggers a warning.
const DefaultAlertThreshold = 80.0

// BudgetMonitor raises alerts for active budgets that are close to or over
// their limit. Each budget alerts once per level while the dedupe entry
// lives in the cache.
type BudgetMonitor struct {
	ledger    *Ledger
	publisher EventPublisher
	threshold float64
	sent      *cache.LRUCache[bool]
}

// NewBudgetMonitor creates a monitor. A threshold outside (0, 100] falls
// back to DefaultAlertThreshold; a nil publisher only logs alerts.
func NewBudgetMonitor(ledger *Ledger, publisher EventPublisher, threshold float64, sent *cache.LRUCache[bool]) *BudgetMonitor {
	if threshold <= 0 || threshold > 100 {
		threshold = DefaultAlertThreshold
	}
	if sent == nil {
		sent = cache.NewLRUCache[bool](1000, 24*time.Hour)
	}
	return &BudgetMonitor{
		ledger:    ledger,
		publisher: publisher,
		threshold: threshold,
		sent:      sent,
	}
}

// Check evaluates active budgets at now and returns the alerts raised in
// this pass.
func (m *BudgetMonitor) Check(ctx context.Context, now time.Time) ([]*amqp.BudgetAlertMessage, error) {
	budgets, err := m.ledger.ActiveBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("load budgets: %w", err)
	}
	if len(budgets) == 0 {
		return nil, nil
	}
	expenses, err := m.ledger.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}

	var alerts []*amqp.BudgetAlertMessage
	for _, st := range core.EvaluateBudgets(budgets, expenses, now) {
		level, ok := m.levelFor(st)
		if !ok {
			continue
		}
		if !m.sent.SetIfAbsent(alertKey(st.Budget, level), true) {
			continue
		}

		alert := amqp.NewBudgetAlertMessage(st.Budget.ID, st.Budget.Name, level,
			st.Budget.Amount, st.RemainingAmount, st.ProgressPercentage)
		alerts = append(alerts, alert)
		m.publish(ctx, alert)
	}
	return alerts, nil
}

func (m *BudgetMonitor) levelFor(st core.BudgetStatus) (amqp.AlertLevel, bool) {
	switch {
	case st.IsOverBudget:
		return amqp.AlertExceeded, true
	case st.ProgressPercentage >= m.threshold:
		return amqp.AlertWarning, true
	}
	return "", false
}

func (m *BudgetMonitor) publish(ctx context.Context, alert *amqp.BudgetAlertMessage) {
	slog.WarnContext(ctx, "Budget alert",
		"budget_id", alert.BudgetID,
		"name", alert.Name,
		"level", alert.Level,
		"remaining", alert.Remaining.String(),
		"progress", alert.Progress)

	if m.publisher == nil {
		return
	}
	if err := m.publisher.PublishBudgetAlert(ctx, alert); err != nil {
		slog.ErrorContext(ctx, "Failed to publish budget alert",
			"budget_id", alert.BudgetID,
			"error", err)
	}
}

// alertKey includes the budget's amount so that raising the limit re-arms
// the alert.
func alertKey(b core.Budget, level amqp.AlertLevel) string {
	return b.ID + ":" + b.Amount.String() + ":" + string(level)
}
