package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// BudgetStatus holds the values derived from a budget and the expenses
// recorded against it. It is recomputed on every read and never stored.
type BudgetStatus struct {
	Budget             Budget          `json:"budget"`
	Spent              decimal.Decimal `json:"spent"`
	RemainingAmount    decimal.Decimal `json:"remainingAmount"`
	ProgressPercentage float64         `json:"progressPercentage"`
	IsOverBudget       bool            `json:"isOverBudget"`
}

// BudgetSummary totals a set of evaluated budgets.
type BudgetSummary struct {
	TotalBudgeted   decimal.Decimal `json:"totalBudgeted"`
	TotalSpent      decimal.Decimal `json:"totalSpent"`
	TotalRemaining  decimal.Decimal `json:"totalRemaining"`
	OverBudgetCount int             `json:"overBudgetCount"`
}

// EffectiveEnd is the last day the budget covers: its end date, or the
// calendar date of now when it is ongoing.
func (b Budget) EffectiveEnd(now time.Time) Date {
	if !b.EndDate.IsZero() {
		return b.EndDate
	}
	return DateOf(now)
}

// Covers reports whether e counts against b. Both bounds are inclusive and
// an empty budget category matches every expense.
func (b Budget) Covers(e Expense, now time.Time) bool {
	if b.StartDate.IsZero() || e.Date.IsZero() {
		return false
	}
	if e.Date.Before(b.StartDate.Time) || e.Date.After(b.EffectiveEnd(now).Time) {
		return false
	}
	cat := strings.TrimSpace(b.Category)
	return cat == "" || e.Category == cat
}

// CalculateRemainingBudget returns budget.Amount minus the expenses the
// budget covers. A nil budget yields zero; a budget without a start date
// is treated as having no spend.
func CalculateRemainingBudget(budget *Budget, expenses []Expense, now time.Time) decimal.Decimal {
	if budget == nil {
		return decimal.Zero
	}
	if budget.StartDate.IsZero() {
		return budget.Amount
	}
	spent := decimal.Zero
	for _, e := range expenses {
		if budget.Covers(e, now) {
			spent = spent.Add(e.Amount)
		}
	}
	return budget.Amount.Sub(spent)
}

// CalculateBudgetProgress returns the share of the budget already spent,
// clamped to [0, 100]. Overspending reports 100; use a negative remaining
// amount to detect it.
func CalculateBudgetProgress(budget *Budget, remaining decimal.Decimal) float64 {
	if budget == nil || !budget.Amount.IsPositive() {
		return 0
	}
	spent := budget.Amount.Sub(remaining)
	pct, _ := spent.Div(budget.Amount).Mul(hundred).Float64()
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

// EvaluateBudget derives the status of a single budget.
func EvaluateBudget(budget Budget, expenses []Expense, now time.Time) BudgetStatus {
	remaining := CalculateRemainingBudget(&budget, expenses, now)
	return BudgetStatus{
		Budget:             budget,
		Spent:              budget.Amount.Sub(remaining),
		RemainingAmount:    remaining,
		ProgressPercentage: CalculateBudgetProgress(&budget, remaining),
		IsOverBudget:       remaining.IsNegative(),
	}
}

func EvaluateBudgets(budgets []Budget, expenses []Expense, now time.Time) []BudgetStatus {
	out := make([]BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, EvaluateBudget(b, expenses, now))
	}
	return out
}

func SummarizeBudgets(statuses []BudgetStatus) BudgetSummary {
	var s BudgetSummary
	for _, st := range statuses {
		s.TotalBudgeted = s.TotalBudgeted.Add(st.Budget.Amount)
		s.TotalSpent = s.TotalSpent.Add(st.Spent)
		s.TotalRemaining = s.TotalRemaining.Add(st.RemainingAmount)
		if st.IsOverBudget {
			s.OverBudgetCount++
		}
	}
	return s
}

// ActiveBudgets returns the budgets flagged as active, in input order.
func ActiveBudgets(budgets []Budget) []Budget {
	out := make([]Budget, 0, len(budgets))
	for _, b := range budgets {
		if b.IsActive {
			out = append(out, b)
		}
	}
	return out
}
