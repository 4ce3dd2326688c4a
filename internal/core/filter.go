package core

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// SortKey selects the ordering applied by FilterExpenses.
type SortKey string

const (
	SortByDate     SortKey = "date"     // newest first
	SortByAmount   SortKey = "amount"   // largest first
	SortByCategory SortKey = "category" // A to Z
	SortByCreated  SortKey = "created"  // most recently created first
)

// ExpenseFilter narrows an expense list. Zero fields do not filter.
type ExpenseFilter struct {
	Category   string
	StartDate  Date
	EndDate    Date
	MinAmount  *decimal.Decimal
	MaxAmount  *decimal.Decimal
	SearchTerm string
	SortBy     SortKey
}

// Matches reports whether e passes every criterion of f.
func (f ExpenseFilter) Matches(e Expense) bool {
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if !f.StartDate.IsZero() && e.Date.Before(f.StartDate.Time) {
		return false
	}
	if !f.EndDate.IsZero() && e.Date.After(f.EndDate.Time) {
		return false
	}
	if f.MinAmount != nil && e.Amount.LessThan(*f.MinAmount) {
		return false
	}
	if f.MaxAmount != nil && e.Amount.GreaterThan(*f.MaxAmount) {
		return false
	}
	if term := strings.ToLower(strings.TrimSpace(f.SearchTerm)); term != "" {
		if !strings.Contains(strings.ToLower(e.Description), term) &&
			!strings.Contains(strings.ToLower(e.Notes), term) {
			return false
		}
	}
	return true
}

// FilterExpenses returns a new, sorted slice of the expenses matching f.
// An empty SortBy sorts by date; an unrecognised one by creation time.
func FilterExpenses(expenses []Expense, f ExpenseFilter) []Expense {
	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if f.Matches(e) {
			out = append(out, e)
		}
	}

	var cmp func(a, b Expense) int
	switch f.SortBy {
	case "", SortByDate:
		cmp = func(a, b Expense) int { return b.Date.Compare(a.Date.Time) }
	case SortByAmount:
		cmp = func(a, b Expense) int { return b.Amount.Cmp(a.Amount) }
	case SortByCategory:
		cmp = func(a, b Expense) int { return strings.Compare(a.Category, b.Category) }
	default:
		cmp = func(a, b Expense) int { return b.CreatedAt.Compare(a.CreatedAt) }
	}
	slices.SortStableFunc(out, cmp)
	return out
}
