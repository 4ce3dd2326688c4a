package core

import (
	"slices"

	"github.com/shopspring/decimal"
)

// RecentLimit is how many expenses Stats.RecentExpenses holds at most.
const RecentLimit = 5

// Stats aggregates an expense collection.
type Stats struct {
	Count              int                        `json:"count"`
	TotalExpenses      decimal.Decimal            `json:"totalExpenses"`
	AverageExpense     decimal.Decimal            `json:"averageExpense"`
	HighestExpense     decimal.Decimal            `json:"highestExpense"`
	LowestExpense      decimal.Decimal            `json:"lowestExpense"`
	ExpensesByCategory map[string]decimal.Decimal `json:"expensesByCategory"`
	RecentExpenses     []Expense                  `json:"recentExpenses"`
}

// ComputeStats sums, averages and groups expenses in a single pass. An
// empty input yields zeros, an empty category map and no recent expenses.
func ComputeStats(expenses []Expense) Stats {
	stats := Stats{
		ExpensesByCategory: make(map[string]decimal.Decimal),
		RecentExpenses:     []Expense{},
	}
	if len(expenses) == 0 {
		return stats
	}

	stats.Count = len(expenses)
	stats.HighestExpense = expenses[0].Amount
	stats.LowestExpense = expenses[0].Amount
	for _, e := range expenses {
		stats.TotalExpenses = stats.TotalExpenses.Add(e.Amount)
		if e.Amount.GreaterThan(stats.HighestExpense) {
			stats.HighestExpense = e.Amount
		}
		if e.Amount.LessThan(stats.LowestExpense) {
			stats.LowestExpense = e.Amount
		}
		stats.ExpensesByCategory[e.Category] = stats.ExpensesByCategory[e.Category].Add(e.Amount)
	}
	stats.AverageExpense = stats.TotalExpenses.Div(decimal.NewFromInt(int64(stats.Count)))
	stats.RecentExpenses = RecentExpenses(expenses, RecentLimit)

	return stats
}

// RecentExpenses returns up to n expenses ordered by date, newest first.
// Ties keep their input order. The input slice is not modified.
func RecentExpenses(expenses []Expense, n int) []Expense {
	sorted := slices.Clone(expenses)
	slices.SortStableFunc(sorted, func(a, b Expense) int {
		return b.Date.Compare(a.Date.Time)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	if sorted == nil {
		sorted = []Expense{}
	}
	return sorted
}

// SortedCategories returns the category breakdown ordered by amount,
// largest first, then by name.
func (s Stats) SortedCategories() []CategoryAmount {
	return sortCategoryAmounts(s.ExpensesByCategory)
}
