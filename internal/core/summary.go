package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Year       int              `json:"year"`
	Month      int              `json:"month"` // 1-12
	Total      decimal.Decimal  `json:"total"`
	Count      int              `json:"count"`
	ByCategory []CategoryAmount `json:"byCategory"`
}

// MonthlyOverview totals the expenses dated in the given calendar month.
func MonthlyOverview(expenses []Expense, year, month int) MonthOverview {
	ov := MonthOverview{Year: year, Month: month}
	byCat := make(map[string]decimal.Decimal)
	for _, e := range expenses {
		if e.Date.Year() != year || e.Date.Month() != month {
			continue
		}
		ov.Count++
		ov.Total = ov.Total.Add(e.Amount)
		byCat[e.Category] = byCat[e.Category].Add(e.Amount)
	}
	ov.ByCategory = sortCategoryAmounts(byCat)
	return ov
}

func sortCategoryAmounts(m map[string]decimal.Decimal) []CategoryAmount {
	out := make([]CategoryAmount, 0, len(m))
	for name, amount := range m {
		out = append(out, CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}
