package core

import "github.com/shopspring/decimal"

// ExpensePatch is a partial update. A nil field keeps the existing value.
type ExpensePatch struct {
	Amount             *decimal.Decimal
	Description        *string
	Category           *string
	Date               *Date
	PaymentMethod      *PaymentMethod
	Notes              *string
	IsRecurring        *bool
	RecurringFrequency *Frequency
}

// BudgetPatch is a partial update. A non-nil EndDate holding the zero Date
// clears the end date, making the budget ongoing.
type BudgetPatch struct {
	Name      *string
	Amount    *decimal.Decimal
	Period    *Period
	Category  *string
	StartDate *Date
	EndDate   *Date
	IsActive  *bool
}

func (p ExpensePatch) IsEmpty() bool {
	return p == ExpensePatch{}
}

func (p BudgetPatch) IsEmpty() bool {
	return p == BudgetPatch{}
}

// ApplyExpensePatch returns existing with the patch fields laid over it.
// ID and timestamps are never touched; the caller refreshes UpdatedAt.
func ApplyExpensePatch(existing Expense, p ExpensePatch) Expense {
	out := existing
	if p.Amount != nil {
		out.Amount = *p.Amount
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Category != nil {
		out.Category = *p.Category
	}
	if p.Date != nil {
		out.Date = *p.Date
	}
	if p.PaymentMethod != nil {
		out.PaymentMethod = *p.PaymentMethod
	}
	if p.Notes != nil {
		out.Notes = *p.Notes
	}
	if p.IsRecurring != nil {
		out.IsRecurring = *p.IsRecurring
	}
	if p.RecurringFrequency != nil {
		out.RecurringFrequency = *p.RecurringFrequency
	}
	return out
}

// ApplyBudgetPatch returns existing with the patch fields laid over it.
func ApplyBudgetPatch(existing Budget, p BudgetPatch) Budget {
	out := existing
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Amount != nil {
		out.Amount = *p.Amount
	}
	if p.Period != nil {
		out.Period = *p.Period
	}
	if p.Category != nil {
		out.Category = *p.Category
	}
	if p.StartDate != nil {
		out.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		out.EndDate = *p.EndDate
	}
	if p.IsActive != nil {
		out.IsActive = *p.IsActive
	}
	return out
}
