// Package recordstest holds the behaviour every records.Store backend must
// share, so memory, key-value and SQLite stores run the same checks.
package recordstest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"budgeteer/internal/core"
	"budgeteer/internal/records"
)

// RunStoreContract exercises s. The store must start empty.
func RunStoreContract(t *testing.T, s records.Store) {
	t.Helper()
	ctx := context.Background()
	created := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

	t.Run("expenses", func(t *testing.T) {
		list, err := s.ListExpenses(ctx)
		if err != nil || len(list) != 0 {
			t.Fatalf("expected empty list, got %v (err=%v)", list, err)
		}

		first := core.Expense{
			ID:            "e1",
			Amount:        decimal.RequireFromString("12.34"),
			Description:   "Lunch",
			Category:      "Food and Dining",
			Date:          core.NewDate(2024, 1, 2),
			PaymentMethod: core.PaymentCash,
			Notes:         "with team",
			CreatedAt:     created,
			UpdatedAt:     created,
		}
		second := core.Expense{
			ID:                 "e2",
			Amount:             decimal.RequireFromString("50"),
			Description:        "Gym",
			Category:           "Health and Wellness",
			Date:               core.NewDate(2024, 1, 3),
			IsRecurring:        true,
			RecurringFrequency: core.FrequencyMonthly,
			CreatedAt:          created.Add(time.Hour),
			UpdatedAt:          created.Add(time.Hour),
		}
		for _, e := range []core.Expense{first, second} {
			if err := s.SaveExpense(ctx, e); err != nil {
				t.Fatalf("save %s: %v", e.ID, err)
			}
		}

		got, err := s.GetExpense(ctx, "e1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		assertExpense(t, got, first)

		list, err = s.ListExpenses(ctx)
		if err != nil || len(list) != 2 {
			t.Fatalf("expected 2 expenses, got %d (err=%v)", len(list), err)
		}
		if list[0].ID != "e2" {
			t.Errorf("expected newest first, got %s", list[0].ID)
		}

		first.Amount = decimal.RequireFromString("15")
		first.Notes = ""
		first.UpdatedAt = created.Add(2 * time.Hour)
		if err := s.SaveExpense(ctx, first); err != nil {
			t.Fatalf("update: %v", err)
		}
		got, _ = s.GetExpense(ctx, "e1")
		assertExpense(t, got, first)
		if list, _ := s.ListExpenses(ctx); len(list) != 2 {
			t.Fatalf("update must not duplicate, got %d records", len(list))
		}

		if err := s.DeleteExpense(ctx, "e1"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := s.GetExpense(ctx, "e1"); !errors.Is(err, records.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
		if err := s.DeleteExpense(ctx, "missing"); !errors.Is(err, records.ErrNotFound) {
			t.Fatalf("expected ErrNotFound deleting unknown id, got %v", err)
		}
	})

	t.Run("budgets", func(t *testing.T) {
		b := core.Budget{
			ID:        "b1",
			Name:      "Groceries",
			Amount:    decimal.RequireFromString("300"),
			Period:    core.Monthly,
			Category:  "Food and Dining",
			StartDate: core.NewDate(2024, 1, 1),
			IsActive:  true,
			CreatedAt: created,
			UpdatedAt: created,
		}
		if err := s.SaveBudget(ctx, b); err != nil {
			t.Fatalf("save: %v", err)
		}
		got, err := s.GetBudget(ctx, "b1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Name != b.Name || !got.Amount.Equal(b.Amount) || got.Period != b.Period ||
			!got.StartDate.Equal(b.StartDate.Time) || !got.EndDate.IsZero() || !got.IsActive {
			t.Fatalf("budget mismatch: %+v", got)
		}

		b.EndDate = core.NewDate(2024, 12, 31)
		b.IsActive = false
		if err := s.SaveBudget(ctx, b); err != nil {
			t.Fatalf("update: %v", err)
		}
		got, _ = s.GetBudget(ctx, "b1")
		if !got.EndDate.Equal(b.EndDate.Time) || got.IsActive {
			t.Fatalf("update not persisted: %+v", got)
		}

		list, err := s.ListBudgets(ctx)
		if err != nil || len(list) != 1 {
			t.Fatalf("expected 1 budget, got %d (err=%v)", len(list), err)
		}

		if err := s.DeleteBudget(ctx, "b1"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := s.GetBudget(ctx, "b1"); !errors.Is(err, records.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("recurring runs", func(t *testing.T) {
		last, err := s.LastRecurringRun(ctx, "never")
		if err != nil || !last.IsZero() {
			t.Fatalf("expected zero time, got %v (err=%v)", last, err)
		}
		at := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
		if err := s.RecordRecurringRun(ctx, "e2", at); err != nil {
			t.Fatalf("record: %v", err)
		}
		last, err = s.LastRecurringRun(ctx, "e2")
		if err != nil || !last.Equal(at) {
			t.Fatalf("expected %v, got %v (err=%v)", at, last, err)
		}

		if err := s.DeleteExpense(ctx, "e2"); err != nil {
			t.Fatalf("delete e2: %v", err)
		}
		last, err = s.LastRecurringRun(ctx, "e2")
		if err != nil || !last.IsZero() {
			t.Fatalf("deleting the expense should drop its last run, got %v (err=%v)", last, err)
		}
	})
}

// RunConcurrentWriters saves expenses through a and b at the same time.
// Both stores must start empty and share one backend, as two processes
// would. Every save must survive.
func RunConcurrentWriters(t *testing.T, a, b records.Store) {
	t.Helper()
	ctx := context.Background()
	const perStore = 25
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	errs := make(chan error, 2*perStore)
	for n, s := range []records.Store{a, b} {
		wg.Add(1)
		go func(n int, s records.Store) {
			defer wg.Done()
			for i := 0; i < perStore; i++ {
				e := core.Expense{
					ID:            fmt.Sprintf("w%d-%02d", n, i),
					Amount:        decimal.NewFromInt(int64(i + 1)),
					Description:   "Concurrent",
					Category:      "Other",
					Date:          core.NewDate(2024, 3, 1),
					PaymentMethod: core.PaymentCash,
					CreatedAt:     created.Add(time.Duration(i) * time.Second),
					UpdatedAt:     created,
				}
				if err := s.SaveExpense(ctx, e); err != nil {
					errs <- fmt.Errorf("save %s: %w", e.ID, err)
				}
			}
		}(n, s)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	for _, s := range []records.Store{a, b} {
		list, err := s.ListExpenses(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 2*perStore {
			t.Fatalf("expected %d expenses, got %d", 2*perStore, len(list))
		}
	}
}

func assertExpense(t *testing.T, got, want core.Expense) {
	t.Helper()
	if got.ID != want.ID || !got.Amount.Equal(want.Amount) || got.Description != want.Description ||
		got.Category != want.Category || !got.Date.Equal(want.Date.Time) ||
		got.PaymentMethod != want.PaymentMethod || got.Notes != want.Notes ||
		got.IsRecurring != want.IsRecurring || got.RecurringFrequency != want.RecurringFrequency ||
		!got.CreatedAt.Equal(want.CreatedAt) || !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Fatalf("expense mismatch:\n got %+v\nwant %+v", got, want)
	}
}
