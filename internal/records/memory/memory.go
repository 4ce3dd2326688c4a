package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"budgeteer/internal/core"
	"budgeteer/internal/records"
)

// Store keeps records in process memory. Reads return copies, so callers
// can never alias the store's state.
type Store struct {
	mu       sync.Mutex
	expenses map[string]core.Expense
	budgets  map[string]core.Budget
	runs     map[string]time.Time
}

var _ records.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		expenses: make(map[string]core.Expense),
		budgets:  make(map[string]core.Budget),
		runs:     make(map[string]time.Time),
	}
}

// NewFromFiles seeds a store from expenses.json and budgets.json in base.
// Missing files are skipped; malformed ones are reported.
func NewFromFiles(base string) (*Store, error) {
	s := New()

	var expenses []core.Expense
	if err := readJSON(filepath.Join(base, "expenses.json"), &expenses); err != nil {
		return nil, err
	}
	for _, e := range expenses {
		s.expenses[e.ID] = e
	}

	var budgets []core.Budget
	if err := readJSON(filepath.Join(base, "budgets.json"), &budgets); err != nil {
		return nil, err
	}
	for _, b := range budgets {
		s.budgets[b.ID] = b
	}
	return s, nil
}

func (s *Store) ListExpenses(_ context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Expense, 0, len(s.expenses))
	for _, e := range s.expenses {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return newerFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (s *Store) GetExpense(_ context.Context, id string) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, records.ErrNotFound)
	}
	return e, nil
}

func (s *Store) SaveExpense(_ context.Context, e core.Expense) error {
	if e.ID == "" {
		return errors.New("expense id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses[e.ID] = e
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expenses[id]; !ok {
		return fmt.Errorf("expense %s: %w", id, records.ErrNotFound)
	}
	delete(s.expenses, id)
	delete(s.runs, id)
	return nil
}

func (s *Store) ListBudgets(_ context.Context) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Budget, 0, len(s.budgets))
	for _, b := range s.budgets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return newerFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (s *Store) GetBudget(_ context.Context, id string) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok {
		return core.Budget{}, fmt.Errorf("budget %s: %w", id, records.ErrNotFound)
	}
	return b, nil
}

func (s *Store) SaveBudget(_ context.Context, b core.Budget) error {
	if b.ID == "" {
		return errors.New("budget id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[b.ID] = b
	return nil
}

func (s *Store) DeleteBudget(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.budgets[id]; !ok {
		return fmt.Errorf("budget %s: %w", id, records.ErrNotFound)
	}
	delete(s.budgets, id)
	return nil
}

func (s *Store) LastRecurringRun(_ context.Context, expenseID string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[expenseID], nil
}

func (s *Store) RecordRecurringRun(_ context.Context, expenseID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[expenseID] = at
	return nil
}

func (s *Store) Close() error { return nil }

// newerFirst orders by creation time descending, falling back to ID so
// listings are stable across map iterations.
func newerFirst(a, b time.Time, idA, idB string) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return idA < idB
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
