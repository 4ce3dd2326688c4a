// Package kv stores each record collection as a single JSON document under
// a fixed key, mirroring a browser local-storage layout. Any KV that can get
// and set byte values can back it.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"budgeteer/internal/core"
	"budgeteer/internal/records"
)

// Storage keys.
const (
	ExpensesKey      = "expense_tracker_expenses"
	BudgetsKey       = "expense_tracker_budgets"
	RecurringRunsKey = "expense_tracker_recurring_runs"
)

var (
	// ErrKeyMissing is returned by KV.Get for a key that was never set.
	ErrKeyMissing = errors.New("key missing")
	// ErrLocked is returned by KV.Lock when another holder kept the key
	// locked until ctx expired or the retries ran out.
	ErrLocked = errors.New("key locked")
)

type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Lock excludes other holders of key, in this process or another one
	// sharing the backend, until unlock is called.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Store implements records.Store on top of a KV. Every write rewrites the
// whole collection while holding the KV lock on its key, so several
// processes can share one backend.
type Store struct {
	mu sync.Mutex
	kv KV
}

var _ records.Store = (*Store)(nil)

func New(kv KV) *Store {
	return &Store{kv: kv}
}

func (s *Store) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return load[core.Expense](ctx, s.kv, ExpensesKey)
}

func (s *Store) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := load[core.Expense](ctx, s.kv, ExpensesKey)
	if err != nil {
		return core.Expense{}, err
	}
	for _, e := range list {
		if e.ID == id {
			return e, nil
		}
	}
	return core.Expense{}, fmt.Errorf("expense %s: %w", id, records.ErrNotFound)
}

// SaveExpense replaces an existing record in place or prepends a new one,
// so the stored list stays newest first.
func (s *Store) SaveExpense(ctx context.Context, e core.Expense) error {
	if e.ID == "" {
		return errors.New("expense id is required")
	}
	return s.locked(ctx, func() error {
		list, err := load[core.Expense](ctx, s.kv, ExpensesKey)
		if err != nil {
			return err
		}
		list = upsert(list, e, func(x core.Expense) bool { return x.ID == e.ID })
		return save(ctx, s.kv, ExpensesKey, list)
	}, ExpensesKey)
}

// DeleteExpense also drops the expense's recurring-run entry.
func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	return s.locked(ctx, func() error {
		list, err := load[core.Expense](ctx, s.kv, ExpensesKey)
		if err != nil {
			return err
		}
		list, ok := remove(list, func(x core.Expense) bool { return x.ID == id })
		if !ok {
			return fmt.Errorf("expense %s: %w", id, records.ErrNotFound)
		}
		if err := save(ctx, s.kv, ExpensesKey, list); err != nil {
			return err
		}

		runs, err := s.loadRuns(ctx)
		if err != nil {
			return err
		}
		if _, ok := runs[id]; !ok {
			return nil
		}
		delete(runs, id)
		return s.saveRuns(ctx, runs)
	}, ExpensesKey, RecurringRunsKey)
}

func (s *Store) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return load[core.Budget](ctx, s.kv, BudgetsKey)
}

func (s *Store) GetBudget(ctx context.Context, id string) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := load[core.Budget](ctx, s.kv, BudgetsKey)
	if err != nil {
		return core.Budget{}, err
	}
	for _, b := range list {
		if b.ID == id {
			return b, nil
		}
	}
	return core.Budget{}, fmt.Errorf("budget %s: %w", id, records.ErrNotFound)
}

func (s *Store) SaveBudget(ctx context.Context, b core.Budget) error {
	if b.ID == "" {
		return errors.New("budget id is required")
	}
	return s.locked(ctx, func() error {
		list, err := load[core.Budget](ctx, s.kv, BudgetsKey)
		if err != nil {
			return err
		}
		list = upsert(list, b, func(x core.Budget) bool { return x.ID == b.ID })
		return save(ctx, s.kv, BudgetsKey, list)
	}, BudgetsKey)
}

func (s *Store) DeleteBudget(ctx context.Context, id string) error {
	return s.locked(ctx, func() error {
		list, err := load[core.Budget](ctx, s.kv, BudgetsKey)
		if err != nil {
			return err
		}
		list, ok := remove(list, func(x core.Budget) bool { return x.ID == id })
		if !ok {
			return fmt.Errorf("budget %s: %w", id, records.ErrNotFound)
		}
		return save(ctx, s.kv, BudgetsKey, list)
	}, BudgetsKey)
}

func (s *Store) LastRecurringRun(ctx context.Context, expenseID string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	runs, err := s.loadRuns(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return runs[expenseID], nil
}

func (s *Store) RecordRecurringRun(ctx context.Context, expenseID string, at time.Time) error {
	return s.locked(ctx, func() error {
		runs, err := s.loadRuns(ctx)
		if err != nil {
			return err
		}
		runs[expenseID] = at
		return s.saveRuns(ctx, runs)
	}, RecurringRunsKey)
}

// Close releases the underlying KV when it holds resources.
func (s *Store) Close() error {
	if c, ok := s.kv.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// locked runs fn holding s.mu and the KV locks on keys. Keys are always
// passed in declaration order: expenses, budgets, runs.
func (s *Store) locked(ctx context.Context, fn func() error, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		unlock, err := s.kv.Lock(ctx, key)
		if err != nil {
			return fmt.Errorf("lock %s: %w", key, err)
		}
		defer unlock()
	}
	return fn()
}

func (s *Store) saveRuns(ctx context.Context, runs map[string]time.Time) error {
	data, err := json.Marshal(runs)
	if err != nil {
		return fmt.Errorf("encode %s: %w", RecurringRunsKey, err)
	}
	if err := s.kv.Set(ctx, RecurringRunsKey, data); err != nil {
		return fmt.Errorf("write %s: %w", RecurringRunsKey, err)
	}
	return nil
}

func (s *Store) loadRuns(ctx context.Context) (map[string]time.Time, error) {
	runs := make(map[string]time.Time)
	data, err := s.kv.Get(ctx, RecurringRunsKey)
	if errors.Is(err, ErrKeyMissing) {
		return runs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", RecurringRunsKey, err)
	}
	if err := json.Unmarshal(data, &runs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", RecurringRunsKey, err)
	}
	return runs, nil
}

func load[T any](ctx context.Context, kv KV, key string) ([]T, error) {
	data, err := kv.Get(ctx, key)
	if errors.Is(err, ErrKeyMissing) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func save[T any](ctx context.Context, kv KV, key string, list []T) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := kv.Set(ctx, key, data); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func upsert[T any](list []T, item T, match func(T) bool) []T {
	for i := range list {
		if match(list[i]) {
			list[i] = item
			return list
		}
	}
	return append([]T{item}, list...)
}

func remove[T any](list []T, match func(T) bool) ([]T, bool) {
	for i := range list {
		if match(list[i]) {
			return append(list[:i], list[i+1:]...), true
		}
	}
	return list, false
}
