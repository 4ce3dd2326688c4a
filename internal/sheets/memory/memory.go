// Package memory is an in-process spreadsheet stand-in, used when no
// spreadsheet is configured and in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"budgeteer/internal/core"
	ports "budgeteer/internal/sheets"
)

var (
	_ ports.ExpenseExporter = (*Sheet)(nil)
	_ ports.ExpenseRemover  = (*Sheet)(nil)
	_ ports.AlertSink       = (*Sheet)(nil)
)

// Sheet keeps exported rows keyed by expense ID, in first-export order.
type Sheet struct {
	mu     sync.Mutex
	order  []string
	rows   map[string][]any
	alerts []ports.BudgetAlert
}

func New() *Sheet {
	return &Sheet{rows: make(map[string][]any)}
}

func (s *Sheet) Export(_ context.Context, e core.Expense) (string, error) {
	if e.ID == "" {
		return "", fmt.Errorf("expense has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[e.ID]; !ok {
		s.order = append(s.order, e.ID)
	}
	s.rows[e.ID] = ports.ExpenseRow(e)
	return fmt.Sprintf("mem:%s", e.ID), nil
}

func (s *Sheet) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[id]; !ok {
		return nil
	}
	delete(s.rows, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Sheet) RecordAlert(_ context.Context, a ports.BudgetAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
	return nil
}

// Rows returns a copy of the exported rows in export order.
func (s *Sheet) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, append([]any(nil), s.rows[id]...))
	}
	return out
}

// Alerts returns a copy of the recorded alerts.
func (s *Sheet) Alerts() []ports.BudgetAlert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.BudgetAlert(nil), s.alerts...)
}
