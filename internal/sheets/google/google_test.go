package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"budgeteer/internal/core"
	ports "budgeteer/internal/sheets"

	goption "google.golang.org/api/option"
)

// fakeSheets serves the subset of the Sheets values API the client uses,
// backed by per-sheet row slices.
type fakeSheets struct {
	mu       sync.Mutex
	sheets   map[string][][]any
	requests int
}

var rowRange = regexp.MustCompile(`^A(\d+):[A-Z]+\d+$`)

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++

	_, rest, ok := strings.Cut(r.URL.Path, "/values/")
	if !ok {
		http.Error(w, "unexpected path "+r.URL.Path, http.StatusNotFound)
		return
	}
	action := ""
	if i := strings.LastIndex(rest, ":"); i > 0 && (strings.HasSuffix(rest, ":append") || strings.HasSuffix(rest, ":clear")) {
		rest, action = rest[:i], rest[i+1:]
	}
	sheet, cells, _ := strings.Cut(rest, "!")
	sheet = strings.ReplaceAll(strings.Trim(sheet, "'"), "''", "'")

	var body struct {
		Values [][]any `json:"values"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&body)
	}

	switch {
	case r.Method == http.MethodGet:
		var out [][]any
		for _, row := range f.sheets[sheet] {
			if len(row) == 0 {
				out = append(out, []any{})
				continue
			}
			out = append(out, []any{row[0]})
		}
		writeJSON(w, map[string]any{"range": rest, "values": out})
	case action == "append":
		f.sheets[sheet] = append(f.sheets[sheet], body.Values...)
		n := len(f.sheets[sheet])
		writeJSON(w, map[string]any{"updates": map[string]any{"updatedRange": fmt.Sprintf("%s!A%d:H%d", sheet, n, n)}})
	case action == "clear":
		row := f.rowIndex(w, cells)
		if row < 0 {
			return
		}
		f.sheets[sheet][row] = nil
		writeJSON(w, map[string]any{})
	case r.Method == http.MethodPut:
		row := f.rowIndex(w, cells)
		if row < 0 {
			return
		}
		for len(f.sheets[sheet]) <= row {
			f.sheets[sheet] = append(f.sheets[sheet], nil)
		}
		f.sheets[sheet][row] = body.Values[0]
		writeJSON(w, map[string]any{})
	default:
		http.Error(w, "unsupported", http.StatusBadRequest)
	}
}

func (f *fakeSheets) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

func (f *fakeSheets) rowIndex(w http.ResponseWriter, cells string) int {
	m := rowRange.FindStringSubmatch(cells)
	if m == nil {
		http.Error(w, "bad range "+cells, http.StatusBadRequest)
		return -1
	}
	n, _ := strconv.Atoi(m[1])
	return n - 1
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T) (*Client, *fakeSheets) {
	t.Helper()
	return newTestClientWith(t, Options{SpreadsheetID: "sheet-123"})
}

func newTestClientWith(t *testing.T, opts Options) (*Client, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{sheets: map[string][][]any{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), opts,
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, fake
}

func sampleExpense(id, amount string) core.Expense {
	return core.Expense{
		ID:          id,
		Amount:      decimal.RequireFromString(amount),
		Description: "Groceries",
		Category:    "Food and Dining",
		Date:        core.NewDate(2024, 4, 2),
		UpdatedAt:   time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC),
	}
}

func TestClient_ExportAppendsThenUpdates(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	if _, err := c.Export(ctx, sampleExpense("e1", "10")); err != nil {
		t.Fatalf("first export: %v", err)
	}
	if _, err := c.Export(ctx, sampleExpense("e2", "20")); err != nil {
		t.Fatalf("second export: %v", err)
	}
	ref, err := c.Export(ctx, sampleExpense("e1", "15.5"))
	if err != nil {
		t.Fatalf("re-export: %v", err)
	}
	if ref != "'Expenses'!A2:H2" {
		t.Errorf("re-export ref = %q", ref)
	}

	rows := fake.sheets[DefaultExpensesSheet]
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d: %v", len(rows), rows)
	}
	if rows[0][0] != "ID" {
		t.Errorf("missing header row: %v", rows[0])
	}
	if rows[1][0] != "e1" || rows[1][4] != "15.50" {
		t.Errorf("e1 row not updated in place: %v", rows[1])
	}
}

func TestClient_Remove(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	for _, id := range []string{"e1", "e2"} {
		if _, err := c.Export(ctx, sampleExpense(id, "1")); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.Remove(ctx, "e1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := c.Remove(ctx, "unknown"); err != nil {
		t.Fatalf("Remove unknown: %v", err)
	}

	rows := fake.sheets[DefaultExpensesSheet]
	if len(rows[1]) != 0 {
		t.Errorf("e1 row should be cleared, got %v", rows[1])
	}
	if rows[2][0] != "e2" {
		t.Errorf("e2 row must be untouched, got %v", rows[2])
	}
}

func TestClient_RecordAlert(t *testing.T) {
	c, fake := newTestClient(t)
	err := c.RecordAlert(context.Background(), ports.BudgetAlert{
		BudgetID:  "b1",
		Name:      "Food",
		Level:     "warning",
		Amount:    decimal.NewFromInt(200),
		Remaining: decimal.RequireFromString("30"),
		Progress:  85,
		At:        time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	rows := fake.sheets[DefaultAlertsSheet]
	if len(rows) != 1 || rows[0][1] != "b1" || rows[0][5] != "30.00" {
		t.Fatalf("unexpected alert rows %v", rows)
	}
}

func TestNew_Errors(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	if _, err := New(context.Background(), Options{}); err == nil || !strings.Contains(err.Error(), "spreadsheet id") {
		t.Errorf("expected missing id error, got %v", err)
	}
	if _, err := New(context.Background(), Options{SpreadsheetID: "x"}); err == nil || !strings.Contains(err.Error(), "credentials") {
		t.Errorf("expected missing credentials error, got %v", err)
	}
	_, err := New(context.Background(), Options{SpreadsheetID: "x", CredentialsFile: "/nonexistent/sa.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Errorf("expected file read error, got %v", err)
	}
}

func TestA1(t *testing.T) {
	tests := []struct {
		sheet, cells, want string
	}{
		{"Expenses", "A:A", "'Expenses'!A:A"},
		{"2024 Expenses", "A2:H2", "'2024 Expenses'!A2:H2"},
		{"Bob's", "A1", "'Bob''s'!A1"},
	}
	for _, tt := range tests {
		if got := a1(tt.sheet, tt.cells); got != tt.want {
			t.Errorf("a1(%q, %q) = %q, want %q", tt.sheet, tt.cells, got, tt.want)
		}
	}
}

func TestFindRow(t *testing.T) {
	ids := firstColumn([][]any{{"ID"}, {}, {" e2 "}, {"e3", "x"}})
	if got := findRow(ids, "e2"); got != 3 {
		t.Errorf("findRow(e2) = %d, want 3", got)
	}
	if got := findRow(ids, "missing"); got != 0 {
		t.Errorf("findRow(missing) = %d, want 0", got)
	}
}

type countingWaiter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (w *countingWaiter) Wait(_ context.Context, key string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if key != ports.ThrottleKey {
		return fmt.Errorf("unexpected key %q", key)
	}
	w.calls++
	return w.err
}

func TestClient_WaitsOncePerRequest(t *testing.T) {
	w := &countingWaiter{}
	c, fake := newTestClientWith(t, Options{SpreadsheetID: "sheet-123", Limiter: w})
	ctx := context.Background()

	steps := []struct {
		name string
		run  func() error
		want int
	}{
		// read IDs, write header, append
		{"first export", func() error { _, err := c.Export(ctx, sampleExpense("e1", "1")); return err }, 3},
		// read IDs, update
		{"re-export", func() error { _, err := c.Export(ctx, sampleExpense("e1", "2")); return err }, 2},
		// read IDs, clear
		{"remove", func() error { return c.Remove(ctx, "e1") }, 2},
		{"remove unknown", func() error { return c.Remove(ctx, "nope") }, 1},
		{"alert", func() error { return c.RecordAlert(ctx, ports.BudgetAlert{BudgetID: "b1"}) }, 1},
	}
	for _, step := range steps {
		before := w.calls
		reqBefore := fake.requestCount()
		if err := step.run(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if got := w.calls - before; got != step.want {
			t.Errorf("%s: %d waits, want %d", step.name, got, step.want)
		}
		if got := fake.requestCount() - reqBefore; got != w.calls-before {
			t.Errorf("%s: %d requests but %d waits", step.name, got, w.calls-before)
		}
	}
}

func TestClient_WaitErrorStopsRequest(t *testing.T) {
	w := &countingWaiter{err: context.DeadlineExceeded}
	c, fake := newTestClientWith(t, Options{SpreadsheetID: "sheet-123", Limiter: w})

	_, err := c.Export(context.Background(), sampleExpense("e1", "1"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the wait error, got %v", err)
	}
	if n := fake.requestCount(); n != 0 {
		t.Fatalf("no request should be sent, got %d", n)
	}
}
