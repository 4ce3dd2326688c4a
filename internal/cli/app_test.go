package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"budgeteer/internal/core"
	"budgeteer/internal/records"
	"budgeteer/internal/records/memory"
	"budgeteer/internal/services"
)

var appNow = time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC)

type testApp struct {
	app   *App
	store *memory.Store
	out   *bytes.Buffer
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	store := memory.New()
	clock := func() time.Time { return appNow }
	ledger := services.NewLedger(store, core.NewValidator(nil), services.WithClock(clock))
	out := &bytes.Buffer{}
	app := NewApp(ledger, services.NewRecurringProcessor(ledger, store), out, &bytes.Buffer{}, WithAppClock(clock))
	return &testApp{app: app, store: store, out: out}
}

func (ta *testApp) run(t *testing.T, args ...string) error {
	t.Helper()
	ta.out.Reset()
	return ta.app.Run(context.Background(), args)
}

func (ta *testApp) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	if err := ta.run(t, args...); err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return ta.out.String()
}

func (ta *testApp) onlyExpense(t *testing.T) core.Expense {
	t.Helper()
	list, err := ta.store.ListExpenses(context.Background())
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one stored expense, got %d (err=%v)", len(list), err)
	}
	return list[0]
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"help", flag.ErrHelp, ExitOK},
		{"validation", &core.ValidationError{Fields: map[string]string{"amount": "bad"}}, ExitValidation},
		{"usage", fmt.Errorf("%w: missing id", ErrUsage), ExitValidation},
		{"not found", fmt.Errorf("get: %w", records.ErrNotFound), ExitFailure},
		{"other", errors.New("disk full"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestRun_UnknownAndMissingCommand(t *testing.T) {
	ta := newTestApp(t)
	if err := ta.run(t); !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if err := ta.run(t, "launch"); !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if err := ta.run(t, "expense", "explode"); !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if err := ta.run(t, "help"); err != nil {
		t.Fatalf("help should succeed, got %v", err)
	}
}

func TestExpenseAdd(t *testing.T) {
	ta := newTestApp(t)
	out := ta.mustRun(t, "expense", "add",
		"-amount", "$1,234.50", "-desc", "Laptop", "-category", "Shopping",
		"-payment", "Credit Card", "-notes", "work")

	e := ta.onlyExpense(t)
	if !e.Amount.Equal(amount("1234.50")) || e.Description != "Laptop" || e.PaymentMethod != core.PaymentCreditCard {
		t.Fatalf("unexpected expense %+v", e)
	}
	if !e.Date.Equal(core.NewDate(2024, 3, 15).Time) {
		t.Errorf("expected today's date, got %s", e.Date)
	}
	if e.IsRecurring {
		t.Error("expense should not be recurring")
	}
	if !strings.Contains(out, "Added expense "+e.ID) || !strings.Contains(out, "$1,234.50") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestExpenseAdd_ValidationErrors(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantFields []string
	}{
		{"missing everything", nil, []string{"amount", "description", "category"}},
		{"unparseable amount", []string{"-amount", "ten", "-category", "Food"}, []string{"amount", "description"}},
		{"negative amount", []string{"-amount", "-5", "-desc", "x", "-category", "Food"}, []string{"amount"}},
		{"bad date", []string{"-amount", "5", "-desc", "x", "-category", "Food", "-date", "15/03/2024"}, []string{"date"}},
		{"bad payment", []string{"-amount", "5", "-desc", "x", "-category", "Food", "-payment", "Barter"}, []string{"paymentMethod"}},
		{"bad frequency", []string{"-amount", "5", "-desc", "x", "-category", "Food", "-recurring", "hourly"}, []string{"recurringFrequency"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newTestApp(t)
			err := ta.run(t, append([]string{"expense", "add"}, tt.args...)...)
			if ExitCode(err) != ExitValidation {
				t.Fatalf("expected validation exit code, got %v", err)
			}
			var verr *core.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *core.ValidationError, got %T", err)
			}
			for _, f := range tt.wantFields {
				if _, ok := verr.Fields[f]; !ok {
					t.Errorf("expected error on %s, got %v", f, verr.Fields)
				}
			}
			if list, _ := ta.store.ListExpenses(context.Background()); len(list) != 0 {
				t.Errorf("nothing should be saved, got %d", len(list))
			}
		})
	}
}

func TestExpenseUpdate(t *testing.T) {
	ta := newTestApp(t)
	ta.mustRun(t, "expense", "add", "-amount", "10", "-desc", "Lunch", "-category", "Food and Dining", "-notes", "keep")
	id := ta.onlyExpense(t).ID

	ta.mustRun(t, "expense", "update", "-id", id, "-amount", "12.75", "-recurring", "weekly")
	e := ta.onlyExpense(t)
	if !e.Amount.Equal(amount("12.75")) || e.Notes != "keep" || e.Description != "Lunch" {
		t.Fatalf("only the given fields should change, got %+v", e)
	}
	if !e.IsRecurring || e.RecurringFrequency != core.FrequencyWeekly {
		t.Fatalf("expected weekly recurring, got %+v", e)
	}

	ta.mustRun(t, "expense", "update", "-recurring", "none", id)
	if e := ta.onlyExpense(t); e.IsRecurring || e.RecurringFrequency != "" {
		t.Fatalf("expected recurrence cleared, got %+v", e)
	}

	if err := ta.run(t, "expense", "update", "-id", id); !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error for empty patch, got %v", err)
	}
	if err := ta.run(t, "expense", "update", "-amount", "5"); !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error for missing id, got %v", err)
	}
	if err := ta.run(t, "expense", "update", "-id", id, "-desc", " "); ExitCode(err) != ExitValidation {
		t.Fatalf("expected validation error for blank description, got %v", err)
	}
	err := ta.run(t, "expense", "update", "-id", "missing", "-amount", "5")
	if !errors.Is(err, records.ErrNotFound) || ExitCode(err) != ExitFailure {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestExpenseDeleteAndList(t *testing.T) {
	ta := newTestApp(t)
	ta.mustRun(t, "expense", "add", "-amount", "10", "-desc", "Lunch", "-category", "Food and Dining", "-date", "2024-03-01")
	ta.mustRun(t, "expense", "add", "-amount", "40", "-desc", "Fuel", "-category", "Transportation", "-date", "2024-03-02")

	out := ta.mustRun(t, "expense", "list", "-category", "Transportation")
	if !strings.Contains(out, "Fuel") || strings.Contains(out, "Lunch") {
		t.Fatalf("unexpected filtered list:\n%s", out)
	}

	out = ta.mustRun(t, "expense", "list", "-json", "-sort", "amount")
	var listed []core.Expense
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("list -json is not JSON: %v", err)
	}
	if len(listed) != 2 || listed[0].Description != "Fuel" {
		t.Fatalf("expected Fuel first by amount, got %+v", listed)
	}

	if err := ta.run(t, "expense", "list", "-min", "lots"); ExitCode(err) != ExitValidation {
		t.Fatalf("expected validation error for bad -min, got %v", err)
	}
	if err := ta.run(t, "expense", "list", "-sort", "color"); ExitCode(err) != ExitValidation {
		t.Fatalf("expected validation error for bad -sort, got %v", err)
	}

	ta.mustRun(t, "expense", "delete", listed[0].ID)
	if err := ta.run(t, "expense", "delete", listed[0].ID); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if out := ta.mustRun(t, "expense", "list", "-category", "Transportation"); !strings.Contains(out, "No expenses found.") {
		t.Fatalf("expected empty list, got %q", out)
	}
}

func TestBudgetCommands(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()
	ta.mustRun(t, "expense", "add", "-amount", "120", "-desc", "Groceries", "-category", "Food and Dining", "-date", "2024-03-10")
	ta.mustRun(t, "budget", "add", "-name", "Food", "-amount", "100", "-category", "Food and Dining", "-start", "2024-03-01")

	budgets, _ := ta.store.ListBudgets(ctx)
	if len(budgets) != 1 || !budgets[0].IsActive || budgets[0].Period != core.Monthly {
		t.Fatalf("unexpected budgets %+v", budgets)
	}
	id := budgets[0].ID

	out := ta.mustRun(t, "budget", "list")
	if !strings.Contains(out, "OVER") || !strings.Contains(out, "-$20.00") || !strings.Contains(out, "100.0%") {
		t.Fatalf("expected an over-budget row, got:\n%s", out)
	}

	ta.mustRun(t, "budget", "update", "-id", id, "-amount", "200", "-end", "2024-12-31")
	b, _ := ta.store.GetBudget(ctx, id)
	if !b.Amount.Equal(amount("200")) || b.EndDate.String() != "2024-12-31" {
		t.Fatalf("update not applied: %+v", b)
	}
	ta.mustRun(t, "budget", "update", "-id", id, "-end", "")
	if b, _ := ta.store.GetBudget(ctx, id); !b.EndDate.IsZero() {
		t.Fatalf("empty -end should clear the end date, got %s", b.EndDate)
	}

	if out := ta.mustRun(t, "budget", "deactivate", id); !strings.Contains(out, "now inactive") {
		t.Fatalf("unexpected output %q", out)
	}
	if out := ta.mustRun(t, "budget", "list", "-active"); !strings.Contains(out, "No budgets found.") {
		t.Fatalf("inactive budget should be hidden, got:\n%s", out)
	}
	ta.mustRun(t, "budget", "activate", "-id", id)

	if err := ta.run(t, "budget", "add", "-name", "Pets", "-amount", "50", "-category", "Pets"); ExitCode(err) != ExitValidation {
		t.Fatalf("expected unknown budget category to be rejected, got %v", err)
	}
	if err := ta.run(t, "budget", "add", "-name", "Trip", "-amount", "50", "-period", "weekly"); ExitCode(err) != ExitValidation {
		t.Fatalf("expected invalid period to be rejected, got %v", err)
	}
	if err := ta.run(t, "budget", "add", "-name", "Trip", "-amount", "50", "-start", "2024-03-10", "-end", "2024-03-01"); ExitCode(err) != ExitValidation {
		t.Fatalf("expected end before start to be rejected, got %v", err)
	}

	ta.mustRun(t, "budget", "delete", id)
	if _, err := ta.store.GetBudget(ctx, id); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected budget deleted, got %v", err)
	}
}

func TestStatsAndDashboard(t *testing.T) {
	ta := newTestApp(t)
	ta.mustRun(t, "expense", "add", "-amount", "10", "-desc", "Lunch", "-category", "Food and Dining", "-date", "2024-02-20")
	ta.mustRun(t, "expense", "add", "-amount", "30", "-desc", "Dinner", "-category", "Food and Dining", "-date", "2024-03-02")
	ta.mustRun(t, "expense", "add", "-amount", "50", "-desc", "Train", "-category", "Transportation", "-date", "2024-03-03")
	ta.mustRun(t, "budget", "add", "-name", "Everything", "-amount", "1000", "-start", "2024-01-01")

	out := ta.mustRun(t, "stats", "-json")
	var stats core.Stats
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("stats -json: %v", err)
	}
	if stats.Count != 3 || !stats.TotalExpenses.Equal(amount("90")) || !stats.AverageExpense.Equal(amount("30")) {
		t.Fatalf("unexpected stats %+v", stats)
	}

	out = ta.mustRun(t, "stats", "-from", "2024-03-01")
	if !strings.Contains(out, "Total:") || !strings.Contains(out, "$80.00") {
		t.Fatalf("unexpected filtered stats:\n%s", out)
	}

	out = ta.mustRun(t, "stats", "-month", "2024-03")
	if !strings.Contains(out, "2024-03") || !strings.Contains(out, "$80.00") {
		t.Fatalf("unexpected month overview:\n%s", out)
	}
	if err := ta.run(t, "stats", "-month", "March"); ExitCode(err) != ExitValidation {
		t.Fatalf("expected validation error for bad month, got %v", err)
	}

	out = ta.mustRun(t, "dashboard")
	for _, want := range []string{"Expenses:", "Everything", "Budgeted:", "$1,000.00", "Over budget:"} {
		if !strings.Contains(out, want) {
			t.Errorf("dashboard missing %q:\n%s", want, out)
		}
	}
}

func TestCategories(t *testing.T) {
	ta := newTestApp(t)
	out := ta.mustRun(t, "categories")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != core.DefaultCategories().Len() || lines[0] != core.DefaultCategories().Names()[0] {
		t.Fatalf("unexpected categories:\n%s", out)
	}
}

func TestRecurringRun(t *testing.T) {
	ta := newTestApp(t)
	ta.mustRun(t, "expense", "add", "-amount", "50", "-desc", "Gym", "-category", "Health and Wellness",
		"-date", "2024-02-15", "-recurring", "monthly")

	if out := ta.mustRun(t, "recurring", "run"); !strings.Contains(out, "Created 1 recurring") {
		t.Fatalf("unexpected output %q", out)
	}
	if out := ta.mustRun(t, "recurring", "run"); !strings.Contains(out, "Created 0 recurring") {
		t.Fatalf("second run should create nothing, got %q", out)
	}
	list, _ := ta.store.ListExpenses(context.Background())
	if len(list) != 2 {
		t.Fatalf("expected template plus one occurrence, got %d", len(list))
	}
}

func TestExport(t *testing.T) {
	ta := newTestApp(t)
	ta.mustRun(t, "expense", "add", "-amount", "10", "-desc", "Lunch", "-category", "Food and Dining", "-date", "2024-03-01")
	ta.mustRun(t, "expense", "add", "-amount", "40", "-desc", "Fuel", "-category", "Transportation", "-date", "2024-03-02")
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "out.csv")
	if out := ta.mustRun(t, "export", "-o", csvPath); !strings.Contains(out, "Exported 2 expense(s)") {
		t.Fatalf("unexpected output %q", out)
	}
	data, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatal(err)
	}
	if rows := strings.Split(strings.TrimSpace(string(data)), "\n"); len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d:\n%s", len(rows), data)
	}

	xlsxPath := filepath.Join(dir, "report.xlsx")
	ta.mustRun(t, "export", "-o", xlsxPath, "-category", "Transportation")
	data, err = os.ReadFile(xlsxPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Fatal("expected a zip-based xlsx file")
	}

	out := ta.mustRun(t, "export", "-format", "csv")
	if !strings.Contains(out, "Lunch") || !strings.Contains(out, "Fuel") {
		t.Fatalf("expected csv on stdout, got %q", out)
	}

	if err := ta.run(t, "export", "-format", "pdf"); !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error for unknown format, got %v", err)
	}
}

func TestExport_FailedWriteLeavesNoFile(t *testing.T) {
	tests := []struct {
		name     string
		existing string
	}{
		{name: "new file"},
		{name: "existing file kept", existing: "previous export\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newTestApp(t)
			ta.mustRun(t, "expense", "add", "-amount", "10", "-desc", "Lunch", "-category", "Food and Dining", "-date", "2024-03-01")
			dir := t.TempDir()
			path := filepath.Join(dir, "out.csv")
			if tt.existing != "" {
				if err := os.WriteFile(path, []byte(tt.existing), 0o644); err != nil {
					t.Fatal(err)
				}
			}
			// A closed file makes every write fail.
			ta.app.createTemp = func(dir, pattern string) (*os.File, error) {
				f, err := os.CreateTemp(dir, pattern)
				if err != nil {
					return nil, err
				}
				f.Close()
				return f, nil
			}

			if err := ta.run(t, "export", "-o", path); err == nil {
				t.Fatal("expected export error")
			}

			entries, err := os.ReadDir(dir)
			if err != nil {
				t.Fatal(err)
			}
			if tt.existing == "" {
				if len(entries) != 0 {
					t.Fatalf("expected empty directory, found %v", entries)
				}
				return
			}
			if len(entries) != 1 {
				t.Fatalf("expected only the previous export, found %v", entries)
			}
			data, err := os.ReadFile(path)
			if err != nil || string(data) != tt.existing {
				t.Fatalf("previous export changed: %q (err=%v)", data, err)
			}
		})
	}
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	PrintError(&buf, &core.ValidationError{Fields: map[string]string{
		"description": "Description is required",
		"amount":      "Amount must be greater than 0",
	}})
	want := "invalid input:\n  amount: Amount must be greater than 0\n  description: Description is required\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}

	buf.Reset()
	PrintError(&buf, errors.New("disk full"))
	if buf.String() != "error: disk full\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
