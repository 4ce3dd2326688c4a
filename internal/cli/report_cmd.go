package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"budgeteer/internal/core"
	"budgeteer/internal/export"
)

func (a *App) runStats(ctx context.Context, args []string) error {
	fs := a.flagSet("stats")
	filter := bindFilter(fs)
	month := fs.String("month", "", "only this calendar month, YYYY-MM")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := parse(fs, args); err != nil {
		return err
	}
	f, err := filter.build()
	if err != nil {
		return err
	}

	if *month != "" {
		return a.monthOverview(ctx, *month, f, *asJSON)
	}

	stats, err := a.ledger.Stats(ctx, f)
	if err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(a.out, stats)
	}
	return printStats(a.out, stats)
}

func (a *App) monthOverview(ctx context.Context, month string, f core.ExpenseFilter, asJSON bool) error {
	start, err := core.ParseDate(month + "-01")
	if err != nil {
		return &core.ValidationError{Fields: map[string]string{"month": "Month must be in YYYY-MM format"}}
	}

	all, err := a.ledger.ListExpenses(ctx)
	if err != nil {
		return err
	}
	ov := core.MonthlyOverview(core.FilterExpenses(all, f), start.Year(), start.Month())
	if asJSON {
		return writeJSON(a.out, ov)
	}
	return printMonthOverview(a.out, ov)
}

func (a *App) runDashboard(ctx context.Context, args []string) error {
	fs := a.flagSet("dashboard")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := parse(fs, args); err != nil {
		return err
	}

	d, err := a.ledger.Dashboard(ctx)
	if err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(a.out, d)
	}
	if err := printStats(a.out, d.Stats); err != nil {
		return err
	}
	fmt.Fprintln(a.out)
	if err := printBudgetStatuses(a.out, d.BudgetStatus); err != nil {
		return err
	}
	fmt.Fprintln(a.out)
	return printBudgetSummary(a.out, d.BudgetSummary)
}

func (a *App) runCategories(_ context.Context, args []string) error {
	fs := a.flagSet("categories")
	if err := parse(fs, args); err != nil {
		return err
	}
	for _, name := range a.ledger.Validator().Categories().Names() {
		fmt.Fprintln(a.out, name)
	}
	return nil
}

func (a *App) runRecurring(ctx context.Context, args []string) error {
	return a.subcommand(ctx, "recurring", args, map[string]func(context.Context, []string) error{
		"run": a.recurringRun,
	})
}

func (a *App) recurringRun(ctx context.Context, args []string) error {
	fs := a.flagSet("recurring run")
	if err := parse(fs, args); err != nil {
		return err
	}
	n, err := a.recurring.ProcessDueExpenses(ctx, a.now())
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Created %d recurring expense(s)\n", n)
	return nil
}

// runExport writes the matching expenses to -o, or to stdout when -o is
// empty or "-". The format defaults to the output file extension.
func (a *App) runExport(ctx context.Context, args []string) error {
	fs := a.flagSet("export")
	filter := bindFilter(fs)
	format := fs.String("format", "", "csv or xlsx (default from -o extension, else csv)")
	out := fs.String("o", "", "output file (default stdout)")
	if err := parse(fs, args); err != nil {
		return err
	}
	f, err := filter.build()
	if err != nil {
		return err
	}

	name := strings.TrimSpace(*format)
	if name == "" {
		name = strings.TrimPrefix(filepath.Ext(*out), ".")
	}
	if name == "" {
		name = string(export.FormatCSV)
	}
	fmtKind, err := export.ParseFormat(name)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	all, err := a.ledger.ListExpenses(ctx)
	if err != nil {
		return err
	}
	expenses := core.FilterExpenses(all, f)

	if *out == "" || *out == "-" {
		return writeExport(a.out, fmtKind, expenses)
	}
	if err := a.exportFile(*out, fmtKind, expenses); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Exported %d expense(s) to %s\n", len(expenses), *out)
	return nil
}

// exportFile writes to a temp file beside path and renames it over path
// once complete. On failure the temp file is removed and path is untouched.
func (a *App) exportFile(path string, kind export.Format, expenses []core.Expense) error {
	tmp, err := a.createTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	tmpPath := tmp.Name()
	if err := writeExport(tmp, kind, expenses); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close export file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod export file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func writeExport(w io.Writer, kind export.Format, expenses []core.Expense) error {
	var err error
	switch kind {
	case export.FormatXLSX:
		err = export.WriteXLSX(w, expenses, core.ComputeStats(expenses))
	default:
		err = export.WriteCSV(w, expenses)
	}
	if err != nil {
		return fmt.Errorf("export %s: %w", kind, err)
	}
	return nil
}
