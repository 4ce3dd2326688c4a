package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"budgeteer/internal/core"
)

func (a *App) runBudget(ctx context.Context, args []string) error {
	return a.subcommand(ctx, "budget", args, map[string]func(context.Context, []string) error{
		"add":        a.budgetAdd,
		"update":     a.budgetUpdate,
		"delete":     a.budgetDelete,
		"activate":   func(ctx context.Context, args []string) error { return a.budgetSetActive(ctx, args, true) },
		"deactivate": func(ctx context.Context, args []string) error { return a.budgetSetActive(ctx, args, false) },
		"list":       a.budgetList,
	})
}

type budgetFlags struct {
	name     string
	amount   string
	period   string
	category string
	start    string
	end      string
}

func bindBudget(fs *flag.FlagSet) *budgetFlags {
	f := &budgetFlags{}
	fs.StringVar(&f.name, "name", "", "budget name")
	fs.StringVar(&f.amount, "amount", "", "budget limit, e.g. 300")
	fs.StringVar(&f.period, "period", string(core.Monthly), "monthly, quarterly or yearly")
	fs.StringVar(&f.category, "category", "", "category to track (default all)")
	fs.StringVar(&f.start, "start", "", "start date, YYYY-MM-DD (default today)")
	fs.StringVar(&f.end, "end", "", "end date, YYYY-MM-DD (default ongoing)")
	return f
}

func (a *App) budgetAdd(ctx context.Context, args []string) error {
	fs := a.flagSet("budget add")
	f := bindBudget(fs)
	inactive := fs.Bool("inactive", false, "create the budget inactive")
	if err := parse(fs, args); err != nil {
		return err
	}

	errs := fieldErrors{}
	b := core.Budget{
		Name:      strings.TrimSpace(f.name),
		Amount:    errs.amount(core.FieldAmount, f.amount),
		Period:    core.Period(strings.ToLower(strings.TrimSpace(f.period))),
		Category:  strings.TrimSpace(f.category),
		StartDate: core.DateOf(a.now()),
		EndDate:   errs.date(core.FieldEndDate, f.end),
		IsActive:  !*inactive,
	}
	if strings.TrimSpace(f.start) != "" {
		b.StartDate = errs.date(core.FieldStartDate, f.start)
	}
	if len(errs) > 0 {
		errs.merge(a.ledger.Validator().ValidateBudget(b))
		return errs.err()
	}

	saved, err := a.ledger.AddBudget(ctx, b)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added budget %s: %s %s %s\n", saved.ID, saved.Name, core.FormatCurrency(saved.Amount), saved.Period)
	return nil
}

func (a *App) budgetUpdate(ctx context.Context, args []string) error {
	fs := a.flagSet("budget update")
	id := fs.String("id", "", "budget id")
	f := bindBudget(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	budgetID, err := idArg(fs, *id)
	if err != nil {
		return err
	}

	set := visited(fs)
	errs := fieldErrors{}
	var patch core.BudgetPatch
	if set["name"] {
		v := strings.TrimSpace(f.name)
		patch.Name = &v
	}
	if set["amount"] {
		v := errs.amount(core.FieldAmount, f.amount)
		patch.Amount = &v
	}
	if set["period"] {
		v := core.Period(strings.ToLower(strings.TrimSpace(f.period)))
		patch.Period = &v
	}
	if set["category"] {
		v := strings.TrimSpace(f.category)
		patch.Category = &v
	}
	if set["start"] {
		v := errs.date(core.FieldStartDate, f.start)
		patch.StartDate = &v
	}
	if set["end"] {
		// An empty -end clears the end date.
		v := errs.date(core.FieldEndDate, f.end)
		patch.EndDate = &v
	}
	if err := errs.err(); err != nil {
		return err
	}
	if patch.IsEmpty() {
		return fmt.Errorf("%w: budget update needs at least one field to change", ErrUsage)
	}

	updated, err := a.ledger.UpdateBudget(ctx, budgetID, patch)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated budget %s: %s %s %s\n", updated.ID, updated.Name, core.FormatCurrency(updated.Amount), updated.Period)
	return nil
}

func (a *App) budgetDelete(ctx context.Context, args []string) error {
	fs := a.flagSet("budget delete")
	id := fs.String("id", "", "budget id")
	if err := parse(fs, args); err != nil {
		return err
	}
	budgetID, err := idArg(fs, *id)
	if err != nil {
		return err
	}
	if err := a.ledger.DeleteBudget(ctx, budgetID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted budget %s\n", budgetID)
	return nil
}

func (a *App) budgetSetActive(ctx context.Context, args []string, active bool) error {
	name := "budget deactivate"
	if active {
		name = "budget activate"
	}
	fs := a.flagSet(name)
	id := fs.String("id", "", "budget id")
	if err := parse(fs, args); err != nil {
		return err
	}
	budgetID, err := idArg(fs, *id)
	if err != nil {
		return err
	}

	b, err := a.ledger.SetBudgetActive(ctx, budgetID, active)
	if err != nil {
		return err
	}
	state := "inactive"
	if b.IsActive {
		state = "active"
	}
	fmt.Fprintf(a.out, "Budget %s (%s) is now %s\n", b.ID, b.Name, state)
	return nil
}

// budgetList prints every budget with its spending against it. Inactive
// budgets are evaluated too, so their history stays visible.
func (a *App) budgetList(ctx context.Context, args []string) error {
	fs := a.flagSet("budget list")
	activeOnly := fs.Bool("active", false, "only active budgets")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := parse(fs, args); err != nil {
		return err
	}

	budgets, err := a.ledger.ListBudgets(ctx)
	if err != nil {
		return err
	}
	if *activeOnly {
		budgets = core.ActiveBudgets(budgets)
	}
	expenses, err := a.ledger.ListExpenses(ctx)
	if err != nil {
		return err
	}
	statuses := core.EvaluateBudgets(budgets, expenses, a.now())

	if *asJSON {
		return writeJSON(a.out, statuses)
	}
	return printBudgetStatuses(a.out, statuses)
}
