package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"budgeteer/internal/core"
)

func (a *App) runExpense(ctx context.Context, args []string) error {
	return a.subcommand(ctx, "expense", args, map[string]func(context.Context, []string) error{
		"add":    a.expenseAdd,
		"update": a.expenseUpdate,
		"delete": a.expenseDelete,
		"list":   a.expenseList,
	})
}

type expenseFlags struct {
	amount    string
	desc      string
	category  string
	date      string
	payment   string
	notes     string
	recurring string
}

func bindExpense(fs *flag.FlagSet) *expenseFlags {
	f := &expenseFlags{}
	fs.StringVar(&f.amount, "amount", "", "amount, e.g. 12.50")
	fs.StringVar(&f.desc, "desc", "", "description")
	fs.StringVar(&f.category, "category", "", "category")
	fs.StringVar(&f.date, "date", "", "date, YYYY-MM-DD (default today)")
	fs.StringVar(&f.payment, "payment", "", "payment method")
	fs.StringVar(&f.notes, "notes", "", "notes")
	fs.StringVar(&f.recurring, "recurring", "", "frequency: daily, weekly, biweekly, monthly, quarterly, yearly or none")
	return f
}

func (a *App) expenseAdd(ctx context.Context, args []string) error {
	fs := a.flagSet("expense add")
	f := bindExpense(fs)
	if err := parse(fs, args); err != nil {
		return err
	}

	errs := fieldErrors{}
	e := core.Expense{
		Amount:        errs.amount(core.FieldAmount, f.amount),
		Description:   strings.TrimSpace(f.desc),
		Category:      strings.TrimSpace(f.category),
		Date:          core.DateOf(a.now()),
		PaymentMethod: errs.payment(f.payment),
		Notes:         strings.TrimSpace(f.notes),
	}
	if strings.TrimSpace(f.date) != "" {
		e.Date = errs.date(core.FieldDate, f.date)
	}
	e.RecurringFrequency, e.IsRecurring = errs.frequency(f.recurring)
	if len(errs) > 0 {
		errs.merge(a.ledger.Validator().ValidateExpense(e))
		return errs.err()
	}

	saved, err := a.ledger.AddExpense(ctx, e)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added expense %s: %s %s\n", saved.ID, saved.Description, core.FormatCurrency(saved.Amount))
	return nil
}

func (a *App) expenseUpdate(ctx context.Context, args []string) error {
	fs := a.flagSet("expense update")
	id := fs.String("id", "", "expense id")
	f := bindExpense(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	expenseID, err := idArg(fs, *id)
	if err != nil {
		return err
	}

	set := visited(fs)
	errs := fieldErrors{}
	var patch core.ExpensePatch
	if set["amount"] {
		v := errs.amount(core.FieldAmount, f.amount)
		patch.Amount = &v
	}
	if set["desc"] {
		v := strings.TrimSpace(f.desc)
		patch.Description = &v
	}
	if set["category"] {
		v := strings.TrimSpace(f.category)
		patch.Category = &v
	}
	if set["date"] {
		v := errs.date(core.FieldDate, f.date)
		patch.Date = &v
	}
	if set["payment"] {
		v := errs.payment(f.payment)
		patch.PaymentMethod = &v
	}
	if set["notes"] {
		v := strings.TrimSpace(f.notes)
		patch.Notes = &v
	}
	if set["recurring"] {
		freq, on := errs.frequency(f.recurring)
		patch.RecurringFrequency = &freq
		patch.IsRecurring = &on
	}
	if err := errs.err(); err != nil {
		return err
	}
	if patch.IsEmpty() {
		return fmt.Errorf("%w: expense update needs at least one field to change", ErrUsage)
	}

	updated, err := a.ledger.UpdateExpense(ctx, expenseID, patch)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated expense %s: %s %s\n", updated.ID, updated.Description, core.FormatCurrency(updated.Amount))
	return nil
}

func (a *App) expenseDelete(ctx context.Context, args []string) error {
	fs := a.flagSet("expense delete")
	id := fs.String("id", "", "expense id")
	if err := parse(fs, args); err != nil {
		return err
	}
	expenseID, err := idArg(fs, *id)
	if err != nil {
		return err
	}
	if err := a.ledger.DeleteExpense(ctx, expenseID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted expense %s\n", expenseID)
	return nil
}

func (a *App) expenseList(ctx context.Context, args []string) error {
	fs := a.flagSet("expense list")
	filter := bindFilter(fs)
	asJSON := fs.Bool("json", false, "print JSON")
	limit := fs.Int("limit", 0, "print at most this many expenses")
	if err := parse(fs, args); err != nil {
		return err
	}
	f, err := filter.build()
	if err != nil {
		return err
	}

	all, err := a.ledger.ListExpenses(ctx)
	if err != nil {
		return err
	}
	expenses := core.FilterExpenses(all, f)
	if *limit > 0 && len(expenses) > *limit {
		expenses = expenses[:*limit]
	}

	if *asJSON {
		return writeJSON(a.out, expenses)
	}
	return printExpenses(a.out, expenses)
}
