package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"budgeteer/internal/core"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printExpenses(w io.Writer, expenses []core.Expense) error {
	if len(expenses) == 0 {
		_, err := fmt.Fprintln(w, "No expenses found.")
		return err
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tDATE\tDESCRIPTION\tCATEGORY\tAMOUNT\tRECURRING")
	for _, e := range expenses {
		recurring := ""
		if e.IsRecurring {
			recurring = string(e.RecurringFrequency)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Date, e.Description, e.Category, core.FormatCurrency(e.Amount), recurring)
	}
	return tw.Flush()
}

func printStats(w io.Writer, s core.Stats) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "Expenses:\t%d\n", s.Count)
	fmt.Fprintf(tw, "Total:\t%s\n", core.FormatCurrency(s.TotalExpenses))
	fmt.Fprintf(tw, "Average:\t%s\n", core.FormatCurrency(s.AverageExpense))
	fmt.Fprintf(tw, "Highest:\t%s\n", core.FormatCurrency(s.HighestExpense))
	fmt.Fprintf(tw, "Lowest:\t%s\n", core.FormatCurrency(s.LowestExpense))
	if err := tw.Flush(); err != nil {
		return err
	}

	if cats := s.SortedCategories(); len(cats) > 0 {
		fmt.Fprintln(w)
		tw = newTable(w)
		fmt.Fprintln(tw, "CATEGORY\tTOTAL")
		for _, c := range cats {
			fmt.Fprintf(tw, "%s\t%s\n", c.Name, core.FormatCurrency(c.Amount))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(s.RecentExpenses) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Recent:")
		return printExpenses(w, s.RecentExpenses)
	}
	return nil
}

func printMonthOverview(w io.Writer, ov core.MonthOverview) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "Month:\t%04d-%02d\n", ov.Year, ov.Month)
	fmt.Fprintf(tw, "Expenses:\t%d\n", ov.Count)
	fmt.Fprintf(tw, "Total:\t%s\n", core.FormatCurrency(ov.Total))
	for _, c := range ov.ByCategory {
		fmt.Fprintf(tw, "  %s\t%s\n", c.Name, core.FormatCurrency(c.Amount))
	}
	return tw.Flush()
}

func printBudgetStatuses(w io.Writer, statuses []core.BudgetStatus) error {
	if len(statuses) == 0 {
		_, err := fmt.Fprintln(w, "No budgets found.")
		return err
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tPERIOD\tCATEGORY\tLIMIT\tSPENT\tREMAINING\tPROGRESS\tSTATE")
	for _, st := range statuses {
		b := st.Budget
		category := b.Category
		if category == "" {
			category = "(all)"
		}
		state := "active"
		switch {
		case !b.IsActive:
			state = "inactive"
		case st.IsOverBudget:
			state = "OVER"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%.1f%%\t%s\n",
			b.ID, b.Name, b.Period, category,
			core.FormatCurrency(b.Amount),
			core.FormatCurrency(st.Spent),
			core.FormatCurrency(st.RemainingAmount),
			st.ProgressPercentage, state)
	}
	return tw.Flush()
}

func printBudgetSummary(w io.Writer, s core.BudgetSummary) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "Budgeted:\t%s\n", core.FormatCurrency(s.TotalBudgeted))
	fmt.Fprintf(tw, "Spent:\t%s\n", core.FormatCurrency(s.TotalSpent))
	fmt.Fprintf(tw, "Remaining:\t%s\n", core.FormatCurrency(s.TotalRemaining))
	fmt.Fprintf(tw, "Over budget:\t%d\n", s.OverBudgetCount)
	return tw.Flush()
}

// PrintError reports err on w. Validation failures list one field per
// line.
func PrintError(w io.Writer, err error) {
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		fmt.Fprintf(w, "error: %v\n", err)
		return
	}
	fields := make([]string, 0, len(verr.Fields))
	for f := range verr.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	fmt.Fprintln(w, "invalid input:")
	for _, f := range fields {
		fmt.Fprintf(w, "  %s: %s\n", f, verr.Fields[f])
	}
}
