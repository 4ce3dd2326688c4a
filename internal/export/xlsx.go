package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"budgeteer/internal/core"
)

const (
	expensesSheet = "Expenses"
	summarySheet  = "Summary"
)

// WriteXLSX writes a workbook with an Expenses sheet listing every expense
// and a Summary sheet with the totals in stats.
func WriteXLSX(w io.Writer, expenses []core.Expense, stats core.Stats) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", expensesSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeExpenses(f, expenses); err != nil {
		return err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	if err := writeSummary(f, stats); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeExpenses(f *excelize.File, expenses []core.Expense) error {
	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(expensesSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	money, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	for i, e := range expenses {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		rec := record(e)
		row := make([]any, len(rec))
		for j, v := range rec {
			row[j] = v
		}
		// Amount as a number so spreadsheet formulas work on it.
		row[4] = e.Amount.InexactFloat64()
		if err := f.SetSheetRow(expensesSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if len(expenses) > 0 {
		last := fmt.Sprintf("E%d", len(expenses)+1)
		if err := f.SetCellStyle(expensesSheet, "E2", last, money); err != nil {
			return fmt.Errorf("style amounts: %w", err)
		}
	}
	return f.SetColWidth(expensesSheet, "C", "C", 40)
}

func writeSummary(f *excelize.File, stats core.Stats) error {
	rows := [][]any{
		{"Count", stats.Count},
		{"Total", stats.TotalExpenses.InexactFloat64()},
		{"Average", stats.AverageExpense.InexactFloat64()},
		{"Highest", stats.HighestExpense.InexactFloat64()},
		{"Lowest", stats.LowestExpense.InexactFloat64()},
		{},
		{"Category", "Amount"},
	}
	for _, c := range stats.SortedCategories() {
		rows = append(rows, []any{c.Name, c.Amount.InexactFloat64()})
	}

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("write summary row %d: %w", i+1, err)
		}
	}
	return f.SetColWidth(summarySheet, "A", "A", 24)
}
