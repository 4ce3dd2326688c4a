// Package export writes expense lists to CSV and Excel files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"budgeteer/internal/core"
)

// Format is an output file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts a format name or a file name ending in one.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.LastIndex(s, "."); i >= 0 {
		s = s[i+1:]
	}
	switch Format(s) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

var columns = []string{
	"ID", "Date", "Description", "Category", "Amount",
	"Payment Method", "Notes", "Recurring", "Frequency", "Created At",
}

func record(e core.Expense) []string {
	created := ""
	if !e.CreatedAt.IsZero() {
		created = e.CreatedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		e.ID,
		e.Date.String(),
		e.Description,
		e.Category,
		e.Amount.StringFixed(2),
		string(e.PaymentMethod),
		e.Notes,
		strconv.FormatBool(e.IsRecurring),
		string(e.RecurringFrequency),
		created,
	}
}

// WriteCSV writes a header row followed by one row per expense.
func WriteCSV(w io.Writer, expenses []core.Expense) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range expenses {
		if err := cw.Write(record(e)); err != nil {
			return fmt.Errorf("write csv row %s: %w", e.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
