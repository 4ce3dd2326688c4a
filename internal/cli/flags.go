package cli

import (
	"flag"
	"strings"

	"github.com/shopspring/decimal"

	"budgeteer/internal/core"
)

// Field keys for input the validator never sees because it cannot be
// parsed into a record.
const (
	fieldPaymentMethod      = "paymentMethod"
	fieldRecurringFrequency = "recurringFrequency"
	fieldFilter             = "filter"
)

// fieldErrors collects per-field parse failures so a command reports all
// of them at once, like the validator does.
type fieldErrors map[string]string

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &core.ValidationError{Fields: f}
}

// merge adds the validator's messages for fields without a parse error.
func (f fieldErrors) merge(r core.ValidationResult) {
	for field, msg := range r.Errors {
		if _, ok := f[field]; !ok {
			f[field] = msg
		}
	}
}

// amount parses s. Blank input is zero, left for the validator to reject.
func (f fieldErrors) amount(field, s string) decimal.Decimal {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero
	}
	d, err := core.ParseAmount(s)
	if err != nil {
		f[field] = "Amount must be a valid number"
	}
	return d
}

func (f fieldErrors) date(field, s string) core.Date {
	d, err := core.ParseDate(s)
	if err != nil {
		f[field] = "Date must be in YYYY-MM-DD format"
	}
	return d
}

func (f fieldErrors) payment(s string) core.PaymentMethod {
	p := core.PaymentMethod(strings.TrimSpace(s))
	if p != "" && !p.Valid() {
		f[fieldPaymentMethod] = "Please select a valid payment method"
	}
	return p
}

// frequency parses -recurring. "none" clears it.
func (f fieldErrors) frequency(s string) (core.Frequency, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return "", false
	}
	freq, err := core.ParseFrequency(s)
	if err != nil {
		f[fieldRecurringFrequency] = "Please select a valid frequency"
		return "", false
	}
	return freq, true
}

// visited reports which flags were set on the command line.
func visited(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return set
}

// filterFlags binds the expense filter flags shared by list, stats and
// export.
type filterFlags struct {
	category string
	from     string
	to       string
	min      string
	max      string
	search   string
	sort     string
}

func bindFilter(fs *flag.FlagSet) *filterFlags {
	f := &filterFlags{}
	fs.StringVar(&f.category, "category", "", "only this category")
	fs.StringVar(&f.from, "from", "", "first date, YYYY-MM-DD")
	fs.StringVar(&f.to, "to", "", "last date, YYYY-MM-DD")
	fs.StringVar(&f.min, "min", "", "minimum amount")
	fs.StringVar(&f.max, "max", "", "maximum amount")
	fs.StringVar(&f.search, "search", "", "text in description or notes")
	fs.StringVar(&f.sort, "sort", "date", "date, amount, category or created")
	return f
}

func (f *filterFlags) build() (core.ExpenseFilter, error) {
	errs := fieldErrors{}
	filter := core.ExpenseFilter{
		Category:   strings.TrimSpace(f.category),
		StartDate:  errs.date("from", f.from),
		EndDate:    errs.date("to", f.to),
		SearchTerm: f.search,
		SortBy:     core.SortKey(strings.ToLower(strings.TrimSpace(f.sort))),
	}
	if strings.TrimSpace(f.min) != "" {
		lo := errs.amount("min", f.min)
		filter.MinAmount = &lo
	}
	if strings.TrimSpace(f.max) != "" {
		hi := errs.amount("max", f.max)
		filter.MaxAmount = &hi
	}
	switch filter.SortBy {
	case core.SortByDate, core.SortByAmount, core.SortByCategory, core.SortByCreated:
	default:
		errs[fieldFilter] = "Sort must be date, amount, category or created"
	}
	return filter, errs.err()
}
