package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

const (
	Monthly   Period = "monthly"
	Quarterly Period = "quarterly"
	Yearly    Period = "yearly"
)

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyBiweekly  Frequency = "biweekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

const (
	PaymentCash          PaymentMethod = "Cash"
	PaymentCreditCard    PaymentMethod = "Credit Card"
	PaymentDebitCard     PaymentMethod = "Debit Card"
	PaymentBankTransfer  PaymentMethod = "Bank Transfer"
	PaymentMobilePayment PaymentMethod = "Mobile Payment"
	PaymentCheck         PaymentMethod = "Check"
	PaymentOther         PaymentMethod = "Other"
)

type (
	// Period is the budgeting window a Budget is meant for.
	Period string

	// Frequency is how often a recurring expense repeats.
	Frequency string

	PaymentMethod string

	// Date is a calendar date at UTC midnight. The zero value means the
	// date is absent.
	Date struct {
		time.Time
	}

	Expense struct {
		ID                 string          `json:"id"`
		Amount             decimal.Decimal `json:"amount"`
		Description        string          `json:"description"`
		Category           string          `json:"category"`
		Date               Date            `json:"date"`
		PaymentMethod      PaymentMethod   `json:"paymentMethod,omitempty"`
		Notes              string          `json:"notes,omitempty"`
		IsRecurring        bool            `json:"isRecurring"`
		RecurringFrequency Frequency       `json:"recurringFrequency,omitempty"`
		CreatedAt          time.Time       `json:"createdAt"`
		UpdatedAt          time.Time       `json:"updatedAt"`
	}

	Budget struct {
		ID        string          `json:"id"`
		Name      string          `json:"name"`
		Amount    decimal.Decimal `json:"amount"`
		Period    Period          `json:"period"`
		Category  string          `json:"category,omitempty"` // empty applies to every category
		StartDate Date            `json:"startDate"`
		EndDate   Date            `json:"endDate"` // zero means ongoing
		IsActive  bool            `json:"isActive"`
		CreatedAt time.Time       `json:"createdAt"`
		UpdatedAt time.Time       `json:"updatedAt"`
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidFrequency = errors.New("invalid recurring frequency")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp. Blank input
// yields the zero Date without error.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// String renders the date as YYYY-MM-DD, or "" when absent.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, data)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Periods lists the budget periods in display order.
func Periods() []Period {
	return []Period{Monthly, Quarterly, Yearly}
}

func (p Period) Valid() bool {
	switch p {
	case Monthly, Quarterly, Yearly:
		return true
	}
	return false
}

// ParseFrequency normalises user input. "annually" is accepted as yearly.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if f == "annually" {
		f = FrequencyYearly
	}
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
	}
	return f, nil
}

// Frequencies lists the supported recurring frequencies.
func Frequencies() []Frequency {
	return []Frequency{
		FrequencyDaily, FrequencyWeekly, FrequencyBiweekly,
		FrequencyMonthly, FrequencyQuarterly, FrequencyYearly,
	}
}

func (f Frequency) Valid() bool {
	for _, v := range Frequencies() {
		if f == v {
			return true
		}
	}
	return false
}

// PaymentMethods lists the known payment methods.
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{
		PaymentCash, PaymentCreditCard, PaymentDebitCard, PaymentBankTransfer,
		PaymentMobilePayment, PaymentCheck, PaymentOther,
	}
}

func (p PaymentMethod) Valid() bool {
	for _, v := range PaymentMethods() {
		if p == v {
			return true
		}
	}
	return false
}

// IsOngoing reports whether the budget has no end date.
func (b Budget) IsOngoing() bool {
	return b.EndDate.IsZero()
}
