package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	MaxDescriptionLength = 100
	MaxBudgetNameLength  = 50
)

// Field names used as keys in ValidationResult.Errors.
const (
	FieldAmount      = "amount"
	FieldDescription = "description"
	FieldCategory    = "category"
	FieldDate        = "date"
	FieldName        = "name"
	FieldPeriod      = "period"
	FieldStartDate   = "startDate"
	FieldEndDate     = "endDate"
)

var ErrValidation = errors.New("validation failed")

// ValidationResult is the verdict on a single record. IsValid is true
// exactly when Errors is empty.
type ValidationResult struct {
	IsValid bool              `json:"isValid"`
	Errors  map[string]string `json:"errors"`
}

// Err returns nil for a valid result and a *ValidationError otherwise.
func (r ValidationResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return &ValidationError{Fields: r.Errors}
}

// ValidationError carries field-level messages through the write path.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Validator checks Expense and Budget records before they are persisted.
// The zero value validates budget categories against DefaultCategories.
type Validator struct {
	categories *CategoryRegistry
}

func NewValidator(categories *CategoryRegistry) Validator {
	return Validator{categories: categories}
}

// Categories returns the registry budget categories are checked against.
func (v Validator) Categories() *CategoryRegistry {
	if v.categories == nil {
		return DefaultCategories()
	}
	return v.categories
}

// ValidateExpense checks amount, description, category and date. The
// category only has to be present; unknown names are tolerated.
func (v Validator) ValidateExpense(e Expense) ValidationResult {
	errs := make(map[string]string)

	if !e.Amount.IsPositive() {
		errs[FieldAmount] = "Amount must be greater than 0"
	}

	desc := strings.TrimSpace(e.Description)
	switch {
	case desc == "":
		errs[FieldDescription] = "Description is required"
	case utf8.RuneCountInString(desc) > MaxDescriptionLength:
		errs[FieldDescription] = fmt.Sprintf("Description must be less than %d characters", MaxDescriptionLength)
	}

	if strings.TrimSpace(e.Category) == "" {
		errs[FieldCategory] = "Category is required"
	}

	if e.Date.IsZero() {
		errs[FieldDate] = "Date is required"
	}

	return ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}

// ValidateBudget checks a budget. Unlike expenses, a non-empty category
// must be registered.
func (v Validator) ValidateBudget(b Budget) ValidationResult {
	errs := make(map[string]string)

	name := strings.TrimSpace(b.Name)
	switch {
	case name == "":
		errs[FieldName] = "Name is required"
	case utf8.RuneCountInString(name) > MaxBudgetNameLength:
		errs[FieldName] = fmt.Sprintf("Name must be less than %d characters", MaxBudgetNameLength)
	}

	if !b.Amount.IsPositive() {
		errs[FieldAmount] = "Amount must be greater than 0"
	}

	if !b.Period.Valid() {
		errs[FieldPeriod] = "Please select a valid period"
	}

	if cat := strings.TrimSpace(b.Category); cat != "" && !v.Categories().Contains(cat) {
		errs[FieldCategory] = "Please select a valid category"
	}

	if b.StartDate.IsZero() {
		errs[FieldStartDate] = "Start date is required"
	} else if !b.EndDate.IsZero() && !b.EndDate.After(b.StartDate.Time) {
		errs[FieldEndDate] = "End date must be after start date"
	}

	return ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}
