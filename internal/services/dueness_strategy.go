// Package services holds the business logic that sits between the core
// engine and storage: the Ledger facade, recurring expense processing and
// budget monitoring.
package services

import (
	"fmt"
	"time"

	"budgeteer/internal/core"
)

// DuenessChecker decides whether a recurring template is due again.
type DuenessChecker interface {
	// IsDue reports whether a new occurrence should be created at now,
	// given the last occurrence and the template's anchor date.
	IsDue(lastExecution, now time.Time, anchor core.Date) bool
}

// DailyChecker is due once per calendar day.
type DailyChecker struct{}

func (DailyChecker) IsDue(lastExecution, now time.Time, _ core.Date) bool {
	if lastExecution.IsZero() {
		return true
	}
	return lastExecution.Format("2006-01-02") != now.Format("2006-01-02")
}

// IntervalChecker is due once Days full days have passed.
type IntervalChecker struct {
	Days int
}

func (c IntervalChecker) IsDue(lastExecution, now time.Time, _ core.Date) bool {
	if lastExecution.IsZero() {
		return true
	}
	return now.Sub(lastExecution) >= time.Duration(c.Days)*24*time.Hour
}

// CalendarChecker is due Months calendar months after the last occurrence,
// on the anchor's day of month. Days past the end of a short month clamp to
// its last day.
type CalendarChecker struct {
	Months int
}

func (c CalendarChecker) IsDue(lastExecution, now time.Time, anchor core.Date) bool {
	if lastExecution.IsZero() {
		return true
	}
	targetDay := lastExecution.Day()
	if !anchor.IsZero() {
		targetDay = anchor.Day()
	}
	next := clampedDate(lastExecution.Year(), lastExecution.Month()+time.Month(c.Months), targetDay)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return !today.Before(next)
}

// clampedDate builds year/month/day, normalising month overflow and
// limiting day to the month's length.
func clampedDate(year int, month time.Month, day int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

var duenessStrategies = map[core.Frequency]DuenessChecker{
	core.FrequencyDaily:     DailyChecker{},
	core.FrequencyWeekly:    IntervalChecker{Days: 7},
	core.FrequencyBiweekly:  IntervalChecker{Days: 14},
	core.FrequencyMonthly:   CalendarChecker{Months: 1},
	core.FrequencyQuarterly: CalendarChecker{Months: 3},
	core.FrequencyYearly:    CalendarChecker{Months: 12},
}

// GetDuenessChecker returns the checker registered for frequency.
func GetDuenessChecker(frequency core.Frequency) (DuenessChecker, error) {
	checker, ok := duenessStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown recurring frequency: %q", frequency)
	}
	return checker, nil
}

// RegisterDuenessChecker adds or replaces the checker for frequency.
// It is not safe for concurrent use with GetDuenessChecker.
func RegisterDuenessChecker(frequency core.Frequency, checker DuenessChecker) {
	duenessStrategies[frequency] = checker
}
