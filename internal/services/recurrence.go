// Package services provides business logic shared by the web server and workers.
//
// This file implements the Strategy Pattern for saved-transaction recurrence.
// Each frequency (one time, daily, monthly) has its own strategy that knows
// how to advance a due date to the following occurrence.

package services

import (
	"fmt"
	"time"

	"expensia/internal/core"
)

// RecurrenceStrategy is the strategy interface for computing the occurrence
// that follows a given due date.
type RecurrenceStrategy interface {
	// Next returns the occurrence after due, anchored on the original start
	// date. ok is false when the transaction does not recur.
	Next(due, start core.Date) (next core.Date, ok bool)
}

// OneTimeStrategy implements RecurrenceStrategy for single occurrences.
type OneTimeStrategy struct{}

// Next never yields a further occurrence.
func (OneTimeStrategy) Next(_, _ core.Date) (core.Date, bool) {
	return core.Date{}, false
}

// DailyStrategy implements RecurrenceStrategy for daily transactions.
type DailyStrategy struct{}

// Next returns the following calendar day.
func (DailyStrategy) Next(due, _ core.Date) (core.Date, bool) {
	if due.IsZero() {
		return core.Date{}, false
	}
	return core.Date{Time: due.AddDate(0, 0, 1)}, true
}

// MonthlyStrategy implements RecurrenceStrategy for monthly transactions.
type MonthlyStrategy struct{}

// Next returns the same day of the following month. The day is taken from
// the start date when known so a start on the 31st lands on the last day of
// shorter months and returns to the 31st afterwards.
func (MonthlyStrategy) Next(due, start core.Date) (core.Date, bool) {
	if due.IsZero() {
		return core.Date{}, false
	}

	targetDay := due.Day()
	if !start.IsZero() {
		targetDay = start.Day()
	}

	year, month := due.Year(), due.Month()+1
	if month > time.December {
		month = time.January
		year++
	}

	lastDayOfMonth := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if targetDay > lastDayOfMonth {
		targetDay = lastDayOfMonth
	}

	return core.NewDate(year, int(month), targetDay), true
}

// recurrenceStrategies maps frequencies to their strategies.
var recurrenceStrategies = map[core.Frequency]RecurrenceStrategy{
	core.FrequencyOneTime: OneTimeStrategy{},
	core.FrequencyDaily:   DailyStrategy{},
	core.FrequencyMonthly: MonthlyStrategy{},
}

// GetRecurrenceStrategy returns the strategy for a frequency.
// Returns an error if the frequency is not supported.
func GetRecurrenceStrategy(frequency core.Frequency) (RecurrenceStrategy, error) {
	strategy, ok := recurrenceStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidFrequency, frequency)
	}
	return strategy, nil
}

// RegisterRecurrenceStrategy registers a strategy for a new frequency.
func RegisterRecurrenceStrategy(frequency core.Frequency, strategy RecurrenceStrategy) {
	recurrenceStrategies[frequency] = strategy
}

// NextOccurrence returns the occurrence following the saved transaction's
// next due date. ok is false for one-time, unscheduled or unknown entries.
func NextOccurrence(st core.SavedTransaction) (core.Date, bool) {
	if st.NextDueDate == nil || st.NextDueDate.IsZero() {
		return core.Date{}, false
	}
	strategy, err := GetRecurrenceStrategy(st.Frequency)
	if err != nil {
		return core.Date{}, false
	}
	var start core.Date
	if st.StartDate != nil {
		start = *st.StartDate
	}
	return strategy.Next(*st.NextDueDate, start)
}

// UpcomingOccurrences lists up to n occurrences starting at the next due date.
func UpcomingOccurrences(st core.SavedTransaction, n int) []core.Date {
	if n <= 0 || st.NextDueDate == nil || st.NextDueDate.IsZero() {
		return nil
	}
	strategy, err := GetRecurrenceStrategy(st.Frequency)
	if err != nil {
		return nil
	}
	var start core.Date
	if st.StartDate != nil {
		start = *st.StartDate
	}

	out := []core.Date{*st.NextDueDate}
	current := *st.NextDueDate
	for len(out) < n {
		next, ok := strategy.Next(current, start)
		if !ok {
			break
		}
		out = append(out, next)
		current = next
	}
	return out
}

// SavedTransactionView is a saved transaction with its derived due state.
type SavedTransactionView struct {
	core.SavedTransaction
	Status         core.DueStatus
	FollowingDueOn core.Date
	Recurs         bool
}

// BuildSavedTransactionViews computes the due status and the following
// occurrence of every saved transaction relative to now.
func BuildSavedTransactionViews(items []core.SavedTransaction, now time.Time) []SavedTransactionView {
	out := make([]SavedTransactionView, 0, len(items))
	for _, st := range items {
		next, ok := NextOccurrence(st)
		out = append(out, SavedTransactionView{
			SavedTransaction: st,
			Status:           core.ComputeDueStatus(st.NextDueDate, now),
			FollowingDueOn:   next,
			Recurs:           ok,
		})
	}
	return out
}
