package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	dateLayout          = "2006-01-02"
	localDateTimeLayout = "2006-01-02T15:04:05"
	displayLayout       = "Jan 2, 2006"

	InvalidDate = "Invalid Date"
)

type (
	// Date is a calendar day without time zone, encoded as "2006-01-02".
	Date struct {
		time.Time
	}

	// LocalDateTime is a wall-clock timestamp without zone, as the backend
	// emits it ("2006-01-02T15:04:05", optional fractional seconds).
	LocalDateTime struct {
		time.Time
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// ParseLooseDate accepts a date, a local date-time or an RFC 3339 timestamp
// and keeps only the calendar day.
func ParseLooseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if d, err := ParseDate(s); err == nil {
		return d, nil
	}
	for _, layout := range []string{localDateTimeLayout + ".999999999", localDateTimeLayout, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("parse date %q: unrecognised format", s)
}

// String renders the ISO form used in forms and query strings.
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
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		d.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	parsed, err := ParseLooseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (t LocalDateTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(localDateTimeLayout))
}

func (t *LocalDateTime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{localDateTimeLayout + ".999999999", localDateTimeLayout, time.RFC3339Nano} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("parse timestamp %q: unrecognised format", s)
}

// Clock returns the HH:MM part, as shown in the transaction form.
func (t LocalDateTime) Clock() string {
	if t.IsZero() {
		return ""
	}
	return t.Format("15:04")
}

// FormatDate renders a date the way the UI shows absolute dates ("Jan 2, 2006").
func FormatDate(d Date) string {
	if d.IsZero() {
		return InvalidDate
	}
	return d.Format(displayLayout)
}

// FormatDateString parses and renders s, or returns "Invalid Date".
func FormatDateString(s string) string {
	d, err := ParseLooseDate(s)
	if err != nil {
		return InvalidDate
	}
	return FormatDate(d)
}

// midnight strips the time of day in now's location and re-expresses the
// calendar day in UTC so day arithmetic is free of DST shifts.
func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole calendar days from a to b, both midnight-normalised.
func DaysBetween(a, b time.Time) int {
	return int(midnight(b).Sub(midnight(a)).Hours() / 24)
}

// RelativeDate labels d relative to now: "Today", "Yesterday", "Tomorrow",
// otherwise the formatted absolute date.
func RelativeDate(d Date, now time.Time) string {
	if d.IsZero() {
		return InvalidDate
	}
	switch DaysBetween(now, d.Time) {
	case 0:
		return "Today"
	case -1:
		return "Yesterday"
	case 1:
		return "Tomorrow"
	}
	return FormatDate(d)
}

// RelativeDateString is RelativeDate for raw backend strings.
func RelativeDateString(s string, now time.Time) string {
	if strings.TrimSpace(s) == "" {
		return InvalidDate
	}
	d, err := ParseLooseDate(s)
	if err != nil {
		return InvalidDate
	}
	return RelativeDate(d, now)
}

// DueStatus is the state of a saved transaction's next occurrence.
type DueStatus string

const (
	DueNone     DueStatus = "No Due Date"
	DueOverdue  DueStatus = "Overdue"
	DueToday    DueStatus = "Due Today"
	DueUpcoming DueStatus = "Upcoming"
)

// ComputeDueStatus compares the next due date with now, ignoring time of day.
func ComputeDueStatus(next *Date, now time.Time) DueStatus {
	if next == nil || next.IsZero() {
		return DueNone
	}
	switch days := DaysBetween(now, next.Time); {
	case days < 0:
		return DueOverdue
	case days == 0:
		return DueToday
	default:
		return DueUpcoming
	}
}

// CSSClass maps a due status to the badge style used by the templates.
func (s DueStatus) CSSClass() string {
	switch s {
	case DueOverdue:
		return "due-overdue"
	case DueToday:
		return "due-today"
	case DueUpcoming:
		return "due-upcoming"
	default:
		return "due-none"
	}
}

// GroupByRelativeDate buckets transactions under their relative-date label,
// preserving first-seen order of labels. Transactions without a valid date
// are dropped.
func GroupByRelativeDate(txs []Transaction, now time.Time) []DateGroup {
	var groups []DateGroup
	index := make(map[string]int)
	for _, tx := range txs {
		if tx.Date.IsZero() {
			continue
		}
		label := RelativeDate(tx.Date, now)
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, DateGroup{Label: label})
		}
		groups[i].Transactions = append(groups[i].Transactions, tx)
	}
	return groups
}

// DateGroup is one labelled bucket produced by GroupByRelativeDate.
type DateGroup struct {
	Label        string
	Transactions []Transaction
}
