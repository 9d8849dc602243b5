package core

import (
	"fmt"
	"strings"
)

// Frequency is the backend's recurrence enum for saved transactions.
type Frequency string

const (
	FrequencyOneTime Frequency = "ONE_TIME"
	FrequencyDaily   Frequency = "DAILY"
	FrequencyMonthly Frequency = "MONTHLY"
)

// frequencyLabels maps the form labels to backend values.
var frequencyLabels = map[string]Frequency{
	"one time": FrequencyOneTime,
	"daily":    FrequencyDaily,
	"monthly":  FrequencyMonthly,
}

// FrequencyOptions is the ordered list shown in the saved-transaction form.
var FrequencyOptions = []string{"one time", "daily", "monthly"}

// ParseFrequencyLabel maps a form label ("one time", "daily", "monthly") to
// its backend value. Unknown labels are rejected rather than passed through.
func ParseFrequencyLabel(label string) (Frequency, error) {
	f, ok := frequencyLabels[strings.ToLower(strings.TrimSpace(label))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidFrequency, label)
	}
	return f, nil
}

// Label is the inverse of ParseFrequencyLabel.
func (f Frequency) Label() string {
	for label, v := range frequencyLabels {
		if v == f {
			return label
		}
	}
	return strings.ToLower(string(f))
}

// Display renders the frequency for lists ("One Time", "Daily", "Monthly").
func (f Frequency) Display() string {
	label := f.Label()
	words := strings.Fields(label)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
