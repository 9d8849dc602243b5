package services

import (
	"errors"
	"testing"
	"time"

	"expensia/internal/core"
)

func datePtr(y, m, d int) *core.Date {
	v := core.NewDate(y, m, d)
	return &v
}

func TestDailyStrategy_Next(t *testing.T) {
	strategy := DailyStrategy{}

	tests := []struct {
		name   string
		due    core.Date
		want   string
		wantOK bool
	}{
		{
			name:   "mid month",
			due:    core.NewDate(2024, 1, 15),
			want:   "2024-01-16",
			wantOK: true,
		},
		{
			name:   "end of year rolls over",
			due:    core.NewDate(2024, 12, 31),
			want:   "2025-01-01",
			wantOK: true,
		},
		{
			name:   "leap day",
			due:    core.NewDate(2024, 2, 28),
			want:   "2024-02-29",
			wantOK: true,
		},
		{
			name:   "zero date - no occurrence",
			due:    core.Date{},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := strategy.Next(tt.due, core.Date{})
			if ok != tt.wantOK {
				t.Fatalf("DailyStrategy.Next() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got.String() != tt.want {
				t.Errorf("DailyStrategy.Next() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMonthlyStrategy_Next(t *testing.T) {
	strategy := MonthlyStrategy{}

	tests := []struct {
		name  string
		due   core.Date
		start core.Date
		want  string
	}{
		{
			name:  "same day next month",
			due:   core.NewDate(2024, 1, 15),
			start: core.NewDate(2024, 1, 15),
			want:  "2024-02-15",
		},
		{
			name:  "target day 31 in February - adjusts to 29",
			due:   core.NewDate(2024, 1, 31),
			start: core.NewDate(2024, 1, 31),
			want:  "2024-02-29", // 2024 is a leap year
		},
		{
			name:  "returns to day 31 after a short month",
			due:   core.NewDate(2024, 2, 29),
			start: core.NewDate(2024, 1, 31),
			want:  "2024-03-31",
		},
		{
			name:  "december rolls into next year",
			due:   core.NewDate(2024, 12, 10),
			start: core.NewDate(2024, 1, 10),
			want:  "2025-01-10",
		},
		{
			name:  "unknown start uses due day",
			due:   core.NewDate(2025, 6, 30),
			start: core.Date{},
			want:  "2025-07-30",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := strategy.Next(tt.due, tt.start)
			if !ok {
				t.Fatal("MonthlyStrategy.Next() returned no occurrence")
			}
			if got.String() != tt.want {
				t.Errorf("MonthlyStrategy.Next() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestOneTimeStrategy_Next(t *testing.T) {
	if _, ok := (OneTimeStrategy{}).Next(core.NewDate(2024, 1, 1), core.Date{}); ok {
		t.Error("OneTimeStrategy.Next() should never recur")
	}
}

func TestGetRecurrenceStrategy(t *testing.T) {
	tests := []struct {
		name      string
		frequency core.Frequency
		wantErr   bool
	}{
		{"one time", core.FrequencyOneTime, false},
		{"daily", core.FrequencyDaily, false},
		{"monthly", core.FrequencyMonthly, false},
		{"unknown", core.Frequency("WEEKLY"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strategy, err := GetRecurrenceStrategy(tt.frequency)
			if (err != nil) != tt.wantErr {
				t.Errorf("GetRecurrenceStrategy() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr && !errors.Is(err, core.ErrInvalidFrequency) {
				t.Errorf("expected ErrInvalidFrequency, got %v", err)
			}
			if !tt.wantErr && strategy == nil {
				t.Error("GetRecurrenceStrategy() returned nil strategy")
			}
		})
	}
}

func TestRegisterRecurrenceStrategy(t *testing.T) {
	customFreq := core.Frequency("WEEKLY")

	RegisterRecurrenceStrategy(customFreq, DailyStrategy{})

	strategy, err := GetRecurrenceStrategy(customFreq)
	if err != nil {
		t.Errorf("GetRecurrenceStrategy() after register error = %v", err)
	}
	if strategy == nil {
		t.Error("GetRecurrenceStrategy() returned nil after registration")
	}

	// Cleanup - remove the custom strategy to avoid affecting other tests
	delete(recurrenceStrategies, customFreq)
}

func TestNextOccurrence(t *testing.T) {
	tests := []struct {
		name   string
		st     core.SavedTransaction
		want   string
		wantOK bool
	}{
		{
			name:   "monthly rent",
			st:     core.SavedTransaction{Frequency: core.FrequencyMonthly, NextDueDate: datePtr(2025, 6, 1), StartDate: datePtr(2025, 1, 1)},
			want:   "2025-07-01",
			wantOK: true,
		},
		{
			name:   "one time",
			st:     core.SavedTransaction{Frequency: core.FrequencyOneTime, NextDueDate: datePtr(2025, 6, 1)},
			wantOK: false,
		},
		{
			name:   "no due date",
			st:     core.SavedTransaction{Frequency: core.FrequencyDaily},
			wantOK: false,
		},
		{
			name:   "unknown frequency",
			st:     core.SavedTransaction{Frequency: "YEARLY", NextDueDate: datePtr(2025, 6, 1)},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextOccurrence(tt.st)
			if ok != tt.wantOK {
				t.Fatalf("NextOccurrence() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got.String() != tt.want {
				t.Errorf("NextOccurrence() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestUpcomingOccurrences(t *testing.T) {
	st := core.SavedTransaction{
		Frequency:   core.FrequencyMonthly,
		StartDate:   datePtr(2025, 1, 31),
		NextDueDate: datePtr(2025, 1, 31),
	}
	got := UpcomingOccurrences(st, 4)
	want := []string{"2025-01-31", "2025-02-28", "2025-03-31", "2025-04-30"}
	if len(got) != len(want) {
		t.Fatalf("UpcomingOccurrences() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Errorf("occurrence %d = %s, want %s", i, got[i], want[i])
		}
	}

	oneTime := core.SavedTransaction{Frequency: core.FrequencyOneTime, NextDueDate: datePtr(2025, 1, 1)}
	if got := UpcomingOccurrences(oneTime, 3); len(got) != 1 {
		t.Errorf("one-time entry should list a single occurrence, got %d", len(got))
	}
}

// Confirming a due occurrence advances its next due date past today, which
// moves it out of the due-now view.
func TestBuildSavedTransactionViews_ConfirmAdvancesPastToday(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	rent := core.SavedTransaction{ID: 1, Frequency: core.FrequencyMonthly, NextDueDate: datePtr(2025, 6, 15), StartDate: datePtr(2025, 1, 15)}

	before := BuildSavedTransactionViews([]core.SavedTransaction{rent}, now)
	if before[0].Status != core.DueToday {
		t.Fatalf("status before confirm = %s, want %s", before[0].Status, core.DueToday)
	}

	next, ok := NextOccurrence(rent)
	if !ok {
		t.Fatal("monthly entry should recur")
	}
	rent.NextDueDate = &next

	after := BuildSavedTransactionViews([]core.SavedTransaction{rent}, now)
	if after[0].Status != core.DueUpcoming {
		t.Errorf("status after confirm = %s, want %s", after[0].Status, core.DueUpcoming)
	}
	if after[0].FollowingDueOn.String() != "2025-08-15" {
		t.Errorf("FollowingDueOn = %s, want 2025-08-15", after[0].FollowingDueOn)
	}
}
