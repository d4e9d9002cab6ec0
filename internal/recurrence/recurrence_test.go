package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/medtrack/go-remind/internal/domain/record"
)

var utcPolicy = HorizonPolicy{Location: time.UTC}

func TestDoseOccurrencesSkipsElapsedInstants(t *testing.T) {
	s := DoseSchedule{
		Frequency:  record.FrequencyDaily,
		TimesOfDay: []string{"08:00", "20:00"},
		StartDate:  "2024-01-01",
		EndDate:    "2024-01-03",
	}
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	occs, err := DoseOccurrences(s, now, utcPolicy)
	if err != nil {
		t.Fatalf("DoseOccurrences: %v", err)
	}

	want := []time.Time{
		time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 20, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 20, 0, 0, 0, time.UTC),
	}
	if len(occs) != len(want) {
		t.Fatalf("got %d occurrences, want %d", len(occs), len(want))
	}
	for i, occ := range occs {
		if occ.Index != i {
			t.Errorf("occurrence %d has index %d", i, occ.Index)
		}
		if !occ.At.Equal(want[i]) {
			t.Errorf("occurrence %d at %v, want %v", i, occ.At, want[i])
		}
	}
}

func TestDoseOccurrencesExcludesNowItself(t *testing.T) {
	s := DoseSchedule{
		Frequency:  record.FrequencyDaily,
		TimesOfDay: []string{"08:00"},
		StartDate:  "2024-01-01",
		EndDate:    "2024-01-01",
	}
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	occs, err := DoseOccurrences(s, now, utcPolicy)
	if err != nil {
		t.Fatalf("DoseOccurrences: %v", err)
	}
	if len(occs) != 0 {
		t.Fatalf("an instant equal to now must not be registered, got %v", occs)
	}
}

func TestDoseOccurrencesWeeklyKeepsStartWeekday(t *testing.T) {
	// 2024-01-01 is a Monday.
	s := DoseSchedule{
		Frequency:  record.FrequencyWeekly,
		TimesOfDay: []string{"09:00"},
		StartDate:  "2024-01-01",
	}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	occs, err := DoseOccurrences(s, now, utcPolicy)
	if err != nil {
		t.Fatalf("DoseOccurrences: %v", err)
	}
	if len(occs) < 3 {
		t.Fatalf("expected at least 3 weekly occurrences, got %d", len(occs))
	}
	for i, wantDay := range []int{1, 8, 15} {
		want := time.Date(2024, 1, wantDay, 9, 0, 0, 0, time.UTC)
		if !occs[i].At.Equal(want) {
			t.Errorf("occurrence %d at %v, want %v", i, occs[i].At, want)
		}
		if occs[i].At.Weekday() != time.Monday {
			t.Errorf("occurrence %d drifted off the start weekday: %v", i, occs[i].At.Weekday())
		}
	}
}

func TestDoseOccurrencesHonorsMaxOccurrences(t *testing.T) {
	s := DoseSchedule{
		Frequency:  record.FrequencyDaily,
		TimesOfDay: []string{"08:00", "12:00", "20:00"},
		StartDate:  "2024-01-01",
	}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	policy := HorizonPolicy{Location: time.UTC, MaxOccurrences: 4}

	occs, err := DoseOccurrences(s, now, policy)
	if err != nil {
		t.Fatalf("DoseOccurrences: %v", err)
	}
	if len(occs) != 4 {
		t.Fatalf("got %d occurrences, want 4", len(occs))
	}
	for i, occ := range occs {
		if occ.Index != i {
			t.Errorf("occurrence %d has index %d", i, occ.Index)
		}
	}
}

func TestDoseOccurrencesBoundedByLookahead(t *testing.T) {
	s := DoseSchedule{
		Frequency:  record.FrequencyDaily,
		TimesOfDay: []string{"08:00"},
		StartDate:  "2024-01-01",
	}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	policy := HorizonPolicy{Location: time.UTC, LookaheadDays: 5}

	occs, err := DoseOccurrences(s, now, policy)
	if err != nil {
		t.Fatalf("DoseOccurrences: %v", err)
	}
	cut := now.AddDate(0, 0, 5)
	if len(occs) == 0 {
		t.Fatal("expected occurrences inside the lookahead window")
	}
	for _, occ := range occs {
		if occ.At.After(cut) {
			t.Errorf("occurrence %v past the lookahead cut %v", occ.At, cut)
		}
	}
}

func TestDoseScheduleValidation(t *testing.T) {
	cases := []struct {
		name string
		s    DoseSchedule
	}{
		{"unknown frequency", DoseSchedule{Frequency: "Hourly", TimesOfDay: []string{"08:00"}, StartDate: "2024-01-01"}},
		{"no times", DoseSchedule{Frequency: record.FrequencyDaily, StartDate: "2024-01-01"}},
		{"bad time of day", DoseSchedule{Frequency: record.FrequencyDaily, TimesOfDay: []string{"8:00"}, StartDate: "2024-01-01"}},
		{"out of range time", DoseSchedule{Frequency: record.FrequencyDaily, TimesOfDay: []string{"24:00"}, StartDate: "2024-01-01"}},
		{"bad start date", DoseSchedule{Frequency: record.FrequencyDaily, TimesOfDay: []string{"08:00"}, StartDate: "01/01/2024"}},
		{"end before start", DoseSchedule{Frequency: record.FrequencyDaily, TimesOfDay: []string{"08:00"}, StartDate: "2024-01-02", EndDate: "2024-01-01"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateDoseSchedule(tc.s, time.UTC)
			if !errors.Is(err, ErrInvalidRecurrence) {
				t.Fatalf("got %v, want ErrInvalidRecurrence", err)
			}
		})
	}
}

func TestAppointmentOccurrences(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	occs, err := AppointmentOccurrences("2024-03-02T14:30", time.Hour, now, time.UTC)
	if err != nil {
		t.Fatalf("AppointmentOccurrences: %v", err)
	}
	if len(occs) != 1 {
		t.Fatalf("got %d occurrences, want 1", len(occs))
	}
	want := time.Date(2024, 3, 2, 13, 30, 0, 0, time.UTC)
	if !occs[0].At.Equal(want) || occs[0].Index != 0 {
		t.Fatalf("got index %d at %v, want index 0 at %v", occs[0].Index, occs[0].At, want)
	}

	// Appointment in 30 minutes with a 1h lead: the reminder instant is
	// already past, nothing fires.
	occs, err = AppointmentOccurrences("2024-03-01T10:30", time.Hour, now, time.UTC)
	if err != nil {
		t.Fatalf("AppointmentOccurrences: %v", err)
	}
	if len(occs) != 0 {
		t.Fatalf("expected no occurrences inside the lead, got %v", occs)
	}

	if _, err := AppointmentOccurrences("tomorrow-ish", time.Hour, now, time.UTC); !errors.Is(err, ErrInvalidRecurrence) {
		t.Fatalf("got %v, want ErrInvalidRecurrence", err)
	}
}

func TestExpiryOccurrences(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	occs, err := ExpiryOccurrences("2024-03-10", 0, now, time.UTC)
	if err != nil {
		t.Fatalf("ExpiryOccurrences: %v", err)
	}
	if len(occs) != 1 {
		t.Fatalf("got %d occurrences, want 1", len(occs))
	}
	want := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	if !occs[0].At.Equal(want) {
		t.Fatalf("got %v, want %v", occs[0].At, want)
	}

	occs, err = ExpiryOccurrences("2024-03-10", 3, now, time.UTC)
	if err != nil {
		t.Fatalf("ExpiryOccurrences: %v", err)
	}
	want = time.Date(2024, 3, 7, 9, 0, 0, 0, time.UTC)
	if len(occs) != 1 || !occs[0].At.Equal(want) {
		t.Fatalf("lead days not applied: got %v, want %v", occs, want)
	}

	if occs, _ := ExpiryOccurrences("", 0, now, time.UTC); occs != nil {
		t.Fatalf("empty expiry must yield nothing, got %v", occs)
	}
	if occs, _ := ExpiryOccurrences("2024-02-01", 0, now, time.UTC); occs != nil {
		t.Fatalf("past expiry must yield nothing, got %v", occs)
	}
}

func TestParseInstantAcceptsClientForms(t *testing.T) {
	for _, s := range []string{"2024-03-01T14:30", "2024-03-01T14:30:00", "2024-03-01T14:30:00Z"} {
		if _, err := ParseInstant(s, time.UTC); err != nil {
			t.Errorf("ParseInstant(%q): %v", s, err)
		}
	}
	if _, err := ParseInstant("2024-03-01", time.UTC); !errors.Is(err, ErrInvalidRecurrence) {
		t.Errorf("date-only string must be rejected, got %v", err)
	}
}
