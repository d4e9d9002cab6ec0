// Package recurrence computes concrete future reminder instants from a
// record's recurrence description. All functions are pure: the same inputs
// always produce the same occurrence list, so a reschedule after a restart
// regenerates exactly the set that was registered before.
//
// Comparisons are instant-based throughout. A local "HH:MM" time is combined
// with a calendar day in the caller's timezone before anything is compared,
// never as a day-string.
package recurrence

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/medtrack/go-remind/internal/domain/record"
)

// ErrInvalidRecurrence is wrapped by every validation failure: malformed
// time-of-day, malformed date, end date before start date, or an unknown
// frequency class. Callers must not register anything once it is returned.
var ErrInvalidRecurrence = errors.New("invalid recurrence")

const (
	// DefaultLookaheadDays bounds open-ended medications to a rolling window.
	DefaultLookaheadDays = 60
	// DefaultMaxOccurrences is a safety cap per record to avoid registering
	// an unbounded batch when dates are far apart.
	DefaultMaxOccurrences = 512
	// expiryFireHour is the local hour at which expiry reminders fire.
	expiryFireHour = 9
)

// Occurrence is one future reminder instant. Index is the 0-based position in
// the calculator's output order and is what makes reminder handles stable.
type Occurrence struct {
	Index int
	At    time.Time
}

// HorizonPolicy bounds how far ahead occurrences are computed.
type HorizonPolicy struct {
	// Location is the timezone in which dates and times-of-day are combined.
	// Nil means time.Local.
	Location *time.Location
	// LookaheadDays is the rolling window for open-ended medications.
	LookaheadDays int
	// MaxOccurrences truncates the batch for a single record.
	MaxOccurrences int
}

func (p HorizonPolicy) normalized() HorizonPolicy {
	if p.Location == nil {
		p.Location = time.Local
	}
	if p.LookaheadDays <= 0 {
		p.LookaheadDays = DefaultLookaheadDays
	}
	if p.MaxOccurrences <= 0 {
		p.MaxOccurrences = DefaultMaxOccurrences
	}
	return p
}

// DoseSchedule is a medication's recurrence description.
type DoseSchedule struct {
	Frequency  record.Frequency
	TimesOfDay []string
	StartDate  string
	EndDate    string
}

type parsedSchedule struct {
	freq     rrule.Frequency
	clocks   []clock
	startDay time.Time
	endDay   time.Time
	hasEnd   bool
}

type clock struct {
	hour, minute int
}

// ValidateDoseSchedule checks a schedule without enumerating occurrences.
// It is what the editing surface calls before a record is saved.
func ValidateDoseSchedule(s DoseSchedule, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	_, err := parseSchedule(s, loc)
	return err
}

func parseSchedule(s DoseSchedule, loc *time.Location) (*parsedSchedule, error) {
	out := &parsedSchedule{}

	switch s.Frequency {
	case record.FrequencyDaily, record.FrequencyTwiceDaily:
		out.freq = rrule.DAILY
	case record.FrequencyWeekly:
		out.freq = rrule.WEEKLY
	default:
		return nil, fmt.Errorf("%w: unknown frequency class %q", ErrInvalidRecurrence, s.Frequency)
	}

	if len(s.TimesOfDay) == 0 {
		return nil, fmt.Errorf("%w: no times of day", ErrInvalidRecurrence)
	}
	for _, t := range s.TimesOfDay {
		c, err := parseClock(t)
		if err != nil {
			return nil, err
		}
		out.clocks = append(out.clocks, c)
	}
	sort.Slice(out.clocks, func(i, j int) bool {
		return out.clocks[i].hour*60+out.clocks[i].minute < out.clocks[j].hour*60+out.clocks[j].minute
	})

	startDay, err := ParseDay(s.StartDate, loc)
	if err != nil {
		return nil, err
	}
	out.startDay = startDay

	if s.EndDate != "" {
		endDay, err := ParseDay(s.EndDate, loc)
		if err != nil {
			return nil, err
		}
		if endDay.Before(startDay) {
			return nil, fmt.Errorf("%w: end date %s before start date %s", ErrInvalidRecurrence, s.EndDate, s.StartDate)
		}
		out.endDay = endDay
		out.hasEnd = true
	}

	return out, nil
}

// DoseOccurrences expands a medication schedule into the ordered batch of
// future instants within the horizon. Day anchors come from an RRULE
// (FREQ=DAILY or FREQ=WEEKLY anchored to the start date's weekday); each
// anchor day then emits one instant per time-of-day, ascending. Instants at
// or before now are skipped, never registered retroactively.
func DoseOccurrences(s DoseSchedule, now time.Time, policy HorizonPolicy) ([]Occurrence, error) {
	policy = policy.normalized()
	loc := policy.Location

	parsed, err := parseSchedule(s, loc)
	if err != nil {
		return nil, err
	}

	// The lookahead cut applies even when an end date is set: the horizon is
	// the sooner of the two.
	cut := now.Add(time.Duration(policy.LookaheadDays) * 24 * time.Hour)

	windowStart := parsed.startDay
	if today := dayStart(now.In(loc)); today.After(windowStart) {
		windowStart = today
	}
	windowEnd := dayStart(cut.In(loc))
	if parsed.hasEnd && parsed.endDay.Before(windowEnd) {
		windowEnd = parsed.endDay
	}
	if windowEnd.Before(windowStart) {
		return nil, nil
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    parsed.freq,
		Dtstart: parsed.startDay,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecurrence, err)
	}

	var out []Occurrence
	for _, day := range rule.Between(windowStart, windowEnd, true) {
		for _, c := range parsed.clocks {
			at := time.Date(day.Year(), day.Month(), day.Day(), c.hour, c.minute, 0, 0, loc)
			if !at.After(now) || at.After(cut) {
				continue
			}
			out = append(out, Occurrence{Index: len(out), At: at})
			if len(out) >= policy.MaxOccurrences {
				return out, nil
			}
		}
	}
	return out, nil
}

// AppointmentOccurrences emits the single reminder instant for an
// appointment: lead before its date-time, index 0. A lead instant already in
// the past yields nothing rather than an immediate reminder.
func AppointmentOccurrences(dateTime string, lead time.Duration, now time.Time, loc *time.Location) ([]Occurrence, error) {
	if loc == nil {
		loc = time.Local
	}
	at, err := ParseInstant(dateTime, loc)
	if err != nil {
		return nil, err
	}
	remindAt := at.Add(-lead)
	if !remindAt.After(now) {
		return nil, nil
	}
	return []Occurrence{{Index: 0, At: remindAt}}, nil
}

// ExpiryOccurrences emits the single reminder instant for a prescription
// expiry: 09:00 local on the expiry day minus leadDays, index 0. An empty
// expiry date yields nothing; a past instant is dropped.
func ExpiryOccurrences(expiryDate string, leadDays int, now time.Time, loc *time.Location) ([]Occurrence, error) {
	if loc == nil {
		loc = time.Local
	}
	if expiryDate == "" {
		return nil, nil
	}
	day, err := ParseDay(expiryDate, loc)
	if err != nil {
		return nil, err
	}
	fireDay := day.AddDate(0, 0, -leadDays)
	at := time.Date(fireDay.Year(), fireDay.Month(), fireDay.Day(), expiryFireHour, 0, 0, 0, loc)
	if !at.After(now) {
		return nil, nil
	}
	return []Occurrence{{Index: 0, At: at}}, nil
}

// ParseDay parses a "2006-01-02" date string as midnight in loc.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q", ErrInvalidRecurrence, s)
	}
	return t, nil
}

// ParseInstant parses an RFC 3339 timestamp, falling back to the local
// "2006-01-02T15:04[:05]" forms the mobile client produces.
func ParseInstant(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: bad timestamp %q", ErrInvalidRecurrence, s)
}

func parseClock(s string) (clock, error) {
	bad := func() (clock, error) {
		return clock{}, fmt.Errorf("%w: bad time of day %q", ErrInvalidRecurrence, s)
	}
	if len(s) != 5 || s[2] != ':' {
		return bad()
	}
	h, err := strconv.Atoi(s[:2])
	if err != nil {
		return bad()
	}
	m, err := strconv.Atoi(s[3:])
	if err != nil {
		return bad()
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return bad()
	}
	return clock{hour: h, minute: m}, nil
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
