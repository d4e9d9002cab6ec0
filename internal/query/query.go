// Package query holds read-side projections over the record collections.
// Everything here is pure: callers pass the slices and the clock reading.
package query

import (
	"sort"
	"time"

	"github.com/medtrack/go-remind/internal/domain/record"
	"github.com/medtrack/go-remind/internal/recurrence"
)

// DefaultExpiringWindowDays is the lookahead for the expiring-prescriptions
// view.
const DefaultExpiringWindowDays = 30

// UpcomingAppointments returns appointments at or after now, soonest first.
// Records with unparseable timestamps are skipped rather than failing the
// whole view.
func UpcomingAppointments(appts []record.Appointment, now time.Time, loc *time.Location) []record.Appointment {
	if loc == nil {
		loc = time.Local
	}

	type dated struct {
		at   time.Time
		appt record.Appointment
	}
	var out []dated
	for _, a := range appts {
		at, err := recurrence.ParseInstant(a.DateTime, loc)
		if err != nil {
			continue
		}
		if at.Before(now) {
			continue
		}
		out = append(out, dated{at: at, appt: a})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].at.Before(out[j].at) })

	result := make([]record.Appointment, len(out))
	for i, d := range out {
		result[i] = d.appt
	}
	return result
}

// ExpiringPrescriptions returns prescriptions whose expiry day falls within
// the window, soonest expiry first. The bound check treats expiry as a whole
// day: a prescription still counts on its expiry day, and one expiring the
// day after the window closes does not.
func ExpiringPrescriptions(prescriptions []record.Prescription, now time.Time, windowDays int, loc *time.Location) []record.Prescription {
	if loc == nil {
		loc = time.Local
	}
	if windowDays <= 0 {
		windowDays = DefaultExpiringWindowDays
	}
	windowEnd := now.AddDate(0, 0, windowDays)

	type dated struct {
		day  time.Time
		pres record.Prescription
	}
	var out []dated
	for _, p := range prescriptions {
		if p.ExpiryDate == "" {
			continue
		}
		day, err := recurrence.ParseDay(p.ExpiryDate, loc)
		if err != nil {
			continue
		}
		endOfDay := day.AddDate(0, 0, 1)
		if !endOfDay.After(now) {
			continue // already expired
		}
		if day.After(windowEnd) {
			continue // beyond the window
		}
		out = append(out, dated{day: day, pres: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].day.Before(out[j].day) })

	result := make([]record.Prescription, len(out))
	for i, d := range out {
		result[i] = d.pres
	}
	return result
}

// PrescriptionsNewestFirst orders the prescription list view: most recently
// issued first. Missing or unparseable issue dates sort last.
func PrescriptionsNewestFirst(prescriptions []record.Prescription, loc *time.Location) []record.Prescription {
	if loc == nil {
		loc = time.Local
	}

	issued := func(p record.Prescription) time.Time {
		day, err := recurrence.ParseDay(p.IssueDate, loc)
		if err != nil {
			return time.Time{}
		}
		return day
	}
	out := make([]record.Prescription, len(prescriptions))
	copy(out, prescriptions)
	sort.SliceStable(out, func(i, j int) bool { return issued(out[i]).After(issued(out[j])) })
	return out
}

// Summary is a small dashboard projection.
type Summary struct {
	Medications           int `json:"medications"`
	ActiveMedications     int `json:"active_medications"`
	UpcomingAppointments  int `json:"upcoming_appointments"`
	ExpiringPrescriptions int `json:"expiring_prescriptions"`
	Doctors               int `json:"doctors"`
}

// BuildSummary counts the headline figures shown on the home screen. A
// medication is active when its end date is unset or not yet past.
func BuildSummary(meds []record.Medication, appts []record.Appointment, prescriptions []record.Prescription, doctors []record.Doctor, now time.Time, windowDays int, loc *time.Location) Summary {
	if loc == nil {
		loc = time.Local
	}

	active := 0
	for _, m := range meds {
		if m.EndDate == "" {
			active++
			continue
		}
		day, err := recurrence.ParseDay(m.EndDate, loc)
		if err != nil {
			continue
		}
		if day.AddDate(0, 0, 1).After(now) {
			active++
		}
	}

	return Summary{
		Medications:           len(meds),
		ActiveMedications:     active,
		UpcomingAppointments:  len(UpcomingAppointments(appts, now, loc)),
		ExpiringPrescriptions: len(ExpiringPrescriptions(prescriptions, now, windowDays, loc)),
		Doctors:               len(doctors),
	}
}
