// Package metrics provides Prometheus metrics for the reminder core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics.
type Metrics struct {
	RemindersRegistered  prometheus.Counter
	RemindersCancelled   prometheus.Counter
	RegistrationFailures prometheus.Counter
	CancelFailures       prometheus.Counter
	ActiveReminders      prometheus.Gauge
	RescheduleDuration   prometheus.Histogram
	RecordsUpserted      *prometheus.CounterVec
	RemindersFired       prometheus.Counter
	RemindersDropped     prometheus.Counter
}

// New creates and registers all metrics.
func New() *Metrics {
	m := &Metrics{
		RemindersRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reminders_registered_total",
			Help: "Total reminder occurrences registered at the delivery backend",
		}),
		RemindersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reminders_cancelled_total",
			Help: "Total reminder handles cancelled",
		}),
		RegistrationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reminder_registration_failures_total",
			Help: "Occurrences the delivery backend rejected",
		}),
		CancelFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reminder_cancel_failures_total",
			Help: "Best-effort cancellations that failed",
		}),
		ActiveReminders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reminders_active",
			Help: "Reminder occurrences currently registered",
		}),
		RescheduleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reminder_reschedule_duration_seconds",
			Help:    "Full cancel-recompute-register cycle duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		RecordsUpserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "records_upserted_total",
			Help: "Record writes by kind",
		}, []string{"kind"}),
		RemindersFired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reminders_fired_total",
			Help: "Reminders delivered to the user by the notify relay",
		}),
		RemindersDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reminders_dropped_total",
			Help: "Reminders the notify relay failed to deliver",
		}),
	}

	prometheus.MustRegister(
		m.RemindersRegistered,
		m.RemindersCancelled,
		m.RegistrationFailures,
		m.CancelFailures,
		m.ActiveReminders,
		m.RescheduleDuration,
		m.RecordsUpserted,
		m.RemindersFired,
		m.RemindersDropped,
	)

	return m
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
