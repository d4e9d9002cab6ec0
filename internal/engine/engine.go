// Package engine orchestrates reminder scheduling: cancel what a record had,
// recompute its occurrences, register the fresh batch. The engine keeps no
// reminder state of its own beyond the occurrence-index ledger; everything
// else is recomputed on demand from the record, so a restart costs nothing.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/medtrack/go-remind/internal/delivery"
	"github.com/medtrack/go-remind/internal/domain/record"
	"github.com/medtrack/go-remind/internal/identity"
	"github.com/medtrack/go-remind/internal/observability/metrics"
	"github.com/medtrack/go-remind/internal/recurrence"
	"github.com/medtrack/go-remind/internal/store"
	"github.com/medtrack/go-remind/pkg/workerpool"
)

// DefaultCancelCap is the index range swept when a record's issued-index
// count is unknown. It must cover at least the largest batch a reschedule
// can issue (recurrence.DefaultMaxOccurrences), or a ledger loss could
// leave orphan handles; twice that leaves room for older, larger policies.
const DefaultCancelCap = 2 * recurrence.DefaultMaxOccurrences

// DefaultAppointmentLead is how long before an appointment its reminder
// fires.
const DefaultAppointmentLead = time.Hour

// Config holds scheduling policy.
type Config struct {
	// Horizon bounds occurrence computation.
	Horizon recurrence.HorizonPolicy
	// AppointmentLead is the reminder offset before an appointment.
	AppointmentLead time.Duration
	// ExpiryLeadDays moves prescription expiry reminders earlier.
	ExpiryLeadDays int
}

func (c Config) normalized() Config {
	if c.AppointmentLead <= 0 {
		c.AppointmentLead = DefaultAppointmentLead
	}
	return c
}

// Engine is the scheduling engine. Operations are invoked to completion one
// at a time per record by the surrounding service; the engine itself only
// fans out independent registrations within one call.
type Engine struct {
	backend delivery.Backend
	cursors *store.Cursors
	pool    *workerpool.Pool
	metrics *metrics.Metrics
	logger  *zap.Logger
	tracer  trace.Tracer
	config  Config
}

// New creates an engine. metrics may be nil.
func New(backend delivery.Backend, cursors *store.Cursors, cfg Config, m *metrics.Metrics, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		backend: backend,
		cursors: cursors,
		pool:    workerpool.New(workerpool.DefaultConfig(), logger),
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer("reminder-engine"),
		config:  cfg.normalized(),
	}
}

// RescheduleMedication replaces a medication's registered reminders with a
// freshly computed batch. A disabled reminder flag behaves as CancelAll. An
// invalid schedule aborts before anything is cancelled or registered.
func (e *Engine) RescheduleMedication(ctx context.Context, m *record.Medication, now time.Time) error {
	if !m.ReminderEnabled {
		return e.CancelAll(ctx, record.KindMedication, m.ID)
	}

	occs, err := recurrence.DoseOccurrences(recurrence.DoseSchedule{
		Frequency:  m.Frequency,
		TimesOfDay: m.Times,
		StartDate:  m.StartDate,
		EndDate:    m.EndDate,
	}, now, e.config.Horizon)
	if err != nil {
		return err
	}

	body := "Time to take " + m.Name
	if m.Dosage != "" {
		body = fmt.Sprintf("Time to take %s (%s)", m.Name, m.Dosage)
	}
	return e.apply(ctx, record.KindMedication, m.ID, delivery.Payload{
		Title:          m.Name,
		Body:           body,
		TargetRecordID: m.ID,
	}, occs)
}

// RescheduleAppointment replaces an appointment's reminder. The single
// occurrence fires AppointmentLead before the appointment; if that instant
// is already past, nothing is registered.
func (e *Engine) RescheduleAppointment(ctx context.Context, a *record.Appointment, now time.Time) error {
	if !a.ReminderEnabled {
		return e.CancelAll(ctx, record.KindAppointment, a.ID)
	}

	occs, err := recurrence.AppointmentOccurrences(a.DateTime, e.config.AppointmentLead, now, e.config.Horizon.Location)
	if err != nil {
		return err
	}

	body := "Upcoming appointment"
	if a.Location != "" {
		body += " at " + a.Location
	}
	return e.apply(ctx, record.KindAppointment, a.ID, delivery.Payload{
		Title:          a.Title,
		Body:           body,
		TargetRecordID: a.ID,
	}, occs)
}

// ReschedulePrescription replaces a prescription's expiry reminder. A
// prescription without an expiry date simply has any previous reminder
// cancelled.
func (e *Engine) ReschedulePrescription(ctx context.Context, p *record.Prescription, now time.Time) error {
	occs, err := recurrence.ExpiryOccurrences(p.ExpiryDate, e.config.ExpiryLeadDays, now, e.config.Horizon.Location)
	if err != nil {
		return err
	}

	return e.apply(ctx, record.KindPrescription, p.ID, delivery.Payload{
		Title:          p.MedicationName,
		Body:           "Prescription for " + p.MedicationName + " is expiring soon",
		TargetRecordID: p.ID,
	}, occs)
}

// CancelAll cancels every handle a record may have issued. Used on record
// deletion and when reminders are disabled. Cancellation is best-effort
// throughout; failures are logged and never block.
func (e *Engine) CancelAll(ctx context.Context, kind record.Kind, recordID int64) error {
	ctx, span := e.tracer.Start(ctx, "cancel_all",
		trace.WithAttributes(
			attribute.String("kind", string(kind)),
			attribute.Int64("record_id", recordID),
		))
	defer span.End()

	prev, known := e.previousIndexCount(ctx, kind, recordID)
	cancelled := e.cancelRange(ctx, kind, recordID, prev)

	if err := e.cursors.Clear(ctx, kind, recordID); err != nil {
		e.logger.Warn("failed to clear reminder cursor",
			zap.String("kind", string(kind)),
			zap.Int64("record_id", recordID),
			zap.Error(err))
	}

	if e.metrics != nil && known {
		e.metrics.ActiveReminders.Sub(float64(prev))
	}

	e.logger.Info("reminders cancelled",
		zap.String("kind", string(kind)),
		zap.Int64("record_id", recordID),
		zap.Int("swept", prev),
		zap.Int("cancelled", cancelled))
	return ctx.Err()
}

// apply runs the cancel-then-register sequence. The sequence is not atomic:
// an interruption between the two phases leaves the record with no
// reminders, which fails toward silence rather than duplicate firing.
func (e *Engine) apply(ctx context.Context, kind record.Kind, recordID int64, payload delivery.Payload, occs []recurrence.Occurrence) error {
	ctx, span := e.tracer.Start(ctx, "reschedule",
		trace.WithAttributes(
			attribute.String("kind", string(kind)),
			attribute.Int64("record_id", recordID),
			attribute.Int("occurrences", len(occs)),
		))
	defer span.End()
	start := time.Now()

	prev, known := e.previousIndexCount(ctx, kind, recordID)
	e.cancelRange(ctx, kind, recordID, prev)
	if err := e.cursors.Clear(ctx, kind, recordID); err != nil {
		e.logger.Warn("failed to clear reminder cursor",
			zap.String("kind", string(kind)),
			zap.Int64("record_id", recordID),
			zap.Error(err))
	}
	if e.metrics != nil && known {
		e.metrics.ActiveReminders.Sub(float64(prev))
	}

	if len(occs) == 0 {
		return ctx.Err()
	}

	tasks := make([]workerpool.Task, len(occs))
	for i, occ := range occs {
		handle := identity.Handle(kind, recordID, occ.Index)
		at := occ.At
		tasks[i] = workerpool.Task{
			ID: handle,
			Run: func(ctx context.Context) error {
				return e.backend.Register(ctx, handle, at, payload)
			},
		}
	}

	registered := 0
	for _, res := range e.pool.RunAll(ctx, tasks) {
		if res.Err != nil {
			// Partial registration is tolerated: one missed future reminder
			// is recoverable, the rest of the batch still counts.
			e.logger.Error("reminder registration failed",
				zap.String("kind", string(kind)),
				zap.Int64("record_id", recordID),
				zap.String("handle", res.TaskID),
				zap.Error(res.Err))
			if e.metrics != nil {
				e.metrics.RegistrationFailures.Inc()
			}
			continue
		}
		registered++
	}

	// Record how many indices were issued, successes and failures alike: a
	// later shrink must sweep the full range.
	if err := e.cursors.Set(ctx, kind, recordID, len(occs)); err != nil {
		e.logger.Error("failed to record reminder cursor",
			zap.String("kind", string(kind)),
			zap.Int64("record_id", recordID),
			zap.Error(err))
	}

	if e.metrics != nil {
		e.metrics.RemindersRegistered.Add(float64(registered))
		e.metrics.ActiveReminders.Add(float64(registered))
		e.metrics.RescheduleDuration.Observe(time.Since(start).Seconds())
	}

	e.logger.Info("reminders scheduled",
		zap.String("kind", string(kind)),
		zap.Int64("record_id", recordID),
		zap.Int("occurrences", len(occs)),
		zap.Int("registered", registered))
	return ctx.Err()
}

func (e *Engine) previousIndexCount(ctx context.Context, kind record.Kind, recordID int64) (int, bool) {
	n, ok, err := e.cursors.Get(ctx, kind, recordID)
	if err != nil {
		e.logger.Warn("failed to read reminder cursor, sweeping default range",
			zap.String("kind", string(kind)),
			zap.Int64("record_id", recordID),
			zap.Error(err))
		return e.cancelCap(), false
	}
	if !ok {
		return e.cancelCap(), false
	}
	return n, true
}

// cancelCap is the sweep range used when the ledger has no entry. It always
// covers the engine's own occurrence cap.
func (e *Engine) cancelCap() int {
	if n := e.config.Horizon.MaxOccurrences; n > DefaultCancelCap {
		return n
	}
	return DefaultCancelCap
}

func (e *Engine) cancelRange(ctx context.Context, kind record.Kind, recordID int64, n int) int {
	cancelled := 0
	for _, handle := range identity.Handles(kind, recordID, n) {
		if ctx.Err() != nil {
			return cancelled
		}
		if err := e.backend.Cancel(ctx, handle); err != nil {
			e.logger.Warn("reminder cancel failed",
				zap.String("kind", string(kind)),
				zap.Int64("record_id", recordID),
				zap.String("handle", handle),
				zap.Error(err))
			if e.metrics != nil {
				e.metrics.CancelFailures.Inc()
			}
			continue
		}
		cancelled++
	}
	if e.metrics != nil && cancelled > 0 {
		e.metrics.RemindersCancelled.Add(float64(cancelled))
	}
	return cancelled
}
