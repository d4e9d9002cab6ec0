package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/medtrack/go-remind/internal/delivery"
	"github.com/medtrack/go-remind/internal/domain/record"
	"github.com/medtrack/go-remind/internal/identity"
	"github.com/medtrack/go-remind/internal/recurrence"
	"github.com/medtrack/go-remind/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *delivery.Memory, *store.Cursors) {
	t.Helper()
	kv := store.NewMemory()
	cursors := store.NewCursors(kv)
	backend := delivery.NewMemory()
	eng := New(backend, cursors, Config{
		Horizon: recurrence.HorizonPolicy{Location: time.UTC},
	}, nil, zap.NewNop())
	return eng, backend, cursors
}

func testMedication() *record.Medication {
	return &record.Medication{
		ID:              1,
		Name:            "Lisinopril",
		Dosage:          "10mg",
		Frequency:       record.FrequencyDaily,
		Times:           []string{"08:00", "20:00"},
		StartDate:       "2024-01-01",
		EndDate:         "2024-01-03",
		ReminderEnabled: true,
	}
}

var testNow = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func TestRescheduleMedicationRegistersBatch(t *testing.T) {
	eng, backend, cursors := newTestEngine(t)
	ctx := context.Background()

	if err := eng.RescheduleMedication(ctx, testMedication(), testNow); err != nil {
		t.Fatalf("RescheduleMedication: %v", err)
	}
	if backend.Len() != 5 {
		t.Fatalf("registered %d reminders, want 5", backend.Len())
	}

	n, ok, err := cursors.Get(ctx, record.KindMedication, 1)
	if err != nil || !ok || n != 5 {
		t.Fatalf("cursor = (%d, %v, %v), want (5, true, nil)", n, ok, err)
	}

	// Handles must be the deterministic kind|id|index digests.
	regs := backend.Registered()
	for i := 0; i < 5; i++ {
		if _, ok := regs[identity.Handle(record.KindMedication, 1, i)]; !ok {
			t.Errorf("missing registration for index %d", i)
		}
	}
}

func TestRescheduleIsIdempotent(t *testing.T) {
	eng, backend, _ := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := eng.RescheduleMedication(ctx, testMedication(), testNow); err != nil {
			t.Fatalf("reschedule %d: %v", i, err)
		}
	}
	if backend.Len() != 5 {
		t.Fatalf("repeat reschedules duplicated reminders: %d registered, want 5", backend.Len())
	}
}

func TestShrinkCancelsStaleHandles(t *testing.T) {
	eng, backend, _ := newTestEngine(t)
	ctx := context.Background()

	m := testMedication()
	if err := eng.RescheduleMedication(ctx, m, testNow); err != nil {
		t.Fatalf("initial reschedule: %v", err)
	}

	// Drop to one time of day: 5 occurrences become 2.
	m.Times = []string{"20:00"}
	if err := eng.RescheduleMedication(ctx, m, testNow); err != nil {
		t.Fatalf("shrunk reschedule: %v", err)
	}

	if backend.Len() != 2 {
		t.Fatalf("stale handles survived the shrink: %d registered, want 2", backend.Len())
	}
	regs := backend.Registered()
	for i := 2; i < 5; i++ {
		if _, ok := regs[identity.Handle(record.KindMedication, 1, i)]; ok {
			t.Errorf("handle for old index %d still registered", i)
		}
	}
}

func TestDisabledReminderCancelsAll(t *testing.T) {
	eng, backend, cursors := newTestEngine(t)
	ctx := context.Background()

	m := testMedication()
	if err := eng.RescheduleMedication(ctx, m, testNow); err != nil {
		t.Fatalf("initial reschedule: %v", err)
	}

	m.ReminderEnabled = false
	if err := eng.RescheduleMedication(ctx, m, testNow); err != nil {
		t.Fatalf("disable reschedule: %v", err)
	}
	if backend.Len() != 0 {
		t.Fatalf("disabled medication still has %d reminders", backend.Len())
	}
	if _, ok, _ := cursors.Get(ctx, record.KindMedication, 1); ok {
		t.Fatal("cursor survived a cancel-all")
	}
}

func TestInvalidScheduleAbortsBeforeCancelling(t *testing.T) {
	eng, backend, _ := newTestEngine(t)
	ctx := context.Background()

	m := testMedication()
	if err := eng.RescheduleMedication(ctx, m, testNow); err != nil {
		t.Fatalf("initial reschedule: %v", err)
	}

	bad := testMedication()
	bad.Times = []string{"25:99"}
	err := eng.RescheduleMedication(ctx, bad, testNow)
	if !errors.Is(err, recurrence.ErrInvalidRecurrence) {
		t.Fatalf("got %v, want ErrInvalidRecurrence", err)
	}
	if backend.Len() != 5 {
		t.Fatalf("invalid reschedule touched existing reminders: %d left, want 5", backend.Len())
	}
}

func TestPartialRegistrationTolerated(t *testing.T) {
	eng, backend, cursors := newTestEngine(t)
	ctx := context.Background()

	rejected := identity.Handle(record.KindMedication, 1, 2)
	backend.RejectRegister = func(handle string, _ time.Time) error {
		if handle == rejected {
			return fmt.Errorf("broker unavailable")
		}
		return nil
	}

	if err := eng.RescheduleMedication(ctx, testMedication(), testNow); err != nil {
		t.Fatalf("partial failure must not fail the reschedule: %v", err)
	}
	if backend.Len() != 4 {
		t.Fatalf("got %d registrations, want 4", backend.Len())
	}

	// The cursor still covers the full issued range so a later reschedule
	// sweeps every index.
	n, ok, _ := cursors.Get(ctx, record.KindMedication, 1)
	if !ok || n != 5 {
		t.Fatalf("cursor = (%d, %v), want (5, true)", n, ok)
	}
}

func TestCancelAllWithUnknownCursorSweepsDefaultRange(t *testing.T) {
	eng, backend, cursors := newTestEngine(t)
	ctx := context.Background()

	// An open-ended six-dose schedule issues well over 256 handles inside
	// the default 60-day horizon; the ledger-loss sweep must cover all of
	// them.
	m := testMedication()
	m.EndDate = ""
	m.Times = []string{"06:00", "09:00", "12:00", "15:00", "18:00", "21:00"}
	if err := eng.RescheduleMedication(ctx, m, testNow); err != nil {
		t.Fatalf("initial reschedule: %v", err)
	}
	if backend.Len() <= 256 {
		t.Fatalf("setup issued only %d handles, need more than 256", backend.Len())
	}

	// Simulate ledger loss.
	if err := cursors.Clear(ctx, record.KindMedication, 1); err != nil {
		t.Fatalf("clear cursor: %v", err)
	}

	if err := eng.CancelAll(ctx, record.KindMedication, 1); err != nil {
		t.Fatalf("CancelAll: %v", err)
	}
	if backend.Len() != 0 {
		t.Fatalf("default sweep left %d orphan handles", backend.Len())
	}
}

func TestRescheduleAppointmentWithinLeadRegistersNothing(t *testing.T) {
	eng, backend, _ := newTestEngine(t)
	ctx := context.Background()

	a := &record.Appointment{
		ID:              3,
		Title:           "Cardiology",
		DateTime:        "2024-01-01T09:30",
		ReminderEnabled: true,
	}
	if err := eng.RescheduleAppointment(ctx, a, testNow); err != nil {
		t.Fatalf("RescheduleAppointment: %v", err)
	}
	if backend.Len() != 0 {
		t.Fatalf("appointment inside the lead registered %d reminders", backend.Len())
	}

	a.DateTime = "2024-01-02T09:30"
	if err := eng.RescheduleAppointment(ctx, a, testNow); err != nil {
		t.Fatalf("RescheduleAppointment: %v", err)
	}
	regs := backend.Registered()
	reg, ok := regs[identity.Handle(record.KindAppointment, 3, 0)]
	if !ok {
		t.Fatal("future appointment registered no reminder")
	}
	want := time.Date(2024, 1, 2, 8, 30, 0, 0, time.UTC)
	if !reg.At.Equal(want) {
		t.Fatalf("reminder at %v, want %v", reg.At, want)
	}
}

func TestReschedulePrescriptionWithoutExpiryCancels(t *testing.T) {
	eng, backend, _ := newTestEngine(t)
	ctx := context.Background()

	p := &record.Prescription{ID: 9, MedicationName: "Metformin", ExpiryDate: "2024-02-01"}
	if err := eng.ReschedulePrescription(ctx, p, testNow); err != nil {
		t.Fatalf("ReschedulePrescription: %v", err)
	}
	if backend.Len() != 1 {
		t.Fatalf("got %d registrations, want 1", backend.Len())
	}

	p.ExpiryDate = ""
	if err := eng.ReschedulePrescription(ctx, p, testNow); err != nil {
		t.Fatalf("ReschedulePrescription: %v", err)
	}
	if backend.Len() != 0 {
		t.Fatalf("cleared expiry left %d registrations", backend.Len())
	}
}
