package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/medtrack/go-remind/internal/domain/record"
)

// entity is the pointer contract every stored record type satisfies.
type entity[T any] interface {
	*T
	EntityID() int64
	SetEntityID(int64)
	Created() time.Time
	SetCreated(t time.Time)
	Touch(created bool, now time.Time)
}

// Records is the CRUD record store: one JSON array per kind, insertion
// ordered, with IDs issued from a per-kind sequence. Ordering for queries is
// applied at read time by the caller.
type Records struct {
	kv     KV
	clock  func() time.Time
	logger *zap.Logger
}

// NewRecords creates a record store on top of kv.
func NewRecords(kv KV, logger *zap.Logger) *Records {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Records{kv: kv, clock: time.Now, logger: logger}
}

// WithClock overrides the timestamp source. Test hook.
func (r *Records) WithClock(clock func() time.Time) *Records {
	r.clock = clock
	return r
}

func recordsKey(kind record.Kind) string { return "records/" + string(kind) }
func seqKey(kind record.Kind) string     { return "seq/" + string(kind) }

func listAll[T any](ctx context.Context, r *Records, kind record.Kind) ([]T, error) {
	data, ok, err := r.kv.Get(ctx, recordsKey(kind))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode %s records: %w", kind, err)
	}
	return items, nil
}

func saveAll[T any](ctx context.Context, r *Records, kind record.Kind, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s records: %w", kind, err)
	}
	return r.kv.Set(ctx, recordsKey(kind), data)
}

func getOne[T any, PT entity[T]](ctx context.Context, r *Records, kind record.Kind, id int64) (PT, error) {
	items, err := listAll[T](ctx, r, kind)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if PT(&items[i]).EntityID() == id {
			return &items[i], nil
		}
	}
	return nil, nil
}

func upsertOne[T any, PT entity[T]](ctx context.Context, r *Records, kind record.Kind, item PT) error {
	items, err := listAll[T](ctx, r, kind)
	if err != nil {
		return err
	}
	now := r.clock()

	if item.EntityID() == 0 {
		id, err := r.nextID(ctx, kind)
		if err != nil {
			return err
		}
		item.SetEntityID(id)
		item.Touch(true, now)
		items = append(items, *(*T)(item))
		return saveAll(ctx, r, kind, items)
	}

	for i := range items {
		if PT(&items[i]).EntityID() == item.EntityID() {
			// Timestamps belong to the store: an update carries the stored
			// creation time forward, whatever the caller decoded.
			item.SetCreated(PT(&items[i]).Created())
			item.Touch(false, now)
			items[i] = *(*T)(item)
			return saveAll(ctx, r, kind, items)
		}
	}
	// Unknown explicit ID: treat as insert, keeping the caller's ID.
	item.Touch(true, now)
	items = append(items, *(*T)(item))
	return saveAll(ctx, r, kind, items)
}

func deleteOne[T any, PT entity[T]](ctx context.Context, r *Records, kind record.Kind, id int64) (bool, error) {
	items, err := listAll[T](ctx, r, kind)
	if err != nil {
		return false, err
	}
	for i := range items {
		if PT(&items[i]).EntityID() == id {
			items = append(items[:i], items[i+1:]...)
			return true, saveAll(ctx, r, kind, items)
		}
	}
	return false, nil
}

// nextID issues a monotonically increasing ID per kind. IDs of deleted
// records are never reused, so stale reminder handles can never be claimed
// by a new record.
func (r *Records) nextID(ctx context.Context, kind record.Kind) (int64, error) {
	key := seqKey(kind)
	data, ok, err := r.kv.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	var last int64
	if ok {
		last, err = strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("corrupt sequence for %s: %w", kind, err)
		}
	}
	next := last + 1
	if err := r.kv.Set(ctx, key, []byte(strconv.FormatInt(next, 10))); err != nil {
		return 0, err
	}
	return next, nil
}

// Medications

func (r *Records) ListMedications(ctx context.Context) ([]record.Medication, error) {
	return listAll[record.Medication](ctx, r, record.KindMedication)
}

func (r *Records) GetMedication(ctx context.Context, id int64) (*record.Medication, error) {
	return getOne[record.Medication](ctx, r, record.KindMedication, id)
}

func (r *Records) UpsertMedication(ctx context.Context, m *record.Medication) error {
	return upsertOne[record.Medication](ctx, r, record.KindMedication, m)
}

func (r *Records) DeleteMedication(ctx context.Context, id int64) (bool, error) {
	return deleteOne[record.Medication](ctx, r, record.KindMedication, id)
}

// Appointments

func (r *Records) ListAppointments(ctx context.Context) ([]record.Appointment, error) {
	return listAll[record.Appointment](ctx, r, record.KindAppointment)
}

func (r *Records) GetAppointment(ctx context.Context, id int64) (*record.Appointment, error) {
	return getOne[record.Appointment](ctx, r, record.KindAppointment, id)
}

func (r *Records) UpsertAppointment(ctx context.Context, a *record.Appointment) error {
	return upsertOne[record.Appointment](ctx, r, record.KindAppointment, a)
}

func (r *Records) DeleteAppointment(ctx context.Context, id int64) (bool, error) {
	return deleteOne[record.Appointment](ctx, r, record.KindAppointment, id)
}

// Prescriptions

func (r *Records) ListPrescriptions(ctx context.Context) ([]record.Prescription, error) {
	return listAll[record.Prescription](ctx, r, record.KindPrescription)
}

func (r *Records) GetPrescription(ctx context.Context, id int64) (*record.Prescription, error) {
	return getOne[record.Prescription](ctx, r, record.KindPrescription, id)
}

func (r *Records) UpsertPrescription(ctx context.Context, p *record.Prescription) error {
	return upsertOne[record.Prescription](ctx, r, record.KindPrescription, p)
}

func (r *Records) DeletePrescription(ctx context.Context, id int64) (bool, error) {
	return deleteOne[record.Prescription](ctx, r, record.KindPrescription, id)
}

// Doctors

func (r *Records) ListDoctors(ctx context.Context) ([]record.Doctor, error) {
	return listAll[record.Doctor](ctx, r, record.KindDoctor)
}

func (r *Records) GetDoctor(ctx context.Context, id int64) (*record.Doctor, error) {
	return getOne[record.Doctor](ctx, r, record.KindDoctor, id)
}

func (r *Records) UpsertDoctor(ctx context.Context, d *record.Doctor) error {
	return upsertOne[record.Doctor](ctx, r, record.KindDoctor, d)
}

func (r *Records) DeleteDoctor(ctx context.Context, id int64) (bool, error) {
	return deleteOne[record.Doctor](ctx, r, record.KindDoctor, id)
}

// Dose history

const kindDoseEvent record.Kind = "dose_event"

// AppendDoseEvent records one taken/missed/skipped entry for a medication.
func (r *Records) AppendDoseEvent(ctx context.Context, e *record.DoseEvent) error {
	return upsertOne[record.DoseEvent](ctx, r, kindDoseEvent, e)
}

// ListDoseEvents returns the dose history for one medication, insertion
// ordered (oldest first).
func (r *Records) ListDoseEvents(ctx context.Context, medicationID int64) ([]record.DoseEvent, error) {
	all, err := listAll[record.DoseEvent](ctx, r, kindDoseEvent)
	if err != nil {
		return nil, err
	}
	var out []record.DoseEvent
	for _, e := range all {
		if e.MedicationID == medicationID {
			out = append(out, e)
		}
	}
	return out, nil
}
