package store

import (
	"context"
	"testing"
	"time"

	"github.com/medtrack/go-remind/internal/domain/record"
)

func newTestRecords() *Records {
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return NewRecords(NewMemory(), nil).WithClock(func() time.Time { return clock })
}

func TestUpsertAssignsSequentialIDs(t *testing.T) {
	r := newTestRecords()
	ctx := context.Background()

	first := &record.Medication{Name: "Lisinopril"}
	second := &record.Medication{Name: "Metformin"}
	if err := r.UpsertMedication(ctx, first); err != nil {
		t.Fatalf("upsert first: %v", err)
	}
	if err := r.UpsertMedication(ctx, second); err != nil {
		t.Fatalf("upsert second: %v", err)
	}
	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("ids = %d, %d, want 1, 2", first.ID, second.ID)
	}
	if first.CreatedAt.IsZero() || first.UpdatedAt.IsZero() {
		t.Fatal("timestamps not set on insert")
	}

	meds, err := r.ListMedications(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(meds) != 2 {
		t.Fatalf("got %d medications, want 2", len(meds))
	}
}

func TestUpsertExistingUpdatesInPlace(t *testing.T) {
	r := newTestRecords()
	ctx := context.Background()

	m := &record.Medication{Name: "Lisinopril", Dosage: "10mg"}
	if err := r.UpsertMedication(ctx, m); err != nil {
		t.Fatalf("insert: %v", err)
	}

	m.Dosage = "20mg"
	if err := r.UpsertMedication(ctx, m); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := r.GetMedication(ctx, m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Dosage != "20mg" {
		t.Fatalf("update not persisted: %+v", got)
	}

	meds, _ := r.ListMedications(ctx)
	if len(meds) != 1 {
		t.Fatalf("update duplicated the record: %d entries", len(meds))
	}
}

func TestUpsertPreservesCreatedAtOnEdit(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r := NewRecords(NewMemory(), nil).WithClock(func() time.Time { return now })
	ctx := context.Background()

	m := &record.Medication{Name: "Lisinopril", Dosage: "10mg"}
	if err := r.UpsertMedication(ctx, m); err != nil {
		t.Fatalf("insert: %v", err)
	}
	created := m.CreatedAt

	// Clients decode a fresh struct on PUT and never echo created_at.
	now = now.Add(time.Hour)
	edit := &record.Medication{ID: m.ID, Name: "Lisinopril", Dosage: "20mg"}
	if err := r.UpsertMedication(ctx, edit); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := r.GetMedication(ctx, m.ID)
	if err != nil || got == nil {
		t.Fatalf("get = (%+v, %v)", got, err)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("CreatedAt = %v after edit, want %v", got.CreatedAt, created)
	}
	if !got.UpdatedAt.Equal(now) {
		t.Fatalf("UpdatedAt = %v after edit, want %v", got.UpdatedAt, now)
	}
}

func TestDeletedIDsAreNeverReused(t *testing.T) {
	r := newTestRecords()
	ctx := context.Background()

	m := &record.Medication{Name: "Lisinopril"}
	if err := r.UpsertMedication(ctx, m); err != nil {
		t.Fatalf("insert: %v", err)
	}
	deleted, err := r.DeleteMedication(ctx, m.ID)
	if err != nil || !deleted {
		t.Fatalf("delete = (%v, %v), want (true, nil)", deleted, err)
	}

	next := &record.Medication{Name: "Metformin"}
	if err := r.UpsertMedication(ctx, next); err != nil {
		t.Fatalf("insert after delete: %v", err)
	}
	if next.ID == m.ID {
		t.Fatalf("id %d was reused after deletion", next.ID)
	}
}

func TestDeleteAbsentReportsFalse(t *testing.T) {
	r := newTestRecords()
	deleted, err := r.DeleteMedication(context.Background(), 99)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted {
		t.Fatal("deleting an absent record reported true")
	}
}

func TestGetAbsentReturnsNil(t *testing.T) {
	r := newTestRecords()
	got, err := r.GetMedication(context.Background(), 99)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("got %+v, want nil", got)
	}
}

func TestDoseEventsFilteredByMedication(t *testing.T) {
	r := newTestRecords()
	ctx := context.Background()

	for _, medID := range []int64{1, 1, 2} {
		e := &record.DoseEvent{MedicationID: medID, Status: record.DoseTaken}
		if err := r.AppendDoseEvent(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	events, err := r.ListDoseEvents(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events for medication 1, want 2", len(events))
	}
	for _, e := range events {
		if e.MedicationID != 1 {
			t.Errorf("event %d belongs to medication %d", e.ID, e.MedicationID)
		}
	}
}

func TestCursorsRoundTrip(t *testing.T) {
	kv := NewMemory()
	c := NewCursors(kv)
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, record.KindMedication, 1); err != nil || ok {
		t.Fatalf("fresh cursor = (ok=%v, err=%v), want unknown", ok, err)
	}
	if err := c.Set(ctx, record.KindMedication, 1, 7); err != nil {
		t.Fatalf("set: %v", err)
	}
	n, ok, err := c.Get(ctx, record.KindMedication, 1)
	if err != nil || !ok || n != 7 {
		t.Fatalf("cursor = (%d, %v, %v), want (7, true, nil)", n, ok, err)
	}
	if err := c.Clear(ctx, record.KindMedication, 1); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := c.Get(ctx, record.KindMedication, 1); ok {
		t.Fatal("cursor survived clear")
	}
}
