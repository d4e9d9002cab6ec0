package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/medtrack/go-remind/internal/domain/record"
	"github.com/medtrack/go-remind/internal/recurrence"
)

func (a *API) medicationRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", a.listMedications)
	r.Post("/", a.createMedication)
	r.Get("/{id}", a.getMedication)
	r.Put("/{id}", a.updateMedication)
	r.Delete("/{id}", a.deleteMedication)
	r.Get("/{id}/doses", a.listDoses)
	r.Post("/{id}/doses", a.recordDose)
	return r
}

func (a *API) listMedications(w http.ResponseWriter, r *http.Request) {
	meds, err := a.records.ListMedications(r.Context())
	if err != nil {
		a.storeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, meds)
}

func (a *API) getMedication(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		a.jsonError(w, "bad medication id", http.StatusBadRequest)
		return
	}
	m, err := a.records.GetMedication(r.Context(), id)
	if err != nil {
		a.storeError(w, err)
		return
	}
	if m == nil {
		a.jsonError(w, "medication not found", http.StatusNotFound)
		return
	}
	a.writeJSON(w, http.StatusOK, m)
}

func (a *API) createMedication(w http.ResponseWriter, r *http.Request) {
	a.saveMedication(w, r, 0)
}

func (a *API) updateMedication(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		a.jsonError(w, "bad medication id", http.StatusBadRequest)
		return
	}
	a.saveMedication(w, r, id)
}

// saveMedication validates the schedule before anything is persisted or
// rescheduled: a record that cannot produce occurrences is rejected whole.
func (a *API) saveMedication(w http.ResponseWriter, r *http.Request, id int64) {
	ctx := r.Context()

	var m record.Medication
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		a.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	m.ID = id
	if m.Name == "" {
		a.jsonError(w, "name is required", http.StatusBadRequest)
		return
	}

	if err := recurrence.ValidateDoseSchedule(recurrence.DoseSchedule{
		Frequency:  m.Frequency,
		TimesOfDay: m.Times,
		StartDate:  m.StartDate,
		EndDate:    m.EndDate,
	}, a.loc); err != nil {
		a.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := a.records.UpsertMedication(ctx, &m); err != nil {
		a.storeError(w, err)
		return
	}
	if a.metrics != nil {
		a.metrics.RecordsUpserted.WithLabelValues(string(record.KindMedication)).Inc()
	}

	a.reschedule(ctx, func() error {
		return a.engine.RescheduleMedication(ctx, &m, a.clock())
	}, record.KindMedication, m.ID)

	status := http.StatusOK
	if id == 0 {
		status = http.StatusCreated
	}
	a.writeJSON(w, status, &m)
}

func (a *API) deleteMedication(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		a.jsonError(w, "bad medication id", http.StatusBadRequest)
		return
	}
	deleted, err := a.records.DeleteMedication(r.Context(), id)
	if err != nil {
		a.storeError(w, err)
		return
	}
	if !deleted {
		a.jsonError(w, "medication not found", http.StatusNotFound)
		return
	}
	a.cancelAll(r.Context(), record.KindMedication, id)
	w.WriteHeader(http.StatusNoContent)
}

type doseRequest struct {
	Status  record.DoseStatus `json:"status"`
	TakenAt string            `json:"taken_at,omitempty"`
	Notes   string            `json:"notes,omitempty"`
}

func (a *API) recordDose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := idParam(r)
	if !ok {
		a.jsonError(w, "bad medication id", http.StatusBadRequest)
		return
	}
	m, err := a.records.GetMedication(ctx, id)
	if err != nil {
		a.storeError(w, err)
		return
	}
	if m == nil {
		a.jsonError(w, "medication not found", http.StatusNotFound)
		return
	}

	var req doseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	switch req.Status {
	case record.DoseTaken, record.DoseMissed, record.DoseSkipped:
	default:
		a.jsonError(w, "status must be taken, missed or skipped", http.StatusBadRequest)
		return
	}

	takenAt := a.clock()
	if req.TakenAt != "" {
		takenAt, err = recurrence.ParseInstant(req.TakenAt, a.loc)
		if err != nil {
			a.jsonError(w, "bad taken_at timestamp", http.StatusBadRequest)
			return
		}
	}

	event := record.DoseEvent{
		MedicationID: id,
		TakenAt:      takenAt,
		Status:       req.Status,
		Notes:        req.Notes,
	}
	if err := a.records.AppendDoseEvent(ctx, &event); err != nil {
		a.storeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, &event)
}

func (a *API) listDoses(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		a.jsonError(w, "bad medication id", http.StatusBadRequest)
		return
	}
	events, err := a.records.ListDoseEvents(r.Context(), id)
	if err != nil {
		a.storeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, events)
}

// reschedule runs an engine operation after a successful save. Scheduling
// trouble never fails the request; the record is saved either way and the
// horizon relay will retry on its next sweep.
func (a *API) reschedule(ctx context.Context, op func() error, kind record.Kind, id int64) {
	if err := op(); err != nil && !errors.Is(err, recurrence.ErrInvalidRecurrence) {
		a.logger.Error("reschedule after save failed",
			zap.String("kind", string(kind)),
			zap.Int64("record_id", id),
			zap.Error(err))
	}
}

func (a *API) cancelAll(ctx context.Context, kind record.Kind, id int64) {
	if err := a.engine.CancelAll(ctx, kind, id); err != nil {
		a.logger.Error("cancel after delete failed",
			zap.String("kind", string(kind)),
			zap.Int64("record_id", id),
			zap.Error(err))
	}
}
