package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/medtrack/go-remind/internal/domain/record"
	"github.com/medtrack/go-remind/internal/query"
	"github.com/medtrack/go-remind/internal/recurrence"
)

func (a *API) prescriptionRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", a.listPrescriptions)
	r.Post("/", a.createPrescription)
	r.Get("/expiring", a.expiringPrescriptions)
	r.Get("/{id}", a.getPrescription)
	r.Put("/{id}", a.updatePrescription)
	r.Delete("/{id}", a.deletePrescription)
	return r
}

// listPrescriptions returns most recently issued first, the order the
// history screen shows.
func (a *API) listPrescriptions(w http.ResponseWriter, r *http.Request) {
	prescriptions, err := a.records.ListPrescriptions(r.Context())
	if err != nil {
		a.storeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, query.PrescriptionsNewestFirst(prescriptions, a.loc))
}

func (a *API) expiringPrescriptions(w http.ResponseWriter, r *http.Request) {
	prescriptions, err := a.records.ListPrescriptions(r.Context())
	if err != nil {
		a.storeError(w, err)
		return
	}

	windowDays := a.expiringWindowDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			a.jsonError(w, "days must be a positive integer", http.StatusBadRequest)
			return
		}
		windowDays = n
	}

	a.writeJSON(w, http.StatusOK, query.ExpiringPrescriptions(prescriptions, a.clock(), windowDays, a.loc))
}

func (a *API) getPrescription(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		a.jsonError(w, "bad prescription id", http.StatusBadRequest)
		return
	}
	p, err := a.records.GetPrescription(r.Context(), id)
	if err != nil {
		a.storeError(w, err)
		return
	}
	if p == nil {
		a.jsonError(w, "prescription not found", http.StatusNotFound)
		return
	}
	a.writeJSON(w, http.StatusOK, p)
}

func (a *API) createPrescription(w http.ResponseWriter, r *http.Request) {
	a.savePrescription(w, r, 0)
}

func (a *API) updatePrescription(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		a.jsonError(w, "bad prescription id", http.StatusBadRequest)
		return
	}
	a.savePrescription(w, r, id)
}

func (a *API) savePrescription(w http.ResponseWriter, r *http.Request, id int64) {
	ctx := r.Context()

	var p record.Prescription
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		a.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	p.ID = id
	if p.MedicationName == "" {
		a.jsonError(w, "medication_name is required", http.StatusBadRequest)
		return
	}
	if p.IssueDate != "" {
		if _, err := recurrence.ParseDay(p.IssueDate, a.loc); err != nil {
			a.jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if p.ExpiryDate != "" {
		if _, err := recurrence.ParseDay(p.ExpiryDate, a.loc); err != nil {
			a.jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if err := a.records.UpsertPrescription(ctx, &p); err != nil {
		a.storeError(w, err)
		return
	}
	if a.metrics != nil {
		a.metrics.RecordsUpserted.WithLabelValues(string(record.KindPrescription)).Inc()
	}

	a.reschedule(ctx, func() error {
		return a.engine.ReschedulePrescription(ctx, &p, a.clock())
	}, record.KindPrescription, p.ID)

	status := http.StatusOK
	if id == 0 {
		status = http.StatusCreated
	}
	a.writeJSON(w, status, &p)
}

func (a *API) deletePrescription(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		a.jsonError(w, "bad prescription id", http.StatusBadRequest)
		return
	}
	deleted, err := a.records.DeletePrescription(r.Context(), id)
	if err != nil {
		a.storeError(w, err)
		return
	}
	if !deleted {
		a.jsonError(w, "prescription not found", http.StatusNotFound)
		return
	}
	a.cancelAll(r.Context(), record.KindPrescription, id)
	w.WriteHeader(http.StatusNoContent)
}
