package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medtrack/go-remind/internal/domain/record"
	"github.com/medtrack/go-remind/internal/query"
	"github.com/medtrack/go-remind/internal/recurrence"
)

func (a *API) appointmentRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", a.listAppointments)
	r.Post("/", a.createAppointment)
	r.Get("/upcoming", a.upcomingAppointments)
	r.Get("/{id}", a.getAppointment)
	r.Put("/{id}", a.updateAppointment)
	r.Delete("/{id}", a.deleteAppointment)
	return r
}

func (a *API) listAppointments(w http.ResponseWriter, r *http.Request) {
	appts, err := a.records.ListAppointments(r.Context())
	if err != nil {
		a.storeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, appts)
}

func (a *API) upcomingAppointments(w http.ResponseWriter, r *http.Request) {
	appts, err := a.records.ListAppointments(r.Context())
	if err != nil {
		a.storeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, query.UpcomingAppointments(appts, a.clock(), a.loc))
}

func (a *API) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		a.jsonError(w, "bad appointment id", http.StatusBadRequest)
		return
	}
	appt, err := a.records.GetAppointment(r.Context(), id)
	if err != nil {
		a.storeError(w, err)
		return
	}
	if appt == nil {
		a.jsonError(w, "appointment not found", http.StatusNotFound)
		return
	}
	a.writeJSON(w, http.StatusOK, appt)
}

func (a *API) createAppointment(w http.ResponseWriter, r *http.Request) {
	a.saveAppointment(w, r, 0)
}

func (a *API) updateAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		a.jsonError(w, "bad appointment id", http.StatusBadRequest)
		return
	}
	a.saveAppointment(w, r, id)
}

func (a *API) saveAppointment(w http.ResponseWriter, r *http.Request, id int64) {
	ctx := r.Context()

	var appt record.Appointment
	if err := json.NewDecoder(r.Body).Decode(&appt); err != nil {
		a.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	appt.ID = id
	if appt.Title == "" {
		a.jsonError(w, "title is required", http.StatusBadRequest)
		return
	}
	if _, err := recurrence.ParseInstant(appt.DateTime, a.loc); err != nil {
		a.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := a.records.UpsertAppointment(ctx, &appt); err != nil {
		a.storeError(w, err)
		return
	}
	if a.metrics != nil {
		a.metrics.RecordsUpserted.WithLabelValues(string(record.KindAppointment)).Inc()
	}

	a.reschedule(ctx, func() error {
		return a.engine.RescheduleAppointment(ctx, &appt, a.clock())
	}, record.KindAppointment, appt.ID)

	status := http.StatusOK
	if id == 0 {
		status = http.StatusCreated
	}
	a.writeJSON(w, status, &appt)
}

func (a *API) deleteAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		a.jsonError(w, "bad appointment id", http.StatusBadRequest)
		return
	}
	deleted, err := a.records.DeleteAppointment(r.Context(), id)
	if err != nil {
		a.storeError(w, err)
		return
	}
	if !deleted {
		a.jsonError(w, "appointment not found", http.StatusNotFound)
		return
	}
	a.cancelAll(r.Context(), record.KindAppointment, id)
	w.WriteHeader(http.StatusNoContent)
}
