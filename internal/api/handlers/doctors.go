package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medtrack/go-remind/internal/domain/record"
)

func (a *API) doctorRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", a.listDoctors)
	r.Post("/", a.createDoctor)
	r.Get("/{id}", a.getDoctor)
	r.Put("/{id}", a.updateDoctor)
	r.Delete("/{id}", a.deleteDoctor)
	return r
}

func (a *API) listDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := a.records.ListDoctors(r.Context())
	if err != nil {
		a.storeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, doctors)
}

func (a *API) getDoctor(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		a.jsonError(w, "bad doctor id", http.StatusBadRequest)
		return
	}
	d, err := a.records.GetDoctor(r.Context(), id)
	if err != nil {
		a.storeError(w, err)
		return
	}
	if d == nil {
		a.jsonError(w, "doctor not found", http.StatusNotFound)
		return
	}
	a.writeJSON(w, http.StatusOK, d)
}

func (a *API) createDoctor(w http.ResponseWriter, r *http.Request) {
	a.saveDoctor(w, r, 0)
}

func (a *API) updateDoctor(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		a.jsonError(w, "bad doctor id", http.StatusBadRequest)
		return
	}
	a.saveDoctor(w, r, id)
}

// Doctors carry no reminder source, so saving one never touches the engine.
func (a *API) saveDoctor(w http.ResponseWriter, r *http.Request, id int64) {
	var d record.Doctor
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		a.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	d.ID = id
	if d.Name == "" {
		a.jsonError(w, "name is required", http.StatusBadRequest)
		return
	}

	if err := a.records.UpsertDoctor(r.Context(), &d); err != nil {
		a.storeError(w, err)
		return
	}
	if a.metrics != nil {
		a.metrics.RecordsUpserted.WithLabelValues(string(record.KindDoctor)).Inc()
	}

	status := http.StatusOK
	if id == 0 {
		status = http.StatusCreated
	}
	a.writeJSON(w, status, &d)
}

func (a *API) deleteDoctor(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		a.jsonError(w, "bad doctor id", http.StatusBadRequest)
		return
	}
	deleted, err := a.records.DeleteDoctor(r.Context(), id)
	if err != nil {
		a.storeError(w, err)
		return
	}
	if !deleted {
		a.jsonError(w, "doctor not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
