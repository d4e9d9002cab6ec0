// Package handlers provides HTTP handlers for the reminder API.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/medtrack/go-remind/internal/engine"
	"github.com/medtrack/go-remind/internal/observability/metrics"
	"github.com/medtrack/go-remind/internal/query"
	"github.com/medtrack/go-remind/internal/store"
)

// API bundles the dependencies shared by every handler.
type API struct {
	records            *store.Records
	engine             *engine.Engine
	metrics            *metrics.Metrics
	logger             *zap.Logger
	clock              func() time.Time
	loc                *time.Location
	expiringWindowDays int
}

// New creates the handler set. metrics may be nil; loc nil means time.Local.
func New(records *store.Records, eng *engine.Engine, m *metrics.Metrics, logger *zap.Logger, loc *time.Location, expiringWindowDays int) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	if expiringWindowDays <= 0 {
		expiringWindowDays = query.DefaultExpiringWindowDays
	}
	return &API{
		records:            records,
		engine:             eng,
		metrics:            m,
		logger:             logger,
		clock:              time.Now,
		loc:                loc,
		expiringWindowDays: expiringWindowDays,
	}
}

// WithClock overrides the clock. Tests use it.
func (a *API) WithClock(clock func() time.Time) *API {
	a.clock = clock
	return a
}

// Routes returns the API routes, mounted under the version prefix by the
// caller.
func (a *API) Routes() chi.Router {
	r := chi.NewRouter()
	r.Mount("/medications", a.medicationRoutes())
	r.Mount("/appointments", a.appointmentRoutes())
	r.Mount("/prescriptions", a.prescriptionRoutes())
	r.Mount("/doctors", a.doctorRoutes())
	r.Get("/summary", a.getSummary)
	return r
}

func (a *API) getSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	meds, err := a.records.ListMedications(ctx)
	if err != nil {
		a.storeError(w, err)
		return
	}
	appts, err := a.records.ListAppointments(ctx)
	if err != nil {
		a.storeError(w, err)
		return
	}
	prescriptions, err := a.records.ListPrescriptions(ctx)
	if err != nil {
		a.storeError(w, err)
		return
	}
	doctors, err := a.records.ListDoctors(ctx)
	if err != nil {
		a.storeError(w, err)
		return
	}

	summary := query.BuildSummary(meds, appts, prescriptions, doctors, a.clock(), a.expiringWindowDays, a.loc)
	a.writeJSON(w, http.StatusOK, summary)
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("response encode failed", zap.Error(err))
	}
}

func (a *API) jsonError(w http.ResponseWriter, msg string, status int) {
	a.writeJSON(w, status, map[string]string{"error": msg})
}

func (a *API) storeError(w http.ResponseWriter, err error) {
	a.logger.Error("record store error", zap.Error(err))
	a.jsonError(w, "storage unavailable", http.StatusInternalServerError)
}

func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}
