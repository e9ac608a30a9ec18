package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/carelink/telemed-booking/internal/appointment"
	"github.com/carelink/telemed-booking/internal/identity"
	"github.com/carelink/telemed-booking/internal/observability/metrics"
)

const recentActivityLimit = 10

type billingHandlers struct {
	*handlers
	metrics *metrics.BookingMetrics
}

func (h *billingHandlers) doctorBillingReport(w http.ResponseWriter, r *http.Request) {
	doctorRef, err := uuid.Parse(chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_ref", "ref must be a valid UUID")
		return
	}

	from, to, verr := parseDateRange(r)
	if verr != nil {
		writeValidationError(w, verr)
		return
	}

	report, err := h.billing.DoctorReport(r.Context(), doctorRef, from, to)
	if err != nil {
		if errors.Is(err, identity.ErrDoctorNotFound) {
			writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
			return
		}
		h.internalError(w, r, err)
		return
	}

	h.metrics.ObserveReport("doctor")
	writeJSON(w, http.StatusOK, report)
}

func (h *billingHandlers) adminStats(w http.ResponseWriter, r *http.Request) {
	from, to, verr := parseDateRange(r)
	if verr != nil {
		writeValidationError(w, verr)
		return
	}

	report, err := h.billing.SystemReport(r.Context(), from, to)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	recent, err := h.appointments.ListRecent(r.Context(), recentActivityLimit)
	if err != nil {
		// The committed report still stands; the snapshot is an
		// enrichment that can fail on its own.
		h.log.Error("recent activity snapshot", "request_id", GetRequestID(r.Context()), "error", err)
		recent = nil
	}

	h.metrics.ObserveReport("system")
	writeJSON(w, http.StatusOK, AdminStatsResponse{
		Report:         report,
		RecentActivity: toDetailResponses(recent),
	})
}

// parseDateRange reads the optional from/to query parameters; both
// bounds are independently applicable.
func parseDateRange(r *http.Request) (from, to *time.Time, verr *appointment.ValidationError) {
	verr = &appointment.ValidationError{}

	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(appointment.DateLayout, v)
		if err != nil {
			verr.Fields = append(verr.Fields, appointment.FieldError{Field: "from", Message: "must be a calendar date in YYYY-MM-DD form"})
		} else {
			from = &t
		}
	}

	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(appointment.DateLayout, v)
		if err != nil {
			verr.Fields = append(verr.Fields, appointment.FieldError{Field: "to", Message: "must be a calendar date in YYYY-MM-DD form"})
		} else {
			to = &t
		}
	}

	if len(verr.Fields) == 0 {
		verr = nil
	}
	return from, to, verr
}
