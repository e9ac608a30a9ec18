package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/carelink/telemed-booking/internal/appointment"
	"github.com/carelink/telemed-booking/internal/identity"
	"github.com/carelink/telemed-booking/pkg/logging"
)

type handlers struct {
	appointments AppointmentService
	billing      BillingService
	log          *logging.Logger
	env          string
}

func (h *handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON: "+err.Error())
		return
	}

	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
		return
	}

	doctorRef, err := uuid.Parse(req.DoctorRef)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_ref", "doctor_ref must be a valid UUID")
		return
	}

	appt, err := h.appointments.Create(r.Context(), appointment.CreateParams{
		PatientID:     patientID,
		DoctorRef:     doctorRef,
		Date:          req.Date,
		Time:          req.Time,
		Type:          req.Type,
		Amount:        req.Amount,
		Status:        req.Status,
		PaymentStatus: req.PaymentStatus,
	})
	if err != nil {
		h.handleCreateError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *handlers) updateAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateAppointmentRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON: "+err.Error())
		return
	}

	appt, err := h.appointments.ApplyUpdate(r.Context(), id, appointment.UpdateParams{
		Status:        req.Status,
		PaymentStatus: req.PaymentStatus,
		PaymentID:     req.PaymentID,
		MeetingLink:   req.MeetingLink,
	})
	if err != nil {
		h.handleUpdateError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) deleteAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if err := h.appointments.Remove(r.Context(), id); err != nil {
		if errors.Is(err, appointment.ErrAppointmentNotFound) {
			writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
			return
		}
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, DeleteAppointmentResponse{ID: id, Deleted: true})
}

func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	details, err := h.appointments.ListAll(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailResponses(details))
}

func (h *handlers) listPatientAppointments(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a valid UUID")
		return
	}

	details, err := h.appointments.ListByPatient(r.Context(), patientID)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailResponses(details))
}

func (h *handlers) listDoctorAppointments(w http.ResponseWriter, r *http.Request) {
	doctorRef, err := uuid.Parse(chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_ref", "ref must be a valid UUID")
		return
	}

	details, err := h.appointments.ListByDoctor(r.Context(), doctorRef)
	if err != nil {
		if errors.Is(err, identity.ErrDoctorNotFound) {
			writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
			return
		}
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailResponses(details))
}

func (h *handlers) handleCreateError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *appointment.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidationError(w, verr)
	case errors.Is(err, appointment.ErrPatientNotFound),
		errors.Is(err, identity.ErrDoctorNotFound):
		writeError(w, http.StatusBadRequest, "invalid_reference", err.Error())
	case errors.Is(err, appointment.ErrSlotConflict):
		writeError(w, http.StatusBadRequest, "slot_conflict", "this slot is already booked, please pick another time")
	default:
		h.internalError(w, r, err)
	}
}

func (h *handlers) handleUpdateError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *appointment.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidationError(w, verr)
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrPaymentReversal):
		writeError(w, http.StatusBadRequest, "payment_reversal", err.Error())
	case errors.Is(err, appointment.ErrSlotConflict):
		writeError(w, http.StatusBadRequest, "slot_conflict", "this slot is already booked, please pick another time")
	default:
		h.internalError(w, r, err)
	}
}

// internalError logs the failure server-side and withholds detail from
// the caller outside dev.
func (h *handlers) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Error("internal error",
		"path", r.URL.Path,
		"request_id", GetRequestID(r.Context()),
		"error", err,
	)

	details := "internal error"
	if strings.EqualFold(h.env, "dev") {
		details = err.Error()
	}
	writeError(w, http.StatusInternalServerError, "internal_error", details)
}

func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}
