package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/carelink/telemed-booking/internal/appointment"
	"github.com/carelink/telemed-booking/internal/billing"
)

type CreateAppointmentRequest struct {
	PatientID     string `json:"patient_id"`
	DoctorRef     string `json:"doctor_ref"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Type          string `json:"type"`
	Amount        int64  `json:"amount"`
	Status        string `json:"status,omitempty"`
	PaymentStatus string `json:"payment_status,omitempty"`
}

// UpdateAppointmentRequest mirrors the partial-update contract: absent
// fields stay unchanged. Unknown fields are rejected at decode time.
type UpdateAppointmentRequest struct {
	Status        *string `json:"status"`
	PaymentStatus *string `json:"payment_status"`
	PaymentID     *string `json:"payment_id"`
	MeetingLink   *string `json:"meeting_link"`
}

type AppointmentResponse struct {
	ID            uuid.UUID `json:"id"`
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	Type          string    `json:"type"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	PaymentID     *string   `json:"payment_id,omitempty"`
	Amount        int64     `json:"amount"`
	MeetingLink   *string   `json:"meeting_link,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type AppointmentDetailResponse struct {
	AppointmentResponse
	PatientName     string  `json:"patient_name"`
	DoctorName      string  `json:"doctor_name"`
	DoctorSpecialty *string `json:"doctor_specialty,omitempty"`
}

type DeleteAppointmentResponse struct {
	ID      uuid.UUID `json:"id"`
	Deleted bool      `json:"deleted"`
}

type AdminStatsResponse struct {
	Report         *billing.Report             `json:"report"`
	RecentActivity []AppointmentDetailResponse `json:"recent_activity"`
}

type ErrorResponse struct {
	Error   string               `json:"error"`
	Details string               `json:"details,omitempty"`
	Fields  []FieldErrorResponse `json:"fields,omitempty"`
}

type FieldErrorResponse struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:            a.ID,
		PatientID:     a.PatientID,
		DoctorID:      a.DoctorID,
		Date:          a.Date.Format(appointment.DateLayout),
		Time:          a.Time,
		Type:          string(a.Type),
		Status:        string(a.Status),
		PaymentStatus: string(a.PaymentStatus),
		PaymentID:     a.PaymentID,
		Amount:        a.Amount,
		MeetingLink:   a.MeetingLink,
		CreatedAt:     a.CreatedAt,
	}
}

func toDetailResponses(details []appointment.AppointmentDetail) []AppointmentDetailResponse {
	out := make([]AppointmentDetailResponse, 0, len(details))
	for i := range details {
		d := &details[i]
		out = append(out, AppointmentDetailResponse{
			AppointmentResponse: toAppointmentResponse(&d.Appointment),
			PatientName:         d.PatientName,
			DoctorName:          d.DoctorName,
			DoctorSpecialty:     d.DoctorSpecialty,
		})
	}
	return out
}
