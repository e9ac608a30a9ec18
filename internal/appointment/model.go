package appointment

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire and storage format for appointment dates.
// Dates are calendar dates, time-zone naive.
const DateLayout = "2006-01-02"

type AppointmentType string

const (
	TypeVideo AppointmentType = "video"
	TypePhone AppointmentType = "phone"
	TypeChat  AppointmentType = "chat"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// Appointment is the central record. A slot is the (DoctorID, Date,
// Time) tuple; Time is kept as the raw HH:MM string the caller booked
// with, so slots are points, not intervals.
type Appointment struct {
	ID            uuid.UUID
	PatientID     uuid.UUID
	DoctorID      uuid.UUID
	Date          time.Time
	Time          string
	Type          AppointmentType
	Status        AppointmentStatus
	PaymentStatus PaymentStatus
	PaymentID     *string
	Amount        int64 // minor currency units, fixed at creation
	MeetingLink   *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// AppointmentDetail joins display data for the read paths. The join is
// a response convenience; the appointment row is the source of truth.
type AppointmentDetail struct {
	Appointment
	PatientName     string
	DoctorName      string
	DoctorSpecialty *string
}
