package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSlotConflict        = errors.New("slot already has an active appointment")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// Conflict guard: true iff a non-cancelled appointment occupies
	// the slot.
	ActiveAppointmentExists(ctx context.Context, doctorID uuid.UUID, date, timeOfDay string) (bool, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// CreateAppointment persists the record; a collision on the active
	// slot index comes back as ErrSlotConflict.
	CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error)

	// UpdateAppointment applies only the fields present in p, as a
	// single atomic write.
	UpdateAppointment(ctx context.Context, id uuid.UUID, p UpdateParams) (*Appointment, error)

	DeleteAppointment(ctx context.Context, id uuid.UUID) error

	// Read paths
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]AppointmentDetail, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]AppointmentDetail, error)
	ListAll(ctx context.Context) ([]AppointmentDetail, error)
	ListRecent(ctx context.Context, limit int) ([]AppointmentDetail, error)

	// Audit trail
	InsertEvent(ctx context.Context, ev EventLog) error
}
