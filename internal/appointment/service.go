package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/telemed-booking/internal/observability/metrics"
	redisclient "github.com/carelink/telemed-booking/internal/redis"
	"github.com/carelink/telemed-booking/pkg/logging"
)

const (
	EventAppointmentBooked  = "APPOINTMENT_BOOKED"
	EventAppointmentUpdated = "APPOINTMENT_UPDATED"
	EventAppointmentDeleted = "APPOINTMENT_DELETED"
)

var (
	ErrPatientNotFound = errors.New("patient not found")

	// ErrPaymentReversal guards the one transition the lifecycle does
	// forbid: paid back to pending.
	ErrPaymentReversal = errors.New("payment status cannot move from paid back to pending")
)

// IdentityResolver is the narrow slice of the identity collaborator the
// lifecycle needs.
type IdentityResolver interface {
	ResolveDoctor(ctx context.Context, ref uuid.UUID) (uuid.UUID, error)
	PatientExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// CreateParams carries a creation request. Date, Time, Type and the
// optional Status/PaymentStatus overrides arrive as raw strings and are
// validated together so the caller sees every field error at once.
type CreateParams struct {
	PatientID     uuid.UUID
	DoctorRef     uuid.UUID
	Date          string
	Time          string
	Type          string
	Amount        int64
	Status        string // optional, defaults to scheduled
	PaymentStatus string // optional, defaults to pending
}

// UpdateParams is the tagged partial-update structure: nil means leave
// the field unchanged. Amount is deliberately absent; it is fixed at
// creation.
type UpdateParams struct {
	Status        *string
	PaymentStatus *string
	PaymentID     *string
	MeetingLink   *string
}

func (p UpdateParams) empty() bool {
	return p.Status == nil && p.PaymentStatus == nil && p.PaymentID == nil && p.MeetingLink == nil
}

type Service struct {
	repo    Repository
	ids     IdentityResolver
	locker  redisclient.Locker
	metrics *metrics.BookingMetrics
	log     *logging.Logger
}

func NewService(repo Repository, ids IdentityResolver, locker redisclient.Locker, m *metrics.BookingMetrics, log *logging.Logger) *Service {
	if log == nil {
		log = logging.Default()
	}
	return &Service{
		repo:    repo,
		ids:     ids,
		locker:  locker,
		metrics: m,
		log:     log,
	}
}

// Create books a slot for a patient. A per-slot distributed lock keeps
// concurrent requests from both passing the conflict check; the partial
// unique index on (doctor_id, date, time) is the final arbiter, and a
// collision there surfaces as the same ErrSlotConflict.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Appointment, error) {
	date, err := validateCreate(p)
	if err != nil {
		return nil, err
	}

	ok, err := s.ids.PatientExists(ctx, p.PatientID)
	if err != nil {
		return nil, fmt.Errorf("check patient: %w", err)
	}
	if !ok {
		return nil, ErrPatientNotFound
	}

	doctorID, err := s.ids.ResolveDoctor(ctx, p.DoctorRef)
	if err != nil {
		return nil, err
	}

	status := StatusScheduled
	if p.Status != "" {
		status = AppointmentStatus(p.Status)
	}
	paymentStatus := PaymentPending
	if p.PaymentStatus != "" {
		paymentStatus = PaymentStatus(p.PaymentStatus)
	}

	var created *Appointment

	book := func(bookCtx context.Context) error {
		taken, err := s.repo.ActiveAppointmentExists(bookCtx, doctorID, p.Date, p.Time)
		if err != nil {
			return fmt.Errorf("check slot: %w", err)
		}
		if taken {
			return ErrSlotConflict
		}

		appt := &Appointment{
			ID:            uuid.New(),
			PatientID:     p.PatientID,
			DoctorID:      doctorID,
			Date:          date,
			Time:          p.Time,
			Type:          AppointmentType(p.Type),
			Status:        status,
			PaymentStatus: paymentStatus,
			Amount:        p.Amount,
		}

		created, err = s.repo.CreateAppointment(bookCtx, appt)
		if err != nil {
			return err
		}

		s.logEvent(bookCtx, created.ID, EventAppointmentBooked, map[string]any{
			"patient_id": p.PatientID.String(),
			"doctor_id":  doctorID.String(),
			"date":       p.Date,
			"time":       p.Time,
			"amount":     p.Amount,
		})

		return nil
	}

	err = s.locker.WithSlotLock(ctx, doctorID, p.Date, p.Time, book)
	if errors.Is(err, redisclient.ErrLockUnavailable) {
		// The active-slot index still rejects double booking, so a down
		// lock store only costs the early conflict check.
		s.log.Warn("slot lock unavailable, booking against storage constraint only",
			"doctor_id", doctorID.String(),
			"date", p.Date,
			"time", p.Time,
			"error", err,
		)
		err = book(ctx)
	}

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			// Another request holds the slot; to the caller this is the
			// same outcome as losing the race outright.
			s.metrics.ObserveSlotConflict()
			return nil, ErrSlotConflict
		}
		if errors.Is(err, ErrSlotConflict) {
			s.metrics.ObserveSlotConflict()
		}
		return nil, err
	}

	s.metrics.ObserveCreated(p.Type)
	return created, nil
}

// ApplyUpdate applies the fields present in p and leaves the rest
// untouched. Status transitions are not constrained beyond enum
// membership; payment status may not move paid back to pending.
func (s *Service) ApplyUpdate(ctx context.Context, id uuid.UUID, p UpdateParams) (*Appointment, error) {
	if err := validateUpdate(p); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Fast-path rejection; the repository re-enforces this guard inside
	// the UPDATE so concurrent writers cannot slip past it.
	if p.PaymentStatus != nil &&
		PaymentStatus(*p.PaymentStatus) == PaymentPending &&
		existing.PaymentStatus == PaymentPaid {
		return nil, ErrPaymentReversal
	}

	if p.empty() {
		return existing, nil
	}

	updated, err := s.repo.UpdateAppointment(ctx, id, p)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{}
	if p.Status != nil {
		payload["status"] = *p.Status
	}
	if p.PaymentStatus != nil {
		payload["payment_status"] = *p.PaymentStatus
	}
	if p.PaymentID != nil {
		payload["payment_id"] = *p.PaymentID
	}
	if p.MeetingLink != nil {
		payload["meeting_link"] = *p.MeetingLink
	}
	s.logEvent(ctx, updated.ID, EventAppointmentUpdated, payload)

	s.metrics.ObserveUpdated()
	return updated, nil
}

// Remove hard-deletes the appointment. Billing reports computed after
// this no longer include the record; the deletion event is the only
// trace left. Not a cancellation substitute.
func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteAppointment(ctx, id); err != nil {
		return err
	}

	s.logEvent(ctx, id, EventAppointmentDeleted, map[string]any{})
	s.metrics.ObserveDeleted()
	return nil
}

// ListByPatient returns a patient's appointments, soonest first.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]AppointmentDetail, error) {
	details, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return details, nil
}

// ListByDoctor resolves the doctor reference and returns that doctor's
// appointments, soonest first.
func (s *Service) ListByDoctor(ctx context.Context, doctorRef uuid.UUID) ([]AppointmentDetail, error) {
	doctorID, err := s.ids.ResolveDoctor(ctx, doctorRef)
	if err != nil {
		return nil, err
	}

	details, err := s.repo.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by doctor: %w", err)
	}
	return details, nil
}

// ListAll is the administrative listing, most recent date first.
func (s *Service) ListAll(ctx context.Context) ([]AppointmentDetail, error) {
	details, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return details, nil
}

// ListRecent returns the latest-created appointments for the admin
// activity snapshot.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]AppointmentDetail, error) {
	if limit <= 0 {
		limit = 10 // default
	}
	if limit > 100 {
		limit = 100 // max
	}

	details, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent appointments: %w", err)
	}
	return details, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("marshal event payload", "event_type", eventType, "error", err)
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error("insert appointment event", "event_type", eventType, "appointment_id", appointmentID.String(), "error", err)
	}
}
