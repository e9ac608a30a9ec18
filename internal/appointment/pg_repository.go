package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// DB is the subset of pgxpool.Pool the repository needs; it lets tests
// inject a mock pool.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgRepository struct {
	db DB
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	if pool == nil {
		panic("appointment: pgx pool required")
	}
	return &PgRepository{db: pool}
}

// NewPgRepositoryWithDB allows injecting a mock database for testing.
func NewPgRepositoryWithDB(db DB) *PgRepository {
	return &PgRepository{db: db}
}

const appointmentColumns = `id, patient_id, doctor_id, date, time, type, status,
	       payment_status, payment_id, amount, meeting_link, created_at, updated_at`

const detailColumns = `a.id, a.patient_id, a.doctor_id, a.date, a.time, a.type, a.status,
	       a.payment_status, a.payment_id, a.amount, a.meeting_link, a.created_at, a.updated_at,
	       p.name, d.name, d.specialty`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var paymentID, meetingLink *string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.Date,
		&a.Time,
		&a.Type,
		&a.Status,
		&a.PaymentStatus,
		&paymentID,
		&a.Amount,
		&meetingLink,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.PaymentID = paymentID
	a.MeetingLink = meetingLink
	return &a, nil
}

func scanDetail(row pgx.Row) (*AppointmentDetail, error) {
	var d AppointmentDetail
	var paymentID, meetingLink, specialty *string

	err := row.Scan(
		&d.ID,
		&d.PatientID,
		&d.DoctorID,
		&d.Date,
		&d.Time,
		&d.Type,
		&d.Status,
		&d.PaymentStatus,
		&paymentID,
		&d.Amount,
		&meetingLink,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.PatientName,
		&d.DoctorName,
		&specialty,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	d.PaymentID = paymentID
	d.MeetingLink = meetingLink
	d.DoctorSpecialty = specialty
	return &d, nil
}

func collectDetails(rows pgx.Rows) ([]AppointmentDetail, error) {
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func isActiveSlotViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == uniqueViolation &&
		pgErr.ConstraintName == "appointments_active_slot_idx"
}

// Interface methods

func (r *PgRepository) ActiveAppointmentExists(ctx context.Context, doctorID uuid.UUID, date, timeOfDay string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND date = $2 AND time = $3 AND status <> 'cancelled'
		)
	`, doctorID, date, timeOfDay).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO appointments
			(id, patient_id, doctor_id, date, time, type, status, payment_status, amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING `+appointmentColumns+`
	`, a.ID, a.PatientID, a.DoctorID, a.Date, a.Time, a.Type, a.Status, a.PaymentStatus, a.Amount)

	created, err := scanAppointment(row)
	if err != nil {
		if isActiveSlotViolation(err) {
			return nil, ErrSlotConflict
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) UpdateAppointment(ctx context.Context, id uuid.UUID, p UpdateParams) (*Appointment, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id}
	idx := 2

	set := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, value)
		idx++
	}

	if p.Status != nil {
		set("status", *p.Status)
	}
	if p.PaymentStatus != nil {
		set("payment_status", *p.PaymentStatus)
	}
	if p.PaymentID != nil {
		set("payment_id", *p.PaymentID)
	}
	if p.MeetingLink != nil {
		set("meeting_link", *p.MeetingLink)
	}

	// The forbidden payment transition is guarded inside the write
	// itself, so concurrent updates cannot interleave around a
	// read-side check.
	where := "id = $1"
	guarded := p.PaymentStatus != nil && PaymentStatus(*p.PaymentStatus) == PaymentPending
	if guarded {
		where += " AND payment_status <> 'paid'"
	}

	query := fmt.Sprintf(`
		UPDATE appointments
		SET %s
		WHERE %s
		RETURNING `+appointmentColumns, strings.Join(sets, ", "), where)

	updated, err := scanAppointment(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if guarded && errors.Is(err, ErrAppointmentNotFound) {
			// Zero rows with the guard active is ambiguous: either the
			// record is gone or it already holds paid.
			var exists bool
			if checkErr := r.db.QueryRow(ctx, `
				SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)
			`, id).Scan(&exists); checkErr != nil {
				return nil, checkErr
			}
			if exists {
				return nil, ErrPaymentReversal
			}
			return nil, ErrAppointmentNotFound
		}
		// Un-cancelling can collide with an appointment that has since
		// taken the freed slot.
		if isActiveSlotViolation(err) {
			return nil, ErrSlotConflict
		}
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM appointments
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

const detailFrom = `
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN doctors d ON d.id = a.doctor_id`

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]AppointmentDetail, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+detailColumns+detailFrom+`
		WHERE a.patient_id = $1
		ORDER BY a.date ASC, a.time ASC
	`, patientID)
	if err != nil {
		return nil, err
	}
	return collectDetails(rows)
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]AppointmentDetail, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+detailColumns+detailFrom+`
		WHERE a.doctor_id = $1
		ORDER BY a.date ASC, a.time ASC
	`, doctorID)
	if err != nil {
		return nil, err
	}
	return collectDetails(rows)
}

func (r *PgRepository) ListAll(ctx context.Context) ([]AppointmentDetail, error) {
	rows, err := r.db.Query(ctx, `
		SELECT ` + detailColumns + detailFrom + `
		ORDER BY a.date DESC, a.time DESC
	`)
	if err != nil {
		return nil, err
	}
	return collectDetails(rows)
}

func (r *PgRepository) ListRecent(ctx context.Context, limit int) ([]AppointmentDetail, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+detailColumns+detailFrom+`
		ORDER BY a.created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return collectDetails(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO appointment_events (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert appointment event: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
