// Package billing computes earnings rollups over the appointment store.
// It is strictly read-only.
package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/telemed-booking/internal/appointment"
)

// Row is the slice of an appointment the aggregator needs. Rows are
// consumed in creation order.
type Row struct {
	Date          time.Time
	Status        appointment.AppointmentStatus
	PaymentStatus appointment.PaymentStatus
	Amount        int64
}

type MonthlyEarning struct {
	Month    string `json:"month"`
	Earnings int64  `json:"earnings"`
}

// Report is the aggregate billing structure. MonthlyEarnings groups
// paid appointments by the calendar month name of their date, in the
// order each month first appears while walking rows in creation order.
// That ordering is load-bearing for existing consumers; do not sort it.
type Report struct {
	TotalEarnings    int64            `json:"total_earnings"`
	PendingPayments  int64            `json:"pending_payments"`
	AppointmentCount int              `json:"appointment_count"`
	CompletedCount   int              `json:"completed_count"`
	CancelledCount   int              `json:"cancelled_count"`
	MonthlyEarnings  []MonthlyEarning `json:"monthly_earnings"`
}

// Querier is the subset of pgxpool.Pool the aggregator needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// DoctorResolver maps a doctor reference to the canonical record id so
// both reference forms produce identical reports.
type DoctorResolver interface {
	ResolveDoctor(ctx context.Context, ref uuid.UUID) (uuid.UUID, error)
}

type Aggregator struct {
	db  Querier
	ids DoctorResolver
}

func NewAggregator(pool *pgxpool.Pool, ids DoctorResolver) *Aggregator {
	if pool == nil {
		panic("billing: pgx pool required")
	}
	return &Aggregator{db: pool, ids: ids}
}

// NewAggregatorWithDB allows injecting a mock database for testing.
func NewAggregatorWithDB(db Querier, ids DoctorResolver) *Aggregator {
	return &Aggregator{db: db, ids: ids}
}

// DoctorReport aggregates one doctor's appointments, optionally
// restricted to the inclusive [from, to] date range.
func (a *Aggregator) DoctorReport(ctx context.Context, doctorRef uuid.UUID, from, to *time.Time) (*Report, error) {
	doctorID, err := a.ids.ResolveDoctor(ctx, doctorRef)
	if err != nil {
		return nil, err
	}

	rows, err := a.fetchRows(ctx, &doctorID, from, to)
	if err != nil {
		return nil, err
	}
	return buildReport(rows), nil
}

// SystemReport aggregates over all appointments.
func (a *Aggregator) SystemReport(ctx context.Context, from, to *time.Time) (*Report, error) {
	rows, err := a.fetchRows(ctx, nil, from, to)
	if err != nil {
		return nil, err
	}
	return buildReport(rows), nil
}

func (a *Aggregator) fetchRows(ctx context.Context, doctorID *uuid.UUID, from, to *time.Time) ([]Row, error) {
	var conds []string
	var args []any
	idx := 1

	cond := func(clause string, arg any) {
		conds = append(conds, fmt.Sprintf(clause, idx))
		args = append(args, arg)
		idx++
	}

	if doctorID != nil {
		cond("doctor_id = $%d", *doctorID)
	}
	if from != nil {
		cond("date >= $%d", *from)
	}
	if to != nil {
		cond("date <= $%d", *to)
	}

	query := `SELECT date, status, payment_status, amount FROM appointments`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at ASC"

	rows, err := a.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("billing: query appointments: %w", err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Date, &r.Status, &r.PaymentStatus, &r.Amount); err != nil {
			return nil, fmt.Errorf("billing: scan row: %w", err)
		}
		result = append(result, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("billing: read rows: %w", err)
	}

	return result, nil
}

func buildReport(rows []Row) *Report {
	report := &Report{MonthlyEarnings: []MonthlyEarning{}}
	monthIdx := make(map[string]int)

	for _, r := range rows {
		report.AppointmentCount++

		switch r.Status {
		case appointment.StatusCompleted:
			report.CompletedCount++
		case appointment.StatusCancelled:
			report.CancelledCount++
		}

		switch r.PaymentStatus {
		case appointment.PaymentPaid:
			report.TotalEarnings += r.Amount

			month := r.Date.Month().String()
			i, ok := monthIdx[month]
			if !ok {
				i = len(report.MonthlyEarnings)
				monthIdx[month] = i
				report.MonthlyEarnings = append(report.MonthlyEarnings, MonthlyEarning{Month: month})
			}
			report.MonthlyEarnings[i].Earnings += r.Amount
		case appointment.PaymentPending:
			report.PendingPayments += r.Amount
		}
	}

	return report
}
