package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelink/telemed-booking/internal/appointment"
	"github.com/carelink/telemed-booking/internal/identity"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func paid(date time.Time, amount int64) Row {
	return Row{Date: date, Status: appointment.StatusCompleted, PaymentStatus: appointment.PaymentPaid, Amount: amount}
}

func pending(date time.Time, amount int64) Row {
	return Row{Date: date, Status: appointment.StatusScheduled, PaymentStatus: appointment.PaymentPending, Amount: amount}
}

func TestBuildReportTotals(t *testing.T) {
	report := buildReport([]Row{
		paid(day(2025, time.June, 1), 100),
		paid(day(2025, time.June, 15), 50),
		pending(day(2025, time.June, 20), 90),
		{Date: day(2025, time.June, 21), Status: appointment.StatusCancelled, PaymentStatus: appointment.PaymentPending, Amount: 40},
	})

	assert.Equal(t, int64(150), report.TotalEarnings)
	assert.Equal(t, int64(130), report.PendingPayments)
	assert.Equal(t, 4, report.AppointmentCount)
	assert.Equal(t, 2, report.CompletedCount)
	assert.Equal(t, 1, report.CancelledCount)

	require.Len(t, report.MonthlyEarnings, 1)
	assert.Equal(t, "June", report.MonthlyEarnings[0].Month)
	assert.Equal(t, int64(150), report.MonthlyEarnings[0].Earnings)
}

func TestBuildReportMonthlyGroupingFirstAppearanceOrder(t *testing.T) {
	// Rows arrive in creation order; a June booking created before a
	// May one puts June first.
	report := buildReport([]Row{
		paid(day(2025, time.June, 10), 60),
		paid(day(2025, time.May, 2), 80),
		paid(day(2025, time.June, 20), 40),
	})

	require.Len(t, report.MonthlyEarnings, 2)
	assert.Equal(t, "June", report.MonthlyEarnings[0].Month)
	assert.Equal(t, int64(100), report.MonthlyEarnings[0].Earnings)
	assert.Equal(t, "May", report.MonthlyEarnings[1].Month)
	assert.Equal(t, int64(80), report.MonthlyEarnings[1].Earnings)
}

func TestBuildReportPendingExcludedFromMonthly(t *testing.T) {
	report := buildReport([]Row{
		pending(day(2025, time.June, 10), 90),
	})

	assert.Equal(t, int64(0), report.TotalEarnings)
	assert.Equal(t, int64(90), report.PendingPayments)
	assert.Empty(t, report.MonthlyEarnings)
}

func TestBuildReportEmpty(t *testing.T) {
	report := buildReport(nil)

	assert.Equal(t, int64(0), report.TotalEarnings)
	assert.Equal(t, 0, report.AppointmentCount)
	assert.NotNil(t, report.MonthlyEarnings)
}

type staticResolver struct {
	id  uuid.UUID
	err error
}

func (s staticResolver) ResolveDoctor(ctx context.Context, ref uuid.UUID) (uuid.UUID, error) {
	if s.err != nil {
		return uuid.Nil, s.err
	}
	return s.id, nil
}

var rowCols = []string{"date", "status", "payment_status", "amount"}

func TestSystemReportQueriesWithoutFilters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT date, status, payment_status, amount FROM appointments ORDER BY created_at ASC`).
		WillReturnRows(pgxmock.NewRows(rowCols).
			AddRow(day(2025, time.June, 1), appointment.StatusCompleted, appointment.PaymentPaid, int64(100)))

	agg := NewAggregatorWithDB(mock, staticResolver{})
	report, err := agg.SystemReport(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(100), report.TotalEarnings)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDoctorReportAppliesDateRange(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	doctorID := uuid.New()
	from := day(2025, time.June, 1)
	to := day(2025, time.June, 30)

	mock.ExpectQuery(`SELECT date, status, payment_status, amount FROM appointments WHERE doctor_id = \$1 AND date >= \$2 AND date <= \$3 ORDER BY created_at ASC`).
		WithArgs(doctorID, from, to).
		WillReturnRows(pgxmock.NewRows(rowCols).
			AddRow(day(2025, time.June, 10), appointment.StatusScheduled, appointment.PaymentPending, int64(90)))

	agg := NewAggregatorWithDB(mock, staticResolver{id: doctorID})
	report, err := agg.DoctorReport(context.Background(), doctorID, &from, &to)
	require.NoError(t, err)

	assert.Equal(t, int64(0), report.TotalEarnings)
	assert.Equal(t, int64(90), report.PendingPayments)
	assert.Equal(t, 1, report.AppointmentCount)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDoctorReportIdenticalAcrossReferenceForms(t *testing.T) {
	// Both reference forms resolve to one canonical id, so both hit the
	// store with the same filter and produce the same report.
	canonical := uuid.New()
	accountRef := uuid.New()

	run := func(ref uuid.UUID) *Report {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT date, status, payment_status, amount FROM appointments WHERE doctor_id = \$1 ORDER BY created_at ASC`).
			WithArgs(canonical).
			WillReturnRows(pgxmock.NewRows(rowCols).
				AddRow(day(2025, time.June, 1), appointment.StatusCompleted, appointment.PaymentPaid, int64(100)).
				AddRow(day(2025, time.June, 15), appointment.StatusCompleted, appointment.PaymentPaid, int64(50)))

		agg := NewAggregatorWithDB(mock, staticResolver{id: canonical})
		report, err := agg.DoctorReport(context.Background(), ref, nil, nil)
		require.NoError(t, err)
		return report
	}

	byRecord := run(canonical)
	byAccount := run(accountRef)
	assert.Equal(t, byRecord, byAccount)
	assert.Equal(t, int64(150), byRecord.TotalEarnings)
}

func TestDoctorReportUnknownDoctor(t *testing.T) {
	agg := NewAggregatorWithDB(nil, staticResolver{err: identity.ErrDoctorNotFound})

	_, err := agg.DoctorReport(context.Background(), uuid.New(), nil, nil)
	assert.True(t, errors.Is(err, identity.ErrDoctorNotFound))
}
