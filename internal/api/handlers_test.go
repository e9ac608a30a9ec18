package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelink/telemed-booking/internal/appointment"
	"github.com/carelink/telemed-booking/internal/billing"
	"github.com/carelink/telemed-booking/internal/identity"
)

type fakeAppointments struct {
	created   *appointment.Appointment
	updated   *appointment.Appointment
	details   []appointment.AppointmentDetail
	err       error
	lastParam appointment.CreateParams
}

func (f *fakeAppointments) Create(ctx context.Context, p appointment.CreateParams) (*appointment.Appointment, error) {
	f.lastParam = p
	if f.err != nil {
		return nil, f.err
	}
	return f.created, nil
}

func (f *fakeAppointments) ApplyUpdate(ctx context.Context, id uuid.UUID, p appointment.UpdateParams) (*appointment.Appointment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.updated, nil
}

func (f *fakeAppointments) Remove(ctx context.Context, id uuid.UUID) error {
	return f.err
}

func (f *fakeAppointments) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]appointment.AppointmentDetail, error) {
	return f.details, f.err
}

func (f *fakeAppointments) ListByDoctor(ctx context.Context, doctorRef uuid.UUID) ([]appointment.AppointmentDetail, error) {
	return f.details, f.err
}

func (f *fakeAppointments) ListAll(ctx context.Context) ([]appointment.AppointmentDetail, error) {
	return f.details, f.err
}

func (f *fakeAppointments) ListRecent(ctx context.Context, limit int) ([]appointment.AppointmentDetail, error) {
	return f.details, f.err
}

type fakeBilling struct {
	report   *billing.Report
	err      error
	lastFrom *time.Time
	lastTo   *time.Time
}

func (f *fakeBilling) DoctorReport(ctx context.Context, doctorRef uuid.UUID, from, to *time.Time) (*billing.Report, error) {
	f.lastFrom, f.lastTo = from, to
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

func (f *fakeBilling) SystemReport(ctx context.Context, from, to *time.Time) (*billing.Report, error) {
	f.lastFrom, f.lastTo = from, to
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

func newTestRouter(appts *fakeAppointments, bills *fakeBilling) http.Handler {
	return NewRouter(RouterConfig{
		Appointments: appts,
		Billing:      bills,
		Env:          "dev",
		Version:      "test",
	})
}

func sampleAppointment() *appointment.Appointment {
	return &appointment.Appointment{
		ID:            uuid.New(),
		PatientID:     uuid.New(),
		DoctorID:      uuid.New(),
		Date:          time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Time:          "10:00",
		Type:          appointment.TypeVideo,
		Status:        appointment.StatusScheduled,
		PaymentStatus: appointment.PaymentPending,
		Amount:        100,
		CreatedAt:     time.Now().UTC(),
	}
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateAppointmentCreated(t *testing.T) {
	appts := &fakeAppointments{created: sampleAppointment()}
	router := newTestRouter(appts, &fakeBilling{})

	rec := doRequest(t, router, http.MethodPost, "/appointments", CreateAppointmentRequest{
		PatientID: uuid.NewString(),
		DoctorRef: uuid.NewString(),
		Date:      "2025-06-01",
		Time:      "10:00",
		Type:      "video",
		Amount:    100,
	})

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2025-06-01", resp.Date)
	assert.Equal(t, "scheduled", resp.Status)
	assert.Equal(t, "pending", resp.PaymentStatus)
	assert.Equal(t, int64(100), appts.lastParam.Amount)
}

func TestCreateAppointmentMalformedUUID(t *testing.T) {
	router := newTestRouter(&fakeAppointments{}, &fakeBilling{})

	rec := doRequest(t, router, http.MethodPost, "/appointments", CreateAppointmentRequest{
		PatientID: "not-a-uuid",
		DoctorRef: uuid.NewString(),
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_patient_id")
}

func TestCreateAppointmentSlotConflict(t *testing.T) {
	appts := &fakeAppointments{err: appointment.ErrSlotConflict}
	router := newTestRouter(appts, &fakeBilling{})

	rec := doRequest(t, router, http.MethodPost, "/appointments", CreateAppointmentRequest{
		PatientID: uuid.NewString(),
		DoctorRef: uuid.NewString(),
		Date:      "2025-06-01",
		Time:      "10:00",
		Type:      "video",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "slot_conflict")
}

func TestCreateAppointmentInvalidReference(t *testing.T) {
	appts := &fakeAppointments{err: identity.ErrDoctorNotFound}
	router := newTestRouter(appts, &fakeBilling{})

	rec := doRequest(t, router, http.MethodPost, "/appointments", CreateAppointmentRequest{
		PatientID: uuid.NewString(),
		DoctorRef: uuid.NewString(),
		Date:      "2025-06-01",
		Time:      "10:00",
		Type:      "video",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_reference")
}

func TestCreateAppointmentValidationErrorsEnumerated(t *testing.T) {
	verr := &appointment.ValidationError{Fields: []appointment.FieldError{
		{Field: "date", Message: "must be a calendar date in YYYY-MM-DD form"},
		{Field: "time", Message: "must be a 24h HH:MM time"},
	}}
	appts := &fakeAppointments{err: verr}
	router := newTestRouter(appts, &fakeBilling{})

	rec := doRequest(t, router, http.MethodPost, "/appointments", CreateAppointmentRequest{
		PatientID: uuid.NewString(),
		DoctorRef: uuid.NewString(),
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation_error", resp.Error)
	assert.Len(t, resp.Fields, 2)
}

func TestUpdateAppointmentRejectsUnknownFields(t *testing.T) {
	router := newTestRouter(&fakeAppointments{updated: sampleAppointment()}, &fakeBilling{})

	rec := doRequest(t, router, http.MethodPatch, "/appointments/"+uuid.NewString(),
		map[string]any{"amount": 500})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_request_body")
}

func TestUpdateAppointmentNotFound(t *testing.T) {
	appts := &fakeAppointments{err: appointment.ErrAppointmentNotFound}
	router := newTestRouter(appts, &fakeBilling{})

	rec := doRequest(t, router, http.MethodPatch, "/appointments/"+uuid.NewString(),
		map[string]any{"status": "completed"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateAppointmentPaymentReversal(t *testing.T) {
	appts := &fakeAppointments{err: appointment.ErrPaymentReversal}
	router := newTestRouter(appts, &fakeBilling{})

	rec := doRequest(t, router, http.MethodPatch, "/appointments/"+uuid.NewString(),
		map[string]any{"payment_status": "pending"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "payment_reversal")
}

func TestDeleteAppointment(t *testing.T) {
	router := newTestRouter(&fakeAppointments{}, &fakeBilling{})

	rec := doRequest(t, router, http.MethodDelete, "/appointments/"+uuid.NewString(), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"deleted":true`)
}

func TestDeleteAppointmentNotFound(t *testing.T) {
	appts := &fakeAppointments{err: appointment.ErrAppointmentNotFound}
	router := newTestRouter(appts, &fakeBilling{})

	rec := doRequest(t, router, http.MethodDelete, "/appointments/"+uuid.NewString(), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListPatientAppointmentsMalformedID(t *testing.T) {
	router := newTestRouter(&fakeAppointments{}, &fakeBilling{})

	rec := doRequest(t, router, http.MethodGet, "/patients/nope/appointments", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListDoctorAppointmentsUnknownDoctor(t *testing.T) {
	appts := &fakeAppointments{err: identity.ErrDoctorNotFound}
	router := newTestRouter(appts, &fakeBilling{})

	rec := doRequest(t, router, http.MethodGet, "/doctors/"+uuid.NewString()+"/appointments", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "doctor_not_found")
}

func TestDoctorBillingReport(t *testing.T) {
	bills := &fakeBilling{report: &billing.Report{
		TotalEarnings:   150,
		PendingPayments: 90,
		MonthlyEarnings: []billing.MonthlyEarning{{Month: "June", Earnings: 150}},
	}}
	router := newTestRouter(&fakeAppointments{}, bills)

	rec := doRequest(t, router, http.MethodGet,
		"/doctors/"+uuid.NewString()+"/billing?from=2025-06-01&to=2025-06-30", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp billing.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(150), resp.TotalEarnings)

	require.NotNil(t, bills.lastFrom)
	require.NotNil(t, bills.lastTo)
	assert.Equal(t, "2025-06-01", bills.lastFrom.Format(appointment.DateLayout))
	assert.Equal(t, "2025-06-30", bills.lastTo.Format(appointment.DateLayout))
}

func TestDoctorBillingReportUnknownDoctor(t *testing.T) {
	bills := &fakeBilling{err: identity.ErrDoctorNotFound}
	router := newTestRouter(&fakeAppointments{}, bills)

	rec := doRequest(t, router, http.MethodGet, "/doctors/"+uuid.NewString()+"/billing", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDoctorBillingReportBadRange(t *testing.T) {
	router := newTestRouter(&fakeAppointments{}, &fakeBilling{})

	rec := doRequest(t, router, http.MethodGet,
		"/doctors/"+uuid.NewString()+"/billing?from=June&to=2025-13-99", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Fields, 2)
}

func TestAdminStats(t *testing.T) {
	detail := appointment.AppointmentDetail{
		Appointment: *sampleAppointment(),
		PatientName: "Ada Lovelace",
		DoctorName:  "Gregory House",
	}
	appts := &fakeAppointments{details: []appointment.AppointmentDetail{detail}}
	bills := &fakeBilling{report: &billing.Report{TotalEarnings: 300, MonthlyEarnings: []billing.MonthlyEarning{}}}
	router := newTestRouter(appts, bills)

	rec := doRequest(t, router, http.MethodGet, "/admin/stats", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp AdminStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Report)
	assert.Equal(t, int64(300), resp.Report.TotalEarnings)
	require.Len(t, resp.RecentActivity, 1)
	assert.Equal(t, "Ada Lovelace", resp.RecentActivity[0].PatientName)
	assert.Nil(t, bills.lastFrom)
}
