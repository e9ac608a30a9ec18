package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/carelink/telemed-booking/internal/appointment"
	"github.com/carelink/telemed-booking/internal/billing"
	"github.com/carelink/telemed-booking/internal/observability/metrics"
	"github.com/carelink/telemed-booking/pkg/logging"
)

// AppointmentService is the lifecycle and query surface the handlers
// call into.
type AppointmentService interface {
	Create(ctx context.Context, p appointment.CreateParams) (*appointment.Appointment, error)
	ApplyUpdate(ctx context.Context, id uuid.UUID, p appointment.UpdateParams) (*appointment.Appointment, error)
	Remove(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]appointment.AppointmentDetail, error)
	ListByDoctor(ctx context.Context, doctorRef uuid.UUID) ([]appointment.AppointmentDetail, error)
	ListAll(ctx context.Context) ([]appointment.AppointmentDetail, error)
	ListRecent(ctx context.Context, limit int) ([]appointment.AppointmentDetail, error)
}

// BillingService computes the read-only earnings rollups.
type BillingService interface {
	DoctorReport(ctx context.Context, doctorRef uuid.UUID, from, to *time.Time) (*billing.Report, error)
	SystemReport(ctx context.Context, from, to *time.Time) (*billing.Report, error)
}

type RouterConfig struct {
	Appointments AppointmentService
	Billing      BillingService
	Metrics      *metrics.BookingMetrics
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Log          *logging.Logger
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Log == nil {
		cfg.Log = logging.Default()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(cfg.Log))

	h := &handlers{
		appointments: cfg.Appointments,
		billing:      cfg.Billing,
		log:          cfg.Log,
		env:          cfg.Env,
	}
	bh := &billingHandlers{handlers: h, metrics: cfg.Metrics}

	// Health endpoints need the raw connections; tests that wire fake
	// services skip them.
	if cfg.PgPool != nil && cfg.Redis != nil {
		health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
		r.Get("/health/live", health.Liveness)
		r.Get("/health/ready", health.Readiness)
	}

	r.Handle("/metrics", promhttp.Handler())

	// Appointment lifecycle
	r.Post("/appointments", h.createAppointment)
	r.Get("/appointments", h.listAppointments)
	r.Patch("/appointments/{id}", h.updateAppointment)
	r.Delete("/appointments/{id}", h.deleteAppointment)

	// Read paths
	r.Get("/patients/{id}/appointments", h.listPatientAppointments)
	r.Get("/doctors/{ref}/appointments", h.listDoctorAppointments)

	// Billing
	r.Get("/doctors/{ref}/billing", bh.doctorBillingReport)
	r.Get("/admin/stats", bh.adminStats)

	return r
}
