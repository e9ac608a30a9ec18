package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/carelink/telemed-booking/internal/api"
	"github.com/carelink/telemed-booking/internal/appointment"
	"github.com/carelink/telemed-booking/internal/billing"
	"github.com/carelink/telemed-booking/internal/config"
	"github.com/carelink/telemed-booking/internal/db"
	"github.com/carelink/telemed-booking/internal/identity"
	"github.com/carelink/telemed-booking/internal/observability/metrics"
	"github.com/carelink/telemed-booking/internal/provision"
	redisclient "github.com/carelink/telemed-booking/internal/redis"
	"github.com/carelink/telemed-booking/pkg/logging"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load", "error", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel)
	log.Info("api-server starting", "env", cfg.Env, "http_port", cfg.HTTPPort, "version", version)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Error("postgres connection", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()
	log.Info("connected to postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Error("redis connection", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error("closing redis", "error", err)
		}
	}()
	log.Info("connected to redis")

	provCtx, cancelProv := context.WithTimeout(rootCtx, 5*time.Second)
	err = provision.EnsureAdmin(provCtx, pgPool, cfg.AdminEmail)
	cancelProv()
	if err != nil {
		log.Error("admin provisioning", "error", err)
		os.Exit(1)
	}

	bookingMetrics := metrics.NewBookingMetrics(prometheus.DefaultRegisterer)

	repo := appointment.NewPgRepository(pgPool)
	resolver := identity.NewResolver(pgPool)
	locker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	svc := appointment.NewService(repo, resolver, locker, bookingMetrics, log)
	aggregator := billing.NewAggregator(pgPool, resolver)

	router := api.NewRouter(api.RouterConfig{
		Appointments: svc,
		Billing:      aggregator,
		Metrics:      bookingMetrics,
		PgPool:       pgPool,
		Redis:        rdb,
		Log:          log,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown", "error", err)
	}
	log.Info("api-server stopped")
}
