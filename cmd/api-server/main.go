package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hackgods/clinic-slot-booking/internal/api"
	"github.com/hackgods/clinic-slot-booking/internal/appointment"
	"github.com/hackgods/clinic-slot-booking/internal/catalog"
	"github.com/hackgods/clinic-slot-booking/internal/config"
	"github.com/hackgods/clinic-slot-booking/internal/db"
	"github.com/hackgods/clinic-slot-booking/internal/observability/metrics"
	redisclient "github.com/hackgods/clinic-slot-booking/internal/redis"
	"github.com/hackgods/clinic-slot-booking/pkg/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel).With("service", "api-server", "env", cfg.Env)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(rootCtx, cfg, logger); err != nil {
		logger.Error("api-server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *logging.Logger) error {
	logger.Info("api-server starting up",
		"http_port", cfg.HTTPPort,
		"store", cfg.StoreBackend,
		"lock", cfg.LockBackend,
		"booking_window_days", cfg.BookingWindowDays,
		"allow_confirmed_cancellation", cfg.AllowConfirmedCancellation,
	)

	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := appointment.NewService(backend.repo, backend.locker, backend.catalog, cfg,
		appointment.WithLogger(logger.With("component", "appointment")),
		appointment.WithMetrics(metrics.NewBookingMetrics(reg)),
	)

	router := api.NewRouter(api.RouterConfig{
		Service:        svc,
		Catalog:        backend.catalog,
		Dependencies:   backend.deps,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Logger:         logger.With("component", "http"),
		Env:            cfg.Env,
		Version:        version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down api-server", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// backend bundles the store, lock and reference data picked by config.
type backend struct {
	repo    appointment.Repository
	locker  redisclient.Locker
	catalog *catalog.Catalog
	deps    []api.Dependency
	closers []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackend(ctx context.Context, cfg config.Config, logger *logging.Logger) (*backend, error) {
	b := &backend{}

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		if cfg.MigrateOnStart {
			if err := migrateUp(cfg.PostgresDSN); err != nil {
				return nil, err
			}
			logger.Info("migrations applied")
		}

		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.PostgresMaxConn)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("postgres connection error: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		logger.Info("connected to Postgres")

		cat, err := catalog.LoadFromPostgres(ctx, pool)
		if err != nil {
			b.close()
			return nil, err
		}
		b.catalog = cat
		b.repo = appointment.NewPgRepository(pool)
		b.deps = append(b.deps, api.Dependency{Name: "postgres", Check: db.Pinger(pool)})
	default:
		b.catalog = catalog.Default()
		b.repo = appointment.NewMemoryRepository()
	}

	switch cfg.LockBackend {
	case config.LockRedis:
		rdb, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			b.close()
			return nil, fmt.Errorf("redis connection error: %w", err)
		}
		b.closers = append(b.closers, func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("error closing redis", "error", err)
			}
		})
		logger.Info("connected to Redis")

		b.locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL, cfg.LockWait)
		b.deps = append(b.deps, api.Dependency{Name: "redis", Check: redisclient.Pinger(rdb)})
	default:
		b.locker = redisclient.NewLocalSlotLocker(cfg.LockWait)
	}

	return b, nil
}

func migrateUp(dsn string) error {
	mg, err := db.NewMigrator(dsn)
	if err != nil {
		return err
	}
	defer mg.Close()
	return mg.Up()
}
