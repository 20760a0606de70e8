// Package bootstrap wires the pieces every libradesk binary shares:
// configuration, telemetry, logging, the database and the HTTP server.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"

	"libradesk/internal/config"
	"libradesk/internal/eventstore"
	"libradesk/internal/lifecycle"
	"libradesk/internal/records"
	"libradesk/internal/telemetry"
)

const version = "0.1.0"

// App is a configured process.
type App struct {
	Config config.Config
	Logger *slog.Logger
	DB     *records.DB
	Events *eventstore.EventStore
	Locks  *lifecycle.KeyedMutex

	shutdown telemetry.Shutdown
}

// New reads the environment and starts telemetry. It does not touch the database.
func New(ctx context.Context, serviceName, defaultPort string) (*App, error) {
	cfg, err := config.FromEnv(serviceName, defaultPort)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := telemetry.NewLogger(os.Stdout, cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	shutdown, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.OTelEnvironment,
		Exporter:       cfg.OTelExporter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		Events:   eventstore.NewEventStore(),
		Locks:    lifecycle.NewKeyedMutex(),
		shutdown: shutdown,
	}, nil
}

// OpenDB connects to the configured database and applies migrations,
// retrying with exponential backoff until DatabaseConnectTimeout elapses.
func (a *App) OpenDB(ctx context.Context) error {
	db, err := backoff.Retry(ctx, func() (*records.DB, error) {
		db, err := records.Open(ctx, a.Config.DatabaseDriver, a.Config.DatabaseURL)
		if err != nil {
			a.Logger.WarnContext(ctx, "database not ready", "error", err)
		}
		return db, err
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(a.Config.DatabaseConnectTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	a.DB = db
	return nil
}

// Lifecycle returns the collaborators for lifecycle managers of this process.
func (a *App) Lifecycle() lifecycle.Config {
	return lifecycle.Config{Events: a.Events, Locks: a.Locks, Logger: a.Logger}
}

// Router returns a chi router with the standard middleware stack.
func (a *App) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(otelchi.Middleware(a.Config.ServiceName, otelchi.WithChiRoutes(r)))
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

// Serve runs handler on the configured port until ctx is done or the process
// receives SIGINT or SIGTERM, then shuts the server down gracefully.
func (a *App) Serve(ctx context.Context, handler http.Handler) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              ":" + a.Config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("listening", "port", a.Config.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close releases the database and flushes telemetry.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	if a.shutdown != nil {
		errs = append(errs, a.shutdown(ctx))
	}
	return errors.Join(errs...)
}
