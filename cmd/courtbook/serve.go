package main

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

	"github.com/spf13/cobra"

	"github.com/example/court-reservations/internal/application"
	"github.com/example/court-reservations/internal/config"
	httptransport "github.com/example/court-reservations/internal/http"
	"github.com/example/court-reservations/internal/jobs"
	"github.com/example/court-reservations/internal/notify"
	"github.com/example/court-reservations/internal/scheduler"
)

const purgeSelectionsSpec = "@every 5m"

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP transport and maintenance jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := openMigratedStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := st.Close(); cerr != nil {
					logger.Error("failed to close storage", "error", cerr)
				}
			}()

			app, err := buildApp(cfg, st, time.Now, logger)
			if err != nil {
				return err
			}
			return app.run(ctx, cfg.Addr())
		},
	}
}

type app struct {
	handler http.Handler
	runner  *jobs.Runner
	logger  *slog.Logger
}

// buildApp wires the lifecycle, transport and maintenance jobs around st.
func buildApp(cfg config.Config, st store, now func() time.Time, logger *slog.Logger) (*app, error) {
	loc, err := cfg.Court.Location()
	if err != nil {
		return nil, err
	}
	calendar, err := scheduler.NewCalendar(loc, cfg.Court.OpenHour, cfg.Court.LastSlotHour)
	if err != nil {
		return nil, err
	}

	notifiers := notify.Multi{notify.NewLogNotifier(logger)}
	if cfg.AuditLogPath != "" {
		audit, err := notify.NewAuditLog(cfg.AuditLogPath, loc)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, audit)
	}

	lifecycle, err := application.NewLifecycle(application.LifecycleConfig{
		Calendar:    calendar,
		Store:       st,
		Notifier:    notifiers,
		Now:         now,
		Buffer:      cfg.Court.BookingBuffer,
		HorizonDays: cfg.Court.HorizonDays,
		PendingTTL:  cfg.Court.PendingTTL,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	admin, err := application.NewAdminAuthenticator(cfg.AdminTokenHash)
	if err != nil {
		return nil, fmt.Errorf("COURT_ADMIN_TOKEN_HASH: %w", err)
	}

	renderer := notify.NewICSRenderer(cfg.Court.Name, now)
	exporter := notify.Exporter{Location: loc, Renderer: renderer}

	handler := httptransport.NewRouter(httptransport.RouterConfig{
		Reservations: httptransport.NewReservationHandler(lifecycle, renderer, loc, logger),
		Audit:        httptransport.NewAuditHandler(st, exporter, loc, logger),
		Admin:        admin,
		Health:       st,
		Logger:       logger,
		Middleware:   []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})

	runner := jobs.NewRunner(loc, logger)
	if err := runner.Schedule("purge-selections", purgeSelectionsSpec, jobs.PurgeSelections(lifecycle, logger)); err != nil {
		return nil, err
	}
	if cfg.AuditExportCron != "" {
		if err := runner.Schedule("audit-export", cfg.AuditExportCron, jobs.ExportAudit(st, exporter, cfg.AuditExportPath)); err != nil {
			return nil, err
		}
	}

	return &app{handler: handler, runner: runner, logger: logger}, nil
}

func (a *app) run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.runner.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.runner.Stop(stopCtx); err != nil {
			a.logger.Error("failed to stop jobs", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("failed to shutdown server", "error", err)
		}
	}()

	a.logger.Info("court reservations API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server encountered error: %w", err)
	}
	return nil
}
