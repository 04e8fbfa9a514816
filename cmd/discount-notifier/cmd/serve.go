package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/donaldgifford/discount-notifier/internal/api/handlers"
	mw "github.com/donaldgifford/discount-notifier/internal/api/middleware"
	"github.com/donaldgifford/discount-notifier/internal/engine"
)

const shutdownTimeout = 30 * time.Second

func serveCmd() *cobra.Command {
	var (
		opts       appOptions
		runOnStart bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and run on a schedule",
		Long: "Starts the HTTP API (health, metrics, run trigger and history) and\n" +
			"runs every collector on the configured schedule.interval.",
		Example: `  discount-notifier serve --config config.yaml
  discount-notifier serve --run-on-start`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts, runOnStart)
		},
	}

	cmd.Flags().BoolVar(&opts.dev, "dev", false, "deliver to dev destinations")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "log notifications instead of sending them")
	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "start a run immediately instead of waiting for the first tick")
	return cmd
}

func serve(ctx context.Context, opts appOptions, runOnStart bool) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	a, err := newApp(ctx, cfg, opts, log)
	if err != nil {
		return err
	}
	defer a.Close()

	e, runsH := newServer(ctx, a, log)

	sched, err := engine.NewScheduler(a.engine, cfg.Schedule.Interval, log)
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}
	sched.Start()
	log.Info("scheduler running", "interval", cfg.Schedule.Interval)

	var startup sync.WaitGroup
	if runOnStart {
		startup.Add(1)
		go func() {
			defer startup.Done()
			if _, err := a.engine.Run(ctx); err != nil {
				log.Error("startup run failed", "error", err)
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case serveErr = <-errCh:
		log.Error("server error", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutting down server", "error", err)
	}
	select {
	case <-sched.Stop().Done():
	case <-shutdownCtx.Done():
		log.Warn("scheduled run did not stop in time")
	}
	runsH.Wait()
	startup.Wait()

	log.Info("server stopped")
	if serveErr != nil {
		return fmt.Errorf("serving: %w", serveErr)
	}
	return nil
}

// newServer builds the echo server with probes, metrics and the huma API.
// Triggered runs are bound to ctx.
func newServer(ctx context.Context, a *app, log *slog.Logger) (*echo.Echo, *handlers.RunsHandler) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(mw.RequestLog(log), mw.Recovery(log), mw.Metrics())

	var pinger handlers.Pinger
	if a.store != nil {
		pinger = a.store
	}
	health := handlers.NewHealthHandler(pinger)
	e.GET("/healthz", health.Healthz)
	e.GET("/readyz", health.Readyz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := humaecho.New(e, huma.DefaultConfig("discount-notifier API", Version))

	runsH := handlers.NewRunsHandler(ctx, a.engine, log)
	handlers.RegisterRunRoutes(api, runsH)
	if a.store != nil {
		handlers.RegisterHistoryRoutes(api, handlers.NewHistoryHandler(a.store))
	}

	return e, runsH
}
