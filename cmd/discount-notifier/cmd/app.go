package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/donaldgifford/discount-notifier/internal/browser"
	"github.com/donaldgifford/discount-notifier/internal/collector"
	"github.com/donaldgifford/discount-notifier/internal/config"
	"github.com/donaldgifford/discount-notifier/internal/engine"
	"github.com/donaldgifford/discount-notifier/internal/escalation"
	"github.com/donaldgifford/discount-notifier/internal/notify"
	"github.com/donaldgifford/discount-notifier/internal/store"
	"github.com/donaldgifford/discount-notifier/pkg/logger"
)

// appOptions are the run-shaping flags shared by run and serve.
type appOptions struct {
	only    []string
	dev     bool
	dryRun  bool
	noDedup bool
}

// app holds the wired components of one process.
type app struct {
	cfg        *config.Config
	log        *slog.Logger
	store      store.Store
	notifiers  []notify.Notifier
	dispatcher *notify.Dispatcher
	engine     *engine.Engine
}

// loadConfig reads the config file and DN_* environment. --dev selects the
// dev destinations; --dry-run lifts the destination requirement.
func loadConfig(opts appOptions) (*config.Config, error) {
	if opts.dev {
		viper.Set("mode", config.ModeDev)
	}
	loadOpts := []config.LoadOption{config.WithEnv(viper.GetViper())}
	if opts.dryRun {
		loadOpts = append(loadOpts, config.AllowNoDestinations())
	}

	cfg, err := config.Load(cfgFile, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if lvl := viper.GetString("log_level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if f := viper.GetString("log_format"); f != "" {
		cfg.Logging.Format = f
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logger.New(cfg.Logging.Level, cfg.Logging.Format)
}

// newApp wires collectors, the escalation controller, notifiers, the
// optional ledger store and the engine.
func newApp(ctx context.Context, cfg *config.Config, opts appOptions, log *slog.Logger) (*app, error) {
	sources, err := collector.BuildAll(cfg, opts.only, log)
	if err != nil {
		return nil, fmt.Errorf("building collectors: %w", err)
	}

	notifiers, err := notify.NewFromConfig(&cfg.Notifications, opts.dryRun, log)
	if err != nil {
		return nil, fmt.Errorf("building notifiers: %w", err)
	}

	a := &app{
		cfg:        cfg,
		log:        log,
		notifiers:  notifiers,
		dispatcher: notify.NewDispatcherFromConfig(&cfg.Notifications, log),
	}

	if cfg.Ledger.Persist && !opts.noDedup {
		a.store, err = store.Open(ctx, &cfg.Ledger)
		if err != nil {
			return nil, fmt.Errorf("opening %s ledger: %w", cfg.Ledger.Backend, err)
		}
		log.Info("ledger store ready", "backend", cfg.Ledger.Backend, "retention", cfg.Ledger.Retention)
	}

	launcher := browser.NewLauncher(cfg.Browser,
		browser.WithLogger(logger.ForComponent(log, "browser")),
		browser.WithUserAgent(cfg.HTTP.UserAgent),
	)
	controller := escalation.NewFromConfig(launcher, cfg.Escalation, cfg.Browser,
		logger.ForComponent(log, "escalation"))

	engOpts := []engine.EngineOption{
		engine.WithLogger(log),
		engine.WithThreshold(decimal.NewFromFloat(cfg.Filter.ThresholdPercent())),
		engine.WithConcurrency(cfg.Engine.Concurrency),
		engine.WithRetention(cfg.Ledger.Retention),
	}
	if a.store != nil {
		engOpts = append(engOpts, engine.WithStore(a.store))
	}
	if opts.noDedup {
		engOpts = append(engOpts, engine.WithoutDedup())
	}

	a.engine = engine.NewEngine(sources, controller, a.dispatcher, notifiers, engOpts...)
	return a, nil
}

// Close releases the store.
func (a *app) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("closing ledger store", "error", err)
	}
}

func destinationNames(notifiers []notify.Notifier) []string {
	names := make([]string, 0, len(notifiers))
	for _, n := range notifiers {
		names = append(names, n.Name())
	}
	return names
}
