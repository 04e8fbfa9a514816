// Package config handles loading and validating the notifier configuration
// from a YAML file with environment variable substitution and DN_* overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	domain "github.com/donaldgifford/discount-notifier/pkg/types"
)

// EnvPrefix is the prefix for environment overrides (DN_WEBHOOK_URL, ...).
const EnvPrefix = "DN"

// Source kinds.
const (
	KindJSONLD  = "jsonld"
	KindJSONAPI = "jsonapi"
)

// Source transport preferences.
const (
	TransportAuto    = "auto"
	TransportDirect  = "direct"
	TransportBrowser = "browser"
)

// Destination kinds and roles.
const (
	DestinationDiscord = "discord"
	DestinationWebhook = "webhook"

	RoleProduction = "production"
	RoleDev        = "dev"
)

// Notification modes select which destination roles receive a run's batch.
const (
	ModeProduction = "production"
	ModeDev        = "dev"
	ModeBoth       = "both"
)

// Notification retry delay strategies.
const (
	BackoffConstant    = "constant"
	BackoffExponential = "exponential"
)

// Ledger backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config is the top-level application configuration.
type Config struct {
	Sources       []SourceConfig      `yaml:"sources"`
	Filter        FilterConfig        `yaml:"filter"`
	Escalation    EscalationConfig    `yaml:"escalation"`
	Browser       BrowserConfig       `yaml:"browser"`
	HTTP          HTTPConfig          `yaml:"http"`
	Engine        EngineConfig        `yaml:"engine"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Ledger        LedgerConfig        `yaml:"ledger"`
	Schedule      ScheduleConfig      `yaml:"schedule"`
	Server        ServerConfig        `yaml:"server"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// SourceConfig describes one retailer collector.
type SourceConfig struct {
	Name         string    `yaml:"name"`
	Key          string    `yaml:"key"`  // short CLI selector, e.g. "harrods"
	Kind         string    `yaml:"kind"` // jsonld, jsonapi
	URL          string    `yaml:"url"`  // may contain {page}
	BaseURL      string    `yaml:"base_url"`
	StartPage    int       `yaml:"start_page"`
	MaxPages     int       `yaml:"max_pages"`
	Transport    string    `yaml:"transport"` // auto, direct, browser
	Escalate     *bool     `yaml:"escalate"`
	Currency     string    `yaml:"currency"`
	UserAgent    string    `yaml:"user_agent"`
	WaitSelector string    `yaml:"wait_selector"`
	Paths        JSONPaths `yaml:"paths"`
}

// JSONPaths are gjson paths used by jsonapi sources.
type JSONPaths struct {
	Items         string `yaml:"items"`
	Name          string `yaml:"name"`
	URL           string `yaml:"url"`
	SalePrice     string `yaml:"sale_price"`
	OriginalPrice string `yaml:"original_price"`
	Image         string `yaml:"image"`
}

// EscalationEnabled reports whether blocked direct fetches may escalate.
func (s *SourceConfig) EscalationEnabled() bool {
	return s.Escalate == nil || *s.Escalate
}

// DefaultThreshold is the discount percentage used when none is configured.
const DefaultThreshold = 70.0

// FilterConfig defines the discount threshold in percent. A nil Threshold
// means unset; zero is a valid threshold that passes every known discount.
type FilterConfig struct {
	Threshold *float64 `yaml:"threshold"`
}

// ThresholdPercent returns the configured threshold or DefaultThreshold.
func (f *FilterConfig) ThresholdPercent() float64 {
	if f.Threshold == nil {
		return DefaultThreshold
	}
	return *f.Threshold
}

// EscalationConfig defines the blocking signals for direct fetches.
type EscalationConfig struct {
	BlockingStatuses []int    `yaml:"blocking_statuses"`
	Markers          []string `yaml:"markers"`
}

// BrowserConfig defines headless browser session settings.
type BrowserConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	Grace       time.Duration `yaml:"grace"`
	MaxPages    int           `yaml:"max_pages"`
	MaxSessions int           `yaml:"max_sessions"`
	ExecPath    string        `yaml:"exec_path"`
	Headless    *bool         `yaml:"headless"`
	RenderWait  time.Duration `yaml:"render_wait"`
}

// HeadlessEnabled reports whether the browser runs headless (default true).
func (b *BrowserConfig) HeadlessEnabled() bool {
	return b.Headless == nil || *b.Headless
}

// HTTPConfig defines direct transport settings.
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	RetryMax      int           `yaml:"retry_max"`
	RetryWaitMin  time.Duration `yaml:"retry_wait_min"`
	RetryWaitMax  time.Duration `yaml:"retry_wait_max"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
	UserAgent     string        `yaml:"user_agent"`
}

// EngineConfig defines orchestrator settings.
type EngineConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// NotificationsConfig defines notification destinations and retry policy.
type NotificationsConfig struct {
	Mode             string              `yaml:"mode"` // production, dev, both
	Destinations     []DestinationConfig `yaml:"destinations"`
	MaxAttempts      int                 `yaml:"max_attempts"`
	RetryDelay       time.Duration       `yaml:"retry_delay"`
	Backoff          string              `yaml:"backoff"` // constant, exponential
	DestinationPause time.Duration       `yaml:"destination_pause"`
	SendSummary      bool                `yaml:"send_summary"`
	Timeout          time.Duration       `yaml:"timeout"`
	Username         string              `yaml:"username"`
}

// DestinationConfig defines one notification endpoint.
type DestinationConfig struct {
	Name    string            `yaml:"name"`
	Kind    string            `yaml:"kind"` // discord, webhook
	URL     string            `yaml:"url"`
	Role    string            `yaml:"role"` // production, dev
	Headers map[string]string `yaml:"headers"`
}

// Selected returns the destinations whose role matches the mode.
func (n *NotificationsConfig) Selected() []DestinationConfig {
	var out []DestinationConfig
	for _, d := range n.Destinations {
		if n.Mode == ModeBoth || d.Role == n.Mode {
			out = append(out, d)
		}
	}
	return out
}

// LedgerConfig defines cross-run de-duplication persistence.
type LedgerConfig struct {
	Persist    bool           `yaml:"persist"`
	Backend    string         `yaml:"backend"` // sqlite, postgres
	Retention  time.Duration  `yaml:"retention"`
	SQLitePath string         `yaml:"sqlite_path"`
	Postgres   DatabaseConfig `yaml:"postgres"`
}

// DatabaseConfig defines PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	PoolSize int    `yaml:"pool_size"`
}

// DSN returns a PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s pool_max_conns=%d",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode, d.PoolSize,
	)
}

// ScheduleConfig defines the serve-mode run interval.
type ScheduleConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// ServerConfig defines the Echo HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

type loadOptions struct {
	allowNoDestinations bool
	env                 *viper.Viper
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

// AllowNoDestinations skips the destination requirement (dry runs).
func AllowNoDestinations() LoadOption {
	return func(o *loadOptions) {
		o.allowNoDestinations = true
	}
}

// WithEnv overrides the viper instance used for DN_* lookups.
func WithEnv(v *viper.Viper) LoadOption {
	return func(o *loadOptions) {
		o.env = v
	}
}

// Load reads and parses a YAML config file, performing environment variable
// substitution, DN_* overrides, defaults, and validation. An empty path
// builds the configuration from the environment alone. Every failure is a
// *domain.ConfigurationError.
func Load(path string, opts ...LoadOption) (*Config, error) {
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.env == nil {
		o.env = viper.New()
		o.env.SetEnvPrefix(EnvPrefix)
		o.env.AutomaticEnv()
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // config path from trusted CLI flag
		if err != nil {
			return nil, &domain.ConfigurationError{Err: fmt.Errorf("reading config file: %w", err)}
		}

		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, &domain.ConfigurationError{Err: fmt.Errorf("parsing config YAML: %w", err)}
		}
	}

	if err := applyEnv(cfg, o.env); err != nil {
		return nil, &domain.ConfigurationError{Err: err}
	}

	applyDefaults(cfg)

	if err := validate(cfg, o.allowNoDestinations); err != nil {
		return nil, &domain.ConfigurationError{Err: fmt.Errorf("validating config: %w", err)}
	}

	return cfg, nil
}

// applyEnv maps the environment-style surface onto the config.
func applyEnv(cfg *Config, v *viper.Viper) error {
	if u := v.GetString("webhook_url"); u != "" {
		upsertDestination(cfg, DestinationConfig{
			Name: RoleProduction, Kind: DestinationDiscord, URL: u, Role: RoleProduction,
		})
	}
	if u := v.GetString("dev_webhook_url"); u != "" {
		upsertDestination(cfg, DestinationConfig{
			Name: RoleDev, Kind: DestinationDiscord, URL: u, Role: RoleDev,
		})
	}
	if m := v.GetString("mode"); m != "" {
		cfg.Notifications.Mode = m
	}

	if raw := v.GetString("discount_threshold"); raw != "" {
		t, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("DN_DISCOUNT_THRESHOLD %q: %w", raw, err)
		}
		cfg.Filter.Threshold = &t
	}
	if raw := v.GetString("browser_timeout"); raw != "" {
		dur, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("DN_BROWSER_TIMEOUT %q: %w", raw, err)
		}
		cfg.Browser.Timeout = dur
	}
	if raw := v.GetString("browser_max_pages"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("DN_BROWSER_MAX_PAGES %q: %w", raw, err)
		}
		cfg.Browser.MaxPages = n
	}
	return nil
}

func upsertDestination(cfg *Config, d DestinationConfig) {
	for i := range cfg.Notifications.Destinations {
		if cfg.Notifications.Destinations[i].Name == d.Name {
			cfg.Notifications.Destinations[i].URL = d.URL
			return
		}
	}
	cfg.Notifications.Destinations = append(cfg.Notifications.Destinations, d)
}

func applyDefaults(cfg *Config) {
	for i := range cfg.Sources {
		applySourceDefaults(&cfg.Sources[i])
	}
	if cfg.Filter.Threshold == nil {
		t := DefaultThreshold
		cfg.Filter.Threshold = &t
	}
	applyEscalationDefaults(&cfg.Escalation)
	applyBrowserDefaults(&cfg.Browser)
	applyHTTPDefaults(&cfg.HTTP)
	if cfg.Engine.Concurrency <= 0 {
		cfg.Engine.Concurrency = 1
	}
	applyNotificationDefaults(&cfg.Notifications)
	applyLedgerDefaults(&cfg.Ledger)
	if cfg.Schedule.Interval == 0 {
		cfg.Schedule.Interval = time.Hour
	}
	applyServerDefaults(&cfg.Server)
	applyLoggingDefaults(&cfg.Logging)
}

func applySourceDefaults(s *SourceConfig) {
	if s.Key == "" {
		s.Key = strings.ToLower(strings.ReplaceAll(s.Name, " ", "-"))
	}
	if s.Transport == "" {
		s.Transport = TransportAuto
	}
	if s.MaxPages == 0 {
		s.MaxPages = 1
	}
	if s.StartPage == 0 {
		s.StartPage = 1
	}
	if s.Currency == "" {
		s.Currency = domain.DefaultCurrency
	}
}

func applyEscalationDefaults(e *EscalationConfig) {
	if len(e.BlockingStatuses) == 0 {
		e.BlockingStatuses = []int{401, 403, 406, 429, 503}
	}
	if len(e.Markers) == 0 {
		e.Markers = []string{"captcha", "cf-challenge", "access denied", "just a moment", "px-captcha"}
	}
}

func applyBrowserDefaults(b *BrowserConfig) {
	if b.Timeout == 0 {
		b.Timeout = 30 * time.Second
	}
	if b.Grace == 0 {
		b.Grace = 2 * time.Second
	}
	if b.MaxPages == 0 {
		b.MaxPages = 5
	}
	if b.MaxSessions == 0 {
		b.MaxSessions = 1
	}
	if b.RenderWait == 0 {
		b.RenderWait = 2 * time.Second
	}
}

func applyHTTPDefaults(h *HTTPConfig) {
	if h.Timeout == 0 {
		h.Timeout = 20 * time.Second
	}
	if h.RetryMax == 0 {
		h.RetryMax = 3
	}
	if h.RetryWaitMin == 0 {
		h.RetryWaitMin = time.Second
	}
	if h.RetryWaitMax == 0 {
		h.RetryWaitMax = 8 * time.Second
	}
	if h.RatePerSecond == 0 {
		h.RatePerSecond = 1
	}
	if h.Burst == 0 {
		h.Burst = 1
	}
	if h.UserAgent == "" {
		h.UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
}

func applyNotificationDefaults(n *NotificationsConfig) {
	if n.Mode == "" {
		n.Mode = ModeProduction
	}
	if n.MaxAttempts == 0 {
		n.MaxAttempts = 3
	}
	if n.RetryDelay == 0 {
		n.RetryDelay = 60 * time.Second
	}
	if n.Backoff == "" {
		n.Backoff = BackoffConstant
	}
	if n.Timeout == 0 {
		n.Timeout = 10 * time.Second
	}
	if n.Username == "" {
		n.Username = "Discount Notifier"
	}
	for i := range n.Destinations {
		d := &n.Destinations[i]
		if d.Kind == "" {
			d.Kind = DestinationDiscord
		}
		if d.Role == "" {
			d.Role = RoleProduction
		}
		if d.Name == "" {
			d.Name = d.Role
		}
	}
}

func applyLedgerDefaults(l *LedgerConfig) {
	if l.Backend == "" {
		l.Backend = BackendSQLite
	}
	if l.Retention == 0 {
		l.Retention = 24 * time.Hour
	}
	if l.SQLitePath == "" {
		l.SQLitePath = "notifications.db"
	}
	if l.Postgres.Port == 0 {
		l.Postgres.Port = 5432
	}
	if l.Postgres.SSLMode == "" {
		l.Postgres.SSLMode = "disable"
	}
	if l.Postgres.PoolSize == 0 {
		l.Postgres.PoolSize = 4
	}
}

func applyServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 5 * time.Minute
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

func validate(cfg *Config, allowNoDestinations bool) error {
	var errs []error

	if len(cfg.Sources) == 0 {
		errs = append(errs, errors.New("at least one source is required"))
	}
	seen := make(map[string]bool)
	for i := range cfg.Sources {
		errs = append(errs, validateSource(i, &cfg.Sources[i], seen)...)
	}

	if t := cfg.Filter.ThresholdPercent(); t < 0 || t > 100 {
		errs = append(errs, fmt.Errorf("filter.threshold must be within 0..100 (got %g)", t))
	}
	if cfg.Browser.Timeout < 0 || cfg.Browser.MaxPages < 0 || cfg.Browser.MaxSessions < 0 {
		errs = append(errs, errors.New("browser settings must not be negative"))
	}

	errs = append(errs, validateNotifications(&cfg.Notifications, allowNoDestinations)...)

	if cfg.Ledger.Persist {
		switch cfg.Ledger.Backend {
		case BackendSQLite:
		case BackendPostgres:
			if cfg.Ledger.Postgres.Host == "" || cfg.Ledger.Postgres.Name == "" || cfg.Ledger.Postgres.User == "" {
				errs = append(errs, errors.New("ledger.postgres host, name and user are required for the postgres backend"))
			}
		default:
			errs = append(errs, fmt.Errorf("ledger.backend must be one of: sqlite, postgres (got %q)", cfg.Ledger.Backend))
		}
	}

	return errors.Join(errs...)
}

func validateSource(i int, s *SourceConfig, seen map[string]bool) []error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, fmt.Errorf("sources[%d].name is required", i))
	}
	if seen[s.Key] {
		errs = append(errs, fmt.Errorf("sources[%d].key %q is duplicated", i, s.Key))
	}
	seen[s.Key] = true

	if s.URL == "" {
		errs = append(errs, fmt.Errorf("sources[%d].url is required", i))
	}

	switch s.Kind {
	case KindJSONLD:
	case KindJSONAPI:
		if s.Paths.Items == "" || s.Paths.Name == "" || s.Paths.SalePrice == "" {
			errs = append(errs, fmt.Errorf("sources[%d].paths items, name and sale_price are required for jsonapi", i))
		}
	default:
		errs = append(errs, fmt.Errorf("sources[%d].kind must be one of: jsonld, jsonapi (got %q)", i, s.Kind))
	}

	switch s.Transport {
	case TransportAuto, TransportDirect, TransportBrowser:
	default:
		errs = append(errs, fmt.Errorf("sources[%d].transport must be one of: auto, direct, browser (got %q)", i, s.Transport))
	}
	return errs
}

func validateNotifications(n *NotificationsConfig, allowNoDestinations bool) []error {
	var errs []error

	switch n.Mode {
	case ModeProduction, ModeDev, ModeBoth:
	default:
		errs = append(errs, fmt.Errorf("notifications.mode must be one of: production, dev, both (got %q)", n.Mode))
	}
	if n.MaxAttempts < 1 {
		errs = append(errs, errors.New("notifications.max_attempts must be at least 1"))
	}
	switch n.Backoff {
	case BackoffConstant, BackoffExponential:
	default:
		errs = append(errs, fmt.Errorf("notifications.backoff must be constant or exponential (got %q)", n.Backoff))
	}

	for i, d := range n.Destinations {
		if d.URL == "" {
			errs = append(errs, fmt.Errorf("notifications.destinations[%d].url is required", i))
		} else if u, err := url.Parse(d.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("notifications.destinations[%d].url %q is not an absolute URL", i, d.URL))
		}
		if d.Kind != DestinationDiscord && d.Kind != DestinationWebhook {
			errs = append(errs, fmt.Errorf("notifications.destinations[%d].kind must be discord or webhook (got %q)", i, d.Kind))
		}
	}

	if !allowNoDestinations && len(n.Selected()) == 0 {
		errs = append(errs, fmt.Errorf("no notification destination configured for mode %q (set DN_WEBHOOK_URL or notifications.destinations)", n.Mode))
	}
	return errs
}
