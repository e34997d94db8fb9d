// Package config loads and validates parlcrawl configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
	"github.com/JakeFAU/parlcrawl/internal/extract"
)

// Store and output backends.
const (
	BackendMemory   = "memory"
	BackendLocal    = "local"
	BackendGCS      = "gcs"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config captures every knob loaded via Viper.
type Config struct {
	Crawler CrawlerConfig `mapstructure:"crawler"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Run     RunConfig     `mapstructure:"run"`
	Store   StoreConfig   `mapstructure:"store"`
	DB      DBConfig      `mapstructure:"db"`
	GCS     GCSConfig     `mapstructure:"gcs"`
	Output  OutputConfig  `mapstructure:"output"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
	// Sites maps a site name to seed URLs that replace its defaults.
	Sites map[string][]string `mapstructure:"sites"`
}

// CrawlerConfig governs scheduler concurrency.
type CrawlerConfig struct {
	Workers     int `mapstructure:"workers"`
	MaxInFlight int `mapstructure:"max_in_flight"`
}

// HTTPConfig configures the fetcher, retries and politeness.
type HTTPConfig struct {
	UserAgent        string             `mapstructure:"user_agent"`
	TimeoutSeconds   int                `mapstructure:"timeout_seconds"`
	Headers          map[string]string  `mapstructure:"headers"`
	MaxBodyBytes     int                `mapstructure:"max_body_bytes"`
	MaxRetries       int                `mapstructure:"max_retries"`
	BackoffInitialMs int                `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int                `mapstructure:"backoff_max_ms"`
	RPS              float64            `mapstructure:"rps"`
	Burst            int                `mapstructure:"burst"`
	// HostLimits override RPS per host. A list keeps dotted host names out
	// of Viper's key paths.
	HostLimits []HostLimit `mapstructure:"host_limits"`
}

// HostLimit is a per-host request rate.
type HostLimit struct {
	Host string  `mapstructure:"host"`
	RPS  float64 `mapstructure:"rps"`
}

// RunConfig holds the per-run knobs handed to extraction rules.
type RunConfig struct {
	// Cutoff drops sittings and speeches dated before it (YYYY-MM-DD).
	Cutoff         string   `mapstructure:"cutoff"`
	StartTerm      int      `mapstructure:"start_term"`
	EndTerm        int      `mapstructure:"end_term"`
	IncludeCurrent bool     `mapstructure:"include_current"`
	RoleFields     []string `mapstructure:"role_fields"`
}

// StoreConfig selects the profile store.
type StoreConfig struct {
	Backend    string `mapstructure:"backend"`
	Dir        string `mapstructure:"dir"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// DBConfig controls the Postgres profile store.
type DBConfig struct {
	DSN                    string `mapstructure:"dsn"`
	Table                  string `mapstructure:"table"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeSeconds int    `mapstructure:"max_conn_lifetime_seconds"`
}

// GCSConfig names the bucket used by the gcs store and output backends.
type GCSConfig struct {
	Bucket        string `mapstructure:"bucket"`
	ProfilePrefix string `mapstructure:"profile_prefix"`
}

// OutputConfig controls artifact layout and table cleanup.
type OutputConfig struct {
	Backend            string   `mapstructure:"backend"`
	Dir                string   `mapstructure:"dir"`
	Prefix             string   `mapstructure:"prefix"`
	Formats            []string `mapstructure:"formats"`
	Delimiter          string   `mapstructure:"delimiter"`
	DropEmptyColumns   bool     `mapstructure:"drop_empty_columns"`
	UnsupportedColumns []string `mapstructure:"unsupported_columns"`
}

// PubSubConfig enables artifact notifications when Topic is set.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// MetricsConfig enables the status endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from an optional file and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PARLCRAWL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.workers", 4)
	v.SetDefault("crawler.max_in_flight", 4)
	v.SetDefault("http.user_agent", "parlcrawl/0.1 (+https://github.com/JakeFAU/parlcrawl)")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_body_bytes", 32*1024*1024)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 500)
	v.SetDefault("http.backoff_max_ms", 10000)
	v.SetDefault("http.rps", 2.0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("run.cutoff", "2017-01-01")
	v.SetDefault("run.include_current", true)
	v.SetDefault("store.backend", BackendLocal)
	v.SetDefault("store.dir", "data/profiles")
	v.SetDefault("store.sqlite_path", "data/profiles.db")
	v.SetDefault("db.table", "profiles")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.max_conn_lifetime_seconds", 1800)
	v.SetDefault("gcs.profile_prefix", "profiles")
	v.SetDefault("output.backend", BackendLocal)
	v.SetDefault("output.dir", "data/output")
	v.SetDefault("output.formats", []string{"csv"})
	v.SetDefault("output.delimiter", "|")
	v.SetDefault("logging.development", true)
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be positive")
	}
	if c.Crawler.MaxInFlight < 0 {
		return fmt.Errorf("crawler.max_in_flight must not be negative")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be positive")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must not be negative")
	}
	if c.HTTP.RPS < 0 {
		return fmt.Errorf("http.rps must not be negative")
	}
	for _, hl := range c.HTTP.HostLimits {
		if hl.Host == "" || hl.RPS < 0 {
			return fmt.Errorf("http.host_limits entries need a host and a non-negative rps")
		}
	}
	if _, err := c.Run.CutoffTime(); err != nil {
		return err
	}
	if c.Run.StartTerm < 0 || c.Run.EndTerm < 0 {
		return fmt.Errorf("run term bounds must not be negative")
	}
	if c.Run.EndTerm > 0 && c.Run.StartTerm > c.Run.EndTerm {
		return fmt.Errorf("run.start_term %d is after run.end_term %d", c.Run.StartTerm, c.Run.EndTerm)
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	if c.PubSub.Topic != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id is required when pubsub.topic is set")
	}
	return nil
}

func (c Config) validateStore() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendLocal:
		if c.Store.Dir == "" {
			return fmt.Errorf("store.dir is required for the local store")
		}
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite store")
		}
	case BackendPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn is required for the postgres store")
		}
	case BackendGCS:
		if c.GCS.Bucket == "" {
			return fmt.Errorf("gcs.bucket is required for the gcs store")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	return nil
}

func (c Config) validateOutput() error {
	switch c.Output.Backend {
	case BackendMemory:
	case BackendLocal:
		if c.Output.Dir == "" {
			return fmt.Errorf("output.dir is required for local output")
		}
	case BackendGCS:
		if c.GCS.Bucket == "" {
			return fmt.Errorf("gcs.bucket is required for gcs output")
		}
	default:
		return fmt.Errorf("unknown output.backend %q", c.Output.Backend)
	}
	for _, f := range c.Output.Formats {
		if f != "csv" && f != "json" {
			return fmt.Errorf("unknown output format %q", f)
		}
	}
	return nil
}

// CutoffTime parses Cutoff. An empty cutoff keeps everything.
func (r RunConfig) CutoffTime() (time.Time, error) {
	if strings.TrimSpace(r.Cutoff) == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(extract.DateLayout, strings.TrimSpace(r.Cutoff))
	if err != nil {
		return time.Time{}, fmt.Errorf("run.cutoff: %w", err)
	}
	return t, nil
}

// Terms returns the term selection. An unset end term selects every
// numbered term from StartTerm on.
func (r RunConfig) Terms() crawler.TermSelection {
	start := r.StartTerm
	if start == 0 {
		start = 1
	}
	end := r.EndTerm
	if end == 0 {
		end = int(^uint(0) >> 1)
	}
	return crawler.TermSelection{Start: start, End: end, IncludeCurrent: r.IncludeCurrent}
}

// Timeout returns the per-request timeout.
func (h HTTPConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutSeconds) * time.Second
}

// BackoffInitial returns the first retry delay.
func (h HTTPConfig) BackoffInitial() time.Duration {
	return time.Duration(h.BackoffInitialMs) * time.Millisecond
}

// HostRPS returns HostLimits keyed by host.
func (h HTTPConfig) HostRPS() map[string]float64 {
	out := make(map[string]float64, len(h.HostLimits))
	for _, hl := range h.HostLimits {
		out[strings.ToLower(hl.Host)] = hl.RPS
	}
	return out
}

// BackoffMax caps retry delays.
func (h HTTPConfig) BackoffMax() time.Duration {
	return time.Duration(h.BackoffMaxMs) * time.Millisecond
}
