package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort        = 8080
	DefaultDriver          = "pgx"
	DefaultHistorianDSNEnv = "HISTORIAN_DSN"
	DefaultRegistryDSNEnv  = "REGISTRY_DSN"
	DefaultConnectTimeout  = 5 * time.Second
	DefaultCycleCount      = 100
	DefaultPollInterval    = 2 * time.Second
	DefaultSimulatorStep   = time.Minute
	DefaultPHTemplate      = "R%d_PH.PV"
	DefaultTCCTemplate     = "R%d_TCC.PV"
	DefaultMaxConcurrency  = 4
	DefaultCacheTTL        = 30 * time.Second
	DefaultLogMaxSizeMB    = 100
	DefaultLogMaxBackups   = 5
)

// Config holds the server configuration parsed from config.yaml.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Historian   HistorianConfig   `yaml:"historian"`
	Registry    RegistryConfig    `yaml:"registry"`
	Live        LiveConfig        `yaml:"live"`
	Tags        TagsConfig        `yaml:"tags"`
	Simulator   SimulatorConfig   `yaml:"simulator"`
	FlowRate    FlowRateConfig    `yaml:"flow_rate"`
	Correlation CorrelationConfig `yaml:"correlation"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API, WebSocket endpoint and /metrics listen on.
	HTTPPort int `yaml:"http_port"`
}

// LogConfig controls the slog handler installed by main.
type LogConfig struct {
	// Level is one of: debug | info | warn | error. Defaults to info.
	Level string `yaml:"level"`

	// File, when set, receives a copy of every log line in addition to
	// stdout. The file is rotated once it reaches MaxSizeMB.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// SlogLevel maps Level to a slog.Level.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// HistorianConfig describes how to reach the plant historian.
type HistorianConfig struct {
	// Driver is the database/sql driver name. Defaults to "pgx".
	Driver string `yaml:"driver"`

	// DSNEnv is the name of the environment variable holding the historian DSN.
	DSNEnv string `yaml:"dsn_env"`

	// ConnectTimeout bounds a single connection attempt (open + ping).
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// CycleCount is the number of evenly spaced samples cyclic retrieval
	// resamples a window to.
	CycleCount int `yaml:"cycle_count"`
}

// DSN returns the historian DSN resolved from the environment.
func (h HistorianConfig) DSN() string {
	if h.DSNEnv == "" {
		return ""
	}
	return os.Getenv(h.DSNEnv)
}

// RegistryConfig describes the read-only batch registry database.
type RegistryConfig struct {
	Driver string `yaml:"driver"`
	DSNEnv string `yaml:"dsn_env"`
}

// DSN returns the registry DSN resolved from the environment.
func (r RegistryConfig) DSN() string {
	if r.DSNEnv == "" {
		return ""
	}
	return os.Getenv(r.DSNEnv)
}

// LiveConfig controls the live broadcast poller.
type LiveConfig struct {
	// PollInterval is the pause between two full passes over all tags.
	PollInterval time.Duration `yaml:"poll_interval"`

	// CacheTTL is how long a cached latest reading stays visible to
	// GET /telemetry/snapshot and to newly connected clients. Zero disables
	// expiry.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// TagsConfig holds the per-signal naming templates. Each template must
// contain exactly one %d verb, replaced by the reactor line.
type TagsConfig struct {
	PHTemplate  string `yaml:"ph_template"`
	TCCTemplate string `yaml:"tcc_template"`
}

// SimulatorConfig tunes the fallback simulator.
type SimulatorConfig struct {
	// Step is the backward spacing between synthetic range samples.
	Step time.Duration `yaml:"step"`
}

// FlowRateConfig selects the operation/phase/parameter rows joined to
// compute a batch's flow rate.
type FlowRateConfig struct {
	Operation     string `yaml:"operation"`
	Phase         string `yaml:"phase"`
	QtyParameter  string `yaml:"qty_parameter"`
	TimeParameter string `yaml:"time_parameter"`

	// TimeUnit is the unit of the time reading: seconds | minutes.
	TimeUnit string `yaml:"time_unit"`
}

// CorrelationConfig tunes the batch correlation engine.
type CorrelationConfig struct {
	// MaxConcurrency bounds how many batch windows are queried at once.
	MaxConcurrency int `yaml:"max_concurrency"`
}

// Load reads and parses the config file at path.
// Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML data over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Defaults returns a Config pre-populated with default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{HTTPPort: DefaultHTTPPort},
		Log:    LogConfig{Level: "info", MaxSizeMB: DefaultLogMaxSizeMB, MaxBackups: DefaultLogMaxBackups},
		Historian: HistorianConfig{
			Driver:         DefaultDriver,
			DSNEnv:         DefaultHistorianDSNEnv,
			ConnectTimeout: DefaultConnectTimeout,
			CycleCount:     DefaultCycleCount,
		},
		Registry: RegistryConfig{
			Driver: DefaultDriver,
			DSNEnv: DefaultRegistryDSNEnv,
		},
		Live: LiveConfig{
			PollInterval: DefaultPollInterval,
			CacheTTL:     DefaultCacheTTL,
		},
		Tags: TagsConfig{
			PHTemplate:  DefaultPHTemplate,
			TCCTemplate: DefaultTCCTemplate,
		},
		Simulator: SimulatorConfig{Step: DefaultSimulatorStep},
		FlowRate: FlowRateConfig{
			Operation:     "TRANSFER",
			Phase:         "CHARGE",
			QtyParameter:  "ACTUAL_QTY",
			TimeParameter: "ACTUAL_TIME",
			TimeUnit:      "seconds",
		},
		Correlation: CorrelationConfig{MaxConcurrency: DefaultMaxConcurrency},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("log.level %q unknown: want debug|info|warn|error", cfg.Log.Level)
	}
	if cfg.Log.MaxSizeMB < 0 || cfg.Log.MaxBackups < 0 || cfg.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log rotation limits must not be negative")
	}
	if cfg.Historian.Driver == "" {
		return fmt.Errorf("historian.driver must not be empty")
	}
	if cfg.Historian.ConnectTimeout <= 0 {
		return fmt.Errorf("historian.connect_timeout must be positive")
	}
	if cfg.Historian.CycleCount <= 0 {
		return fmt.Errorf("historian.cycle_count must be positive")
	}
	if cfg.Registry.Driver == "" {
		return fmt.Errorf("registry.driver must not be empty")
	}
	if cfg.Live.PollInterval <= 0 {
		return fmt.Errorf("live.poll_interval must be positive")
	}
	if cfg.Live.CacheTTL < 0 {
		return fmt.Errorf("live.cache_ttl must not be negative")
	}
	for name, tpl := range map[string]string{
		"tags.ph_template":  cfg.Tags.PHTemplate,
		"tags.tcc_template": cfg.Tags.TCCTemplate,
	} {
		if strings.Count(tpl, "%d") != 1 || strings.Count(tpl, "%") != 1 {
			return fmt.Errorf("%s %q must contain exactly one %%d verb", name, tpl)
		}
	}
	if cfg.Simulator.Step <= 0 {
		return fmt.Errorf("simulator.step must be positive")
	}
	switch cfg.FlowRate.TimeUnit {
	case "seconds", "minutes":
	default:
		return fmt.Errorf("flow_rate.time_unit %q unknown: want seconds|minutes", cfg.FlowRate.TimeUnit)
	}
	if cfg.Correlation.MaxConcurrency <= 0 {
		return fmt.Errorf("correlation.max_concurrency must be positive")
	}
	return nil
}
