package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the top-level application config.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Database    DatabaseConfig    `koanf:"database"`
	Matcher     MatcherConfig     `koanf:"matcher"`
	Aggregation AggregationConfig `koanf:"aggregation"`
}

type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"` // debug | release
}

type DatabaseConfig struct {
	Type         string `koanf:"type"`
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type MatcherConfig struct {
	WorkerCount       int    `koanf:"worker_count"`
	QueueCapacity     int    `koanf:"queue_capacity"`
	InvocationBudget  string `koanf:"invocation_budget"`   // per-notification execution budget
	StoreMaxAttempts  int    `koanf:"store_max_attempts"`  // transient lookup/create retries
	StoreBackoff      string `koanf:"store_backoff"`
	DeleteMaxAttempts int    `koanf:"delete_max_attempts"` // best-effort cleanup bound
	DeleteBackoff     string `koanf:"delete_backoff"`
}

type AggregationConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Interval    string `koanf:"interval"` // tick interval of the daily scheduler
	PageSize    int    `koanf:"page_size"`
	WorkerCount int    `koanf:"worker_count"`
	OutputDir   string `koanf:"output_dir"`
}

func (c MatcherConfig) ParsedInvocationBudget() (time.Duration, error) {
	return parsePositiveDuration("matcher.invocation_budget", c.InvocationBudget)
}

func (c MatcherConfig) ParsedStoreBackoff() (time.Duration, error) {
	return parseNonNegativeDuration("matcher.store_backoff", c.StoreBackoff)
}

func (c MatcherConfig) ParsedDeleteBackoff() (time.Duration, error) {
	return parseNonNegativeDuration("matcher.delete_backoff", c.DeleteBackoff)
}

func (c AggregationConfig) ParsedInterval() (time.Duration, error) {
	return parsePositiveDuration("aggregation.interval", c.Interval)
}

func parsePositiveDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return d, nil
}

func parseNonNegativeDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must be >= 0", key)
	}
	return d, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.MaxBodySizeMB <= 0 {
		return fmt.Errorf("server.max_body_size_mb must be > 0")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be > 0")
	}
	if c.Database.MaxIdleConns <= 0 {
		return fmt.Errorf("database.max_idle_conns must be > 0")
	}
	if c.Database.Type != "" && c.Database.Type != "postgres" {
		return fmt.Errorf("unsupported database.type %q", c.Database.Type)
	}

	if c.Matcher.WorkerCount <= 0 {
		return fmt.Errorf("matcher.worker_count must be > 0")
	}
	if c.Matcher.QueueCapacity <= 0 {
		return fmt.Errorf("matcher.queue_capacity must be > 0")
	}
	if c.Matcher.StoreMaxAttempts <= 0 {
		return fmt.Errorf("matcher.store_max_attempts must be > 0")
	}
	if c.Matcher.DeleteMaxAttempts <= 0 {
		return fmt.Errorf("matcher.delete_max_attempts must be > 0")
	}
	if _, err := c.Matcher.ParsedInvocationBudget(); err != nil {
		return err
	}
	if _, err := c.Matcher.ParsedStoreBackoff(); err != nil {
		return err
	}
	if _, err := c.Matcher.ParsedDeleteBackoff(); err != nil {
		return err
	}

	if _, err := c.Aggregation.ParsedInterval(); err != nil {
		return err
	}
	if c.Aggregation.PageSize <= 0 {
		return fmt.Errorf("aggregation.page_size must be > 0")
	}
	if c.Aggregation.WorkerCount <= 0 {
		return fmt.Errorf("aggregation.worker_count must be > 0")
	}
	if strings.TrimSpace(c.Aggregation.OutputDir) == "" {
		return fmt.Errorf("aggregation.output_dir is required")
	}

	return nil
}

// Load parses config from defaults, optional YAML file and environment,
// then validates it. Env vars use the TRIPMATCH_ prefix with "__" as the
// section separator, e.g. TRIPMATCH_DATABASE__DSN.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":                 8080,
		"server.host":                 "0.0.0.0",
		"server.max_body_size_mb":     1,
		"server.mode":                 "release",
		"database.type":               "postgres",
		"database.dsn":                "",
		"database.max_open_conns":     25,
		"database.max_idle_conns":     25,
		"database.auto_migrate":       true,
		"matcher.worker_count":        8,
		"matcher.queue_capacity":      4096,
		"matcher.invocation_budget":   "10s",
		"matcher.store_max_attempts":  3,
		"matcher.store_backoff":       "100ms",
		"matcher.delete_max_attempts": 3,
		"matcher.delete_backoff":      "100ms",
		"aggregation.enabled":         true,
		"aggregation.interval":        "24h",
		"aggregation.page_size":       5000,
		"aggregation.worker_count":    4,
		"aggregation.output_dir":      "./analytics",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("TRIPMATCH_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "TRIPMATCH_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
