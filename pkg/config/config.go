// Package config loads DocPulse configuration from YAML or TOML files with
// environment-variable overrides. Every service and the CLI share the same
// Config so a single file can describe a whole deployment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Search   SearchConfig   `yaml:"search"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Intake   IntakeConfig   `yaml:"intake"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// StorageConfig selects the corpus store backend.
type StorageConfig struct {
	Driver string `yaml:"driver"` // postgres | sqlite | memory
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// SQLiteConfig points the local store at a database file.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DocumentEvents  string `yaml:"documentEvents"`
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// SearchConfig controls paging limits and the per-query time budget.
type SearchConfig struct {
	DefaultLimit int           `yaml:"defaultLimit"`
	MaxResults   int           `yaml:"maxResults"`
	Timeout      time.Duration `yaml:"timeout"`
}

// ScoringConfig selects the scoring policy applied at ingestion.
type ScoringConfig struct {
	Policy string `yaml:"policy"`
	// BatchConcurrency bounds parallel scoring during batch ingestion.
	BatchConcurrency int `yaml:"batchConcurrency"`
	MaxBatchSize     int `yaml:"maxBatchSize"`
}

// IntakeConfig holds file intake limits.
type IntakeConfig struct {
	MaxFileSize       int64    `yaml:"maxFileSize"`
	AllowedExtensions []string `yaml:"allowedExtensions"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// GatewayConfig holds the API gateway port, upstream URLs, and key policy.
type GatewayConfig struct {
	Port         int           `yaml:"port"`
	IngestionURL string        `yaml:"ingestionUrl"`
	SearcherURL  string        `yaml:"searcherUrl"`
	AnalyticsURL string        `yaml:"analyticsUrl"`
	AuthEnabled  bool          `yaml:"authEnabled"`
	RateWindow   time.Duration `yaml:"rateWindow"`

	// DefaultRateLimit is requests per RateWindow for keys created without
	// an explicit limit.
	DefaultRateLimit int      `yaml:"defaultRateLimit"`
	AllowedOrigins   []string `yaml:"allowedOrigins"`
}

// Load reads a config file (if provided) and applies environment-variable
// overrides. Files ending in .toml are decoded as TOML, everything else as
// YAML.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode overlays data onto cfg. TOML is normalised through YAML so both
// formats share the yaml struct tags and duration parsing.
func decode(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		var raw map[string]any
		if err := toml.Unmarshal(data, &raw); err != nil {
			return err
		}
		converted, err := yaml.Marshal(raw)
		if err != nil {
			return err
		}
		data = converted
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate rejects settings no service can run with.
func (c *Config) Validate() error {
	switch c.Scoring.Policy {
	case "v2", "baseline":
	default:
		return fmt.Errorf("unknown scoring policy %q", c.Scoring.Policy)
	}
	switch c.Storage.Driver {
	case "postgres", "sqlite", "memory":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Search.DefaultLimit <= 0 || c.Search.MaxResults <= 0 {
		return fmt.Errorf("search limits must be positive")
	}
	if c.Intake.MaxFileSize <= 0 {
		return fmt.Errorf("intake.maxFileSize must be positive")
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Storage: StorageConfig{Driver: "postgres"},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "docpulse",
			User:            "docpulse",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		SQLite: SQLiteConfig{Path: "data/docpulse.db"},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "docpulse-group",
			Topics: KafkaTopics{
				DocumentEvents:  "document-events",
				AnalyticsEvents: "analytics-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Search: SearchConfig{
			DefaultLimit: 50,
			MaxResults:   500,
			Timeout:      5 * time.Second,
		},
		Scoring: ScoringConfig{
			Policy:           "v2",
			BatchConcurrency: 8,
			MaxBatchSize:     500,
		},
		Intake: IntakeConfig{
			MaxFileSize:       50 * 1024 * 1024,
			AllowedExtensions: []string{".pdf", ".txt", ".md", ".doc", ".docx"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		Gateway: GatewayConfig{
			Port:         8082,
			IngestionURL: "http://localhost:8081",
			SearcherURL:  "http://localhost:8080",
			AnalyticsURL: "http://localhost:8083",
			AuthEnabled:  true,
			RateWindow:   time.Minute,

			DefaultRateLimit: 600,
			AllowedOrigins:   []string{"*"},
		},
	}
}

// envOverrides maps DP_* variables onto config fields. Each setter parses
// the raw value and reports malformed input.
func envOverrides(cfg *Config) map[string]func(string) error {
	return map[string]func(string) error{
		"DP_SERVER_PORT":             setInt(&cfg.Server.Port),
		"DP_STORAGE_DRIVER":          setString(&cfg.Storage.Driver),
		"DP_POSTGRES_HOST":           setString(&cfg.Postgres.Host),
		"DP_POSTGRES_PORT":           setInt(&cfg.Postgres.Port),
		"DP_POSTGRES_DATABASE":       setString(&cfg.Postgres.Database),
		"DP_POSTGRES_USER":           setString(&cfg.Postgres.User),
		"DP_POSTGRES_PASSWORD":       setString(&cfg.Postgres.Password),
		"DP_POSTGRES_SSLMODE":        setString(&cfg.Postgres.SSLMode),
		"DP_SQLITE_PATH":             setString(&cfg.SQLite.Path),
		"DP_KAFKA_BROKERS":           setList(&cfg.Kafka.Brokers),
		"DP_REDIS_ADDR":              setString(&cfg.Redis.Addr),
		"DP_REDIS_PASSWORD":          setString(&cfg.Redis.Password),
		"DP_SCORING_POLICY":          setString(&cfg.Scoring.Policy),
		"DP_LOGGING_LEVEL":           setString(&cfg.Logging.Level),
		"DP_LOGGING_FORMAT":          setString(&cfg.Logging.Format),
		"DP_METRICS_PORT":            setInt(&cfg.Metrics.Port),
		"DP_GATEWAY_PORT":            setInt(&cfg.Gateway.Port),
		"DP_GATEWAY_INGESTION_URL":   setString(&cfg.Gateway.IngestionURL),
		"DP_GATEWAY_SEARCHER_URL":    setString(&cfg.Gateway.SearcherURL),
		"DP_GATEWAY_ANALYTICS_URL":   setString(&cfg.Gateway.AnalyticsURL),
		"DP_GATEWAY_ALLOWED_ORIGINS": setList(&cfg.Gateway.AllowedOrigins),
		"DP_GATEWAY_AUTH_ENABLED":    setBool(&cfg.Gateway.AuthEnabled),
	}
}

// applyEnvOverrides applies every set DP_* variable. Empty variables are
// ignored; unparsable ones fail the load.
func applyEnvOverrides(cfg *Config) error {
	var errs []error
	for name, set := range envOverrides(cfg) {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			continue
		}
		if err := set(v); err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", name, v, err))
		}
	}
	return errors.Join(errs...)
}

func setString(dst *string) func(string) error {
	return func(v string) error { *dst = v; return nil }
}

func setInt(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func setBool(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}

func setList(dst *[]string) func(string) error {
	return func(v string) error {
		var out []string
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		*dst = out
		return nil
	}
}
