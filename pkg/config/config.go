// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for the
// indexing pipeline and for every optional integration (Kafka, Redis,
// PostgreSQL, Prometheus) plus the lookup service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// File error policies for PipelineConfig.OnFileError.
const (
	OnFileErrorAbort = "abort"
	OnFileErrorSkip  = "skip"
)

// Config is the top-level application configuration.
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Lookup   LookupConfig   `yaml:"lookup"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// PipelineConfig controls the map/reduce worker pools and where partitions
// are written.
type PipelineConfig struct {
	Mappers       int    `yaml:"mappers"`
	Reducers      int    `yaml:"reducers"`
	OutputDir     string `yaml:"outputDir"`
	MaxTokenBytes int    `yaml:"maxTokenBytes"`
	OnFileError   string `yaml:"onFileError"`
}

// Validate reports the first invalid pipeline setting.
func (p PipelineConfig) Validate() error {
	if p.Mappers < 1 {
		return fmt.Errorf("mappers must be at least 1, got %d", p.Mappers)
	}
	if p.Reducers < 1 {
		return fmt.Errorf("reducers must be at least 1, got %d", p.Reducers)
	}
	if p.MaxTokenBytes < 1 {
		return fmt.Errorf("maxTokenBytes must be positive, got %d", p.MaxTokenBytes)
	}
	switch p.OnFileError {
	case OnFileErrorAbort, OnFileErrorSkip:
	default:
		return fmt.Errorf("onFileError must be %q or %q, got %q", OnFileErrorAbort, OnFileErrorSkip, p.OnFileError)
	}
	return nil
}

// LookupConfig holds the lookup HTTP service settings.
type LookupConfig struct {
	Port            int           `yaml:"port"`
	DataDir         string        `yaml:"dataDir"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters for the run catalog.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
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

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	Partitions string `yaml:"partitions"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls span logging for pipeline runs.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus scrape server and, for one-shot runs,
// the Pushgateway the final metrics are pushed to.
type MetricsConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Port           int    `yaml:"port"`
	PushgatewayURL string `yaml:"pushgatewayUrl"`
	Job            string `yaml:"job"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Mappers:       1,
			Reducers:      1,
			OutputDir:     ".",
			MaxTokenBytes: 99,
			OnFileError:   OnFileErrorAbort,
		},
		Lookup: LookupConfig{
			Port:            8090,
			DataDir:         ".",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "invertedindex",
			User:            "invertedindex",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "invertedindex-lookup",
			Topics: KafkaTopics{
				Partitions: "index.partitions",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Job:     "inverted_index",
		},
	}
}

// applyEnvOverrides reads IX_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("IX_PIPELINE_MAPPERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.Mappers = n
		}
	}
	if v := os.Getenv("IX_PIPELINE_REDUCERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.Reducers = n
		}
	}
	if v := os.Getenv("IX_PIPELINE_OUTPUT_DIR"); v != "" {
		cfg.Pipeline.OutputDir = v
	}
	if v := os.Getenv("IX_PIPELINE_ON_FILE_ERROR"); v != "" {
		cfg.Pipeline.OnFileError = v
	}
	if v := os.Getenv("IX_LOOKUP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Lookup.Port = port
		}
	}
	if v := os.Getenv("IX_LOOKUP_DATA_DIR"); v != "" {
		cfg.Lookup.DataDir = v
	}
	if v := os.Getenv("IX_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("IX_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("IX_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("IX_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("IX_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("IX_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("IX_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("IX_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("IX_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("IX_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("IX_METRICS_PUSHGATEWAY_URL"); v != "" {
		cfg.Metrics.PushgatewayURL = v
	}
}
