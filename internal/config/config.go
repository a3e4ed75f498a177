// Package config loads process configuration from the environment.
//
// Values are resolved from the OS environment first and then from a .env file
// in the working directory. Flags parsed by the CLI override individual fields
// after loading.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"sounding_parser/internal/storage"
)

// ConfigErrorType classifies a configuration failure.
type ConfigErrorType string

const (
	ErrParsing    ConfigErrorType = "parsing"
	ErrValidation ConfigErrorType = "validation"
)

// ConfigError is returned by Load.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Config is the top-level configuration.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"dev" validate:"oneof=dev prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn warning error"`

	Storage StorageConfig
	API     APIConfig
	Ingest  IngestConfig
}

// StorageConfig selects the persistence backends. A backend without a host
// (or path) is disabled.
type StorageConfig struct {
	SQLitePath string `envconfig:"SQLITE_PATH"`

	PostgresHost     string `envconfig:"POSTGRES_HOST"`
	PostgresPort     int    `envconfig:"POSTGRES_PORT" default:"5432" validate:"min=1,max=65535"`
	PostgresDatabase string `envconfig:"POSTGRES_DB" default:"soundings"`
	PostgresUser     string `envconfig:"POSTGRES_USER" default:"soundings"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD"`

	ClickHouseHost     string `envconfig:"CLICKHOUSE_HOST"`
	ClickHousePort     int    `envconfig:"CLICKHOUSE_PORT" default:"9000" validate:"min=1,max=65535"`
	ClickHouseDatabase string `envconfig:"CLICKHOUSE_DB" default:"soundings"`
	ClickHouseUser     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	ClickHousePassword string `envconfig:"CLICKHOUSE_PASSWORD"`

	InfluxAddr        string `envconfig:"INFLUX_ADDR" validate:"omitempty,url"`
	InfluxDatabase    string `envconfig:"INFLUX_DB" default:"soundings"`
	InfluxUser        string `envconfig:"INFLUX_USER"`
	InfluxPassword    string `envconfig:"INFLUX_PASSWORD"`
	InfluxMeasurement string `envconfig:"INFLUX_MEASUREMENT" default:"sounding_levels"`
}

// Backends converts the settings into storage connection settings.
func (s StorageConfig) Backends() storage.Config {
	return storage.Config{
		SQLitePath: s.SQLitePath,
		Postgres: storage.PostgresConfig{
			Host:     s.PostgresHost,
			Port:     s.PostgresPort,
			Database: s.PostgresDatabase,
			User:     s.PostgresUser,
			Password: s.PostgresPassword,
		},
		ClickHouse: storage.ClickHouseConfig{
			Host:     s.ClickHouseHost,
			Port:     s.ClickHousePort,
			Database: s.ClickHouseDatabase,
			User:     s.ClickHouseUser,
			Password: s.ClickHousePassword,
		},
		Influx: storage.InfluxConfig{
			Addr:        s.InfluxAddr,
			Database:    s.InfluxDatabase,
			User:        s.InfluxUser,
			Password:    s.InfluxPassword,
			Measurement: s.InfluxMeasurement,
		},
	}
}

// Enabled reports whether any backend is configured.
func (s StorageConfig) Enabled() bool {
	return s.SQLitePath != "" || s.PostgresHost != "" || s.ClickHouseHost != "" || s.InfluxAddr != ""
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Addr           string        `envconfig:"HTTP_ADDR" default:":8080" validate:"required"`
	APIKey         string        `envconfig:"API_KEY"` // empty disables authentication
	RequestTimeout time.Duration `envconfig:"HTTP_REQUEST_TIMEOUT" default:"30s" validate:"gt=0"`
	CacheTTL       time.Duration `envconfig:"DECODE_CACHE_TTL" default:"10m"`
}

// IngestConfig holds message bus settings. At least one transport must be set
// for the ingest command; that check belongs to the command.
type IngestConfig struct {
	NATSURL     string `envconfig:"NATS_URL" validate:"omitempty,url"`
	NATSSubject string `envconfig:"NATS_SUBJECT" default:"soundings.temp"`

	MQTTBroker   string `envconfig:"MQTT_BROKER" validate:"omitempty,url"`
	MQTTTopic    string `envconfig:"MQTT_TOPIC" default:"soundings/temp"`
	MQTTClientID string `envconfig:"MQTT_CLIENT_ID" default:"sounding-parser"`
	MQTTUsername string `envconfig:"MQTT_USERNAME"`
	MQTTPassword string `envconfig:"MQTT_PASSWORD"`

	// A TTAA without its TTBB is stored alone once it is older than PairWindow.
	PairWindow    time.Duration `envconfig:"INGEST_PAIR_WINDOW" default:"30m" validate:"gt=0"`
	FlushInterval time.Duration `envconfig:"INGEST_FLUSH_INTERVAL" default:"1m" validate:"gt=0"`

	BreakerFailures uint32        `envconfig:"SINK_BREAKER_FAILURES" default:"5" validate:"min=1"`
	BreakerTimeout  time.Duration `envconfig:"SINK_BREAKER_TIMEOUT" default:"30s"`
}

// Transports reports whether a message bus is configured.
func (i IngestConfig) Transports() bool {
	return i.NATSURL != "" || i.MQTTBroker != ""
}

// Load reads a .env file if present, processes the environment and validates
// the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}
	return &cfg, nil
}
