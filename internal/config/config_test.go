package config

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetEnv removes keys for the duration of the test. envconfig only applies
// a default when the variable is absent, so setting it empty is not enough.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoadDefaults(t *testing.T) {
	unsetEnv(t, "APP_ENV", "LOG_LEVEL", "HTTP_ADDR", "DECODE_CACHE_TTL", "NATS_SUBJECT",
		"INGEST_PAIR_WINDOW", "SINK_BREAKER_FAILURES",
		"SQLITE_PATH", "POSTGRES_HOST", "CLICKHOUSE_HOST", "INFLUX_ADDR", "INFLUX_MEASUREMENT",
		"NATS_URL", "MQTT_BROKER")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.API.Addr)
	assert.Equal(t, 10*time.Minute, cfg.API.CacheTTL)
	assert.Equal(t, "soundings.temp", cfg.Ingest.NATSSubject)
	assert.Equal(t, 30*time.Minute, cfg.Ingest.PairWindow)
	assert.Equal(t, uint32(5), cfg.Ingest.BreakerFailures)
	assert.Equal(t, "sounding_levels", cfg.Storage.InfluxMeasurement)
	assert.False(t, cfg.Storage.Enabled())
	assert.False(t, cfg.Ingest.Transports())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SQLITE_PATH", "/var/lib/soundings.db")
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("POSTGRES_PORT", "6432")
	t.Setenv("CLICKHOUSE_HOST", "")
	t.Setenv("INFLUX_ADDR", "http://influx.internal:8086")
	t.Setenv("INFLUX_DB", "upperair")
	t.Setenv("NATS_URL", "nats://bus.internal:4222")
	t.Setenv("MQTT_BROKER", "")
	t.Setenv("API_KEY", "secret")
	t.Setenv("INGEST_PAIR_WINDOW", "45m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Environment)
	assert.Equal(t, "secret", cfg.API.APIKey)
	assert.Equal(t, 45*time.Minute, cfg.Ingest.PairWindow)
	assert.True(t, cfg.Ingest.Transports())
	assert.True(t, cfg.Storage.Enabled())

	b := cfg.Storage.Backends()
	assert.Equal(t, "/var/lib/soundings.db", b.SQLitePath)
	assert.Equal(t, "db.internal", b.Postgres.Host)
	assert.Equal(t, 6432, b.Postgres.Port)
	assert.Equal(t, "soundings", b.Postgres.Database)
	assert.Empty(t, b.ClickHouse.Host)
	assert.Equal(t, "http://influx.internal:8086", b.Influx.Addr)
	assert.Equal(t, "upperair", b.Influx.Database)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		wantType ConfigErrorType
	}{
		{"unknown environment", "APP_ENV", "staging", ErrValidation},
		{"unknown log level", "LOG_LEVEL", "verbose", ErrValidation},
		{"port not a number", "POSTGRES_PORT", "five", ErrParsing},
		{"port out of range", "CLICKHOUSE_PORT", "70000", ErrValidation},
		{"bad duration", "INGEST_FLUSH_INTERVAL", "soon", ErrParsing},
		{"zero breaker threshold", "SINK_BREAKER_FAILURES", "0", ErrValidation},
		{"broker not a url", "MQTT_BROKER", "localhost", ErrValidation},
		{"influx not a url", "INFLUX_ADDR", "influx:8086", ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			cfg, err := Load()
			require.Error(t, err)
			assert.Nil(t, cfg)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.wantType, cfgErr.Type)
			assert.NotNil(t, errors.Unwrap(err))
		})
	}
}

func TestConfigErrorMessage(t *testing.T) {
	err := &ConfigError{Type: ErrValidation, Message: "bad"}
	assert.Equal(t, "[validation] bad", err.Error())

	err.Err = errors.New("cause")
	assert.Equal(t, "[validation] bad: cause", err.Error())
}
