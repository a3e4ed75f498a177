package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoStore is returned by DB reads when no queryable store is configured.
var ErrNoStore = errors.New("no profile store configured")

// Config holds connection settings for every backend. A backend with an
// empty host (or path) is not opened.
type Config struct {
	SQLitePath string
	ClickHouse ClickHouseConfig
	Postgres   PostgresConfig
	Influx     InfluxConfig
}

// DefaultConfig returns a configuration with default local development settings.
func DefaultConfig() Config {
	return Config{
		SQLitePath: "soundings.db",
		ClickHouse: ClickHouseConfig{
			Host:     "localhost",
			Port:     9000,
			Database: "soundings",
			User:     "default",
			Password: "",
		},
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "soundings",
			User:     "soundings",
			Password: "soundings",
		},
		Influx: InfluxConfig{
			Addr:        "http://localhost:8086",
			Database:    "soundings",
			Measurement: "sounding_levels",
		},
	}
}

// DB wraps every configured backend.
type DB struct {
	Archive *Archive      // SQLite archive of raw reports and profiles.
	PG      *PostgresDB   // PostgreSQL for the current profile of each ascent.
	CH      *ClickHouseDB // ClickHouse for level analytics.
	Influx  *InfluxDB     // InfluxDB level time series.
}

// Open opens connections to the configured backends.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	d := &DB{}

	if cfg.SQLitePath != "" {
		a, err := OpenArchive(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		d.Archive = a
	}

	if cfg.Postgres.Host != "" {
		pg, err := OpenPostgres(ctx, cfg.Postgres)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		d.PG = pg
	}

	if cfg.ClickHouse.Host != "" {
		ch, err := OpenClickHouse(ctx, cfg.ClickHouse)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("clickhouse: %w", err)
		}
		d.CH = ch
	}

	if cfg.Influx.Addr != "" {
		ix, err := OpenInflux(cfg.Influx)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("influx: %w", err)
		}
		d.Influx = ix
	}

	return d, nil
}

// Close closes every open connection.
func (d *DB) Close() error {
	var errs []error
	if d.Archive != nil {
		if err := d.Archive.Close(); err != nil {
			errs = append(errs, fmt.Errorf("sqlite: %w", err))
		}
	}
	if d.CH != nil {
		if err := d.CH.Close(); err != nil {
			errs = append(errs, fmt.Errorf("clickhouse: %w", err))
		}
	}
	if d.Influx != nil {
		if err := d.Influx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("influx: %w", err))
		}
	}
	if d.PG != nil {
		d.PG.Close()
	}
	return errors.Join(errs...)
}

// CreateSchemas creates the schemas in the server databases. The SQLite
// archive creates its own schema on open.
func (d *DB) CreateSchemas(ctx context.Context) error {
	if d.CH != nil {
		if err := d.CH.CreateSchema(ctx); err != nil {
			return fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	if d.PG != nil {
		if err := d.PG.CreateSchema(ctx); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
	}
	return nil
}

// Save writes a record to every open backend. A failing backend does not stop
// the others; all failures are returned together.
func (d *DB) Save(ctx context.Context, r Record) error {
	var errs []error
	if d.Archive != nil {
		if err := d.Archive.Save(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("sqlite: %w", err))
		}
	}
	if d.PG != nil {
		id, err := d.PG.UpsertProfile(ctx, r)
		if err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		} else {
			// ClickHouse rows carry the ID of the Postgres row.
			r.ID = id
		}
	}
	if d.CH != nil {
		if err := d.CH.InsertLevels(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("clickhouse: %w", err))
		}
	}
	if d.Influx != nil {
		if err := d.Influx.WriteLevels(r); err != nil {
			errs = append(errs, fmt.Errorf("influx: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Latest returns the latest profile for a station from PostgreSQL, or from
// the archive when PostgreSQL is not configured.
func (d *DB) Latest(ctx context.Context, station string) (*Record, error) {
	switch {
	case d.PG != nil:
		return d.PG.Latest(ctx, station)
	case d.Archive != nil:
		return d.Archive.Latest(ctx, station)
	default:
		return nil, ErrNoStore
	}
}

// List returns up to limit profiles for a station, newest first.
func (d *DB) List(ctx context.Context, station string, limit int) ([]Record, error) {
	switch {
	case d.PG != nil:
		return d.PG.List(ctx, station, limit)
	case d.Archive != nil:
		return d.Archive.List(ctx, station, limit)
	default:
		return nil, ErrNoStore
	}
}
