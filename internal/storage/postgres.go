package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sounding_parser/internal/sounding"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// PostgresDB wraps a PostgreSQL connection pool holding the current profile
// of every ascent.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool to PostgreSQL.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresDB, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// Test the connection.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close closes the PostgreSQL connection pool.
func (d *PostgresDB) Close() {
	d.pool.Close()
}

// Pool returns the underlying pool for direct queries.
func (d *PostgresDB) Pool() *pgxpool.Pool {
	return d.pool
}

// CreateSchema creates the PostgreSQL tables.
func (d *PostgresDB) CreateSchema(ctx context.Context) error {
	schema := `
	-- One row per ascent; a later decode of the same ascent replaces it.
	CREATE TABLE IF NOT EXISTS profiles (
		id              UUID PRIMARY KEY,
		station         TEXT NOT NULL,
		day             INTEGER NOT NULL,
		hour            INTEGER NOT NULL,
		received_at     TIMESTAMPTZ NOT NULL,
		source          TEXT,
		complete        BOOLEAN NOT NULL DEFAULT FALSE,
		surface         JSONB NOT NULL,
		tropopause      JSONB,
		max_wind        JSONB,
		warnings        JSONB,
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE(station, day, hour)
	);

	CREATE INDEX IF NOT EXISTS idx_profiles_station_received ON profiles(station, received_at DESC);

	CREATE TABLE IF NOT EXISTS profile_levels (
		profile_id          UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		kind                TEXT NOT NULL,
		seq                 INTEGER NOT NULL,
		pressure            INTEGER NOT NULL,
		height              INTEGER,
		temperature         DOUBLE PRECISION,
		dewpoint            DOUBLE PRECISION,
		dewpoint_depression DOUBLE PRECISION,
		wind_direction      INTEGER,
		wind_speed          INTEGER,
		PRIMARY KEY (profile_id, kind, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_profile_levels_pressure ON profile_levels(pressure);
	`

	_, err := d.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// UpsertProfile stores a record and replaces its levels. An existing row for
// the same station, day and hour keeps its ID, which is returned.
func (d *PostgresDB) UpsertProfile(ctx context.Context, r Record) (uuid.UUID, error) {
	if r.Profile == nil {
		return uuid.Nil, errors.New("upsert profile: nil profile")
	}

	surface, err := json.Marshal(r.Profile.Surface)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal surface: %w", err)
	}
	tropopause, err := marshalOptional(r.Profile.Tropopause)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal tropopause: %w", err)
	}
	maxWind, err := marshalOptional(r.Profile.MaxWind)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal max wind: %w", err)
	}
	warnings, err := marshalOptional(r.Warnings)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal warnings: %w", err)
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO profiles (id, station, day, hour, received_at, source, complete, surface, tropopause, max_wind, warnings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (station, day, hour) DO UPDATE SET
			received_at = EXCLUDED.received_at,
			source = EXCLUDED.source,
			complete = profiles.complete OR EXCLUDED.complete,
			surface = EXCLUDED.surface,
			tropopause = EXCLUDED.tropopause,
			max_wind = EXCLUDED.max_wind,
			warnings = EXCLUDED.warnings,
			updated_at = NOW()
		RETURNING id
	`, r.ID, r.Station, r.Day, r.Hour, r.ReceivedAt, r.Source, r.Complete,
		string(surface), tropopause, maxWind, warnings).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert profile: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM profile_levels WHERE profile_id = $1`, id); err != nil {
		return uuid.Nil, fmt.Errorf("clear levels: %w", err)
	}

	levels := r.levelRows()
	if len(levels) > 0 {
		batch := &pgx.Batch{}
		for _, lr := range levels {
			l := lr.Level
			batch.Queue(`
				INSERT INTO profile_levels (profile_id, kind, seq, pressure, height, temperature, dewpoint,
					dewpoint_depression, wind_direction, wind_speed)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				id, lr.Kind, lr.Seq, l.Pressure, l.Height, l.Temperature, l.Dewpoint,
				l.DewpointDepression, l.WindDirection, l.WindSpeed,
			)
		}
		br := tx.SendBatch(ctx, batch)
		for range levels {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return uuid.Nil, fmt.Errorf("insert level: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return uuid.Nil, fmt.Errorf("close batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// Save implements the sink used by ingest.
func (d *PostgresDB) Save(ctx context.Context, r Record) error {
	_, err := d.UpsertProfile(ctx, r)
	return err
}

func marshalOptional(v any) (*string, error) {
	switch x := v.(type) {
	case *sounding.Tropopause:
		if x == nil {
			return nil, nil
		}
	case *sounding.MaxWind:
		if x == nil {
			return nil, nil
		}
	case []string:
		if len(x) == 0 {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

const selectProfile = `SELECT id, station, day, hour, received_at, COALESCE(source, ''), complete,
		surface, tropopause, max_wind, warnings FROM profiles`

// Latest returns the most recently received profile for a station, or nil.
func (d *PostgresDB) Latest(ctx context.Context, station string) (*Record, error) {
	row := d.pool.QueryRow(ctx, selectProfile+` WHERE station = $1 ORDER BY received_at DESC LIMIT 1`, station)
	r, err := scanProfile(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := d.loadLevels(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// GetProfile retrieves a profile by ID, or nil.
func (d *PostgresDB) GetProfile(ctx context.Context, id uuid.UUID) (*Record, error) {
	row := d.pool.QueryRow(ctx, selectProfile+` WHERE id = $1`, id)
	r, err := scanProfile(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := d.loadLevels(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// List returns up to limit profiles for a station, newest first, with levels.
func (d *PostgresDB) List(ctx context.Context, station string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.pool.Query(ctx, selectProfile+` WHERE station = $1 ORDER BY received_at DESC LIMIT $2`, station, limit)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range records {
		if err := d.loadLevels(ctx, &records[i]); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func scanProfile(row pgx.Row) (*Record, error) {
	var (
		r                   Record
		surface             []byte
		tropopause, maxWind []byte
		warnings            []byte
	)
	err := row.Scan(&r.ID, &r.Station, &r.Day, &r.Hour, &r.ReceivedAt, &r.Source, &r.Complete,
		&surface, &tropopause, &maxWind, &warnings)
	if err != nil {
		return nil, err
	}

	p := &sounding.Profile{
		Station:     r.Station,
		Mandatory:   []sounding.Level{},
		Significant: []sounding.Level{},
	}
	if r.Day >= 0 {
		p.Day = sounding.Ptr(r.Day)
	}
	if r.Hour >= 0 {
		p.Hour = sounding.Ptr(r.Hour)
	}
	if err := json.Unmarshal(surface, &p.Surface); err != nil {
		return nil, fmt.Errorf("unmarshal surface: %w", err)
	}
	if len(tropopause) > 0 {
		p.Tropopause = &sounding.Tropopause{}
		if err := json.Unmarshal(tropopause, p.Tropopause); err != nil {
			return nil, fmt.Errorf("unmarshal tropopause: %w", err)
		}
	}
	if len(maxWind) > 0 {
		p.MaxWind = &sounding.MaxWind{}
		if err := json.Unmarshal(maxWind, p.MaxWind); err != nil {
			return nil, fmt.Errorf("unmarshal max wind: %w", err)
		}
	}
	if len(warnings) > 0 {
		if err := json.Unmarshal(warnings, &r.Warnings); err != nil {
			return nil, fmt.Errorf("unmarshal warnings: %w", err)
		}
	}

	r.Profile = p
	return &r, nil
}

func (d *PostgresDB) loadLevels(ctx context.Context, r *Record) error {
	rows, err := d.pool.Query(ctx, `
		SELECT kind, pressure, height, temperature, dewpoint, dewpoint_depression, wind_direction, wind_speed
		FROM profile_levels WHERE profile_id = $1 ORDER BY kind, seq
	`, r.ID)
	if err != nil {
		return fmt.Errorf("query levels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var l sounding.Level
		if err := rows.Scan(&kind, &l.Pressure, &l.Height, &l.Temperature, &l.Dewpoint,
			&l.DewpointDepression, &l.WindDirection, &l.WindSpeed); err != nil {
			return fmt.Errorf("scan level: %w", err)
		}
		switch kind {
		case kindMandatory:
			r.Profile.Mandatory = append(r.Profile.Mandatory, l)
		case kindSignificant:
			r.Profile.Significant = append(r.Profile.Significant, l)
		}
	}
	return rows.Err()
}

// CountProfiles returns the number of stored profiles, optionally for one station.
func (d *PostgresDB) CountProfiles(ctx context.Context, station string) (int64, error) {
	var count int64
	var err error
	if station != "" {
		err = d.pool.QueryRow(ctx, `SELECT COUNT(*) FROM profiles WHERE station = $1`, station).Scan(&count)
	} else {
		err = d.pool.QueryRow(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&count)
	}
	return count, err
}
