package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// ClickHouseDB wraps a ClickHouse connection holding flattened levels for
// climatology queries.
type ClickHouseDB struct {
	conn driver.Conn
}

// Conn returns the underlying ClickHouse connection for direct queries.
func (d *ClickHouseDB) Conn() driver.Conn {
	return d.conn
}

// OpenClickHouse opens a connection to ClickHouse.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	// Test the connection.
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the ClickHouse connection.
func (d *ClickHouseDB) Close() error {
	return d.conn.Close()
}

// CreateSchema creates the ClickHouse tables.
func (d *ClickHouseDB) CreateSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS sounding_levels (
			profile_id          UUID,
			station             LowCardinality(String),
			day                 Int8,
			hour                Int8,
			received_at         DateTime64(3),
			kind                LowCardinality(String),
			seq                 UInt16,
			pressure            Int32,
			height              Nullable(Int32),
			temperature         Nullable(Float64),
			dewpoint            Nullable(Float64),
			dewpoint_depression Nullable(Float64),
			wind_direction      Nullable(Int32),
			wind_speed          Nullable(Int32),
			created_at          DateTime64(3) DEFAULT now64(3)
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMM(received_at)
		ORDER BY (station, kind, pressure, received_at)
		SETTINGS index_granularity = 8192`,
	}

	for _, q := range queries {
		if err := d.conn.Exec(ctx, q); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// InsertLevels stores every level of a record in one batch.
func (d *ClickHouseDB) InsertLevels(ctx context.Context, r Record) error {
	rows := r.levelRows()
	if len(rows) == 0 {
		return nil
	}

	batch, err := d.conn.PrepareBatch(ctx, `
		INSERT INTO sounding_levels (profile_id, station, day, hour, received_at, kind, seq, pressure,
			height, temperature, dewpoint, dewpoint_depression, wind_direction, wind_speed)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, lr := range rows {
		l := lr.Level
		err := batch.Append(r.ID, r.Station, int8(r.Day), int8(r.Hour), r.ReceivedAt, lr.Kind, uint16(lr.Seq),
			int32(l.Pressure), int32Ptr(l.Height), l.Temperature, l.Dewpoint, l.DewpointDepression,
			int32Ptr(l.WindDirection), int32Ptr(l.WindSpeed))
		if err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// Save implements the sink used by ingest.
func (d *ClickHouseDB) Save(ctx context.Context, r Record) error {
	return d.InsertLevels(ctx, r)
}

func int32Ptr(v *int) *int32 {
	if v == nil {
		return nil
	}
	x := int32(*v)
	return &x
}

// LevelClimate summarises the temperature and wind observed at one pressure.
type LevelClimate struct {
	Pressure        int32
	Observations    uint64
	MeanTemperature float64
	MinTemperature  float64
	MaxTemperature  float64
	MeanWindSpeed   float64
}

// Climatology returns per-level statistics for the mandatory levels of a station.
func (d *ClickHouseDB) Climatology(ctx context.Context, station string) ([]LevelClimate, error) {
	rows, err := d.conn.Query(ctx, `
		SELECT pressure, count(),
			ifNull(avg(temperature), nan), ifNull(min(temperature), nan), ifNull(max(temperature), nan),
			ifNull(avg(wind_speed), nan)
		FROM sounding_levels
		WHERE station = ? AND kind = ?
		GROUP BY pressure
		ORDER BY pressure DESC
	`, station, kindMandatory)
	if err != nil {
		return nil, fmt.Errorf("query climatology: %w", err)
	}
	defer rows.Close()

	var out []LevelClimate
	for rows.Next() {
		var c LevelClimate
		if err := rows.Scan(&c.Pressure, &c.Observations, &c.MeanTemperature, &c.MinTemperature,
			&c.MaxTemperature, &c.MeanWindSpeed); err != nil {
			return nil, fmt.Errorf("scan climatology: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate climatology: %w", err)
	}
	return out, nil
}

// CHStats contains aggregate statistics about stored levels.
type CHStats struct {
	TotalLevels   uint64
	TotalProfiles uint64
	ByStation     map[string]uint64
}

// GetStats returns statistics about stored levels.
func (d *ClickHouseDB) GetStats(ctx context.Context) (*CHStats, error) {
	stats := &CHStats{ByStation: make(map[string]uint64)}

	row := d.conn.QueryRow(ctx, "SELECT count(), uniqExact(profile_id) FROM sounding_levels")
	if err := row.Scan(&stats.TotalLevels, &stats.TotalProfiles); err != nil {
		return nil, err
	}

	rows, err := d.conn.Query(ctx, "SELECT station, uniqExact(profile_id) FROM sounding_levels GROUP BY station ORDER BY 2 DESC LIMIT 20")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var station string
		var count uint64
		if err := rows.Scan(&station, &count); err != nil {
			return nil, fmt.Errorf("scan station stats: %w", err)
		}
		stats.ByStation[station] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate station stats: %w", err)
	}
	return stats, nil
}
