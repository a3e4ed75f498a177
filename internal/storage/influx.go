package storage

import (
	"fmt"
	"strconv"
	"time"

	influx "github.com/influxdata/influxdb/client/v2"
)

// InfluxConfig holds InfluxDB connection settings.
type InfluxConfig struct {
	Addr        string // e.g. http://localhost:8086
	Database    string
	User        string
	Password    string
	Measurement string
}

// InfluxDB writes levels as time series points, one point per level, tagged
// by station, kind, pressure and sequence.
type InfluxDB struct {
	client      influx.Client
	database    string
	measurement string
}

// OpenInflux creates an HTTP client and checks that the server answers.
func OpenInflux(cfg InfluxConfig) (*InfluxDB, error) {
	c, err := influx.NewHTTPClient(influx.HTTPConfig{
		Addr:     cfg.Addr,
		Username: cfg.User,
		Password: cfg.Password,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("create influx client: %w", err)
	}

	if _, _, err := c.Ping(time.Second); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping influx: %w", err)
	}

	m := cfg.Measurement
	if m == "" {
		m = "sounding_levels"
	}
	return &InfluxDB{client: c, database: cfg.Database, measurement: m}, nil
}

// Close releases the client.
func (d *InfluxDB) Close() error {
	return d.client.Close()
}

// WriteLevels writes every level of a record in one batch.
func (d *InfluxDB) WriteLevels(r Record) error {
	bp, err := levelPoints(d.database, d.measurement, r)
	if err != nil {
		return err
	}
	if len(bp.Points()) == 0 {
		return nil
	}
	if err := d.client.Write(bp); err != nil {
		return fmt.Errorf("write points: %w", err)
	}
	return nil
}

func levelPoints(database, measurement string, r Record) (influx.BatchPoints, error) {
	bp, err := influx.NewBatchPoints(influx.BatchPointsConfig{
		Database:  database,
		Precision: "s",
	})
	if err != nil {
		return nil, fmt.Errorf("new batch: %w", err)
	}

	at := r.ObservedAt()
	for _, lr := range r.levelRows() {
		l := lr.Level
		tags := map[string]string{
			"station":  r.Station,
			"kind":     lr.Kind,
			"pressure": strconv.Itoa(l.Pressure),
			"seq":      strconv.Itoa(lr.Seq), // equal pressures may repeat in one profile
		}
		fields := map[string]any{
			"profile_id": r.ID.String(),
		}
		if l.Height != nil {
			fields["height"] = *l.Height
		}
		if l.Temperature != nil {
			fields["temperature"] = *l.Temperature
		}
		if l.Dewpoint != nil {
			fields["dewpoint"] = *l.Dewpoint
		}
		if l.DewpointDepression != nil {
			fields["dewpoint_depression"] = *l.DewpointDepression
		}
		if l.WindDirection != nil {
			fields["wind_direction"] = *l.WindDirection
		}
		if l.WindSpeed != nil {
			fields["wind_speed"] = *l.WindSpeed
		}

		pt, err := influx.NewPoint(measurement, tags, fields, at)
		if err != nil {
			return nil, fmt.Errorf("point at %d hPa: %w", l.Pressure, err)
		}
		bp.AddPoint(pt)
	}
	return bp, nil
}
