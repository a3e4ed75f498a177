package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"sounding_parser/internal/sounding"
)

// Archive is a local SQLite archive of decoded soundings with full-text
// search over the raw reports.
type Archive struct {
	db *sql.DB
}

// OpenArchive opens or creates a SQLite archive at the given path.
func OpenArchive(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := createArchiveSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Archive{db: db}, nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	return a.db.Close()
}

func createArchiveSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT NOT NULL UNIQUE,
		station TEXT NOT NULL,
		day INTEGER NOT NULL,
		hour INTEGER NOT NULL,
		received_at TEXT NOT NULL,
		source TEXT,
		ttaa_text TEXT,
		ttbb_text TEXT,
		complete INTEGER DEFAULT 0,
		warnings TEXT,
		profile_json TEXT NOT NULL,
		created_at TEXT DEFAULT (datetime('now'))
	);

	CREATE INDEX IF NOT EXISTS idx_profiles_station ON profiles(station, received_at);
	CREATE INDEX IF NOT EXISTS idx_profiles_ascent ON profiles(station, day, hour);

	-- FTS5 virtual table for full-text search on raw report text.
	CREATE VIRTUAL TABLE IF NOT EXISTS profiles_fts USING fts5(
		ttaa_text,
		ttbb_text,
		content='profiles',
		content_rowid='id'
	);

	-- Triggers to keep FTS index in sync.
	CREATE TRIGGER IF NOT EXISTS profiles_ai AFTER INSERT ON profiles BEGIN
		INSERT INTO profiles_fts(rowid, ttaa_text, ttbb_text) VALUES (new.id, new.ttaa_text, new.ttbb_text);
	END;

	CREATE TRIGGER IF NOT EXISTS profiles_ad AFTER DELETE ON profiles BEGIN
		INSERT INTO profiles_fts(profiles_fts, rowid, ttaa_text, ttbb_text) VALUES('delete', old.id, old.ttaa_text, old.ttbb_text);
	END;
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores a record.
func (a *Archive) Save(ctx context.Context, r Record) error {
	profileJSON, err := json.Marshal(r.Profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	complete := 0
	if r.Complete {
		complete = 1
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO profiles (uuid, station, day, hour, received_at, source, ttaa_text, ttbb_text, complete, warnings, profile_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID.String(), r.Station, r.Day, r.Hour, r.ReceivedAt.UTC().Format(time.RFC3339), r.Source,
		r.TTAA, r.TTBB, complete, strings.Join(r.Warnings, "\n"), string(profileJSON))
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

// QueryParams contains filtering options for querying archived profiles.
type QueryParams struct {
	Station   string // Filter by station (exact match).
	Day       int    // Filter by day of month (0 = any).
	Complete  bool   // Only profiles with both parts.
	FullText  string // FTS5 full-text search on the raw reports.
	Limit     int    // Max results (default 100).
	Offset    int    // Pagination offset.
	OrderDesc bool   // Newest first.
}

const selectArchive = `SELECT p.uuid, p.station, p.day, p.hour, p.received_at, p.source,
		p.ttaa_text, p.ttbb_text, p.complete, p.warnings, p.profile_json`

// Query retrieves records matching the given parameters.
func (a *Archive) Query(ctx context.Context, p QueryParams) ([]Record, error) {
	var conditions []string
	var args []interface{}

	if p.Station != "" {
		conditions = append(conditions, "p.station = ?")
		args = append(args, p.Station)
	}
	if p.Day != 0 {
		conditions = append(conditions, "p.day = ?")
		args = append(args, p.Day)
	}
	if p.Complete {
		conditions = append(conditions, "p.complete = 1")
	}

	// FTS5 search requires a JOIN with the FTS table.
	query := selectArchive + " FROM profiles p"
	if p.FullText != "" {
		query += " JOIN profiles_fts fts ON p.id = fts.rowid"
		conditions = append([]string{"profiles_fts MATCH ?"}, conditions...)
		args = append([]interface{}{p.FullText}, args...)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	direction := "ASC"
	if p.OrderDesc {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY p.received_at %s, p.id %s", direction, direction)

	limit := 100
	if p.Limit > 0 {
		limit = p.Limit
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, p.Offset)

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		r, err := scanArchive(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

// Latest returns the most recently received record for a station, or nil.
func (a *Archive) Latest(ctx context.Context, station string) (*Record, error) {
	records, err := a.Query(ctx, QueryParams{Station: station, Limit: 1, OrderDesc: true})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// List returns up to limit records for a station, newest first.
func (a *Archive) List(ctx context.Context, station string, limit int) ([]Record, error) {
	return a.Query(ctx, QueryParams{Station: station, Limit: limit, OrderDesc: true})
}

// GetByID retrieves a single record by ID.
func (a *Archive) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	row := a.db.QueryRowContext(ctx, selectArchive+" FROM profiles p WHERE p.uuid = ?", id.String())
	r, err := scanArchive(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArchive(s scanner) (*Record, error) {
	var (
		r                          Record
		id, receivedAt, profileRaw string
		source, ttaa, ttbb, warns  sql.NullString
		complete                   sql.NullInt64
	)

	err := s.Scan(&id, &r.Station, &r.Day, &r.Hour, &receivedAt, &source,
		&ttaa, &ttbb, &complete, &warns, &profileRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan row: %w", err)
	}

	if r.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse id %q: %w", id, err)
	}
	r.ReceivedAt, _ = time.Parse(time.RFC3339, receivedAt)
	r.Source = source.String
	r.TTAA = ttaa.String
	r.TTBB = ttbb.String
	r.Complete = complete.Valid && complete.Int64 == 1
	if warns.Valid && warns.String != "" {
		r.Warnings = strings.Split(warns.String, "\n")
	}

	r.Profile = &sounding.Profile{}
	if err := json.Unmarshal([]byte(profileRaw), r.Profile); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	return &r, nil
}

// Stats contains aggregate statistics about archived profiles.
type Stats struct {
	TotalProfiles int
	Complete      int
	WithWarnings  int
	ByStation     map[string]int
}

// GetStats returns statistics about the archive.
func (a *Archive) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByStation: make(map[string]int)}

	row := a.db.QueryRowContext(ctx, `SELECT COUNT(*),
		COALESCE(SUM(complete), 0),
		COALESCE(SUM(CASE WHEN warnings != '' AND warnings IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM profiles`)
	if err := row.Scan(&stats.TotalProfiles, &stats.Complete, &stats.WithWarnings); err != nil {
		return nil, err
	}

	rows, err := a.db.QueryContext(ctx, "SELECT station, COUNT(*) FROM profiles GROUP BY station ORDER BY COUNT(*) DESC LIMIT 20")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var station string
		var count int
		if err := rows.Scan(&station, &count); err != nil {
			return nil, err
		}
		stats.ByStation[station] = count
	}
	return stats, rows.Err()
}

// Stations returns the distinct stations in the archive.
func (a *Archive) Stations(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, "SELECT DISTINCT station FROM profiles WHERE station != '' ORDER BY station")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}
