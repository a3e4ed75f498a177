package main

import (
	"context"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"sounding_parser/internal/registry"
	"sounding_parser/internal/storage"
)

// StatsOut is printed by the stats command. Sections for unconfigured
// backends are omitted.
type StatsOut struct {
	Parsers    int              `json:"parsers"`
	Parts      []string         `json:"parts"`
	Archive    *storage.Stats   `json:"archive,omitempty"`
	Postgres   *int64           `json:"postgres_profiles,omitempty"`
	ClickHouse *storage.CHStats `json:"clickhouse,omitempty"`
	Stations   []string         `json:"stations,omitempty"`
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	store := fs.String("store", "", "SQLite archive (overrides SQLITE_PATH)")
	pretty := fs.Bool("pretty", true, "Pretty-print JSON output")
	_ = fs.Parse(args)

	cfg, log := setup()
	if *store != "" {
		cfg.Storage.SQLitePath = *store
	}

	out := StatsOut{
		Parsers: registry.Default().ParserCount(),
		Parts:   registry.Default().RegisteredParts(),
	}

	if cfg.Storage.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := storage.Open(ctx, cfg.Storage.Backends())
		if err != nil {
			fatal(log, "open storage", err)
		}
		defer func() { _ = db.Close() }()

		if db.Archive != nil {
			if out.Archive, err = db.Archive.GetStats(ctx); err != nil {
				fatal(log, "archive stats", err)
			}
			if out.Stations, err = db.Archive.Stations(ctx); err != nil {
				fatal(log, "archive stations", err)
			}
		}
		if db.PG != nil {
			n, err := db.PG.CountProfiles(ctx, "")
			if err != nil {
				fatal(log, "postgres stats", err)
			}
			out.Postgres = &n
		}
		if db.CH != nil {
			if out.ClickHouse, err = db.CH.GetStats(ctx); err != nil {
				fatal(log, "clickhouse stats", err)
			}
		}
	}

	enc, err := marshalJSON(out, *pretty)
	if err != nil {
		fatal(log, "JSON encode error", err)
	}
	fmt.Fprintln(os.Stdout, string(enc))
}
