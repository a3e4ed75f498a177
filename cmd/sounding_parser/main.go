// Command sounding_parser decodes WMO TEMP upper-air reports (TTAA and TTBB
// parts) into sounding profiles.
//
// Usage:
//
//	sounding_parser decode [options] [files...]
//	sounding_parser serve  [options]
//	sounding_parser ingest [options]
//	sounding_parser stats
//	sounding_parser trace  [files...]
//
// Input formats
// -------------
// decode and trace read either raw bulletin text, where reports are cut at
// their TTAA/TTBB identifiers and closed by "=", or JSONL envelopes such as
//
//	{"id": 1, "source": "gts", "part": "TTAA", "text": "TTAA 51231 03808 ..."}
//	{"source": {"name": "gts"}, "message": {"text": "TTBB 51238 03808 ..."}}
//
// Files ending in .zst are decompressed. With no files, stdin is read.
//
// Configuration comes from the environment (and a .env file): APP_ENV,
// LOG_LEVEL, SQLITE_PATH, POSTGRES_*, CLICKHOUSE_*, INFLUX_*, HTTP_ADDR, API_KEY,
// NATS_*, MQTT_*. Flags override the environment per command.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"sounding_parser/internal/config"
	"sounding_parser/internal/logging"
	_ "sounding_parser/internal/parsers" // register all parsers via init()
	"sounding_parser/internal/registry"
	"sounding_parser/internal/storage"
)

const appName = "sounding_parser"

func usage(w io.Writer) {
	fmt.Fprintln(w, "sounding_parser - commands:")
	fmt.Fprintln(w, "  decode  - decode TTAA/TTBB reports from files or stdin and output JSON")
	fmt.Fprintln(w, "  serve   - run the HTTP API")
	fmt.Fprintln(w, "  ingest  - consume reports from NATS and/or MQTT and store profiles")
	fmt.Fprintln(w, "  stats   - print storage statistics")
	fmt.Fprintln(w, "  trace   - show how each report is cut into group clusters")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  sounding_parser decode [--ttaa TEXT --ttbb TEXT] [-o out.json] [--pretty] [--workers N] [--store archive.db] [files...]")
	fmt.Fprintln(w, "  sounding_parser serve [--addr :8080] [--api-key KEY] [--store archive.db]")
	fmt.Fprintln(w, "  sounding_parser ingest [--nats-url URL] [--mqtt-broker URL] [--store archive.db]")
	fmt.Fprintln(w, "  sounding_parser stats [--store archive.db]")
	fmt.Fprintln(w, "  sounding_parser trace [files...]")
	fmt.Fprintln(w, "")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	// Ensure parsers priority ordering is stable.
	registry.Default().Sort()

	cmd := strings.ToLower(os.Args[1])
	args := os.Args[2:]
	switch cmd {
	case "decode":
		runDecode(args)
	case "serve":
		runServe(args)
	case "ingest":
		runIngest(args)
	case "stats":
		runStats(args)
	case "trace":
		runTrace(args)
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
}

// setup loads configuration and builds the logger. Configuration errors are
// fatal.
func setup() (*config.Config, *slog.Logger) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(os.Stderr, cfg.Environment, level, appName)
	slog.SetDefault(log)
	return cfg, log
}

// openStore opens the configured backends and creates their schemas.
func openStore(ctx context.Context, cfg config.StorageConfig) (*storage.DB, error) {
	db, err := storage.Open(ctx, cfg.Backends())
	if err != nil {
		return nil, err
	}
	if err := db.CreateSchemas(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}

func marshalJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}
