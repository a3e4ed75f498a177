package main

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"sounding_parser/internal/ingest"
	"sounding_parser/internal/profile"
	"sounding_parser/internal/registry"
	"sounding_parser/internal/sounding"
	"sounding_parser/internal/storage"
)

// DecodeOut is the output for a --ttaa/--ttbb decode.
type DecodeOut struct {
	Profile *sounding.Profile `json:"profile"`
	Errors  []string          `json:"errors"`
}

// FileStats counts what one input produced.
type FileStats struct {
	Payloads int `json:"payloads"`
	Invalid  int `json:"invalid"`
	Profiles int `json:"profiles"`
	Complete int `json:"complete"`
	Dropped  int `json:"dropped"`
}

func runDecode(args []string) {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	ttaaText := fs.String("ttaa", "", "TTAA report text (decodes this pair instead of reading files)")
	ttbbText := fs.String("ttbb", "", "TTBB report text, used with --ttaa")
	outPath := fs.StringP("output", "o", "", "Output JSON file (default: stdout)")
	pretty := fs.Bool("pretty", false, "Pretty-print JSON output")
	workers := fs.IntP("workers", "w", 4, "Files decoded in parallel")
	store := fs.String("store", "", "SQLite archive to save profiles to (overrides SQLITE_PATH)")
	showStats := fs.Bool("stats", false, "Print counters to stderr")
	_ = fs.Parse(args)

	cfg, log := setup()

	if *ttaaText != "" || *ttbbText != "" {
		p, errs := profile.Decode(*ttaaText, *ttbbText)
		out := DecodeOut{Profile: p, Errors: make([]string, 0, len(errs))}
		for _, err := range errs {
			out.Errors = append(out.Errors, err.Error())
		}
		writeOutput(log, *outPath, out, *pretty)
		if p == nil {
			os.Exit(1)
		}
		return
	}

	inputs := fs.Args()
	if len(inputs) == 0 {
		inputs = []string{"-"}
	}

	ctx := context.Background()
	results := make([][]storage.Record, len(inputs))
	stats := make([]FileStats, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(*workers, 1))
	for i, path := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			recs, st, err := decodeFile(registry.Default(), path, time.Now())
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i], stats[i] = recs, st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fatal(log, "decode failed", err)
	}

	var all []storage.Record
	for _, recs := range results {
		all = append(all, recs...)
	}

	if *store != "" {
		cfg.Storage.SQLitePath = *store
	}
	if cfg.Storage.Enabled() {
		db, err := openStore(ctx, cfg.Storage)
		if err != nil {
			fatal(log, "open storage", err)
		}
		for _, r := range all {
			if err := db.Save(ctx, r); err != nil {
				log.Warn("save failed", "station", r.Station, "error", err)
			}
		}
		_ = db.Close()
		log.Info("profiles stored", "count", len(all))
	}

	if all == nil {
		all = []storage.Record{}
	}
	writeOutput(log, *outPath, all, *pretty)

	if *showStats {
		for i, st := range stats {
			fmt.Fprintf(os.Stderr,
				"stats: input=%s payloads=%d invalid=%d profiles=%d complete=%d dropped_ttbb=%d\n",
				inputs[i], st.Payloads, st.Invalid, st.Profiles, st.Complete, st.Dropped)
		}
	}
}

func writeOutput(log *slog.Logger, path string, v any, pretty bool) {
	enc, err := marshalJSON(v, pretty)
	if err != nil {
		log.Error("JSON encode error", "error", err)
		os.Exit(1)
	}

	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			log.Error("failed to create output", "error", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}
	_, _ = w.Write(enc)
	_, _ = w.Write([]byte("\n"))
}

// readInput reads a file, or stdin for "-", decompressing .zst files.
func readInput(path string) ([]byte, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	if strings.EqualFold(filepath.Ext(path), ".zst") {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	}
	return io.ReadAll(r)
}

// decodeFile decodes one input. JSONL input is handled line by line, anything
// else as one bulletin. Parts are paired across the whole input; a TTAA whose
// TTBB never appears is output alone.
func decodeFile(reg *registry.Registry, path string, now time.Time) ([]storage.Record, FileStats, error) {
	var st FileStats

	data, err := readInput(path)
	if err != nil {
		return nil, st, err
	}

	source := path
	if path == "-" {
		source = "stdin"
	}

	var payloads [][]byte
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		for _, line := range bytes.Split(trimmed, []byte("\n")) {
			if line = bytes.TrimSpace(line); len(line) > 0 {
				payloads = append(payloads, line)
			}
		}
	} else {
		payloads = [][]byte{data}
	}

	collator := profile.NewCollator()
	var records []storage.Record
	keep := func(c *profile.Collated) error {
		r, err := storage.FromCollated(c, source, now)
		if err != nil {
			return err
		}
		records = append(records, r)
		st.Profiles++
		if r.Complete {
			st.Complete++
		}
		return nil
	}

	for _, payload := range payloads {
		st.Payloads++
		msgs, err := ingest.DecodePayload(payload, "")
		if err != nil {
			st.Invalid++
			continue
		}
		for _, msg := range msgs {
			for _, res := range reg.Dispatch(msg) {
				if c, ok := collator.Add(res); ok {
					if err := keep(c); err != nil {
						return nil, st, err
					}
				}
			}
		}
	}

	ready, dropped := collator.Flush(0)
	st.Dropped = dropped
	for i := range ready {
		if err := keep(&ready[i]); err != nil {
			return nil, st, err
		}
	}

	sortRecords(records)
	return records, st, nil
}

// sortRecords orders records by station, day and hour so output does not
// depend on pairing order.
func sortRecords(records []storage.Record) {
	slices.SortStableFunc(records, func(a, b storage.Record) int {
		return cmp.Or(
			cmp.Compare(a.Station, b.Station),
			cmp.Compare(a.Day, b.Day),
			cmp.Compare(a.Hour, b.Hour),
		)
	})
}
