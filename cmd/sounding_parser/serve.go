package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"sounding_parser/internal/api"
)

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "", "Listen address (overrides HTTP_ADDR)")
	apiKeys := fs.StringSlice("api-key", nil, "Valid API key, repeatable (adds to API_KEY)")
	store := fs.String("store", "", "SQLite archive to read profiles from (overrides SQLITE_PATH)")
	_ = fs.Parse(args)

	cfg, log := setup()
	if *addr != "" {
		cfg.API.Addr = *addr
	}
	if *store != "" {
		cfg.Storage.SQLitePath = *store
	}
	keys := append([]string{cfg.API.APIKey}, *apiKeys...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var profiles api.ProfileStore
	if cfg.Storage.Enabled() {
		db, err := openStore(ctx, cfg.Storage)
		if err != nil {
			fatal(log, "open storage", err)
		}
		defer func() { _ = db.Close() }()
		profiles = db
	}

	srv := api.NewServer(profiles, api.Config{
		Addr:           cfg.API.Addr,
		AuthEnabled:    cfg.API.APIKey != "" || len(*apiKeys) > 0,
		APIKeys:        keys,
		RequestTimeout: cfg.API.RequestTimeout,
		CacheTTL:       cfg.API.CacheTTL,
	}, log)

	if err := srv.Run(ctx); err != nil {
		fatal(log, "server failed", err)
	}
	log.Info("server stopped")
}
