package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"sounding_parser/internal/ingest"
	"sounding_parser/internal/registry"
)

func runIngest(args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	natsURL := fs.String("nats-url", "", "NATS server URL (overrides NATS_URL)")
	natsSubject := fs.String("nats-subject", "", "NATS subject (overrides NATS_SUBJECT)")
	natsQueue := fs.String("nats-queue", "", "NATS queue group for load-balanced consumers")
	mqttBroker := fs.String("mqtt-broker", "", "MQTT broker URL (overrides MQTT_BROKER)")
	mqttTopic := fs.String("mqtt-topic", "", "MQTT topic (overrides MQTT_TOPIC)")
	store := fs.String("store", "", "SQLite archive to save profiles to (overrides SQLITE_PATH)")
	_ = fs.Parse(args)

	cfg, log := setup()
	ic := &cfg.Ingest
	for dst, v := range map[*string]string{
		&ic.NATSURL:     *natsURL,
		&ic.NATSSubject: *natsSubject,
		&ic.MQTTBroker:  *mqttBroker,
		&ic.MQTTTopic:   *mqttTopic,
	} {
		if v != "" {
			*dst = v
		}
	}
	if *store != "" {
		cfg.Storage.SQLitePath = *store
	}

	if !ic.Transports() {
		fatal(log, "nothing to consume", errors.New("set NATS_URL or MQTT_BROKER"))
	}
	if !cfg.Storage.Enabled() {
		fatal(log, "nowhere to store profiles", errors.New("set SQLITE_PATH, POSTGRES_HOST, CLICKHOUSE_HOST or INFLUX_ADDR"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openStore(ctx, cfg.Storage)
	if err != nil {
		fatal(log, "open storage", err)
	}
	defer func() { _ = db.Close() }()

	pipeline := ingest.NewPipeline(registry.Default(), db, ingest.Options{
		Source:          "ingest",
		PairWindow:      ic.PairWindow,
		FlushInterval:   ic.FlushInterval,
		BreakerFailures: ic.BreakerFailures,
		BreakerTimeout:  ic.BreakerTimeout,
	}, log)

	var sources []ingest.Source
	if ic.NATSURL != "" {
		sources = append(sources, &ingest.NATSSource{
			URL:     ic.NATSURL,
			Subject: ic.NATSSubject,
			Queue:   *natsQueue,
			Log:     log,
		})
	}
	if ic.MQTTBroker != "" {
		sources = append(sources, &ingest.MQTTSource{
			Broker:   ic.MQTTBroker,
			Topic:    ic.MQTTTopic,
			ClientID: ic.MQTTClientID,
			Username: ic.MQTTUsername,
			Password: ic.MQTTPassword,
			Log:      log,
		})
	}

	err = ingest.Run(ctx, pipeline, sources...)
	st := pipeline.Stats()
	log.Info("ingest stopped",
		"payloads", st.Payloads, "invalid", st.Invalid, "parts", st.Parts,
		"stored", st.Stored, "save_errors", st.SaveErrors, "rejected", st.Rejected,
		"dropped", st.Dropped)
	if err != nil {
		fatal(log, "ingest failed", err)
	}
}
