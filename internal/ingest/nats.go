package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSSource subscribes to a NATS subject. Payloads flagged with a
// Content-Encoding: zstd header are decompressed by the pipeline.
type NATSSource struct {
	URL     string
	Subject string
	Queue   string // optional queue group for load-balanced consumers
	Log     *slog.Logger
}

func (s *NATSSource) Name() string { return "nats" }

// Run connects, subscribes and hands every message to h until ctx is cancelled.
func (s *NATSSource) Run(ctx context.Context, h Handler) error {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}

	nc, err := nats.Connect(s.URL,
		nats.Name("sounding_parser"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer func() { _ = nc.Drain() }()

	ch := make(chan *nats.Msg, 256)
	var sub *nats.Subscription
	if s.Queue != "" {
		sub, err = nc.ChanQueueSubscribe(s.Subject, s.Queue, ch)
	} else {
		sub, err = nc.ChanSubscribe(s.Subject, ch)
	}
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.Subject, err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	log.Info("subscribed to nats subject", "subject", s.Subject, "queue", s.Queue)

	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-ch:
			if err := h(ctx, m.Data, m.Header.Get("Content-Encoding")); err != nil {
				log.Warn("nats message rejected", "subject", m.Subject, "error", err)
			}
		}
	}
}
