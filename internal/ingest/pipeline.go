// Package ingest consumes TEMP reports from message buses, pairs their parts
// and stores the assembled profiles.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"

	"sounding_parser/internal/profile"
	"sounding_parser/internal/registry"
	"sounding_parser/internal/storage"
)

// Sink stores assembled profiles. *storage.DB satisfies it.
type Sink interface {
	Save(ctx context.Context, r storage.Record) error
}

// Handler processes one raw payload from a source.
type Handler func(ctx context.Context, data []byte, encoding string) error

// Source delivers payloads to a Handler until ctx is cancelled.
type Source interface {
	Name() string
	Run(ctx context.Context, h Handler) error
}

// Options tune a Pipeline. Zero values take the defaults noted.
type Options struct {
	Source          string        // recorded on stored profiles when the message has none
	PairWindow      time.Duration // default 30m
	FlushInterval   time.Duration // default 1m
	BreakerFailures uint32        // consecutive save failures that open the breaker, default 5
	BreakerTimeout  time.Duration // time the breaker stays open, default 30s
}

func (o *Options) defaults() {
	if o.PairWindow <= 0 {
		o.PairWindow = 30 * time.Minute
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = time.Minute
	}
	if o.BreakerFailures == 0 {
		o.BreakerFailures = 5
	}
	if o.BreakerTimeout <= 0 {
		o.BreakerTimeout = 30 * time.Second
	}
}

// Stats are running counters of a Pipeline.
type Stats struct {
	Payloads   uint64 `json:"payloads"`
	Invalid    uint64 `json:"invalid"`
	Parts      uint64 `json:"parts"`
	Stored     uint64 `json:"stored"`
	SaveErrors uint64 `json:"save_errors"`
	Rejected   uint64 `json:"rejected"` // saves refused by the open breaker
	Dropped    uint64 `json:"dropped"`  // TTBB parts that never met their TTAA
	Pending    int    `json:"pending"`
}

// Pipeline decodes payloads, collates parts and saves profiles.
type Pipeline struct {
	reg      *registry.Registry
	collator *profile.Collator
	sink     Sink
	breaker  *gobreaker.CircuitBreaker[struct{}]
	opts     Options
	log      *slog.Logger
	now      func() time.Time

	payloads, invalid, parts     atomic.Uint64
	stored, saveErrors, rejected atomic.Uint64
	dropped                      atomic.Uint64
}

// NewPipeline creates a pipeline dispatching through reg and saving to sink.
func NewPipeline(reg *registry.Registry, sink Sink, opts Options, log *slog.Logger) *Pipeline {
	opts.defaults()
	if log == nil {
		log = slog.Default()
	}

	p := &Pipeline{
		reg:      reg,
		collator: profile.NewCollator(),
		sink:     sink,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
	p.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "profile-sink",
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return p
}

// Handle processes one payload. Completed ascents are saved before it returns.
func (p *Pipeline) Handle(ctx context.Context, data []byte, encoding string) error {
	p.payloads.Add(1)

	msgs, err := DecodePayload(data, encoding)
	if err != nil {
		p.invalid.Add(1)
		return fmt.Errorf("decode payload: %w", err)
	}

	var errs []error
	for _, msg := range msgs {
		for _, r := range p.reg.Dispatch(msg) {
			p.parts.Add(1)
			c, ok := p.collator.Add(r)
			if !ok {
				continue
			}
			source := msg.Source
			if source == "" {
				source = p.opts.Source
			}
			if err := p.save(ctx, c, source); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Flush saves TTAA parts that have waited longer than maxAge without their
// TTBB, and drops orphaned TTBB parts.
func (p *Pipeline) Flush(ctx context.Context, maxAge time.Duration) error {
	ready, dropped := p.collator.Flush(maxAge)
	p.dropped.Add(uint64(dropped))

	var errs []error
	for i := range ready {
		if err := p.save(ctx, &ready[i], p.opts.Source); err != nil {
			errs = append(errs, err)
		}
	}
	if len(ready) > 0 || dropped > 0 {
		p.log.Debug("flushed unpaired parts", "stored", len(ready), "dropped", dropped)
	}
	return errors.Join(errs...)
}

func (p *Pipeline) save(ctx context.Context, c *profile.Collated, source string) error {
	rec, err := storage.FromCollated(c, source, p.now())
	if err != nil {
		return err
	}

	_, err = p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.sink.Save(ctx, rec)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		p.rejected.Add(1)
		return fmt.Errorf("save %s: %w", rec.Station, err)
	case err != nil:
		p.saveErrors.Add(1)
		return fmt.Errorf("save %s: %w", rec.Station, err)
	}

	p.stored.Add(1)
	p.log.Info("profile stored",
		"station", rec.Station, "day", rec.Day, "hour", rec.Hour,
		"complete", rec.Complete, "warnings", len(rec.Warnings))
	return nil
}

// Run flushes unpaired parts every FlushInterval until ctx is cancelled, then
// stores everything still pending.
func (p *Pipeline) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.Flush(ctx, p.opts.PairWindow); err != nil {
				p.log.Warn("flush failed", "error", err)
			}
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := p.Flush(final, 0); err != nil {
				p.log.Warn("final flush failed", "error", err)
			}
			return nil
		}
	}
}

// Stats returns a snapshot of the counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Payloads:   p.payloads.Load(),
		Invalid:    p.invalid.Load(),
		Parts:      p.parts.Load(),
		Stored:     p.stored.Load(),
		SaveErrors: p.saveErrors.Load(),
		Rejected:   p.rejected.Load(),
		Dropped:    p.dropped.Load(),
		Pending:    p.collator.Pending(),
	}
}

// Run runs the pipeline and every source until ctx is cancelled or one of
// them fails.
func Run(ctx context.Context, p *Pipeline, sources ...Source) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return p.Run(gctx)
	})
	for _, src := range sources {
		g.Go(func() error {
			p.log.Info("source started", "source", src.Name())
			if err := src.Run(gctx, p.Handle); err != nil {
				return fmt.Errorf("%s: %w", src.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}
