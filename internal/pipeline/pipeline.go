// Package pipeline runs one ingestion: extract from an adapter, normalize,
// replace the source's records in the store and publish the new generation.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/weather-dashboard-service/internal/domain"
	"github.com/couchcryptid/weather-dashboard-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

var errNoRecords = errors.New("no records")

// Extractor produces a complete batch for one source.
type Extractor interface {
	Source() domain.Source
	Extract(ctx context.Context) ([]domain.WeatherRecord, error)
}

type extractorFunc struct {
	source domain.Source
	fn     func(ctx context.Context) ([]domain.WeatherRecord, error)
}

func (e extractorFunc) Source() domain.Source { return e.source }

func (e extractorFunc) Extract(ctx context.Context) ([]domain.WeatherRecord, error) {
	return e.fn(ctx)
}

// NewExtractor adapts a function to Extractor.
func NewExtractor(source domain.Source, fn func(ctx context.Context) ([]domain.WeatherRecord, error)) Extractor {
	return extractorFunc{source: source, fn: fn}
}

// Result describes one ingestion run. A failed run leaves the store unchanged.
type Result struct {
	Source   domain.Source
	Fetched  int
	Stored   int
	Duration time.Duration
	Err      error
}

// OK reports whether the run stored a new generation.
func (r Result) OK() bool { return r.Err == nil }

// Kind classifies the failure; empty on success.
func (r Result) Kind() domain.ErrorKind { return domain.KindOf(r.Err) }

// Pipeline runs ingestions against a record store.
type Pipeline struct {
	store     domain.RecordStore
	publisher *Publisher
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// New creates a Pipeline. publisher may be nil when no sinks are configured.
func New(store domain.RecordStore, publisher *Publisher, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		store:     store,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once any ingestion has succeeded.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no ingestion has succeeded yet")
	}
	return nil
}

// Run performs one ingestion. Failures are logged, counted and returned in
// the result; they never modify the store.
func (p *Pipeline) Run(ctx context.Context, ex Extractor) Result {
	source := ex.Source()
	start := p.clock.Now()
	res := p.run(ctx, ex, source)
	res.Duration = p.clock.Since(start)

	p.metrics.IngestDuration.WithLabelValues(string(source)).Observe(res.Duration.Seconds())
	if !res.OK() {
		p.metrics.IngestRuns.WithLabelValues(string(source), "failure").Inc()
		p.metrics.IngestFailures.WithLabelValues(string(source), string(res.Kind())).Inc()
		p.logger.Error("ingestion failed",
			"source", source,
			"kind", res.Kind(),
			"fetched", res.Fetched,
			"error", res.Err,
		)
		return res
	}

	p.metrics.IngestRuns.WithLabelValues(string(source), "success").Inc()
	p.metrics.RecordsStored.WithLabelValues(string(source)).Add(float64(res.Stored))
	p.ready.Store(true)
	p.logger.Info("ingestion complete",
		"source", source,
		"fetched", res.Fetched,
		"records", res.Stored,
		"duration", res.Duration,
	)
	return res
}

func (p *Pipeline) run(ctx context.Context, ex Extractor, source domain.Source) Result {
	res := Result{Source: source}

	records, err := ex.Extract(ctx)
	res.Fetched = len(records)
	if err != nil {
		res.Err = err
		return res
	}

	records = normalize(source, records, p.logger)
	if len(records) == 0 {
		res.Err = domain.NewError(domain.KindParse, "ingest "+string(source), errNoRecords)
		return res
	}

	if err := p.store.ReplaceSource(ctx, source, records); err != nil {
		res.Err = domain.NewError(domain.KindStorage, "ingest "+string(source), err)
		return res
	}
	res.Stored = len(records)

	p.Publish(ctx, source, records)
	return res
}

// Publish hands a stored generation to the sinks. Sink failures are logged
// and counted only.
func (p *Pipeline) Publish(ctx context.Context, source domain.Source, records []domain.WeatherRecord) {
	if p.publisher == nil {
		return
	}
	p.publisher.Publish(ctx, source, records, p.clock.Now())
}
