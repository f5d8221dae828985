package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/weather-dashboard-service/internal/domain"
	"github.com/couchcryptid/weather-dashboard-service/internal/observability"
)

// Sink receives every freshly stored generation.
type Sink interface {
	Name() string
	Publish(ctx context.Context, source domain.Source, records []domain.WeatherRecord, generatedAt time.Time) error
}

// Publisher fans a generation out to all sinks.
type Publisher struct {
	sinks   []Sink
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPublisher returns nil when there are no sinks.
func NewPublisher(sinks []Sink, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	if len(sinks) == 0 {
		return nil
	}
	return &Publisher{sinks: sinks, logger: logger, metrics: metrics}
}

// Publish delivers to each sink in turn. Errors are logged and counted.
func (p *Publisher) Publish(ctx context.Context, source domain.Source, records []domain.WeatherRecord, generatedAt time.Time) {
	for _, s := range p.sinks {
		if err := s.Publish(ctx, source, records, generatedAt); err != nil {
			p.metrics.SinkPublishErrors.WithLabelValues(s.Name()).Inc()
			p.logger.Warn("sink publish failed",
				"sink", s.Name(),
				"source", source,
				"records", len(records),
				"error", err,
			)
		}
	}
}
