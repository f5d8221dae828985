// Package redis announces stored generations on Redis pub/sub channels.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/weather-dashboard-service/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const channelPrefix = "weather:records:"

// Generation is the message body published for one stored batch.
type Generation struct {
	Source      domain.Source          `json:"source"`
	GeneratedAt time.Time              `json:"generated_at"`
	Records     []domain.WeatherRecord `json:"records"`
}

// Publisher implements pipeline.Sink on a Redis client.
type Publisher struct {
	client *goredis.Client
	logger *slog.Logger
}

// NewPublisher connects to rawURL (redis://...) and verifies the connection.
func NewPublisher(ctx context.Context, rawURL string, logger *slog.Logger) (*Publisher, error) {
	opts, err := goredis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.Info("redis sink connected", "addr", opts.Addr)
	return &Publisher{client: client, logger: logger}, nil
}

// Channel returns the pub/sub channel for a source.
func Channel(source domain.Source) string {
	return channelPrefix + string(source)
}

func (p *Publisher) Name() string { return "redis" }

// Publish sends the whole generation as one JSON message.
func (p *Publisher) Publish(ctx context.Context, source domain.Source, records []domain.WeatherRecord, generatedAt time.Time) error {
	if len(records) == 0 {
		return nil
	}
	data, err := json.Marshal(Generation{Source: source, GeneratedAt: generatedAt.UTC(), Records: records})
	if err != nil {
		return fmt.Errorf("marshal generation: %w", err)
	}
	receivers, err := p.client.Publish(ctx, Channel(source), data).Result()
	if err != nil {
		return fmt.Errorf("redis publish %s: %w", source, err)
	}
	p.logger.Debug("generation published", "sink", p.Name(), "source", source, "records", len(records), "receivers", receivers)
	return nil
}

// CheckReadiness pings the server.
func (p *Publisher) CheckReadiness(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *Publisher) Close() error {
	return p.client.Close()
}
