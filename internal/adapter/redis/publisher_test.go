package redis

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/weather-dashboard-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannel(t *testing.T) {
	assert.Equal(t, "weather:records:API", Channel(domain.SourceAPI))
	assert.Equal(t, "weather:records:PREDICTION", Channel(domain.SourcePrediction))
}

func TestNewPublisher_InvalidURL(t *testing.T) {
	_, err := NewPublisher(context.Background(), "http://not-redis", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis url")
}

func TestNewPublisher_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewPublisher(ctx, "redis://127.0.0.1:1/0", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping")
}
