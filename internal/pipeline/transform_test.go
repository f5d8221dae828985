package pipeline

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/couchcryptid/weather-dashboard-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	local := time.FixedZone("WITA", 8*3600)
	in := []domain.WeatherRecord{
		{ID: 9, Timestamp: time.Date(2024, 5, 1, 8, 0, 0, 0, local), Temperature: 25, Source: domain.SourceManual},
		{Temperature: math.Inf(-1)},
		{Timestamp: time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC), Temperature: 20},
		{Timestamp: time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC), Temperature: 20},
	}

	out := normalize(domain.SourceCSVImport, in, logger)
	require.Len(t, out, 1)
	assert.Zero(t, out[0].ID)
	assert.Equal(t, domain.SourceCSVImport, out[0].Source)
	assert.True(t, out[0].Timestamp.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.UTC, out[0].Timestamp.Location())
	assert.Equal(t, domain.SourceManual, in[0].Source, "input is not mutated")
}
