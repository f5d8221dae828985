package forecast_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/weather-dashboard-service/internal/adapter/sqlite"
	"github.com/couchcryptid/weather-dashboard-service/internal/domain"
	"github.com/couchcryptid/weather-dashboard-service/internal/forecast"
	"github.com/couchcryptid/weather-dashboard-service/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "weather.db"), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// linearSeries rises by one degree per hour.
func linearSeries(n int, source domain.Source) []domain.WeatherRecord {
	out := make([]domain.WeatherRecord, n)
	for i := range out {
		out[i] = domain.WeatherRecord{
			Timestamp:   start.Add(time.Duration(i) * time.Hour),
			Temperature: 10 + float64(i),
			Humidity:    80,
			Pressure:    1010,
			WindSpeed:   2,
			Source:      source,
		}
	}
	return out
}

type announcement struct {
	source  domain.Source
	records []domain.WeatherRecord
}

type recordingAnnouncer struct {
	mu   sync.Mutex
	seen []announcement
}

func (a *recordingAnnouncer) Publish(_ context.Context, source domain.Source, records []domain.WeatherRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seen = append(a.seen, announcement{source: source, records: records})
}

func newForecaster(store domain.RecordStore, announcer forecast.Announcer, clock clockwork.Clock, metrics *observability.Metrics) *forecast.Forecaster {
	cfg := forecast.Config{MinRecords: 20, Model: forecast.ModelConfig{Trees: 20, Seed: 42}}
	return forecast.New(store, announcer, cfg, clock, discardLogger(), metrics)
}

func predictions(t *testing.T, store domain.RecordStore) []domain.WeatherRecord {
	t.Helper()
	recs, err := store.Query(context.Background(), domain.RecordQuery{Include: []domain.Source{domain.SourcePrediction}})
	require.NoError(t, err)
	return recs
}

func TestTrain_LinearSeriesExtrapolates(t *testing.T) {
	records := linearSeries(25, domain.SourceCSVImport)

	out, err := forecast.Train(records, forecast.Config{MinRecords: 20, Model: forecast.ModelConfig{Trees: 100, Seed: 42}})
	require.NoError(t, err)

	last := records[len(records)-1]
	assert.InDelta(t, last.Temperature+1, out.Prediction.Temperature, 0.1)
	assert.Equal(t, last.Timestamp.Add(time.Hour), out.Prediction.Timestamp)
	assert.Equal(t, domain.SourcePrediction, out.Prediction.Source)
	assert.InDelta(t, last.Humidity, out.Prediction.Humidity, 1e-9)
	assert.InDelta(t, last.Pressure, out.Prediction.Pressure, 1e-9)
	assert.InDelta(t, last.WindSpeed, out.Prediction.WindSpeed, 1e-9)
	assert.Zero(t, out.Prediction.Rainfall)

	assert.Equal(t, 19, out.TrainRows)
	assert.Equal(t, 5, out.TestRows)
	assert.Less(t, out.Scores.MAE, 0.1)
	assert.Less(t, out.Scores.RMSE, 0.1)
	assert.Greater(t, out.Scores.R2Percent, 99.0)
}

func TestTrain_InsufficientData(t *testing.T) {
	_, err := forecast.Train(linearSeries(19, domain.SourceAPI), forecast.Config{MinRecords: 20})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientData))
	assert.Equal(t, domain.KindInsufficientData, domain.KindOf(err))
}

func TestTrain_MinRecordsCannotGoBelowFloor(t *testing.T) {
	_, err := forecast.Train(linearSeries(10, domain.SourceAPI), forecast.Config{MinRecords: 5})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestTrain_IsDeterministicForSeed(t *testing.T) {
	records := linearSeries(40, domain.SourceAPI)
	for i := range records {
		records[i].Humidity = 60 + float64((i*7)%13)
		records[i].WindSpeed = float64((i * 3) % 5)
	}
	cfg := forecast.Config{Model: forecast.ModelConfig{Trees: 30, Seed: 7}}

	a, err := forecast.Train(records, cfg)
	require.NoError(t, err)
	b, err := forecast.Train(records, cfg)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestForecaster_Run_WritesSinglePrediction(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	require.NoError(t, store.ReplaceSource(ctx, domain.SourceCSVImport, linearSeries(25, domain.SourceCSVImport)))

	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC))
	announcer := &recordingAnnouncer{}
	metrics := observability.NewMetricsForTesting()
	f := newForecaster(store, announcer, clock, metrics)

	_, ok := f.LastResult()
	assert.False(t, ok)

	res, err := f.Run(ctx)
	require.NoError(t, err)
	assert.True(t, clock.Now().Equal(res.TrainedAt))
	assert.InDelta(t, 35, res.Prediction.Temperature, 0.1)

	_, err = f.Run(ctx)
	require.NoError(t, err)

	preds := predictions(t, store)
	require.Len(t, preds, 1, "at most one prediction record")
	assert.InDelta(t, 35, preds[0].Temperature, 0.1)
	assert.True(t, preds[0].Timestamp.Equal(start.Add(25*time.Hour)))

	cached, ok := f.LastResult()
	require.True(t, ok)
	assert.Equal(t, res.Scores, cached.Scores)

	require.Len(t, announcer.seen, 2)
	assert.Equal(t, domain.SourcePrediction, announcer.seen[0].source)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.ForecastRuns.WithLabelValues("success")), 0)
	assert.InDelta(t, res.Scores.MAE, testutil.ToFloat64(metrics.ForecastScore.WithLabelValues("mae")), 1e-12)
}

func TestForecaster_Run_IgnoresAgencyAndPredictionRecords(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	require.NoError(t, store.ReplaceSource(ctx, domain.SourceAPI, linearSeries(25, domain.SourceAPI)))

	agency := linearSeries(4, domain.SourceAgencyFeed)
	for i := range agency {
		agency[i].Timestamp = start.Add(time.Duration(30+i) * time.Hour)
		agency[i].Temperature = 999
	}
	require.NoError(t, store.ReplaceSource(ctx, domain.SourceAgencyFeed, agency))

	f := newForecaster(store, nil, clockwork.NewFakeClock(), observability.NewMetricsForTesting())
	res, err := f.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 19, res.TrainRows)
	assert.InDelta(t, 35, res.Prediction.Temperature, 0.1)

	// A second run must not train on the first run's prediction.
	res, err = f.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 19, res.TrainRows)
}

func TestForecaster_Run_InsufficientDataChangesNothing(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	require.NoError(t, store.ReplaceSource(ctx, domain.SourceCSVImport, linearSeries(25, domain.SourceCSVImport)))

	metrics := observability.NewMetricsForTesting()
	f := newForecaster(store, nil, clockwork.NewFakeClock(), metrics)
	first, err := f.Run(ctx)
	require.NoError(t, err)

	require.NoError(t, store.ReplaceSource(ctx, domain.SourceCSVImport, linearSeries(5, domain.SourceCSVImport)))

	_, err = f.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, domain.KindInsufficientData, domain.KindOf(err))

	preds := predictions(t, store)
	require.Len(t, preds, 1)
	assert.InDelta(t, first.Prediction.Temperature, preds[0].Temperature, 1e-9)

	cached, ok := f.LastResult()
	require.True(t, ok)
	assert.Equal(t, first, cached)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ForecastRuns.WithLabelValues("skipped")), 0)
}

func TestForecaster_Run_EmptyStore(t *testing.T) {
	store := openStore(t)
	f := newForecaster(store, nil, clockwork.NewFakeClock(), observability.NewMetricsForTesting())

	_, err := f.Run(context.Background())
	require.ErrorIs(t, err, domain.ErrInsufficientData)
	assert.Empty(t, predictions(t, store))
	_, ok := f.LastResult()
	assert.False(t, ok)
}
