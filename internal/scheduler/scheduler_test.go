package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/weather-dashboard-service/internal/domain"
	"github.com/couchcryptid/weather-dashboard-service/internal/forecast"
	"github.com/couchcryptid/weather-dashboard-service/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	steps []string
}

func (r *recorder) add(step string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.steps...)
}

type fakeIngestor struct {
	rec  *recorder
	fail domain.Source
}

func (f *fakeIngestor) Run(_ context.Context, ex pipeline.Extractor) pipeline.Result {
	f.rec.add(string(ex.Source()))
	if ex.Source() == f.fail {
		return pipeline.Result{Source: ex.Source(), Err: domain.NewError(domain.KindNetwork, "fetch", errors.New("down"))}
	}
	return pipeline.Result{Source: ex.Source(), Stored: 1}
}

type fakeTrainer struct{ rec *recorder }

func (f *fakeTrainer) Run(context.Context) (forecast.TrainingResult, error) {
	f.rec.add("forecast")
	return forecast.TrainingResult{}, nil
}

func extractor(source domain.Source) pipeline.Extractor {
	return pipeline.NewExtractor(source, func(context.Context) ([]domain.WeatherRecord, error) { return nil, nil })
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnce_SyncsThenForecasts(t *testing.T) {
	rec := &recorder{}
	s := New(time.Hour, time.Minute, &fakeIngestor{rec: rec, fail: domain.SourceAPI},
		[]pipeline.Extractor{extractor(domain.SourceAPI), extractor(domain.SourceAgencyFeed)},
		&fakeTrainer{rec: rec}, discardLogger())

	s.RunOnce(context.Background())

	assert.Equal(t, []string{"API", "AGENCY_FEED", "forecast"}, rec.snapshot(), "a failed source does not stop the tick")
}

func TestStart_RejectsNonPositiveInterval(t *testing.T) {
	s := New(0, time.Minute, &fakeIngestor{rec: &recorder{}}, nil, nil, discardLogger())
	require.Error(t, s.Start())
}

func TestStart_RunsPeriodically(t *testing.T) {
	rec := &recorder{}
	s := New(50*time.Millisecond, time.Second, &fakeIngestor{rec: rec},
		[]pipeline.Extractor{extractor(domain.SourceAPI)}, &fakeTrainer{rec: rec}, discardLogger())

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool {
		count := 0
		for _, step := range rec.snapshot() {
			if step == "forecast" {
				count++
			}
		}
		return count >= 2
	}, 3*time.Second, 10*time.Millisecond)
}
