// Package forecast trains the next-hour temperature model on stored history
// and writes its single PREDICTION record.
package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/couchcryptid/weather-dashboard-service/internal/domain"
	"github.com/couchcryptid/weather-dashboard-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// DefaultMinRecords is the smallest history the forecaster trains on.
const DefaultMinRecords = 20

// Horizon is how far ahead the prediction is stamped.
const Horizon = time.Hour

// trainingExclusions are sources never used as training input.
var trainingExclusions = []domain.Source{domain.SourcePrediction, domain.SourceAgencyFeed}

// Config controls training.
type Config struct {
	// MinRecords raises the history floor; values below DefaultMinRecords
	// are ignored.
	MinRecords int
	Model      ModelConfig
}

// Outcome is the product of one training run before it is stored.
type Outcome struct {
	Scores     Scores
	Prediction domain.WeatherRecord
	TrainRows  int
	TestRows   int
}

// TrainingResult is the cached outcome of the last successful run.
type TrainingResult struct {
	Outcome
	TrainedAt time.Time
}

// Train fits a model on records (ascending by timestamp), scores it on the
// chronological test split and predicts the hour after the latest record.
// It has no side effects.
func Train(records []domain.WeatherRecord, cfg Config) (Outcome, error) {
	minRecords := max(cfg.MinRecords, DefaultMinRecords)
	if len(records) < minRecords {
		return Outcome{}, domain.NewError(domain.KindInsufficientData, "train",
			fmt.Errorf("%w: have %d records, need %d", domain.ErrInsufficientData, len(records), minRecords))
	}

	train, test := buildDataset(records).split()

	model, err := Fit(train.x, train.y, cfg.Model)
	if err != nil {
		return Outcome{}, domain.NewError(domain.KindInsufficientData, "train", err)
	}

	predicted := make([]float64, len(test.x))
	for i, row := range test.x {
		predicted[i] = model.Predict(row)
	}

	latest := records[len(records)-1]
	temp := model.Predict(latest.Features())
	if math.IsNaN(temp) || math.IsInf(temp, 0) {
		return Outcome{}, domain.NewError(domain.KindInsufficientData, "train", fmt.Errorf("model produced non-finite prediction"))
	}

	return Outcome{
		Scores: score(predicted, test.y),
		Prediction: domain.WeatherRecord{
			Timestamp:   latest.Timestamp.UTC().Add(Horizon),
			Temperature: temp,
			Humidity:    latest.Humidity,
			Pressure:    latest.Pressure,
			WindSpeed:   latest.WindSpeed,
			Rainfall:    0,
			Source:      domain.SourcePrediction,
		},
		TrainRows: len(train.y),
		TestRows:  len(test.y),
	}, nil
}

// Announcer receives the stored prediction generation.
type Announcer interface {
	Publish(ctx context.Context, source domain.Source, records []domain.WeatherRecord)
}

// Forecaster runs training against the observation store. Runs are
// serialized; the last successful result is kept in memory.
type Forecaster struct {
	store     domain.RecordStore
	announcer Announcer
	cfg       Config
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics

	runMu sync.Mutex

	resultMu sync.RWMutex
	last     *TrainingResult
}

// New creates a Forecaster. announcer may be nil.
func New(store domain.RecordStore, announcer Announcer, cfg Config, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Forecaster {
	return &Forecaster{
		store:     store,
		announcer: announcer,
		cfg:       cfg,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run trains on the stored history and replaces the PREDICTION record.
// With too little history it returns an insufficient-data error and changes
// nothing, including the cached result.
func (f *Forecaster) Run(ctx context.Context) (TrainingResult, error) {
	f.runMu.Lock()
	defer f.runMu.Unlock()

	start := f.clock.Now()
	res, err := f.run(ctx)
	f.metrics.ForecastDuration.Observe(f.clock.Since(start).Seconds())

	switch {
	case err == nil:
		f.metrics.ForecastRuns.WithLabelValues("success").Inc()
	case domain.KindOf(err) == domain.KindInsufficientData:
		f.metrics.ForecastRuns.WithLabelValues("skipped").Inc()
		f.logger.Warn("forecast skipped", "error", err)
	default:
		f.metrics.ForecastRuns.WithLabelValues("failure").Inc()
		f.logger.Error("forecast failed", "kind", domain.KindOf(err), "error", err)
	}
	return res, err
}

func (f *Forecaster) run(ctx context.Context) (TrainingResult, error) {
	records, err := f.store.Query(ctx, domain.RecordQuery{Exclude: trainingExclusions, Order: domain.Ascending})
	if err != nil {
		return TrainingResult{}, fmt.Errorf("load training history: %w", err)
	}

	outcome, err := Train(records, f.cfg)
	if err != nil {
		return TrainingResult{}, err
	}

	prediction := []domain.WeatherRecord{outcome.Prediction}
	if err := f.store.ReplaceSource(ctx, domain.SourcePrediction, prediction); err != nil {
		return TrainingResult{}, fmt.Errorf("store prediction: %w", err)
	}

	res := TrainingResult{Outcome: outcome, TrainedAt: f.clock.Now().UTC()}
	f.resultMu.Lock()
	f.last = &res
	f.resultMu.Unlock()

	f.metrics.ForecastScore.WithLabelValues("mae").Set(outcome.Scores.MAE)
	f.metrics.ForecastScore.WithLabelValues("rmse").Set(outcome.Scores.RMSE)
	f.metrics.ForecastScore.WithLabelValues("r2_percent").Set(outcome.Scores.R2Percent)

	f.logger.Info("forecast complete",
		"records", len(records),
		"train_rows", outcome.TrainRows,
		"test_rows", outcome.TestRows,
		"mae", outcome.Scores.MAE,
		"rmse", outcome.Scores.RMSE,
		"r2_percent", outcome.Scores.R2Percent,
		"prediction", outcome.Prediction.Temperature,
		"for", outcome.Prediction.Timestamp,
	)

	if f.announcer != nil {
		f.announcer.Publish(ctx, domain.SourcePrediction, prediction)
	}
	return res, nil
}

// LastResult returns the most recent successful training result.
func (f *Forecaster) LastResult() (TrainingResult, bool) {
	f.resultMu.RLock()
	defer f.resultMu.RUnlock()
	if f.last == nil {
		return TrainingResult{}, false
	}
	return *f.last, true
}
