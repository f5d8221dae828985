// Package scheduler periodically refreshes the remote sources and retrains
// the forecaster.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/weather-dashboard-service/internal/forecast"
	"github.com/couchcryptid/weather-dashboard-service/internal/pipeline"
	"github.com/go-co-op/gocron"
)

// Ingestor runs one extraction through the store.
type Ingestor interface {
	Run(ctx context.Context, ex pipeline.Extractor) pipeline.Result
}

// Trainer retrains the forecaster.
type Trainer interface {
	Run(ctx context.Context) (forecast.TrainingResult, error)
}

// Scheduler runs every extractor in order and then the trainer, once per
// interval. A tick never overlaps the previous one.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	interval   time.Duration
	timeout    time.Duration
	ingestor   Ingestor
	extractors []pipeline.Extractor
	trainer    Trainer
	logger     *slog.Logger
}

// New creates a Scheduler. timeout bounds a whole tick.
func New(interval, timeout time.Duration, ingestor Ingestor, extractors []pipeline.Extractor, trainer Trainer, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		scheduler:  gocron.NewScheduler(time.UTC),
		interval:   interval,
		timeout:    timeout,
		ingestor:   ingestor,
		extractors: extractors,
		trainer:    trainer,
		logger:     logger,
	}
}

// Start schedules the job and starts the scheduler. The first tick runs
// immediately.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		return errors.New("scheduler: interval must be positive")
	}
	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(s.tick)
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", "interval", s.interval, "sources", len(s.extractors))
	return nil
}

// Stop stops the scheduler and cancels future ticks.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.RunOnce(ctx)
}

// RunOnce syncs every source and retrains. Failures are logged and do not
// stop later steps.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.logger.Info("scheduled sync starting")
	for _, ex := range s.extractors {
		res := s.ingestor.Run(ctx, ex)
		if !res.OK() {
			s.logger.Warn("scheduled sync failed", "source", res.Source, "kind", res.Kind())
		}
	}
	if s.trainer == nil {
		return
	}
	if _, err := s.trainer.Run(ctx); err != nil {
		s.logger.Warn("scheduled forecast failed", "error", err)
	}
}
