// Package web serves the dashboard: an HTML page and a JSON API over the
// observation store, plus the endpoints that trigger ingestion, manual entry
// and training.
package web

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/weather-dashboard-service/internal/domain"
	"github.com/couchcryptid/weather-dashboard-service/internal/forecast"
	"github.com/couchcryptid/weather-dashboard-service/internal/observability"
	"github.com/couchcryptid/weather-dashboard-service/internal/pipeline"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jonboulle/clockwork"
)

const (
	defaultLimit = 24
	maxLimit     = 1000
)

// Ingestor runs one extraction through the store.
type Ingestor interface {
	Run(ctx context.Context, ex pipeline.Extractor) pipeline.Result
}

// Trainer is the forecaster as seen by the dashboard.
type Trainer interface {
	Run(ctx context.Context) (forecast.TrainingResult, error)
	LastResult() (forecast.TrainingResult, bool)
}

// Announcer receives manually entered records after they are stored.
type Announcer interface {
	Publish(ctx context.Context, source domain.Source, records []domain.WeatherRecord)
}

// Deps are the collaborators of the dashboard handlers. Announcer is optional.
type Deps struct {
	Store     domain.RecordStore
	Ingestor  Ingestor
	Trainer   Trainer
	Announcer Announcer

	// Archive is the default-range archive extraction; ArchiveRange builds
	// one for explicit dates.
	Archive      pipeline.Extractor
	ArchiveRange func(start, end time.Time) pipeline.Extractor
	Agency       pipeline.Extractor

	Limit   int
	Clock   clockwork.Clock
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

type handler struct {
	Deps
	views *views
}

// NewApp builds the Fiber application with every dashboard route registered.
func NewApp(deps Deps) (*fiber.App, error) {
	if deps.Limit <= 0 {
		deps.Limit = defaultLimit
	}
	v, err := loadViews()
	if err != nil {
		return nil, err
	}
	h := &handler{Deps: deps, views: v}

	app := fiber.New(fiber.Config{
		AppName:               "weather-dashboard",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// Sync and training calls wait on upstream retries.
		WriteTimeout: 2 * time.Minute,
		ErrorHandler: h.handleError,
	})

	app.Use(recover.New())
	app.Use(requestLogger(deps.Logger, deps.Clock))

	app.Get("/", h.dashboardPage)
	app.Post("/records", h.createRecord)
	app.Post("/forecast", h.runForecast)
	app.Post("/sync/archive", h.syncArchive)
	app.Post("/sync/agency", h.syncAgency)
	app.Post("/import/csv", h.importCSV)

	v1 := app.Group("/api/v1")
	v1.Get("/records", h.listRecords)
	v1.Get("/dashboard", h.dashboardJSON)

	return app, nil
}

// handleError renders unexpected errors as JSON, keeping fiber's status code
// when the handler returned a *fiber.Error.
func (h *handler) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	} else {
		h.Logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

func requestLogger(logger *slog.Logger, clock clockwork.Clock) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := clock.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
		logger.Info("http request",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration", clock.Since(start),
		)
		return err
	}
}
