package web

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/weather-dashboard-service/internal/domain"
	"github.com/couchcryptid/weather-dashboard-service/internal/forecast"
	"github.com/couchcryptid/weather-dashboard-service/internal/pipeline"
	"github.com/gofiber/fiber/v2"
)

const dateLayout = "2006-01-02"

// operationResponse is the JSON reply of a sync, import or training trigger.
// Failures are reported with ok=false and a 200 status: the store is left
// as it was.
type operationResponse struct {
	OK        bool             `json:"ok"`
	Source    domain.Source    `json:"source,omitempty"`
	Fetched   int              `json:"fetched,omitempty"`
	Stored    int              `json:"stored,omitempty"`
	ErrorKind domain.ErrorKind `json:"error_kind,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// trainingView is the JSON form of the last training run.
type trainingView struct {
	Scores     forecast.Scores      `json:"scores"`
	Prediction domain.WeatherRecord `json:"prediction"`
	TrainRows  int                  `json:"train_rows"`
	TestRows   int                  `json:"test_rows"`
	TrainedAt  time.Time            `json:"trained_at"`
}

type forecastResponse struct {
	OK        bool             `json:"ok"`
	Training  *trainingView    `json:"training,omitempty"`
	ErrorKind domain.ErrorKind `json:"error_kind,omitempty"`
	Error     string           `json:"error,omitempty"`
}

type dashboardResponse struct {
	Records    []domain.WeatherRecord `json:"records"`
	Prediction *domain.WeatherRecord  `json:"prediction"`
	Training   *trainingView          `json:"training"`
}

// wantsJSON reports whether the caller is an API client rather than the
// dashboard page.
func wantsJSON(c *fiber.Ctx) bool {
	if c.Is("json") {
		return true
	}
	return c.Accepts(fiber.MIMETextHTML, fiber.MIMEApplicationJSON) == fiber.MIMEApplicationJSON
}

func (h *handler) listRecords(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", h.Limit)
	if limit < 1 || limit > maxLimit {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxLimit))
	}
	records, err := h.Store.Latest(c.UserContext(), limit)
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}
	return c.JSON(fiber.Map{"records": nonNil(records)})
}

func (h *handler) dashboardJSON(c *fiber.Ctx) error {
	snap, err := h.snapshot(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dashboardResponse{
		Records:    nonNil(snap.records),
		Prediction: snap.prediction,
		Training:   snap.training,
	})
}

func (h *handler) dashboardPage(c *fiber.Ctx) error {
	return h.renderDashboard(c, fiber.StatusOK, entryForm{}, c.Query("notice"))
}

func (h *handler) renderDashboard(c *fiber.Ctx, status int, form entryForm, notice string) error {
	snap, err := h.snapshot(c.UserContext())
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := h.views.dashboard(&buf, snap, form, notice); err != nil {
		return fmt.Errorf("render dashboard: %w", err)
	}
	c.Type("html", "utf-8")
	return c.Status(status).Send(buf.Bytes())
}

// snapshot is everything the dashboard shows.
type snapshot struct {
	records    []domain.WeatherRecord
	prediction *domain.WeatherRecord
	training   *trainingView
}

func (h *handler) snapshot(ctx context.Context) (snapshot, error) {
	var snap snapshot
	records, err := h.Store.Latest(ctx, h.Limit)
	if err != nil {
		return snap, fmt.Errorf("load latest records: %w", err)
	}
	snap.records = records

	preds, err := h.Store.Query(ctx, domain.RecordQuery{
		Include: []domain.Source{domain.SourcePrediction},
		Order:   domain.Descending,
		Limit:   1,
	})
	if err != nil {
		return snap, fmt.Errorf("load prediction: %w", err)
	}
	if len(preds) > 0 {
		snap.prediction = &preds[0]
	}

	if res, ok := h.Trainer.LastResult(); ok {
		snap.training = newTrainingView(res)
	}
	return snap, nil
}

func newTrainingView(res forecast.TrainingResult) *trainingView {
	return &trainingView{
		Scores:     res.Scores,
		Prediction: res.Prediction,
		TrainRows:  res.TrainRows,
		TestRows:   res.TestRows,
		TrainedAt:  res.TrainedAt,
	}
}

func (h *handler) createRecord(c *fiber.Ctx) error {
	entry, raw, errs := bindEntry(c)
	if errs != nil {
		if wantsJSON(c) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"errors": errs})
		}
		return h.renderDashboard(c, fiber.StatusUnprocessableEntity, entryForm{Values: raw, Errors: errs}, "")
	}

	rec := entry.record()
	rec.Timestamp = h.Clock.Now().UTC()

	ctx := c.UserContext()
	saved, err := h.Store.Append(ctx, rec)
	if err != nil {
		return fmt.Errorf("append manual record: %w", err)
	}
	h.Metrics.ManualEntries.Inc()
	h.Logger.Info("manual record stored", "record", saved.String(), "temperature", saved.Temperature)
	if h.Announcer != nil {
		h.Announcer.Publish(ctx, domain.SourceManual, []domain.WeatherRecord{saved})
	}

	if wantsJSON(c) {
		return c.Status(fiber.StatusCreated).JSON(saved)
	}
	return redirectHome(c, "Manual record saved.")
}

func (h *handler) runForecast(c *fiber.Ctx) error {
	res, err := h.Trainer.Run(c.UserContext())
	if wantsJSON(c) {
		if err != nil {
			return c.JSON(forecastResponse{ErrorKind: domain.KindOf(err), Error: err.Error()})
		}
		return c.JSON(forecastResponse{OK: true, Training: newTrainingView(res)})
	}
	if err != nil {
		return redirectHome(c, failureNotice("Forecast", err))
	}
	return redirectHome(c, fmt.Sprintf("Forecast updated: %.1f °C at %s.",
		res.Prediction.Temperature, res.Prediction.Timestamp.Format("2006-01-02 15:04")))
}

func (h *handler) syncArchive(c *fiber.Ctx) error {
	ex, errs := h.archiveExtractor(c)
	if errs != nil {
		if wantsJSON(c) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"errors": errs})
		}
		return redirectHome(c, "Archive sync: "+errs.String())
	}
	return h.ingest(c, ex)
}

// archiveExtractor honors optional start_date and end_date, given together.
func (h *handler) archiveExtractor(c *fiber.Ctx) (pipeline.Extractor, fieldErrors) {
	var body struct {
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if c.Is("json") && len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return nil, fieldErrors{"body": "Malformed JSON body."}
		}
	} else {
		body.StartDate = c.FormValue("start_date", c.Query("start_date"))
		body.EndDate = c.FormValue("end_date", c.Query("end_date"))
	}
	startRaw := strings.TrimSpace(body.StartDate)
	endRaw := strings.TrimSpace(body.EndDate)
	if startRaw == "" && endRaw == "" {
		return h.Archive, nil
	}

	errs := fieldErrors{}
	start, err := time.Parse(dateLayout, startRaw)
	if err != nil {
		errs["start_date"] = "Enter a valid date (YYYY-MM-DD)."
	}
	end, err := time.Parse(dateLayout, endRaw)
	if err != nil {
		errs["end_date"] = "Enter a valid date (YYYY-MM-DD)."
	}
	if len(errs) == 0 && end.Before(start) {
		errs["end_date"] = "End date must not be before start date."
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return h.ArchiveRange(start, end), nil
}

func (h *handler) syncAgency(c *fiber.Ctx) error {
	return h.ingest(c, h.Agency)
}

func (h *handler) importCSV(c *fiber.Ctx) error {
	data, problem := uploadedFile(c, "file")
	if problem != "" {
		errs := fieldErrors{"file": problem}
		if wantsJSON(c) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"errors": errs})
		}
		return redirectHome(c, "CSV import: "+errs.String())
	}
	ex := pipeline.NewExtractor(domain.SourceCSVImport, func(context.Context) ([]domain.WeatherRecord, error) {
		return domain.ParseCSV(bytes.NewReader(data))
	})
	return h.ingest(c, ex)
}

// uploadedFile returns the file contents or a message for the form.
func uploadedFile(c *fiber.Ctx, field string) ([]byte, string) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, "This field is required."
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "The uploaded file could not be read."
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "The uploaded file could not be read."
	}
	return data, ""
}

func (h *handler) ingest(c *fiber.Ctx, ex pipeline.Extractor) error {
	res := h.Ingestor.Run(c.UserContext(), ex)
	label := res.Source.Label()
	if wantsJSON(c) {
		resp := operationResponse{OK: res.OK(), Source: res.Source, Fetched: res.Fetched, Stored: res.Stored}
		if !res.OK() {
			resp.ErrorKind = res.Kind()
			resp.Error = res.Err.Error()
		}
		return c.JSON(resp)
	}
	if !res.OK() {
		return redirectHome(c, failureNotice(label, res.Err))
	}
	return redirectHome(c, fmt.Sprintf("%s: stored %d records.", label, res.Stored))
}

func failureNotice(what string, err error) string {
	switch domain.KindOf(err) {
	case domain.KindInsufficientData:
		return what + ": not enough data yet."
	case domain.KindNetwork:
		return what + ": upstream unavailable, nothing changed."
	case domain.KindParse:
		return what + ": no usable records, nothing changed."
	default:
		return what + " failed, nothing changed."
	}
}

func redirectHome(c *fiber.Ctx, notice string) error {
	target := "/"
	if notice != "" {
		target += "?" + url.Values{"notice": {notice}}.Encode()
	}
	return c.Redirect(target, fiber.StatusSeeOther)
}

// String joins the messages in field order for one-line notices.
func (e fieldErrors) String() string {
	var parts []string
	for _, field := range append(append([]string{}, entryFields...), "start_date", "end_date", "file", "body") {
		if msg, ok := e[field]; ok {
			parts = append(parts, field+": "+msg)
		}
	}
	return strings.Join(parts, " ")
}

func nonNil(records []domain.WeatherRecord) []domain.WeatherRecord {
	if records == nil {
		return []domain.WeatherRecord{}
	}
	return records
}
