package domain

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

// Source is the provenance tag of a WeatherRecord. It decides whether a new
// batch replaces earlier records (every producer except MANUAL) or is appended.
type Source string

const (
	SourceAPI        Source = "API"
	SourceManual     Source = "MANUAL"
	SourceAgencyFeed Source = "AGENCY_FEED"
	SourceCSVImport  Source = "CSV_IMPORT"
	SourcePrediction Source = "PREDICTION"
)

// DefaultPressure is used wherever a producer has no pressure reading (hPa).
const DefaultPressure = 1010.0

// NumFeatures is the width of the forecaster feature vector.
const NumFeatures = 5

// Timestamps outside this range do not fit in int64 nanoseconds since the
// Unix epoch and cannot be stored.
var (
	MinTimestamp = time.Unix(0, math.MinInt64).UTC()
	MaxTimestamp = time.Unix(0, math.MaxInt64).UTC()
)

// StorableTime reports whether t lies within [MinTimestamp, MaxTimestamp].
func StorableTime(t time.Time) bool {
	return !t.Before(MinTimestamp) && !t.After(MaxTimestamp)
}

// Sources lists every known provenance tag in display order.
var Sources = []Source{SourceAPI, SourceManual, SourceAgencyFeed, SourceCSVImport, SourcePrediction}

var sourceLabels = map[Source]string{
	SourceAPI:        "Open-Meteo History",
	SourceManual:     "Manual Input (Sensor Sim)",
	SourceAgencyFeed: "BMKG Forecast Feed",
	SourceCSVImport:  "CSV Import",
	SourcePrediction: "ML Prediction",
}

// ParseSource accepts a source tag case-insensitively.
func ParseSource(s string) (Source, error) {
	candidate := Source(strings.ToUpper(strings.TrimSpace(s)))
	if candidate.Valid() {
		return candidate, nil
	}
	return "", fmt.Errorf("unknown source %q", s)
}

// Valid reports whether s is one of the known provenance tags.
func (s Source) Valid() bool {
	_, ok := sourceLabels[s]
	return ok
}

// Label is the human-readable name shown on the dashboard.
func (s Source) Label() string {
	if l, ok := sourceLabels[s]; ok {
		return l
	}
	return string(s)
}

// Replaceable reports whether a fresh batch of this source supersedes the
// previous one. Manual entries accumulate.
func (s Source) Replaceable() bool {
	return s.Valid() && s != SourceManual
}

// WeatherRecord is one observation or prediction. Records are immutable once
// stored; ID is assigned by the store.
type WeatherRecord struct {
	ID          int64     `json:"id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Pressure    float64   `json:"pressure"`
	WindSpeed   float64   `json:"wind_speed"`
	Rainfall    float64   `json:"rainfall"`
	Source      Source    `json:"source"`
}

// Features returns the forecaster input vector in a fixed order:
// temperature, humidity, pressure, wind speed, rainfall.
func (r WeatherRecord) Features() []float64 {
	return []float64{r.Temperature, r.Humidity, r.Pressure, r.WindSpeed, r.Rainfall}
}

// Finite reports whether every measurement is a finite number.
func (r WeatherRecord) Finite() bool {
	for _, v := range r.Features() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// String mirrors the "<timestamp> - <source>" form used in logs.
func (r WeatherRecord) String() string {
	return fmt.Sprintf("%s - %s", r.Timestamp.UTC().Format(time.RFC3339), r.Source)
}

// Order selects timestamp ordering for store queries.
type Order int

const (
	Ascending Order = iota
	Descending
)

// RecordQuery filters records by source. An empty Include means all sources.
// Limit <= 0 means no limit.
type RecordQuery struct {
	Include []Source
	Exclude []Source
	Order   Order
	Limit   int
}

// RecordStore is the Observation Store contract shared by the SQLite and
// PostgreSQL backends.
type RecordStore interface {
	// ReplaceSource atomically deletes every record of source and inserts
	// records, re-tagged with source. Empty batches return ErrEmptyBatch.
	ReplaceSource(ctx context.Context, source Source, records []WeatherRecord) error

	// Append inserts one record without deleting anything.
	Append(ctx context.Context, record WeatherRecord) (WeatherRecord, error)

	// Query returns records matching q ordered by timestamp, ties by ID.
	Query(ctx context.Context, q RecordQuery) ([]WeatherRecord, error)

	// Latest returns the n most recent records across all sources, newest first.
	Latest(ctx context.Context, n int) ([]WeatherRecord, error)

	CheckReadiness(ctx context.Context) error
	Close() error
}
