package domain

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Canonical CSV field names.
const (
	fieldTimestamp   = "timestamp"
	fieldTemperature = "temperature"
	fieldHumidity    = "humidity"
	fieldPressure    = "pressure"
	fieldWindSpeed   = "wind_speed"
	fieldRainfall    = "rainfall"
)

// columnSynonyms maps header names (case-sensitive) to canonical fields.
var columnSynonyms = map[string]string{
	"date":             fieldTimestamp,
	"time":             fieldTimestamp,
	"timestamp":        fieldTimestamp,
	"temp":             fieldTemperature,
	"temp_avg":         fieldTemperature,
	"temperature":      fieldTemperature,
	"rh_avg":           fieldHumidity,
	"humidity":         fieldHumidity,
	"ws":               fieldWindSpeed,
	"wind_speed_avg":   fieldWindSpeed,
	"wind_speed":       fieldWindSpeed,
	"rr":               fieldRainfall,
	"rain":             fieldRainfall,
	"rainfall":         fieldRainfall,
	"surface_pressure": fieldPressure,
	"pressure":         fieldPressure,
}

// csvDefaults fills optional columns that are absent or blank.
var csvDefaults = map[string]float64{
	fieldPressure:  DefaultPressure,
	fieldWindSpeed: 0,
	fieldRainfall:  0,
}

var csvTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"02-01-2006",
}

// ParseCSV converts an uploaded table into CSV_IMPORT records. The header row
// is remapped through the synonym table; unknown columns are ignored. Any
// malformed row fails the whole file so a partial import never replaces a
// complete one.
func ParseCSV(r io.Reader) ([]WeatherRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, NewError(KindParse, "parse csv", errors.New("missing header row"))
		}
		return nil, NewError(KindParse, "parse csv", err)
	}

	columns := mapColumns(header)
	for _, required := range []string{fieldTimestamp, fieldTemperature, fieldHumidity} {
		if _, ok := columns[required]; !ok {
			return nil, NewError(KindParse, "parse csv", fmt.Errorf("missing %s column", required))
		}
	}

	var records []WeatherRecord
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, NewError(KindParse, "parse csv", fmt.Errorf("line %d: %w", line, err))
		}
		if blankRow(row) {
			continue
		}

		rec, err := parseCSVRow(row, columns)
		if err != nil {
			return nil, NewError(KindParse, "parse csv", fmt.Errorf("line %d: %w", line, err))
		}
		records = append(records, rec)
	}

	return records, nil
}

// mapColumns returns canonical field -> column index. The first header that
// maps to a field wins.
func mapColumns(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		field, ok := columnSynonyms[name]
		if !ok {
			continue
		}
		if _, seen := columns[field]; !seen {
			columns[field] = i
		}
	}
	return columns
}

func parseCSVRow(row []string, columns map[string]int) (WeatherRecord, error) {
	ts, err := parseCSVTime(cell(row, columns, fieldTimestamp))
	if err != nil {
		return WeatherRecord{}, err
	}

	values := make(map[string]float64, NumFeatures)
	for _, field := range []string{fieldTemperature, fieldHumidity, fieldPressure, fieldWindSpeed, fieldRainfall} {
		raw := cell(row, columns, field)
		if raw == "" {
			def, optional := csvDefaults[field]
			if !optional {
				return WeatherRecord{}, fmt.Errorf("empty %s", field)
			}
			values[field] = def
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return WeatherRecord{}, fmt.Errorf("invalid %s %q", field, raw)
		}
		values[field] = v
	}

	return WeatherRecord{
		Timestamp:   ts,
		Temperature: values[fieldTemperature],
		Humidity:    values[fieldHumidity],
		Pressure:    values[fieldPressure],
		WindSpeed:   values[fieldWindSpeed],
		Rainfall:    values[fieldRainfall],
		Source:      SourceCSVImport,
	}, nil
}

func cell(row []string, columns map[string]int, field string) string {
	i, ok := columns[field]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseCSVTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range csvTimeLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err != nil {
			continue
		}
		if !StorableTime(t) {
			return time.Time{}, fmt.Errorf("timestamp %q out of range", s)
		}
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
