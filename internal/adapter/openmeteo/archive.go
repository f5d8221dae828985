// Package openmeteo fetches hourly history from the Open-Meteo archive API.
package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/weather-dashboard-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// DateLayout is the archive API's start_date/end_date format.
const DateLayout = "2006-01-02"

// Hourly variable identifiers requested from the archive.
const (
	varTemperature = "temperature_2m"
	varHumidity    = "relative_humidity_2m"
	varRain        = "rain"
	varPressure    = "surface_pressure"
	varWindSpeed   = "wind_speed_10m"
)

var hourlyVars = []string{varTemperature, varHumidity, varRain, varPressure, varWindSpeed}

// Fetcher is the upstream GET used by the archive client.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

// Client converts archive responses into API records.
type Client struct {
	fetcher  Fetcher
	baseURL  string
	coords   domain.Coordinates
	lookback int
	clock    clockwork.Clock
}

// NewClient creates an archive client for one location. lookbackDays sizes
// the default date range used by Extract.
func NewClient(fetcher Fetcher, baseURL string, coords domain.Coordinates, lookbackDays int, clock clockwork.Clock) *Client {
	return &Client{
		fetcher:  fetcher,
		baseURL:  baseURL,
		coords:   coords,
		lookback: lookbackDays,
		clock:    clock,
	}
}

// Source implements pipeline.Extractor.
func (c *Client) Source() domain.Source { return domain.SourceAPI }

// Extract fetches the default range: the lookback window ending yesterday (UTC).
func (c *Client) Extract(ctx context.Context) ([]domain.WeatherRecord, error) {
	start, end := c.DefaultRange()
	return c.Fetch(ctx, start, end)
}

// DefaultRange returns the lookback window ending yesterday (UTC).
func (c *Client) DefaultRange() (start, end time.Time) {
	today := c.clock.Now().UTC().Truncate(24 * time.Hour)
	end = today.AddDate(0, 0, -1)
	start = end.AddDate(0, 0, -(c.lookback - 1))
	return start, end
}

// Range returns an extractor for an explicit inclusive date range.
func (c *Client) Range(start, end time.Time) *RangeExtractor {
	return &RangeExtractor{client: c, start: start, end: end}
}

// Fetch requests the hourly series for [start, end] and decodes it.
func (c *Client) Fetch(ctx context.Context, start, end time.Time) ([]domain.WeatherRecord, error) {
	if end.Before(start) {
		return nil, domain.NewError(domain.KindValidation, "archive fetch",
			fmt.Errorf("end_date %s is before start_date %s", end.Format(DateLayout), start.Format(DateLayout)))
	}

	body, err := c.fetcher.Get(ctx, c.requestURL(start, end))
	if err != nil {
		return nil, err
	}
	return ParseArchive(body)
}

func (c *Client) requestURL(start, end time.Time) string {
	params := url.Values{
		"latitude":   {strconv.FormatFloat(c.coords.Lat, 'f', 4, 64)},
		"longitude":  {strconv.FormatFloat(c.coords.Lon, 'f', 4, 64)},
		"start_date": {start.Format(DateLayout)},
		"end_date":   {end.Format(DateLayout)},
		"hourly":     {varTemperature + "," + varHumidity + "," + varRain + "," + varPressure + "," + varWindSpeed},
		"timezone":   {"UTC"},
		"timeformat": {"unixtime"},
	}
	return c.baseURL + "?" + params.Encode()
}

// RangeExtractor fetches a fixed date range.
type RangeExtractor struct {
	client     *Client
	start, end time.Time
}

func (r *RangeExtractor) Source() domain.Source { return domain.SourceAPI }

func (r *RangeExtractor) Extract(ctx context.Context) ([]domain.WeatherRecord, error) {
	return r.client.Fetch(ctx, r.start, r.end)
}

type archiveResponse struct {
	Hourly map[string]json.RawMessage `json:"hourly"`
}

// ParseArchive decodes an archive response. Each hourly series is looked up
// by name and must be as long as the time axis. Hours missing temperature,
// humidity, pressure or wind speed are skipped; missing rain counts as 0.
func ParseArchive(body []byte) ([]domain.WeatherRecord, error) {
	var resp archiveResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, parseErr(fmt.Errorf("decode response: %w", err))
	}
	if resp.Hourly == nil {
		return nil, parseErr(errors.New("response has no hourly block"))
	}

	rawTime, ok := resp.Hourly["time"]
	if !ok {
		return nil, parseErr(errors.New("hourly block has no time axis"))
	}
	var times []int64
	if err := json.Unmarshal(rawTime, &times); err != nil {
		return nil, parseErr(fmt.Errorf("decode time axis: %w", err))
	}

	series := make(map[string][]*float64, len(hourlyVars))
	for _, name := range hourlyVars {
		raw, ok := resp.Hourly[name]
		if !ok {
			return nil, parseErr(fmt.Errorf("hourly block has no %s series", name))
		}
		var values []*float64
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, parseErr(fmt.Errorf("decode %s: %w", name, err))
		}
		if len(values) != len(times) {
			return nil, parseErr(fmt.Errorf("%s has %d values for %d timestamps", name, len(values), len(times)))
		}
		series[name] = values
	}

	records := make([]domain.WeatherRecord, 0, len(times))
	for i, ts := range times {
		temp, hum, pres, wind := series[varTemperature][i], series[varHumidity][i], series[varPressure][i], series[varWindSpeed][i]
		if temp == nil || hum == nil || pres == nil || wind == nil {
			continue
		}
		rain := 0.0
		if r := series[varRain][i]; r != nil {
			rain = *r
		}
		records = append(records, domain.WeatherRecord{
			Timestamp:   time.Unix(ts, 0).UTC(),
			Temperature: *temp,
			Humidity:    *hum,
			Pressure:    *pres,
			WindSpeed:   *wind,
			Rainfall:    rain,
			Source:      domain.SourceAPI,
		})
	}
	return records, nil
}

func parseErr(err error) error {
	return domain.NewError(domain.KindParse, "parse archive", err)
}
