// Package bmkg reads the BMKG DigitalForecast XML feed.
package bmkg

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/weather-dashboard-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Forecast slots emitted per fetch, spaced slotInterval apart.
const (
	slotCount    = 4
	slotInterval = 6 * time.Hour
)

// Parameter identifiers in the feed.
const (
	paramTemperature = "t"
	paramHumidity    = "hu"
	paramWindSpeed   = "ws"
)

// Fetcher is the upstream GET used by the feed client.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

// Client converts the agency feed into AGENCY_FEED records.
type Client struct {
	fetcher Fetcher
	url     string
	area    string
	clock   clockwork.Clock
	logger  *slog.Logger
}

// NewClient creates a feed client that prefers the named area.
func NewClient(fetcher Fetcher, url, area string, clock clockwork.Clock, logger *slog.Logger) *Client {
	return &Client{fetcher: fetcher, url: url, area: area, clock: clock, logger: logger}
}

// Source implements pipeline.Extractor.
func (c *Client) Source() domain.Source { return domain.SourceAgencyFeed }

// Extract fetches the feed and emits one record per forecast slot.
func (c *Client) Extract(ctx context.Context) ([]domain.WeatherRecord, error) {
	body, err := c.fetcher.Get(ctx, c.url)
	if err != nil {
		return nil, err
	}

	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}

	area, matched := doc.selectArea(c.area)
	if !matched {
		c.logger.Warn("preferred forecast area not found, using first area",
			"preferred", c.area,
			"used", area.String(),
		)
	}

	return area.records(c.clock.Now()), nil
}

type document struct {
	Forecast struct {
		Areas []area `xml:"area"`
	} `xml:"forecast"`
}

type area struct {
	ID          string      `xml:"id,attr"`
	Description string      `xml:"description,attr"`
	Names       []string    `xml:"name"`
	Parameters  []parameter `xml:"parameter"`
}

type parameter struct {
	ID         string      `xml:"id,attr"`
	TimeRanges []timeRange `xml:"timerange"`
}

type timeRange struct {
	Datetime string   `xml:"datetime,attr"`
	Values   []string `xml:"value"`
}

func parseDocument(body []byte) (*document, error) {
	var doc document
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, domain.NewError(domain.KindParse, "parse agency feed", err)
	}
	if len(doc.Forecast.Areas) == 0 {
		return nil, domain.NewError(domain.KindParse, "parse agency feed", errors.New("document has no areas"))
	}
	return &doc, nil
}

// selectArea returns the area whose description or any name equals
// preferred. Without a match the first area is returned with matched=false.
func (d *document) selectArea(preferred string) (area, bool) {
	for _, a := range d.Forecast.Areas {
		if a.Description == preferred {
			return a, true
		}
		for _, n := range a.Names {
			if strings.TrimSpace(n) == preferred {
				return a, true
			}
		}
	}
	return d.Forecast.Areas[0], false
}

func (a area) records(now time.Time) []domain.WeatherRecord {
	base := now.UTC().Truncate(time.Hour)
	records := make([]domain.WeatherRecord, slotCount)
	for i := range slotCount {
		records[i] = domain.WeatherRecord{
			Timestamp:   base.Add(time.Duration(i) * slotInterval),
			Temperature: a.value(paramTemperature, i),
			Humidity:    a.value(paramHumidity, i),
			Pressure:    domain.DefaultPressure,
			WindSpeed:   a.value(paramWindSpeed, i),
			Rainfall:    0,
			Source:      domain.SourceAgencyFeed,
		}
	}
	return records
}

// value reads the first value of the slot-th timerange of a parameter.
// Anything missing or unparsable reads as 0.
func (a area) value(id string, slot int) float64 {
	for _, p := range a.Parameters {
		if p.ID != id {
			continue
		}
		if slot >= len(p.TimeRanges) || len(p.TimeRanges[slot].Values) == 0 {
			return 0
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(p.TimeRanges[slot].Values[0]), 64)
		if err != nil {
			return 0
		}
		return v
	}
	return 0
}

func (a area) String() string {
	return fmt.Sprintf("%s (%s)", a.Description, a.ID)
}
