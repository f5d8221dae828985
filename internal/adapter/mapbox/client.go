// Package mapbox resolves place names to coordinates with the Mapbox
// Geocoding API.
package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/couchcryptid/weather-dashboard-service/internal/domain"
)

const defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// placeTypes restricts matches to settlements; an archive location is never
// a street address.
const placeTypes = "place,locality,district"

// Fetcher performs the GET request. *httpclient.Client satisfies it, which
// gives geocoding the same timeout, retry and breaker policy as ingestion.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

// Client implements domain.Geocoder on the forward geocoding endpoint.
type Client struct {
	fetcher Fetcher
	token   string
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a Mapbox geocoding client.
func NewClient(fetcher Fetcher, token string, logger *slog.Logger) *Client {
	return &Client{fetcher: fetcher, token: token, baseURL: defaultBaseURL, logger: logger}
}

// ForwardGeocode returns the best match for query. No match yields a zero
// result and no error.
func (c *Client) ForwardGeocode(ctx context.Context, query string) (domain.GeocodingResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.GeocodingResult{}, domain.NewError(domain.KindValidation, "forward geocode", fmt.Errorf("empty query"))
	}

	body, err := c.fetcher.Get(ctx, c.placesURL(query))
	if err != nil {
		return domain.GeocodingResult{}, err
	}

	var places placesResponse
	if err := json.Unmarshal(body, &places); err != nil {
		return domain.GeocodingResult{}, domain.NewError(domain.KindParse, "forward geocode", fmt.Errorf("decode places: %w", err))
	}

	best, ok := places.best()
	if !ok {
		c.logger.Debug("no geocoding match", "query", query)
		return domain.GeocodingResult{}, nil
	}
	return best, nil
}

func (c *Client) placesURL(query string) string {
	q := url.Values{}
	q.Set("access_token", c.token)
	q.Set("limit", "1")
	q.Set("types", placeTypes)
	return c.baseURL + "/" + url.PathEscape(query) + ".json?" + q.Encode()
}

type placesResponse struct {
	Features []place `json:"features"`
}

type place struct {
	Center    []float64 `json:"center"` // lon, lat
	PlaceName string    `json:"place_name"`
	Text      string    `json:"text"`
	Relevance float64   `json:"relevance"`
}

// best returns the first feature that carries a usable center.
func (r placesResponse) best() (domain.GeocodingResult, bool) {
	for _, p := range r.Features {
		if len(p.Center) != 2 {
			continue
		}
		return domain.GeocodingResult{
			Coordinates:      domain.Coordinates{Lat: p.Center[1], Lon: p.Center[0]},
			FormattedAddress: p.PlaceName,
			PlaceName:        p.Text,
			Confidence:       p.Relevance,
		}, true
	}
	return domain.GeocodingResult{}, false
}
