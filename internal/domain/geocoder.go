package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Coordinates is a WGS-84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Zero reports whether no coordinates were set.
func (c Coordinates) Zero() bool {
	return c.Lat == 0 && c.Lon == 0
}

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Coordinates
	FormattedAddress string
	PlaceName        string
	Confidence       float64 // 0.0–1.0 provider confidence score
}

// Geocoder resolves place names to coordinates.
type Geocoder interface {
	ForwardGeocode(ctx context.Context, query string) (GeocodingResult, error)
}

// ResolveLocation picks the coordinates the archive adapter should use. A
// place name is geocoded when a geocoder is available; on failure or an
// empty result the configured coordinates are kept.
func ResolveLocation(ctx context.Context, name string, fallback Coordinates, geocoder Geocoder, logger *slog.Logger) (Coordinates, error) {
	if name == "" || geocoder == nil {
		if fallback.Zero() {
			return fallback, errors.New("no archive location configured")
		}
		return fallback, nil
	}

	result, err := geocoder.ForwardGeocode(ctx, name)
	if err != nil {
		logger.Warn("forward geocoding failed, using configured coordinates",
			"location", name,
			"error", err,
		)
	} else if !result.Zero() {
		logger.Info("archive location geocoded",
			"location", name,
			"place", result.FormattedAddress,
			"lat", result.Lat,
			"lon", result.Lon,
		)
		return result.Coordinates, nil
	}

	if fallback.Zero() {
		return fallback, fmt.Errorf("cannot resolve archive location %q", name)
	}
	return fallback, nil
}
