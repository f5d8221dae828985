package pipeline

import (
	"log/slog"

	"github.com/couchcryptid/weather-dashboard-service/internal/domain"
)

// normalize tags every record with source, converts timestamps to UTC and
// drops records with non-finite measurements or unstorable timestamps.
func normalize(source domain.Source, records []domain.WeatherRecord, logger *slog.Logger) []domain.WeatherRecord {
	out := make([]domain.WeatherRecord, 0, len(records))
	for _, r := range records {
		if !r.Finite() {
			logger.Warn("dropping record with non-finite measurement", "source", source, "timestamp", r.Timestamp)
			continue
		}
		if !domain.StorableTime(r.Timestamp) {
			logger.Warn("dropping record with out-of-range timestamp", "source", source, "timestamp", r.Timestamp)
			continue
		}
		r.ID = 0
		r.Source = source
		r.Timestamp = r.Timestamp.UTC()
		out = append(out, r)
	}
	return out
}
