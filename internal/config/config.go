package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

const (
	defaultArchiveURL = "https://archive-api.open-meteo.com/v1/archive"
	defaultAgencyURL  = "https://data.bmkg.go.id/DataMKG/MEWS/DigitalForecast/DigitalForecast-JawaBarat.xml"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	OpsAddr         string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Observation store: PostgreSQL when DatabaseURL is set, SQLite otherwise.
	DatabaseURL string
	SQLitePath  string

	// Outbound HTTP.
	UpstreamTimeout    time.Duration
	UpstreamMaxRetries int

	ArchiveBaseURL      string
	ArchiveLatitude     float64
	ArchiveLongitude    float64
	ArchiveLocation     string
	ArchiveLookbackDays int

	AgencyURL  string
	AgencyArea string

	DashboardLimit int

	ForecastMinRecords int
	ForecastTrees      int
	ForecastSeed       uint64

	// SyncInterval enables the background scheduler when positive.
	SyncInterval time.Duration

	// Record sinks; empty values disable them.
	KafkaBrokers []string
	KafkaTopic   string
	RedisURL     string

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	upstreamTimeout, err := parseDuration("UPSTREAM_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	if upstreamTimeout < time.Second || upstreamTimeout > time.Minute {
		return nil, errors.New("invalid UPSTREAM_TIMEOUT: must be between 1s and 60s")
	}

	syncInterval, err := parseDuration("SYNC_INTERVAL", "0s")
	if err != nil {
		return nil, err
	}
	if syncInterval < 0 {
		return nil, errors.New("invalid SYNC_INTERVAL: must not be negative")
	}

	mapboxTimeout, err := parseDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	if mapboxTimeout <= 0 {
		return nil, errors.New("invalid MAPBOX_TIMEOUT: must be positive")
	}

	lat, err := parseFloat("ARCHIVE_LATITUDE", -6.9175)
	if err != nil {
		return nil, err
	}
	lon, err := parseFloat("ARCHIVE_LONGITUDE", 107.6191)
	if err != nil {
		return nil, err
	}
	if lat < -90 || lat > 90 {
		return nil, errors.New("invalid ARCHIVE_LATITUDE: out of range")
	}
	if lon < -180 || lon > 180 {
		return nil, errors.New("invalid ARCHIVE_LONGITUDE: out of range")
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8000"),
		OpsAddr:         sharedcfg.EnvOrDefault("OPS_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  sharedcfg.EnvOrDefault("SQLITE_PATH", "weather.db"),

		UpstreamTimeout: upstreamTimeout,

		ArchiveBaseURL:   sharedcfg.EnvOrDefault("ARCHIVE_BASE_URL", defaultArchiveURL),
		ArchiveLatitude:  lat,
		ArchiveLongitude: lon,
		ArchiveLocation:  os.Getenv("ARCHIVE_LOCATION"),

		AgencyURL:  sharedcfg.EnvOrDefault("AGENCY_URL", defaultAgencyURL),
		AgencyArea: sharedcfg.EnvOrDefault("AGENCY_AREA", "Bandung"),

		SyncInterval: syncInterval,

		KafkaTopic: sharedcfg.EnvOrDefault("KAFKA_TOPIC", "weather-records"),
		RedisURL:   os.Getenv("REDIS_URL"),

		MapboxToken:   os.Getenv("MAPBOX_TOKEN"),
		MapboxTimeout: mapboxTimeout,
	}

	for _, setting := range []intSetting{
		{"UPSTREAM_MAX_RETRIES", 3, 0, 10, &cfg.UpstreamMaxRetries},
		{"ARCHIVE_LOOKBACK_DAYS", 30, 1, 366, &cfg.ArchiveLookbackDays},
		{"DASHBOARD_LIMIT", 24, 1, 1000, &cfg.DashboardLimit},
		{"FORECAST_MIN_RECORDS", 20, 20, 100000, &cfg.ForecastMinRecords},
		{"FORECAST_TREES", 100, 1, 1000, &cfg.ForecastTrees},
		{"MAPBOX_CACHE_SIZE", 1000, 1, 1000000, &cfg.MapboxCacheSize},
	} {
		v, err := parseIntInRange(setting.key, setting.def, setting.min, setting.max)
		if err != nil {
			return nil, err
		}
		*setting.dst = v
	}

	seed, err := strconv.ParseUint(sharedcfg.EnvOrDefault("FORECAST_SEED", "42"), 10, 64)
	if err != nil {
		return nil, errors.New("invalid FORECAST_SEED")
	}
	cfg.ForecastSeed = seed

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	cfg.MapboxEnabled = cfg.MapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		cfg.MapboxEnabled = v == "true"
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

// intSetting describes a bounded integer variable.
type intSetting struct {
	key           string
	def, min, max int
	dst           *int
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseIntInRange(key string, def, lo, hi int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be an integer between %d and %d", key, lo, hi)
	}
	return n, nil
}
