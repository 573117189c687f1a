package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/adrian-cg/earthquakes/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr           string
	LogLevel           string
	LogFormat          string
	ShutdownTimeout    time.Duration
	CORSAllowedOrigins []string

	// GeoNames earthquakes service.
	GeoNamesBaseURL   string // empty uses geonames.DefaultBaseURL
	GeoNamesUsername  string
	GeoNamesTimeout   time.Duration
	GeoNamesRateLimit float64 // requests per second
	GeoNamesBurst     int

	// Response cache; CacheSize 0 disables it.
	CacheSize int
	CacheTTL  time.Duration

	// World overview and presentation.
	TopTenMaxRows    int
	TopTenSize       int
	TopTenOrder      domain.TopTenOrder
	TopTenRetry      time.Duration // initial backoff after a failed world fetch; 0 disables retries
	TopTenRetryMax   time.Duration
	MarkerRevealStep time.Duration
	MapCenterLat     float64
	MapCenterLng     float64
	MapZoom          int

	// Display publishing.
	KafkaEnabled      bool
	KafkaBrokers      []string
	KafkaDisplayTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	geonamesTimeout, err := parsePositiveDuration("GEONAMES_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parsePositiveDuration("CACHE_TTL", "5m")
	if err != nil {
		return nil, err
	}
	topTenRetry, err := parseDuration("TOP_TEN_RETRY_BACKOFF", "2s")
	if err != nil {
		return nil, err
	}
	topTenRetryMax, err := parsePositiveDuration("TOP_TEN_RETRY_MAX_BACKOFF", "2m")
	if err != nil {
		return nil, err
	}
	revealStep, err := parseDuration("MARKER_REVEAL_STEP", "200ms")
	if err != nil {
		return nil, err
	}

	rateLimit, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("GEONAMES_RATE_LIMIT", "1"), 64)
	if err != nil || rateLimit <= 0 {
		return nil, errors.New("invalid GEONAMES_RATE_LIMIT")
	}

	burst, err := parseInt("GEONAMES_BURST", 4, 1)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseInt("CACHE_SIZE", 256, 0)
	if err != nil {
		return nil, err
	}
	maxRows, err := parseInt("TOP_TEN_MAX_ROWS", 500, 1)
	if err != nil {
		return nil, err
	}
	topTenSize, err := parseInt("TOP_TEN_SIZE", 10, 1)
	if err != nil {
		return nil, err
	}
	zoom, err := parseInt("MAP_ZOOM", 8, 0)
	if err != nil {
		return nil, err
	}

	order, err := domain.ParseTopTenOrder(sharedcfg.EnvOrDefault("TOP_TEN_ORDER", "filter-truncate-sort"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOP_TEN_ORDER: %w", err)
	}

	lat, lng, err := parseCenter(sharedcfg.EnvOrDefault("MAP_CENTER", "25.6866,-100.3161"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		CORSAllowedOrigins: splitList(sharedcfg.EnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),

		GeoNamesBaseURL:   sharedcfg.EnvOrDefault("GEONAMES_BASE_URL", ""),
		GeoNamesUsername:  sharedcfg.EnvOrDefault("GEONAMES_USERNAME", "demo"),
		GeoNamesTimeout:   geonamesTimeout,
		GeoNamesRateLimit: rateLimit,
		GeoNamesBurst:     burst,

		CacheSize: cacheSize,
		CacheTTL:  cacheTTL,

		TopTenMaxRows:    maxRows,
		TopTenSize:       topTenSize,
		TopTenOrder:      order,
		TopTenRetry:      topTenRetry,
		TopTenRetryMax:   topTenRetryMax,
		MarkerRevealStep: revealStep,
		MapCenterLat:     lat,
		MapCenterLng:     lng,
		MapZoom:          zoom,

		KafkaEnabled:      os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:      sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaDisplayTopic: sharedcfg.EnvOrDefault("KAFKA_DISPLAY_TOPIC", "earthquake-displays"),
	}

	if cfg.GeoNamesUsername == "" {
		return nil, errors.New("GEONAMES_USERNAME is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaDisplayTopic == "" {
		return nil, errors.New("KAFKA_DISPLAY_TOPIC is required")
	}

	return cfg, nil
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := parseDuration(key, fallback)
	if err != nil || d == 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, fallback, minimum int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minimum {
		return 0, fmt.Errorf("invalid %s: must be an integer >= %d", key, minimum)
	}
	return n, nil
}

// parseCenter parses "lat,lng".
func parseCenter(s string) (float64, float64, error) {
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, errors.New("invalid MAP_CENTER: want \"lat,lng\"")
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	lng, errLng := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if errLat != nil || errLng != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return 0, 0, errors.New("invalid MAP_CENTER: coordinates out of range")
	}
	return lat, lng, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
