// Package config loads runtime configuration from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable the engine reads at runtime. Scoring weights,
// tier cut points and the tax-loss assumptions are deliberately configuration
// rather than literals in the code that uses them.
type Config struct {
	// Job orchestration.
	JobTimeout     time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	StaleAfter     time.Duration

	// Subprocess adapter.
	ScraperCommand string

	// Native adapter pacing (requests per second).
	AdapterRateLimit float64

	// Matcher.
	Match MatchConfig

	// Compliance aggregation.
	Compliance ComplianceConfig
}

// MatchConfig holds the entity-matcher calibration.
type MatchConfig struct {
	AddressWeight  float64
	CoordWeight    float64
	HostWeight     float64
	TypeWeight     float64
	BedroomsWeight float64

	// Great-circle distance at which the coordinate signal halves.
	HalfDistanceMeters float64

	// Candidates scoring at or below the floor are discarded.
	ScoreFloor float64
	TopN       int

	// Composite-score tier cut points (inclusive lower bounds).
	ExactMin    float64
	ProbableMin float64
	PossibleMin float64
}

// ComplianceConfig holds the suspicion heuristics and tax-loss assumptions.
type ComplianceConfig struct {
	PriceZThreshold    float64
	HostVolumeFlag     int
	HostVolumeHigh     int
	NoveltyWindow      time.Duration
	NoveltyReviewFloor int

	// Estimated tax loss = unregistered count × tax/night × occupied
	// nights/year × average guests per stay.
	TaxPerNightXOF        float64
	OccupiedNightsPerYear float64
	AvgGuestsPerStay      float64
}

// Load reads the .env file (if present) and returns a populated Config.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using system environment")
	}

	return &Config{
		JobTimeout:     getEnvDuration("JOB_TIMEOUT", 10*time.Minute),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		RetryBaseDelay: getEnvDuration("RETRY_BASE_DELAY", 2*time.Second),
		StaleAfter:     getEnvDuration("STALE_AFTER", 14*24*time.Hour),

		ScraperCommand:   getEnv("SCRAPER_COMMAND", "scraper.py"),
		AdapterRateLimit: getEnvFloat("ADAPTER_RATE_LIMIT", 0.5),

		Match: MatchConfig{
			AddressWeight:      getEnvFloat("MATCH_ADDRESS_WEIGHT", 0.30),
			CoordWeight:        getEnvFloat("MATCH_COORD_WEIGHT", 0.30),
			HostWeight:         getEnvFloat("MATCH_HOST_WEIGHT", 0.20),
			TypeWeight:         getEnvFloat("MATCH_TYPE_WEIGHT", 0.10),
			BedroomsWeight:     getEnvFloat("MATCH_BEDROOMS_WEIGHT", 0.10),
			HalfDistanceMeters: getEnvFloat("MATCH_HALF_DISTANCE_M", 250),
			ScoreFloor:         getEnvFloat("MATCH_SCORE_FLOOR", 0.2),
			TopN:               getEnvInt("MATCH_TOP_N", 5),
			ExactMin:           getEnvFloat("MATCH_EXACT_MIN", 0.8),
			ProbableMin:        getEnvFloat("MATCH_PROBABLE_MIN", 0.6),
			PossibleMin:        getEnvFloat("MATCH_POSSIBLE_MIN", 0.4),
		},

		Compliance: ComplianceConfig{
			PriceZThreshold:       getEnvFloat("PRICE_Z_THRESHOLD", 2.0),
			HostVolumeFlag:        getEnvInt("HOST_VOLUME_FLAG", 3),
			HostVolumeHigh:        getEnvInt("HOST_VOLUME_HIGH", 5),
			NoveltyWindow:         getEnvDuration("NOVELTY_WINDOW", 30*24*time.Hour),
			NoveltyReviewFloor:    getEnvInt("NOVELTY_REVIEW_FLOOR", 20),
			TaxPerNightXOF:        getEnvFloat("TAX_PER_NIGHT_XOF", 1000),
			OccupiedNightsPerYear: getEnvFloat("OCCUPIED_NIGHTS_PER_YEAR", 180),
			AvgGuestsPerStay:      getEnvFloat("AVG_GUESTS_PER_STAY", 2),
		},
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
		slog.Warn("invalid integer in environment, using default", "key", key, "value", val)
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
		slog.Warn("invalid float in environment, using default", "key", key, "value", val)
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		slog.Warn("invalid duration in environment, using default", "key", key, "value", val)
	}
	return fallback
}
