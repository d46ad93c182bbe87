package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/ecogrid-engine/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	APIBaseURL   string
	APITimeout   time.Duration
	APISessionID string

	Username        string
	StartingBudget  int
	ScalingFactor   float64
	ScorerSeed      uint64
	MissingPolicy   domain.MissingValuePolicy
	DetailCacheSize int
	CatalogPath     string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Build event publishing.
	KafkaBrokers       []string
	KafkaBuildTopic    string
	BuildEventsEnabled bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	apiTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("API_TIMEOUT", "5s"))
	if err != nil || apiTimeout <= 0 {
		return nil, errors.New("invalid API_TIMEOUT")
	}

	budget, err := strconv.Atoi(sharedcfg.EnvOrDefault("STARTING_BUDGET", "10000000"))
	if err != nil || budget < 0 {
		return nil, errors.New("invalid STARTING_BUDGET")
	}

	factor, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("SIMULATION_SCALING_FACTOR", "10"), 64)
	if err != nil || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return nil, errors.New("invalid SIMULATION_SCALING_FACTOR")
	}

	seed, err := strconv.ParseUint(sharedcfg.EnvOrDefault("SCORER_SEED", "0"), 10, 64)
	if err != nil {
		return nil, errors.New("invalid SCORER_SEED")
	}

	policy, err := domain.ParseMissingValuePolicy(os.Getenv("MISSING_VALUE_POLICY"))
	if err != nil {
		return nil, fmt.Errorf("invalid MISSING_VALUE_POLICY: %w", err)
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = sharedcfg.ParseBrokers(raw)
	}
	eventsEnabled := len(brokers) > 0
	if v := os.Getenv("BUILD_EVENTS_ENABLED"); v != "" {
		eventsEnabled = v == "true"
	}

	cfg := &Config{
		APIBaseURL:   sharedcfg.EnvOrDefault("API_BASE_URL", "http://localhost:8080"),
		APITimeout:   apiTimeout,
		APISessionID: os.Getenv("API_SESSION_ID"),

		Username:        os.Getenv("GAME_USERNAME"),
		StartingBudget:  budget,
		ScalingFactor:   factor,
		ScorerSeed:      seed,
		MissingPolicy:   policy,
		DetailCacheSize: parseDetailCacheSize(),
		CatalogPath:     os.Getenv("BUILDING_CATALOG_PATH"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8081"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers:       brokers,
		KafkaBuildTopic:    sharedcfg.EnvOrDefault("KAFKA_BUILD_TOPIC", "facility-builds"),
		BuildEventsEnabled: eventsEnabled,
	}

	if u, err := url.Parse(cfg.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New("invalid API_BASE_URL")
	}
	if cfg.BuildEventsEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("BUILD_EVENTS_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.BuildEventsEnabled && cfg.KafkaBuildTopic == "" {
		return nil, errors.New("KAFKA_BUILD_TOPIC is required")
	}

	return cfg, nil
}

// RequireUsername reports an error when no player is configured. Only the
// session daemon needs one.
func (c *Config) RequireUsername() error {
	if c.Username == "" {
		return errors.New("GAME_USERNAME is required")
	}
	return nil
}

func parseDetailCacheSize() int {
	if s := os.Getenv("DETAIL_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 256
}
