package fingerprint

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the fingerprint engine
type Config struct {
	// DefaultWindow is the dedup window for action types without a
	// specific entry in Windows.
	// Default: 24 hours
	DefaultWindow time.Duration

	// Windows maps an action type to its dedup window. An identical action
	// submitted inside the window is treated as a duplicate of the original.
	// Windows are per action type because the cost of repeating differs:
	// re-sending an outreach email is worse than re-running an enrichment.
	Windows map[string]time.Duration
}

// Default per-action-type dedup windows.
const (
	defaultOutreachWindow   = 72 * time.Hour
	defaultEnrichmentWindow = 24 * time.Hour
	defaultEvaluationWindow = 12 * time.Hour
)

// DefaultConfig returns the default fingerprint engine configuration
func DefaultConfig() Config {
	return Config{
		DefaultWindow: 24 * time.Hour,
		Windows: map[string]time.Duration{
			"outreach_email":     defaultOutreachWindow,
			"enrichment_request": defaultEnrichmentWindow,
			"deal_evaluation":    defaultEvaluationWindow,
		},
	}
}

// WindowFor returns the dedup window for an action type
func (c Config) WindowFor(actionType string) time.Duration {
	if w, ok := c.Windows[actionType]; ok {
		return w
	}
	return c.DefaultWindow
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.DefaultWindow <= 0 {
		return fmt.Errorf("default_window must be positive (got %v)", c.DefaultWindow)
	}
	if c.DefaultWindow > 90*24*time.Hour {
		return fmt.Errorf("default_window too large (got %v, max 90 days)", c.DefaultWindow)
	}
	for actionType, w := range c.Windows {
		if w <= 0 {
			return fmt.Errorf("window for %s must be positive (got %v)", actionType, w)
		}
		if w > 90*24*time.Hour {
			return fmt.Errorf("window for %s too large (got %v, max 90 days)", actionType, w)
		}
	}
	return nil
}

// ConfigFromEnv creates a Config from environment variables, falling back to defaults
//
// Environment variables:
//   - VERDICT_DEDUP_DEFAULT_WINDOW_HOURS: fallback dedup window in hours (default: 24)
//   - VERDICT_DEDUP_OUTREACH_WINDOW_HOURS: window for outreach_email (default: 72)
//   - VERDICT_DEDUP_ENRICHMENT_WINDOW_HOURS: window for enrichment_request (default: 24)
//   - VERDICT_DEDUP_EVALUATION_WINDOW_HOURS: window for deal_evaluation (default: 12)
//
// Returns an error if any environment variable has an invalid value.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if err := parseEnvHours("VERDICT_DEDUP_DEFAULT_WINDOW_HOURS", &cfg.DefaultWindow); err != nil {
		return cfg, err
	}
	overrides := map[string]string{
		"outreach_email":     "VERDICT_DEDUP_OUTREACH_WINDOW_HOURS",
		"enrichment_request": "VERDICT_DEDUP_ENRICHMENT_WINDOW_HOURS",
		"deal_evaluation":    "VERDICT_DEDUP_EVALUATION_WINDOW_HOURS",
	}
	for actionType, key := range overrides {
		w := cfg.Windows[actionType]
		if err := parseEnvHours(key, &w); err != nil {
			return cfg, err
		}
		cfg.Windows[actionType] = w
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration from environment: %w", err)
	}

	return cfg, nil
}

// parseEnvHours parses an hour count from an environment variable
func parseEnvHours(key string, dest *time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = time.Duration(parsed) * time.Hour
	return nil
}
