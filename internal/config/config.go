package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported values of PUBLISH_PLATFORM.
const (
	PlatformX       = "x"
	PlatformBluesky = "bluesky"
)

// Config holds all application configuration.
type Config struct {
	// Database
	DatabasePath string

	// Logging
	LogLevel string

	// Publishing
	PublishPlatform string

	// X API v2 (OAuth 2.0 user-context token)
	XAccessToken string
	XAPIBaseURL  string

	// Bluesky
	BlueskyHandle      string
	BlueskyAppPassword string
	BlueskyBaseURL     string

	// Scheduler settings
	DispatchInterval time.Duration
	PublishTimeout   time.Duration
	ClaimStaleAfter  time.Duration

	// Notification settings
	NotifyWebhookURL string
}

// Load reads configuration from environment variables.
// It automatically loads .env file if present.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		DatabasePath:       getEnv("DATABASE_PATH", "data/postbot.db"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		PublishPlatform:    normalizePlatform(getEnv("PUBLISH_PLATFORM", PlatformX)),
		XAccessToken:       getEnv("X_ACCESS_TOKEN", ""),
		XAPIBaseURL:        getEnv("X_API_BASE_URL", ""),
		BlueskyHandle:      getEnv("BLUESKY_HANDLE", ""),
		BlueskyAppPassword: getEnv("BLUESKY_APP_PASSWORD", ""),
		BlueskyBaseURL:     getEnv("BLUESKY_BASE_URL", ""),
		NotifyWebhookURL:   getEnv("NOTIFY_WEBHOOK_URL", ""),
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"DISPATCH_INTERVAL", "1m", &cfg.DispatchInterval},
		{"PUBLISH_TIMEOUT", "30s", &cfg.PublishTimeout},
		{"CLAIM_STALE_AFTER", "10m", &cfg.ClaimStaleAfter},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = v
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	switch c.PublishPlatform {
	case PlatformX, PlatformBluesky:
	default:
		return fmt.Errorf("invalid PUBLISH_PLATFORM: %s (must be 'x' or 'bluesky')", c.PublishPlatform)
	}
	return nil
}

// ValidateForServe checks configuration needed to run the scheduler.
// Missing credentials are allowed and mean simulated publishing, but half
// a Bluesky login is a mistake.
func (c *Config) ValidateForServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.DispatchInterval < time.Second {
		return fmt.Errorf("DISPATCH_INTERVAL must be at least 1s, got %s", c.DispatchInterval)
	}
	if c.PublishTimeout <= 0 {
		return fmt.Errorf("PUBLISH_TIMEOUT must be positive, got %s", c.PublishTimeout)
	}
	if c.ClaimStaleAfter < 0 {
		return fmt.Errorf("CLAIM_STALE_AFTER must not be negative, got %s", c.ClaimStaleAfter)
	}
	if c.PublishPlatform == PlatformBluesky && (c.BlueskyHandle == "") != (c.BlueskyAppPassword == "") {
		return fmt.Errorf("BLUESKY_HANDLE and BLUESKY_APP_PASSWORD must be set together")
	}
	return nil
}

// ValidateForPublishing checks that real credentials are configured for
// the selected platform.
func (c *Config) ValidateForPublishing() error {
	if err := c.Validate(); err != nil {
		return err
	}
	switch c.PublishPlatform {
	case PlatformX:
		if c.XAccessToken == "" {
			return fmt.Errorf("X_ACCESS_TOKEN is required for publishing to X")
		}
	case PlatformBluesky:
		if c.BlueskyHandle == "" {
			return fmt.Errorf("BLUESKY_HANDLE is required for publishing to Bluesky")
		}
		if c.BlueskyAppPassword == "" {
			return fmt.Errorf("BLUESKY_APP_PASSWORD is required for publishing to Bluesky")
		}
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// normalizePlatform accepts "twitter" as an alias for x.
func normalizePlatform(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "twitter" {
		return PlatformX
	}
	return p
}
