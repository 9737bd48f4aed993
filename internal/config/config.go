// ABOUTME: Centralized configuration for the contact compass tools
// ABOUTME: Loads from environment variables with validation and defaults
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/harper/contact-compass/internal/core"
	"github.com/harper/contact-compass/internal/models"
	"github.com/harper/contact-compass/internal/reference"
	"github.com/harper/contact-compass/internal/storage/sqlite"
)

// Config holds all configuration for the contact system
type Config struct {
	// Store settings
	DBPath string

	// Classification settings
	TagTablePath     string
	MainRulesPath    string
	ClassifyOnIngest bool

	// Inbox watcher settings
	WatchDebounce time.Duration
	WatchBucket   models.MainBucket

	// Charm settings
	CharmHost   string
	CharmDBName string
	AutoSync    bool

	// OpenAI settings
	OpenAIKey  string
	ChatModel  string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultDBPath is the database location under the XDG data home
func DefaultDBPath() string {
	return sqlite.DefaultDBPath()
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		// Defaults
		DBPath:           getEnv("COMPASS_DB_PATH", DefaultDBPath()),
		TagTablePath:     os.Getenv("COMPASS_TAG_TABLE"),
		MainRulesPath:    os.Getenv("COMPASS_MAIN_RULES"),
		ClassifyOnIngest: getEnvBool("COMPASS_CLASSIFY_ON_INGEST", false),
		WatchDebounce:    getEnvDuration("COMPASS_WATCH_DEBOUNCE", 500*time.Millisecond),
		WatchBucket:      models.MainBucket(getEnv("COMPASS_WATCH_BUCKET", string(models.BucketNone))),
		CharmHost:        getEnv("CHARM_HOST", "charm.2389.dev"),
		CharmDBName:      getEnv("CHARM_DB", "compass"),
		AutoSync:         getEnvBool("CHARM_AUTO_SYNC", true),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		ChatModel:        getEnv("COMPASS_OPENAI_MODEL", "gpt-4o-mini"),
		Timeout:          getEnvDuration("OPENAI_TIMEOUT", 30*time.Second),
		MaxRetries:       getEnvInt("OPENAI_MAX_RETRIES", 3),
		RetryDelay:       getEnvDuration("OPENAI_RETRY_DELAY", 2*time.Second),
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("OPENAI_MAX_RETRIES must be 0-10, got %d", c.MaxRetries)
	}
	if c.WatchDebounce <= 0 {
		return fmt.Errorf("COMPASS_WATCH_DEBOUNCE must be positive, got %v", c.WatchDebounce)
	}
	if b, ok := models.ParseMainBucket(string(c.WatchBucket)); ok {
		c.WatchBucket = b
	} else {
		return fmt.Errorf("COMPASS_WATCH_BUCKET must be biz, health, survivalist or none, got %q", c.WatchBucket)
	}
	return nil
}

// TagTable loads the configured reference table, or the bundled one
func (c *Config) TagTable() (*reference.Table, error) {
	if c.TagTablePath == "" {
		return reference.Default(), nil
	}
	return reference.LoadFile(c.TagTablePath)
}

// Classifier builds a classifier from the configured table and rules
func (c *Config) Classifier() (*core.Classifier, error) {
	table, err := c.TagTable()
	if err != nil {
		return nil, err
	}
	var rules []core.MainRule
	if c.MainRulesPath != "" {
		if rules, err = LoadMainRules(c.MainRulesPath); err != nil {
			return nil, err
		}
	}
	return core.NewClassifier(table, rules), nil
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v == "true" || v == "1"
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
