// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// Feed settings
	FeedsConfigPath  string
	FreshnessWindow  time.Duration
	MaxPerSource     int
	FetchConcurrency int
	FetchTimeout     time.Duration
	RetryAttempts    int
	RetryDelay       time.Duration
	RefreshInterval  time.Duration

	// Query settings
	PageSize    int
	TopKeywords int

	// Thumbnail settings
	ThumbCacheDir  string
	ThumbTimeout   time.Duration
	ThumbQuality   int
	ThumbMaxDim    int
	ThumbRateLimit int // requests per client per minute, 0 disables

	// App settings
	ListenAddr string
	Debug      bool
	LogFormat  string
}

const (
	maxFetchConcurrency = 64
)

var defaults = map[string]any{
	"FEEDS_CONFIG_PATH": "configs/feeds.yaml",
	"FRESHNESS_WINDOW":  "24h",
	"MAX_PER_SOURCE":    5,
	"FETCH_CONCURRENCY": 8,
	"FETCH_TIMEOUT":     "8s",
	"RETRY_ATTEMPTS":    2,
	"RETRY_DELAY":       "500ms",
	"REFRESH_INTERVAL":  "5m",
	"PAGE_SIZE":         18,
	"TOP_KEYWORDS":      10,
	"THUMB_CACHE_DIR":   "cache/thumbs",
	"THUMB_TIMEOUT":     "6s",
	"THUMB_QUALITY":     82,
	"THUMB_MAX_DIM":     1600,
	"THUMB_RATE_LIMIT":  600,
	"LISTEN_ADDR":       ":8080",
	"DEBUG":             false,
	"LOG_FORMAT":        "text",
}

// Load reads the configuration from environment variables, falling back to
// defaults for anything unset or unparsable.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	cfg := &Config{
		FeedsConfigPath:  v.GetString("FEEDS_CONFIG_PATH"),
		FreshnessWindow:  durationOrDefault(v, "FRESHNESS_WINDOW"),
		MaxPerSource:     positiveIntOrDefault(v, "MAX_PER_SOURCE"),
		FetchConcurrency: positiveIntOrDefault(v, "FETCH_CONCURRENCY"),
		FetchTimeout:     durationOrDefault(v, "FETCH_TIMEOUT"),
		RetryAttempts:    positiveIntOrDefault(v, "RETRY_ATTEMPTS"),
		RetryDelay:       durationOrDefault(v, "RETRY_DELAY"),
		RefreshInterval:  durationOrDefault(v, "REFRESH_INTERVAL"),
		PageSize:         positiveIntOrDefault(v, "PAGE_SIZE"),
		TopKeywords:      positiveIntOrDefault(v, "TOP_KEYWORDS"),
		ThumbCacheDir:    v.GetString("THUMB_CACHE_DIR"),
		ThumbTimeout:     durationOrDefault(v, "THUMB_TIMEOUT"),
		ThumbQuality:     positiveIntOrDefault(v, "THUMB_QUALITY"),
		ThumbMaxDim:      positiveIntOrDefault(v, "THUMB_MAX_DIM"),
		ThumbRateLimit:   nonNegativeIntOrDefault(v, "THUMB_RATE_LIMIT"),
		ListenAddr:       v.GetString("LISTEN_ADDR"),
		Debug:            v.GetBool("DEBUG"),
		LogFormat:        v.GetString("LOG_FORMAT"),
	}

	if cfg.FetchConcurrency > maxFetchConcurrency {
		cfg.FetchConcurrency = maxFetchConcurrency
	}

	return cfg, cfg.Validate()
}

func positiveIntOrDefault(v *viper.Viper, key string) int {
	fallback := defaults[key].(int)
	val, err := toInt(v.Get(key))
	if err != nil || val <= 0 {
		return fallback
	}
	return val
}

func nonNegativeIntOrDefault(v *viper.Viper, key string) int {
	fallback := defaults[key].(int)
	val, err := toInt(v.Get(key))
	if err != nil || val < 0 {
		return fallback
	}
	return val
}

func durationOrDefault(v *viper.Viper, key string) time.Duration {
	fallback, _ := time.ParseDuration(defaults[key].(string))
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func toInt(raw any) (int, error) {
	switch val := raw.(type) {
	case int:
		return val, nil
	case string:
		return strconv.Atoi(strings.TrimSpace(val))
	default:
		return 0, fmt.Errorf("unsupported value %v", raw)
	}
}

func (c *Config) Validate() error {
	if c.FeedsConfigPath == "" {
		return fmt.Errorf("FEEDS_CONFIG_PATH is required")
	}
	if c.ThumbCacheDir == "" {
		return fmt.Errorf("THUMB_CACHE_DIR is required")
	}
	if c.ThumbQuality > 100 {
		return fmt.Errorf("THUMB_QUALITY must be between 1 and 100")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("LISTEN_ADDR is required")
	}
	return nil
}
