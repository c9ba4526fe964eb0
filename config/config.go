package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	scrapeerr "mpatch/unitscout/pkg/errors"
)

// Config represents the application configuration
type Config struct {
	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache configuration
	MemcacheAddr string

	// Scrape configuration
	PropertyURLs   []string
	ScrapeInterval time.Duration
	NavTimeout     time.Duration
	ContainerCap   int
	UseBrowser     bool
	Headless       bool

	// Circuit breaker configuration
	BreakerThreshold int
	BreakerWindow    time.Duration
	BreakerCooldown  time.Duration

	// Template store configuration
	StorePath   string
	StatsPath   string
	StoreMaxAge time.Duration

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	streamCount, _ := strconv.Atoi(getEnv("REDIS_STREAM_COUNT", "1"))
	streamMaxLen, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "500"))
	interval, _ := strconv.Atoi(getEnv("SCRAPE_INTERVAL_SECONDS", "300"))
	navTimeout, _ := strconv.Atoi(getEnv("NAV_TIMEOUT_SECONDS", "30"))
	containerCap, _ := strconv.Atoi(getEnv("CONTAINER_CAP", "10"))
	breakerThreshold, _ := strconv.Atoi(getEnv("BREAKER_THRESHOLD", "3"))
	breakerWindow, _ := strconv.Atoi(getEnv("BREAKER_WINDOW_HOURS", "24"))
	breakerCooldown, _ := strconv.Atoi(getEnv("BREAKER_COOLDOWN_HOURS", "6"))
	maxAgeDays, _ := strconv.Atoi(getEnv("STORE_MAX_AGE_DAYS", "90"))

	return Config{
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "unitresults"),
		RedisStreamCount:     streamCount,
		RedisStreamMaxLength: streamMaxLen,
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", "localhost:11211"),
		PropertyURLs:         splitURLs(getEnv("PROPERTY_URLS", "")),
		ScrapeInterval:       time.Duration(interval) * time.Second,
		NavTimeout:           time.Duration(navTimeout) * time.Second,
		ContainerCap:         containerCap,
		UseBrowser:           getEnv("USE_BROWSER", "true") == "true",
		Headless:             getEnv("HEADLESS", "true") == "true",
		BreakerThreshold:     breakerThreshold,
		BreakerWindow:        time.Duration(breakerWindow) * time.Hour,
		BreakerCooldown:      time.Duration(breakerCooldown) * time.Hour,
		StorePath:            getEnv("TEMPLATE_STORE_PATH", "templates.json"),
		StatsPath:            getEnv("DOMAIN_STATS_PATH", "domain_stats.json"),
		StoreMaxAge:          time.Duration(maxAgeDays) * 24 * time.Hour,
		Environment:          getEnv("UNITSCOUT_ENVIRONMENT", "development"),
	}
}

// Validate checks that the configuration can actually drive a scrape run.
func (c *Config) Validate() error {
	if len(c.PropertyURLs) == 0 {
		return scrapeerr.NewConfiguration("PROPERTY_URLS must list at least one property URL")
	}
	if c.RedisStreamCount < 1 {
		return scrapeerr.NewConfiguration("REDIS_STREAM_COUNT must be at least 1")
	}
	if c.ScrapeInterval <= 0 {
		return scrapeerr.NewConfiguration("SCRAPE_INTERVAL_SECONDS must be positive")
	}
	if c.BreakerThreshold < 1 {
		return scrapeerr.NewConfiguration("BREAKER_THRESHOLD must be at least 1")
	}
	return nil
}

func splitURLs(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	urls := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			urls = append(urls, p)
		}
	}
	return urls
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
