package trexim

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
	"gopkg.in/yaml.v3"
)

// SiteConfig holds all configuration for a trexim site.
type SiteConfig struct {
	Name        string `yaml:"name"`        // Site name (default "Trexim")
	URL         string `yaml:"url"`         // Canonical URL (default "http://localhost:3000")
	Description string `yaml:"description"` // Site description for RSS and meta tags
	Author      string `yaml:"author"`      // Organisation name for JSON-LD

	Addr        string `yaml:"addr"`         // Listen address (default ":3000")
	DatabaseURL string `yaml:"database_url"` // sqlite path or postgres:// URL (default "data/trexim.db")
	StaticDir   string `yaml:"static_dir"`   // User-owned static assets (default "public")
	LogLevel    string `yaml:"log_level"`    // debug, info, warn, error (default "info")
	Timezone    string `yaml:"timezone"`     // IANA zone used for daily analytics buckets (default local)

	AnalyticsDisabled      bool          `yaml:"analytics_disabled"`
	AnalyticsSalt          string        `yaml:"analytics_salt"`           // Empty: generated once and stored in settings
	AnalyticsHashLength    int           `yaml:"analytics_hash_length"`    // default 16
	AnalyticsInternalHosts []string      `yaml:"analytics_internal_hosts"` // default ["trexim"]
	AnalyticsRateLimit     int           `yaml:"analytics_rate_limit"`     // Public endpoint requests per IP per minute (default 60)
	AnalyticsQueryTimeout  time.Duration `yaml:"analytics_query_timeout"`  // default 10s

	AdminPassword string `yaml:"admin_password"` // Required: plaintext or bcrypt hash
	SessionSecret string `yaml:"session_secret"` // Required: session encryption secret
	CookieSecure  bool   `yaml:"cookie_secure"`  // Set true for HTTPS

	PostCacheTTL time.Duration `yaml:"post_cache_ttl"` // Post cache TTL (default 5min)
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Trexim"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = "data/trexim.db"
	}
	if c.StaticDir == "" {
		c.StaticDir = "public"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.AnalyticsRateLimit == 0 {
		c.AnalyticsRateLimit = 60
	}
	if c.AnalyticsQueryTimeout == 0 {
		c.AnalyticsQueryTimeout = 10 * time.Second
	}
	if c.PostCacheTTL == 0 {
		c.PostCacheTTL = 5 * time.Minute
	}
}

func (c SiteConfig) validate() error {
	if c.AdminPassword == "" {
		return fmt.Errorf("trexim: AdminPassword is required")
	}
	if c.SessionSecret == "" {
		return fmt.Errorf("trexim: SessionSecret is required")
	}
	if _, err := c.location(); err != nil {
		return fmt.Errorf("trexim: timezone %q: %w", c.Timezone, err)
	}
	return nil
}

func (c SiteConfig) location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// LoadConfig reads a YAML config file. An empty path yields a zero config
// so environment variables alone can configure the site.
func LoadConfig(path string) (SiteConfig, error) {
	var cfg SiteConfig
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any of the supported environment variables
// that are set.
func ApplyEnv(cfg *SiteConfig) error {
	str := map[string]*string{
		"SITE_NAME":        &cfg.Name,
		"SITE_URL":         &cfg.URL,
		"SITE_DESCRIPTION": &cfg.Description,
		"SITE_AUTHOR":      &cfg.Author,
		"ADDR":             &cfg.Addr,
		"DATABASE_URL":     &cfg.DatabaseURL,
		"STATIC_DIR":       &cfg.StaticDir,
		"LOG_LEVEL":        &cfg.LogLevel,
		"TIMEZONE":         &cfg.Timezone,
		"ANALYTICS_SALT":   &cfg.AnalyticsSalt,
		"ADMIN_PASSWORD":   &cfg.AdminPassword,
		"SESSION_SECRET":   &cfg.SessionSecret,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("ANALYTICS_INTERNAL_HOSTS"); v != "" {
		cfg.AnalyticsInternalHosts = FilterEmpty(strings.Split(v, ","))
	}

	var err error
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" && err == nil {
			*dst, err = strconv.ParseBool(v)
			if err != nil {
				err = fmt.Errorf("%s: %w", key, err)
			}
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" && err == nil {
			*dst, err = strconv.Atoi(v)
			if err != nil {
				err = fmt.Errorf("%s: %w", key, err)
			}
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" && err == nil {
			*dst, err = time.ParseDuration(v)
			if err != nil {
				err = fmt.Errorf("%s: %w", key, err)
			}
		}
	}
	setBool("ANALYTICS_DISABLED", &cfg.AnalyticsDisabled)
	setBool("COOKIE_SECURE", &cfg.CookieSecure)
	setInt("ANALYTICS_HASH_LENGTH", &cfg.AnalyticsHashLength)
	setInt("ANALYTICS_RATE_LIMIT", &cfg.AnalyticsRateLimit)
	setDuration("ANALYTICS_QUERY_TIMEOUT", &cfg.AnalyticsQueryTimeout)
	setDuration("POST_CACHE_TTL", &cfg.PostCacheTTL)
	return err
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// MustEnv returns the value of the environment variable key, or fatally exits if empty.
func MustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("trexim: required environment variable %s is not set", key)
	}
	return v
}
