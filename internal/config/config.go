package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"slotcal/internal/fsutil"
	appLog "slotcal/internal/log"
)

const (
	defaultListen   = "127.0.0.1:8080"
	defaultTimezone = "Local"
	defaultLogLevel = "info"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// PublishConfig enables the ICS feed file. An empty Path disables it.
type PublishConfig struct {
	Path string `yaml:"path" json:"path"`
	// Cron is a five-field cron expression, e.g. "*/5 * * * *".
	Cron string `yaml:"cron" json:"cron"`
}

// RateLimitConfig bounds API requests per client IP. Requests <= 0
// disables limiting.
type RateLimitConfig struct {
	Requests int           `yaml:"requests" json:"requests"`
	Window   time.Duration `yaml:"window" json:"window"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone event times are interpreted in (e.g.
	// "Asia/Karachi"). "Local" uses the host zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is the first column of the month grid:
	//   - "sunday" (default)
	//   - "monday"
	WeekStart string `yaml:"week_start" json:"week_start"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// DemoEvents seeds the store with the sample events on startup.
	DemoEvents bool `yaml:"demo_events" json:"demo_events"`

	// Seed is an optional ICS file path or http(s) URL loaded on startup.
	Seed string `yaml:"seed" json:"seed"`

	Publish   PublishConfig   `yaml:"publish" json:"publish"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:     defaultListen,
		Timezone:   defaultTimezone,
		WeekStart:  "sunday",
		LogLevel:   defaultLogLevel,
		DemoEvents: true,
		RateLimit: RateLimitConfig{
			Requests: 120,
			Window:   time.Minute,
		},
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	c.WeekStart = strings.ToLower(strings.TrimSpace(c.WeekStart))
	switch c.WeekStart {
	case "monday", "sunday":
	case "":
		c.WeekStart = "sunday"
	default:
		appLog.Warn("unknown week_start, using sunday", "week_start", c.WeekStart)
		c.WeekStart = "sunday"
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Publish.Path != "" && c.Publish.Cron == "" {
		c.Publish.Cron = "*/5 * * * *"
	}
	if c.RateLimit.Requests > 0 && c.RateLimit.Window <= 0 {
		c.RateLimit.Window = time.Minute
	}
	if c.BasicAuth != nil && c.BasicAuth.Username == "" && c.BasicAuth.Password == "" {
		c.BasicAuth = nil
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// FirstWeekday maps WeekStart to a time.Weekday.
func (c *Config) FirstWeekday() time.Weekday {
	if c.WeekStart == "monday" {
		return time.Monday
	}
	return time.Sunday
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (parent directory created as needed) and returned.
//   - Otherwise the YAML is unmarshalled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Return cfg anyway so the caller can decide.
				return cfg, err
			}
			appLog.Info("default config written", "path", path)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, data, 0o600, 0o700)
}

// Save is a convenience wrapper for the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
