package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FeedConfig describes a single meetings feed (an ICS document).
type FeedConfig struct {
	// ID is an internal identifier used for logging and fallback meeting IDs.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// URL is an http(s) URL, a file:// URL or a plain local path.
	URL string `yaml:"url" json:"url"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the HTTP API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// RateLimitConfig throttles mutating HTTP requests per client address.
type RateLimitConfig struct {
	// PerMinute is the sustained request rate. Zero or negative disables
	// limiting.
	PerMinute int `yaml:"per_minute" json:"per_minute"`
	// Burst is how many requests may arrive at once.
	Burst int `yaml:"burst" json:"burst"`
}

// LogConfig controls the global logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" json:"level"`
	// Format is "console" or "json".
	Format string `yaml:"format" json:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone meetings are bucketed in. Empty or
	// unknown values fall back to the machine's local zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart controls which weekday opens a week view:
	//   - "monday" (default)
	//   - "sunday"
	WeekStart string `yaml:"week_start" json:"week_start"`

	// DefaultView is the view mode a fresh navigator starts in: week or month.
	DefaultView string `yaml:"default_view" json:"default_view"`

	// MaxVisible caps the meetings shown inline per day. Zero is allowed and
	// collapses every meeting; a missing key means 4, a negative value 0.
	MaxVisible *int `yaml:"max_visible" json:"max_visible"`

	// RefreshCron is a cron expression (e.g. "*/15 * * * *") for reloading
	// feeds while serving.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// CacheDir holds HTTP cache entries for remote feeds.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Database is an optional SQLite file that journals local transitions
	// and queues their obligations. Empty disables the journal.
	Database string `yaml:"database,omitempty" json:"database,omitempty"`

	// Feeds is the list of meeting sources.
	Feeds []FeedConfig `yaml:"feeds" json:"feeds"`

	Log LogConfig `yaml:"log" json:"log"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	// RateLimit, if non-nil, throttles POST requests per client.
	RateLimit *RateLimitConfig `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
}

const (
	defaultListen     = "127.0.0.1:8080"
	defaultMaxVisible = 4
	defaultRefresh    = "*/15 * * * *"
	defaultCacheDir   = "./cache/feeds"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	maxVisible := defaultMaxVisible
	return &Config{
		Listen:      defaultListen,
		Timezone:    "",
		WeekStart:   "monday",
		DefaultView: "week",
		MaxVisible:  &maxVisible,
		RefreshCron: defaultRefresh,
		CacheDir:    defaultCacheDir,
		Feeds:       []FeedConfig{},
		Log:         LogConfig{Level: "info", Format: "console"},
		BasicAuth:   nil,
		RateLimit:   &RateLimitConfig{PerMinute: 120, Burst: 20},
	}
}

// Normalize fills in missing/zero values with defaults so partially-filled
// configs still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	switch strings.ToLower(c.WeekStart) {
	case "monday", "sunday":
		c.WeekStart = strings.ToLower(c.WeekStart)
	default:
		// Unknown value; fall back to monday to avoid surprising layouts.
		c.WeekStart = "monday"
	}
	switch strings.ToLower(c.DefaultView) {
	case "week", "month":
		c.DefaultView = strings.ToLower(c.DefaultView)
	default:
		c.DefaultView = "week"
	}
	if c.MaxVisible == nil {
		n := defaultMaxVisible
		c.MaxVisible = &n
	} else if *c.MaxVisible < 0 {
		n := 0
		c.MaxVisible = &n
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.Feeds == nil {
		c.Feeds = []FeedConfig{}
	}
	for i := range c.Feeds {
		if c.Feeds[i].ID == "" {
			if c.Feeds[i].Name != "" {
				c.Feeds[i].ID = c.Feeds[i].Name
			} else {
				c.Feeds[i].ID = fmt.Sprintf("feed-%d", i+1)
			}
		}
	}
	if c.RateLimit != nil && c.RateLimit.PerMinute > 0 && c.RateLimit.Burst < 1 {
		c.RateLimit.Burst = 1
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

// MaxVisibleOrDefault returns the configured cap. Negative values count as 0.
func (c *Config) MaxVisibleOrDefault() int {
	if c.MaxVisible == nil {
		return defaultMaxVisible
	}
	return max(*c.MaxVisible, 0)
}

// FirstWeekday maps WeekStart to a time.Weekday.
func (c *Config) FirstWeekday() time.Weekday {
	if strings.EqualFold(c.WeekStart, "sunday") {
		return time.Sunday
	}
	return time.Monday
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (creating the parent directory) and returned.
//   - Otherwise the YAML is unmarshaled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config: path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config: path is empty")
	}
	if cfg == nil {
		return errors.New("config: nil config")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".meetcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
