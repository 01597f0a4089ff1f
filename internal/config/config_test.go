package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "meetcal.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.MaxVisibleOrDefault() != 4 || cfg.DefaultView != "week" || cfg.FirstWeekday() != time.Monday {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("unexpected perms: %v", info.Mode().Perm())
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload returned error: %v", err)
	}
	if again.Listen != cfg.Listen || again.RefreshCron != cfg.RefreshCron {
		t.Fatalf("reloaded config differs: %+v", again)
	}
}

func TestLoadNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meetcal.yaml")
	data := []byte(`
week_start: Sunday
default_view: MONTH
max_visible: 0
timezone: Europe/Berlin
feeds:
  - name: interviews
    url: ./interviews.ics
  - url: https://example.com/coaching.ics
log:
  level: debug
database: ~/meetcal.db
rate_limit:
  per_minute: 30
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.FirstWeekday() != time.Sunday || cfg.DefaultView != "month" {
		t.Fatalf("unexpected week/view: %s %s", cfg.WeekStart, cfg.DefaultView)
	}
	if cfg.MaxVisibleOrDefault() != 0 {
		t.Fatalf("explicit zero max_visible lost: %d", cfg.MaxVisibleOrDefault())
	}
	if cfg.Feeds[0].ID != "interviews" || cfg.Feeds[1].ID != "feed-2" {
		t.Fatalf("unexpected feed IDs: %q %q", cfg.Feeds[0].ID, cfg.Feeds[1].ID)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "console" {
		t.Fatalf("unexpected log config: %+v", cfg.Log)
	}
	if cfg.Database != "~/meetcal.db" {
		t.Fatalf("unexpected database: %q", cfg.Database)
	}
	if cfg.RateLimit == nil || cfg.RateLimit.PerMinute != 30 || cfg.RateLimit.Burst != 1 {
		t.Fatalf("unexpected rate limit: %+v", cfg.RateLimit)
	}
	if cfg.RefreshCron != defaultRefresh || cfg.Listen != defaultListen {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestMaxVisibleNegative(t *testing.T) {
	n := -3
	cfg := &Config{MaxVisible: &n}
	if cfg.MaxVisibleOrDefault() != 0 {
		t.Fatalf("expected 0, got %d", cfg.MaxVisibleOrDefault())
	}
	cfg.Normalize()
	if *cfg.MaxVisible != 0 {
		t.Fatalf("expected normalized 0, got %d", *cfg.MaxVisible)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meetcal.yaml")
	if err := os.WriteFile(path, []byte("feeds: [unterminated"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	loc, err := cfg.Location()
	if err != nil || loc != time.Local {
		t.Fatalf("empty timezone: %v %v", loc, err)
	}

	cfg.Timezone = "Not/AZone"
	loc, err = cfg.Location()
	if err == nil || loc != time.Local {
		t.Fatalf("expected error and local fallback, got %v %v", loc, err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meetcal.yaml")
	cfg := DefaultConfig()
	cfg.Feeds = append(cfg.Feeds, FeedConfig{ID: "x", URL: "file:///tmp/x.ics"})
	cfg.BasicAuth = &BasicAuthConfig{Username: "u", Password: "p"}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(got.Feeds) != 1 || got.Feeds[0].URL != "file:///tmp/x.ics" {
		t.Fatalf("unexpected feeds: %+v", got.Feeds)
	}
	if got.BasicAuth == nil || got.BasicAuth.Username != "u" {
		t.Fatalf("basic auth lost: %+v", got.BasicAuth)
	}
}
