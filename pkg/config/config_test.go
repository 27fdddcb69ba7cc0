package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every override so a developer's shell cannot leak into tests.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ADS_RECKONER_FEED_TYPE",
		"ADS_RECKONER_SFTP_HOST",
		"ADS_RECKONER_SFTP_USERNAME",
		"ADS_RECKONER_SFTP_PASSWORD",
		"ADS_RECKONER_SFTP_REMOTE_PATH",
		"ADS_RECKONER_AIRPORTS_CSV",
		"ADS_RECKONER_OPENSKY_USERNAME",
		"ADS_RECKONER_OPENSKY_PASSWORD",
	} {
		t.Setenv(key, "")
	}
}

// TestDefaultConfig verifies that DefaultConfig returns valid defaults.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Feed defaults
	if cfg.Feed.Type != FeedSFTP {
		t.Errorf("Expected sftp feed, got %s", cfg.Feed.Type)
	}
	if cfg.Feed.SFTP.Port != 22 {
		t.Errorf("Expected SFTP port 22, got %d", cfg.Feed.SFTP.Port)
	}
	if cfg.Feed.SFTP.RemotePath != "/run/dump1090-fa/aircraft.json" {
		t.Errorf("Unexpected remote path %s", cfg.Feed.SFTP.RemotePath)
	}
	if cfg.Feed.Retry.MaxRetries != 0 {
		t.Errorf("Expected single-attempt fetches, got %d retries", cfg.Feed.Retry.MaxRetries)
	}
	if cfg.Feed.RequireAltitude {
		t.Error("Expected altitude not required by default")
	}

	// Lookup defaults
	if !cfg.Lookup.Enabled {
		t.Error("Expected lookup enabled by default")
	}
	if cfg.Lookup.Lookback() != 20000*time.Second {
		t.Errorf("Expected 20000s lookback, got %v", cfg.Lookup.Lookback())
	}
	if cfg.Lookup.Timeout() != 10*time.Second {
		t.Errorf("Expected 10s timeout, got %v", cfg.Lookup.Timeout())
	}
	if cfg.Lookup.RequestsPerSecond != 1 {
		t.Errorf("Expected 1 lookup/second, got %v", cfg.Lookup.RequestsPerSecond)
	}

	// Scheduler defaults
	if cfg.Scheduler.TickInterval() != time.Second {
		t.Errorf("Expected 1s tick, got %v", cfg.Scheduler.TickInterval())
	}
	if cfg.Scheduler.RefreshInterval() != time.Minute {
		t.Errorf("Expected 60s refresh, got %v", cfg.Scheduler.RefreshInterval())
	}

	if cfg.Updater.Model != "planar" {
		t.Errorf("Expected planar updater, got %s", cfg.Updater.Model)
	}
	if cfg.Report.MaxRows != 0 {
		t.Errorf("Expected unlimited rows, got %d", cfg.Report.MaxRows)
	}
}

// TestLoadNonExistentFile verifies that Load returns defaults for a missing file.
func TestLoadNonExistentFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Expected no error for missing file, got: %v", err)
	}
	if cfg.Scheduler.RefreshIntervalSeconds != 60 {
		t.Errorf("Expected defaults, got refresh %d", cfg.Scheduler.RefreshIntervalSeconds)
	}
}

// TestLoadValidFile tests loading a partial configuration file.
func TestLoadValidFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"feed": {
			"type": "http",
			"http": {"latitude": 40.4, "longitude": -3.7, "radius_nm": 100},
			"require_altitude": true
		},
		"scheduler": {"refresh_interval_seconds": 30},
		"report": {"max_rows": 25}
	}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Feed.Type != FeedHTTP {
		t.Errorf("Expected http feed, got %s", cfg.Feed.Type)
	}
	if cfg.Feed.HTTP.Latitude != 40.4 || cfg.Feed.HTTP.RadiusNM != 100 {
		t.Errorf("Unexpected http settings %+v", cfg.Feed.HTTP)
	}
	if !cfg.Feed.RequireAltitude {
		t.Error("Expected require_altitude true")
	}
	if cfg.Scheduler.RefreshIntervalSeconds != 30 {
		t.Errorf("Expected refresh 30, got %d", cfg.Scheduler.RefreshIntervalSeconds)
	}
	if cfg.Report.MaxRows != 25 {
		t.Errorf("Expected max rows 25, got %d", cfg.Report.MaxRows)
	}

	// Absent keys keep defaults
	if cfg.Feed.HTTP.BaseURL != "https://api.airplanes.live/v2" {
		t.Errorf("Expected default base URL, got %s", cfg.Feed.HTTP.BaseURL)
	}
	if cfg.Scheduler.TickSeconds != 1 {
		t.Errorf("Expected default tick, got %d", cfg.Scheduler.TickSeconds)
	}
	if cfg.Lookup.LookbackSeconds != 20000 {
		t.Errorf("Expected default lookback, got %d", cfg.Lookup.LookbackSeconds)
	}
}

// TestLoadInvalidJSON tests that a malformed file is an error.
func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"feed": `), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

// TestEnvironmentOverrides tests that environment variables override config values.
func TestEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ADS_RECKONER_FEED_TYPE", "FILE")
	t.Setenv("ADS_RECKONER_SFTP_HOST", "piaware.local")
	t.Setenv("ADS_RECKONER_SFTP_USERNAME", "pi")
	t.Setenv("ADS_RECKONER_SFTP_PASSWORD", "raspberry")
	t.Setenv("ADS_RECKONER_SFTP_REMOTE_PATH", "/tmp/aircraft.json")
	t.Setenv("ADS_RECKONER_AIRPORTS_CSV", "/data/airports.csv")
	t.Setenv("ADS_RECKONER_OPENSKY_USERNAME", "alice")
	t.Setenv("ADS_RECKONER_OPENSKY_PASSWORD", "secret")

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"feed": {"sftp": {"host": "from-file"}}}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	checks := map[string][2]string{
		"feed type":     {cfg.Feed.Type, "file"},
		"sftp host":     {cfg.Feed.SFTP.Host, "piaware.local"},
		"sftp username": {cfg.Feed.SFTP.Username, "pi"},
		"sftp password": {cfg.Feed.SFTP.Password, "raspberry"},
		"sftp path":     {cfg.Feed.SFTP.RemotePath, "/tmp/aircraft.json"},
		"airports csv":  {cfg.Airports.CSVPath, "/data/airports.csv"},
		"opensky user":  {cfg.Lookup.Username, "alice"},
		"opensky pass":  {cfg.Lookup.Password, "secret"},
	}
	for name, c := range checks {
		if c[0] != c[1] {
			t.Errorf("%s: expected %q, got %q", name, c[1], c[0])
		}
	}
}

// TestEnvironmentOverridesWithoutFile tests overrides on top of defaults.
func TestEnvironmentOverridesWithoutFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("ADS_RECKONER_SFTP_HOST", "10.0.0.5")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cfg.Feed.SFTP.Host != "10.0.0.5" {
		t.Errorf("Expected host from environment, got %q", cfg.Feed.SFTP.Host)
	}
}

// TestLoadDotEnv tests .env loading.
func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	body := "ADS_RECKONER_TEST_DOTENV=from-file\nADS_RECKONER_TEST_KEEP=from-file\n"
	if err := os.WriteFile(envPath, []byte(body), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("ADS_RECKONER_TEST_KEEP", "from-shell")
	t.Cleanup(func() { os.Unsetenv("ADS_RECKONER_TEST_DOTENV") })

	if err := LoadDotEnv(envPath); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got := os.Getenv("ADS_RECKONER_TEST_DOTENV"); got != "from-file" {
		t.Errorf("Expected value from .env, got %q", got)
	}
	if got := os.Getenv("ADS_RECKONER_TEST_KEEP"); got != "from-shell" {
		t.Errorf("Expected shell value to win, got %q", got)
	}

	t.Run("Missing file is ignored", func(t *testing.T) {
		if err := LoadDotEnv(filepath.Join(dir, "nope.env")); err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
	})
}

// TestSave tests writing and re-reading a configuration.
func TestSave(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := DefaultConfig()
	cfg.Feed.Type = FeedFile
	cfg.Feed.File.Path = "/var/run/readsb/aircraft.json"
	cfg.Updater.Model = "greatcircle"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Expected valid JSON, got: %v", err)
	}
	for _, key := range []string{"feed", "lookup", "airports", "scheduler", "updater", "report"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("Expected section %s in saved file", key)
		}
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Feed.File.Path != cfg.Feed.File.Path || loaded.Updater.Model != "greatcircle" {
		t.Errorf("Expected round trip, got %+v", loaded)
	}

	t.Run("Saved defaults validate once the feed is filled in", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		if err := DefaultConfig().Save(path); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		loaded, err := Load(path)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		loaded.Feed.SFTP.Host = "piaware.local"
		loaded.Feed.SFTP.Username = "pi"
		if err := loaded.Validate(); err != nil {
			t.Errorf("Expected valid config, got: %v", err)
		}
	})
}

// TestValidate tests configuration validation.
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "Complete SFTP",
			mutate: func(c *Config) { c.Feed.SFTP.Host = "pi"; c.Feed.SFTP.Username = "pi" },
		},
		{
			name:    "SFTP without host",
			mutate:  func(c *Config) { c.Feed.SFTP.Username = "pi" },
			wantErr: "feed.sftp.host",
		},
		{
			name:    "SFTP port out of range",
			mutate:  func(c *Config) { c.Feed.SFTP.Host = "pi"; c.Feed.SFTP.Username = "pi"; c.Feed.SFTP.Port = 70000 },
			wantErr: "feed.sftp.port",
		},
		{
			name:   "HTTP defaults",
			mutate: func(c *Config) { c.Feed.Type = FeedHTTP },
		},
		{
			name:    "HTTP bad latitude",
			mutate:  func(c *Config) { c.Feed.Type = FeedHTTP; c.Feed.HTTP.Latitude = 91 },
			wantErr: "feed.http.latitude",
		},
		{
			name:    "File without path",
			mutate:  func(c *Config) { c.Feed.Type = FeedFile; c.Feed.File.Path = "" },
			wantErr: "feed.file.path",
		},
		{
			name:    "Unknown feed type",
			mutate:  func(c *Config) { c.Feed.Type = "carrier-pigeon" },
			wantErr: "feed.type",
		},
		{
			name:    "Zero tick",
			mutate:  func(c *Config) { c.Feed.Type = FeedFile; c.Scheduler.TickSeconds = 0 },
			wantErr: "scheduler.tick_seconds",
		},
		{
			name:    "Negative refresh",
			mutate:  func(c *Config) { c.Feed.Type = FeedFile; c.Scheduler.RefreshIntervalSeconds = -1 },
			wantErr: "scheduler.refresh_interval_seconds",
		},
		{
			name:    "Lookup without URL",
			mutate:  func(c *Config) { c.Feed.Type = FeedFile; c.Lookup.BaseURL = "" },
			wantErr: "lookup.base_url",
		},
		{
			name:   "Disabled lookup without URL",
			mutate: func(c *Config) { c.Feed.Type = FeedFile; c.Lookup.Enabled = false; c.Lookup.BaseURL = "" },
		},
		{
			name:    "Lookup faster than one per second",
			mutate:  func(c *Config) { c.Feed.Type = FeedFile; c.Lookup.RequestsPerSecond = 5 },
			wantErr: "lookup.requests_per_second",
		},
		{
			name:    "Negative lookup rate",
			mutate:  func(c *Config) { c.Feed.Type = FeedFile; c.Lookup.RequestsPerSecond = -1 },
			wantErr: "lookup.requests_per_second",
		},
		{
			name:    "Zero lookup rate",
			mutate:  func(c *Config) { c.Feed.Type = FeedFile; c.Lookup.RequestsPerSecond = 0 },
			wantErr: "lookup.requests_per_second",
		},
		{
			name:   "Slower lookup rate",
			mutate: func(c *Config) { c.Feed.Type = FeedFile; c.Lookup.RequestsPerSecond = 0.5 },
		},
		{
			name:   "Disabled lookup ignores rate",
			mutate: func(c *Config) { c.Feed.Type = FeedFile; c.Lookup.Enabled = false; c.Lookup.RequestsPerSecond = 5 },
		},
		{
			name:    "Negative max rows",
			mutate:  func(c *Config) { c.Feed.Type = FeedFile; c.Report.MaxRows = -5 },
			wantErr: "report.max_rows",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected valid config, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error mentioning %s", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %s, got: %v", tt.wantErr, err)
			}
		})
	}
}
