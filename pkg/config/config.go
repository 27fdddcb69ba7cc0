package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Feed types accepted in feed.type.
const (
	FeedSFTP = "sftp"
	FeedHTTP = "http"
	FeedFile = "file"
)

// Config represents the complete application configuration.
type Config struct {
	Feed      FeedConfig      `json:"feed"`
	Lookup    LookupConfig    `json:"lookup"`
	Airports  AirportsConfig  `json:"airports"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Updater   UpdaterConfig   `json:"updater"`
	Report    ReportConfig    `json:"report"`
}

// FeedConfig selects and configures the raw aircraft feed.
type FeedConfig struct {
	// Type is the feed transport: "sftp", "http" or "file"
	Type string `json:"type"`

	SFTP SFTPFeedConfig `json:"sftp"`
	HTTP HTTPFeedConfig `json:"http"`
	File FileFeedConfig `json:"file"`

	// Retry controls backoff around each fetch
	Retry RetryConfig `json:"retry"`

	// RequireAltitude drops aircraft that report no altitude
	RequireAltitude bool `json:"require_altitude"`
}

// SFTPFeedConfig reads aircraft.json from a remote receiver over SFTP.
type SFTPFeedConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	RemotePath string `json:"remote_path"`

	// KnownHostsFile verifies the server key (default: ~/.ssh/known_hosts)
	KnownHostsFile string `json:"known_hosts_file"`

	// InsecureIgnoreHostKey skips host key verification. Use only on a trusted LAN.
	InsecureIgnoreHostKey bool `json:"insecure_ignore_host_key"`
}

// HTTPFeedConfig queries airplanes.live around a point.
type HTTPFeedConfig struct {
	BaseURL   string  `json:"base_url"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	RadiusNM  float64 `json:"radius_nm"`
}

// FileFeedConfig reads a local aircraft.json.
type FileFeedConfig struct {
	Path string `json:"path"`
}

// RetryConfig contains retry settings for feed fetches.
type RetryConfig struct {
	// MaxRetries per refresh (0 = single attempt)
	MaxRetries int `json:"max_retries"`

	InitialDelaySeconds int `json:"initial_delay_seconds"`
	MaxDelaySeconds     int `json:"max_delay_seconds"`
}

// LookupConfig configures the OpenSky flight lookup used to infer airports.
type LookupConfig struct {
	Enabled  bool   `json:"enabled"`
	BaseURL  string `json:"base_url"`
	Username string `json:"username"`
	Password string `json:"password"`

	// LookbackSeconds is the flight history window ending now
	LookbackSeconds int `json:"lookback_seconds"`

	// TimeoutSeconds bounds each lookup
	TimeoutSeconds int `json:"timeout_seconds"`

	// RequestsPerSecond paces lookups across the process, within (0, 1]
	RequestsPerSecond float64 `json:"requests_per_second"`
}

// AirportsConfig locates the airport reference CSV.
type AirportsConfig struct {
	CSVPath string `json:"csv_path"`

	// Cache keeps the first load instead of re-reading on every refresh
	Cache bool `json:"cache"`
}

// SchedulerConfig sets loop timing.
type SchedulerConfig struct {
	TickSeconds            int `json:"tick_seconds"`
	RefreshIntervalSeconds int `json:"refresh_interval_seconds"`
}

// UpdaterConfig selects the dead-reckoning model: "planar" or "greatcircle".
type UpdaterConfig struct {
	Model string `json:"model"`
}

// ReportConfig shapes console output.
type ReportConfig struct {
	// MaxRows truncates the snapshot table (0 = all)
	MaxRows int `json:"max_rows"`
}

// Load reads configuration from a JSON file.
// If the file doesn't exist, the default configuration is used.
// Keys absent from the file keep their defaults. Environment
// overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Defaults only
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Override with environment variables
	cfg.applyEnvironmentOverrides()

	return cfg, nil
}

// LoadDotEnv loads KEY=value pairs from a .env file into the process
// environment. Variables already set are not overwritten. A missing file
// is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Save writes the configuration to a JSON file.
func (c *Config) Save(path string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Feed: FeedConfig{
			Type: FeedSFTP,
			SFTP: SFTPFeedConfig{
				Port:       22,
				RemotePath: "/run/dump1090-fa/aircraft.json",
			},
			HTTP: HTTPFeedConfig{
				BaseURL:  "https://api.airplanes.live/v2",
				RadiusNM: 50,
			},
			File: FileFeedConfig{
				Path: "/run/dump1090-fa/aircraft.json",
			},
			Retry: RetryConfig{
				MaxRetries:          0,
				InitialDelaySeconds: 1,
				MaxDelaySeconds:     10,
			},
		},
		Lookup: LookupConfig{
			Enabled:           true,
			BaseURL:           "https://opensky-network.org/api",
			LookbackSeconds:   20000,
			TimeoutSeconds:    10,
			RequestsPerSecond: 1,
		},
		Airports: AirportsConfig{
			CSVPath: "airports.csv",
		},
		Scheduler: SchedulerConfig{
			TickSeconds:            1,
			RefreshIntervalSeconds: 60,
		},
		Updater: UpdaterConfig{
			Model: "planar",
		},
	}
}

// Validate checks that the selected feed is fully configured and that
// timing values are usable.
func (c *Config) Validate() error {
	var problems []string

	switch c.Feed.Type {
	case FeedSFTP:
		if c.Feed.SFTP.Host == "" {
			problems = append(problems, "feed.sftp.host is required")
		}
		if c.Feed.SFTP.Username == "" {
			problems = append(problems, "feed.sftp.username is required")
		}
		if c.Feed.SFTP.RemotePath == "" {
			problems = append(problems, "feed.sftp.remote_path is required")
		}
		if c.Feed.SFTP.Port < 0 || c.Feed.SFTP.Port > 65535 {
			problems = append(problems, fmt.Sprintf("feed.sftp.port %d out of range", c.Feed.SFTP.Port))
		}
	case FeedHTTP:
		if c.Feed.HTTP.BaseURL == "" {
			problems = append(problems, "feed.http.base_url is required")
		}
		if c.Feed.HTTP.RadiusNM <= 0 {
			problems = append(problems, "feed.http.radius_nm must be positive")
		}
		if c.Feed.HTTP.Latitude < -90 || c.Feed.HTTP.Latitude > 90 {
			problems = append(problems, "feed.http.latitude must be within [-90, 90]")
		}
		if c.Feed.HTTP.Longitude < -180 || c.Feed.HTTP.Longitude > 180 {
			problems = append(problems, "feed.http.longitude must be within [-180, 180]")
		}
	case FeedFile:
		if c.Feed.File.Path == "" {
			problems = append(problems, "feed.file.path is required")
		}
	default:
		problems = append(problems, fmt.Sprintf("feed.type %q must be one of sftp, http, file", c.Feed.Type))
	}

	if c.Feed.Retry.MaxRetries < 0 {
		problems = append(problems, "feed.retry.max_retries must not be negative")
	}
	if c.Scheduler.TickSeconds <= 0 {
		problems = append(problems, "scheduler.tick_seconds must be positive")
	}
	if c.Scheduler.RefreshIntervalSeconds <= 0 {
		problems = append(problems, "scheduler.refresh_interval_seconds must be positive")
	}
	if c.Lookup.Enabled && c.Lookup.BaseURL == "" {
		problems = append(problems, "lookup.base_url is required when lookup is enabled")
	}
	// OpenSky allows at most one request per second
	if c.Lookup.Enabled && (c.Lookup.RequestsPerSecond <= 0 || c.Lookup.RequestsPerSecond > 1) {
		problems = append(problems, fmt.Sprintf("lookup.requests_per_second %g must be within (0, 1]", c.Lookup.RequestsPerSecond))
	}
	if c.Report.MaxRows < 0 {
		problems = append(problems, "report.max_rows must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// TickInterval returns the scheduler tick as a duration.
func (c SchedulerConfig) TickInterval() time.Duration {
	return time.Duration(c.TickSeconds) * time.Second
}

// RefreshInterval returns the refresh period as a duration.
func (c SchedulerConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

// Lookback returns the lookup window length.
func (c LookupConfig) Lookback() time.Duration {
	return time.Duration(c.LookbackSeconds) * time.Second
}

// Timeout returns the per-lookup timeout.
func (c LookupConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// applyEnvironmentOverrides applies environment variable overrides.
// Environment variables take precedence over config file values.
func (c *Config) applyEnvironmentOverrides() {
	if feedType := os.Getenv("ADS_RECKONER_FEED_TYPE"); feedType != "" {
		c.Feed.Type = strings.ToLower(feedType)
	}
	if host := os.Getenv("ADS_RECKONER_SFTP_HOST"); host != "" {
		c.Feed.SFTP.Host = host
	}
	if user := os.Getenv("ADS_RECKONER_SFTP_USERNAME"); user != "" {
		c.Feed.SFTP.Username = user
	}
	if password := os.Getenv("ADS_RECKONER_SFTP_PASSWORD"); password != "" {
		c.Feed.SFTP.Password = password
	}
	if remotePath := os.Getenv("ADS_RECKONER_SFTP_REMOTE_PATH"); remotePath != "" {
		c.Feed.SFTP.RemotePath = remotePath
	}
	if csvPath := os.Getenv("ADS_RECKONER_AIRPORTS_CSV"); csvPath != "" {
		c.Airports.CSVPath = csvPath
	}
	if user := os.Getenv("ADS_RECKONER_OPENSKY_USERNAME"); user != "" {
		c.Lookup.Username = user
	}
	if password := os.Getenv("ADS_RECKONER_OPENSKY_PASSWORD"); password != "" {
		c.Lookup.Password = password
	}
}
