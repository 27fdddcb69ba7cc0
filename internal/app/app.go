// Package app builds the tracker's components from configuration.
package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/unklstewy/ads-reckoner/internal/enrich"
	"github.com/unklstewy/ads-reckoner/internal/report"
	"github.com/unklstewy/ads-reckoner/internal/scheduler"
	"github.com/unklstewy/ads-reckoner/pkg/adsb"
	"github.com/unklstewy/ads-reckoner/pkg/airports"
	"github.com/unklstewy/ads-reckoner/pkg/config"
	"github.com/unklstewy/ads-reckoner/pkg/opensky"
	"github.com/unklstewy/ads-reckoner/pkg/tracking"
)

// NewFeed creates the raw feed selected by cfg.Type.
func NewFeed(cfg config.FeedConfig) (adsb.Feed, error) {
	switch cfg.Type {
	case config.FeedSFTP:
		knownHosts := cfg.SFTP.KnownHostsFile
		if knownHosts == "" && !cfg.SFTP.InsecureIgnoreHostKey {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("locate known_hosts: %w", err)
			}
			knownHosts = filepath.Join(home, ".ssh", "known_hosts")
		}
		return adsb.NewSFTPFeed(adsb.SFTPConfig{
			Host:                  cfg.SFTP.Host,
			Port:                  cfg.SFTP.Port,
			Username:              cfg.SFTP.Username,
			Password:              cfg.SFTP.Password,
			RemotePath:            cfg.SFTP.RemotePath,
			KnownHostsFile:        knownHosts,
			InsecureIgnoreHostKey: cfg.SFTP.InsecureIgnoreHostKey,
		})
	case config.FeedHTTP:
		return adsb.NewAirplanesLiveFeed(cfg.HTTP.BaseURL, cfg.HTTP.Latitude, cfg.HTTP.Longitude, cfg.HTTP.RadiusNM), nil
	case config.FeedFile:
		return adsb.NewFileFeed(cfg.File.Path), nil
	default:
		return nil, fmt.Errorf("unknown feed type %q", cfg.Type)
	}
}

// NewResolver creates the airport resolver. A disabled lookup yields a
// resolver that never calls out.
func NewResolver(cfg config.LookupConfig) *enrich.Resolver {
	if !cfg.Enabled {
		return enrich.Disabled()
	}

	// The resolver paces lookups; the client does not pace again.
	client := opensky.NewClient(opensky.Config{
		BaseURL:           cfg.BaseURL,
		Username:          cfg.Username,
		Password:          cfg.Password,
		RequestsPerSecond: -1,
		Timeout:           cfg.Timeout(),
	})

	return enrich.New(client, enrich.Config{
		Lookback:          cfg.Lookback(),
		Timeout:           cfg.Timeout(),
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
}

// NewAirportSource returns the reference dataset source, or nil when no
// CSV path is configured.
func NewAirportSource(cfg config.AirportsConfig) airports.Source {
	if cfg.CSVPath == "" {
		return nil
	}
	return &airports.FileSource{Path: cfg.CSVPath, Cache: cfg.Cache}
}

// RetryConfig converts feed retry settings. Unset delays keep the adsb
// defaults.
func RetryConfig(cfg config.RetryConfig) adsb.RetryConfig {
	rc := adsb.DefaultRetryConfig()
	rc.MaxRetries = cfg.MaxRetries
	if cfg.InitialDelaySeconds > 0 {
		rc.InitialDelay = time.Duration(cfg.InitialDelaySeconds) * time.Second
	}
	if cfg.MaxDelaySeconds > 0 {
		rc.MaxDelay = time.Duration(cfg.MaxDelaySeconds) * time.Second
	}
	return rc
}

// NewScheduler wires every component for a validated configuration.
// Snapshots are written to out.
func NewScheduler(cfg *config.Config, out io.Writer) (*scheduler.Scheduler, error) {
	updater, err := tracking.NewUpdater(cfg.Updater.Model)
	if err != nil {
		return nil, err
	}

	feed, err := NewFeed(cfg.Feed)
	if err != nil {
		return nil, fmt.Errorf("create feed: %w", err)
	}

	return scheduler.New(scheduler.Config{
		Feed:            feed,
		Resolver:        NewResolver(cfg.Lookup),
		Airports:        NewAirportSource(cfg.Airports),
		Updater:         updater,
		Reporter:        report.New(out, report.Options{MaxRows: cfg.Report.MaxRows}),
		TickInterval:    cfg.Scheduler.TickInterval(),
		RefreshInterval: cfg.Scheduler.RefreshInterval(),
		Retry:           RetryConfig(cfg.Feed.Retry),
		RequireAltitude: cfg.Feed.RequireAltitude,
	})
}
