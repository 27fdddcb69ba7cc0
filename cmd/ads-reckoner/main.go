package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/unklstewy/ads-reckoner/internal/app"
	"github.com/unklstewy/ads-reckoner/pkg/config"
)

// main polls the configured aircraft feed, enriches each aircraft with its
// departure airport, and prints a dead-reckoned snapshot every tick until
// interrupted.
func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	envPath := flag.String("env", ".env", "Path to .env file with credentials")
	initConfig := flag.Bool("init", false, "Write a default configuration to -config and exit")
	flag.Parse()

	if *initConfig {
		if _, err := os.Stat(*configPath); err == nil {
			log.Fatalf("Refusing to overwrite existing configuration: %s", *configPath)
		}
		if err := config.DefaultConfig().Save(*configPath); err != nil {
			log.Fatalf("Failed to write configuration: %v", err)
		}
		log.Printf("Default configuration written to: %s", *configPath)
		return
	}

	log.Println("===========================================")
	log.Println("  ADS-B Dead-Reckoning Tracker")
	log.Println("===========================================")

	if err := config.LoadDotEnv(*envPath); err != nil {
		log.Fatalf("Failed to load environment: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	log.Printf("Configuration loaded from: %s", *configPath)
	switch cfg.Feed.Type {
	case config.FeedSFTP:
		log.Printf("Feed: sftp://%s@%s:%d%s", cfg.Feed.SFTP.Username, cfg.Feed.SFTP.Host, cfg.Feed.SFTP.Port, cfg.Feed.SFTP.RemotePath)
		if cfg.Feed.SFTP.InsecureIgnoreHostKey {
			log.Printf("    ⚠️  WARNING: SSH host key verification disabled")
		}
	case config.FeedHTTP:
		log.Printf("Feed: %s around %.4f, %.4f (%.0f nm)", cfg.Feed.HTTP.BaseURL, cfg.Feed.HTTP.Latitude, cfg.Feed.HTTP.Longitude, cfg.Feed.HTTP.RadiusNM)
	case config.FeedFile:
		log.Printf("Feed: %s", cfg.Feed.File.Path)
	}
	if cfg.Lookup.Enabled {
		log.Printf("Airport lookup: %s (%.1f req/s, %ds lookback)", cfg.Lookup.BaseURL, cfg.Lookup.RequestsPerSecond, cfg.Lookup.LookbackSeconds)
	} else {
		log.Printf("Airport lookup: disabled")
	}
	log.Printf("Airports reference: %s", cfg.Airports.CSVPath)
	log.Printf("Tick: %ds, refresh: %ds, model: %s",
		cfg.Scheduler.TickSeconds, cfg.Scheduler.RefreshIntervalSeconds, cfg.Updater.Model)

	s, err := app.NewScheduler(cfg, os.Stdout)
	if err != nil {
		log.Fatalf("Failed to initialize tracker: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("\nFetching initial snapshot...")
	if err := s.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Println("Tracking stopped by user.")
			return
		}
		// log.Fatalf skips deferred calls
		stop()
		log.Fatalf("✗ %v", err)
	}

	log.Println("Tracking stopped by user.")
}
