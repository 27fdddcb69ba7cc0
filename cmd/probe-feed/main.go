package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/unklstewy/ads-reckoner/internal/app"
	"github.com/unklstewy/ads-reckoner/internal/report"
	"github.com/unklstewy/ads-reckoner/internal/state"
	"github.com/unklstewy/ads-reckoner/pkg/config"
	"github.com/unklstewy/ads-reckoner/pkg/coordinates"
	"github.com/unklstewy/ads-reckoner/pkg/tracking"
)

// main is a test program to verify feed and lookup connectivity.
// It fetches one snapshot, builds the table, and shows where each aircraft
// will be after the given number of seconds.
func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	envPath := flag.String("env", ".env", "Path to .env file with credentials")
	ahead := flag.Float64("ahead", 10, "Seconds to extrapolate")
	noLookup := flag.Bool("no-lookup", false, "Skip airport lookups")
	flag.Parse()

	log.Println("ADS-B Feed Probe")
	log.Println("=====================================")

	if err := config.LoadDotEnv(*envPath); err != nil {
		log.Fatalf("Failed to load environment: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *noLookup {
		cfg.Lookup.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	if err := run(cfg, *ahead); err != nil {
		log.Fatalf("✗ %v", err)
	}
}

// run fetches one snapshot and reports the extrapolated table. The feed is
// closed before run returns.
func run(cfg *config.Config, ahead float64) error {
	feed, err := app.NewFeed(cfg.Feed)
	if err != nil {
		return fmt.Errorf("create feed: %w", err)
	}
	defer feed.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	raw, err := feed.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}
	log.Printf("✓ Fetched %d aircraft in %v", len(raw), time.Since(start).Round(time.Millisecond))

	table, err := state.Build(ctx, raw, app.NewResolver(cfg.Lookup), app.NewAirportSource(cfg.Airports),
		state.BuildOptions{RequireAltitude: cfg.Feed.RequireAltitude})
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	updater, err := tracking.NewUpdater(cfg.Updater.Model)
	if err != nil {
		return err
	}

	before := table.Records()
	table.ApplyTick(ahead, updater)
	after := table.Records()

	fmt.Println(report.New(os.Stdout, report.Options{MaxRows: cfg.Report.MaxRows}).Render(table))

	log.Printf("Displacement after %.0fs:", ahead)
	for i := range after {
		moved := coordinates.DistanceMeters(
			coordinates.Geographic{Latitude: before[i].Latitude, Longitude: before[i].Longitude},
			coordinates.Geographic{Latitude: after[i].Latitude, Longitude: after[i].Longitude},
		)
		expected := after[i].GroundSpeed * coordinates.KnotsToMetersPerSecond * ahead
		log.Printf("  %s %-8s %7.0fm (expected %7.0fm)", after[i].ICAO, after[i].Callsign, moved, expected)
	}

	// Range from the query center is only meaningful for the HTTP feed
	if cfg.Feed.Type == config.FeedHTTP {
		center := coordinates.Geographic{Latitude: cfg.Feed.HTTP.Latitude, Longitude: cfg.Feed.HTTP.Longitude}
		log.Printf("Range from %.4f, %.4f:", center.Latitude, center.Longitude)
		for _, rec := range after {
			pos := coordinates.Geographic{Latitude: rec.Latitude, Longitude: rec.Longitude}
			log.Printf("  %s %6.1f nm  %5.1f°", rec.ICAO,
				coordinates.DistanceNauticalMiles(center, pos), coordinates.Bearing(center, pos))
		}
	}

	return nil
}
