// Package scheduler drives the refresh and tick loop.
//
// One goroutine does everything: every tick it advances each aircraft by
// dead reckoning and reports the table; once per refresh interval it first
// replaces the table with a freshly fetched and enriched snapshot. A failed
// refresh keeps the previous table so positions keep extrapolating.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/unklstewy/ads-reckoner/internal/state"
	"github.com/unklstewy/ads-reckoner/pkg/adsb"
	"github.com/unklstewy/ads-reckoner/pkg/airports"
	"github.com/unklstewy/ads-reckoner/pkg/tracking"
)

const (
	// DefaultTickInterval is the extrapolation quantum
	DefaultTickInterval = time.Second

	// DefaultRefreshInterval is the time between feed refresh attempts
	DefaultRefreshInterval = 60 * time.Second
)

// ErrNoInitialData is returned by Run when the first refresh produces no
// table. Nothing is ticked or reported in that case.
var ErrNoInitialData = errors.New("initial refresh produced no aircraft")

// State is the scheduler lifecycle phase.
type State int

const (
	Initializing State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Clock abstracts time for the loop.
type Clock interface {
	Now() time.Time

	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock uses the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Reporter observes the table after each tick.
type Reporter interface {
	Report(t *state.Table)
}

// Config wires the scheduler's collaborators and timing.
type Config struct {
	Feed     adsb.Feed
	Resolver state.AirportResolver
	Airports airports.Source
	Updater  tracking.Updater
	Reporter Reporter

	TickInterval    time.Duration
	RefreshInterval time.Duration

	// Retry wraps each feed fetch (zero value = single attempt)
	Retry adsb.RetryConfig

	// RequireAltitude drops aircraft without a reported altitude
	RequireAltitude bool

	// Clock defaults to RealClock
	Clock Clock
}

// Stats counts loop activity.
type Stats struct {
	RefreshAttempts  int
	RefreshSuccesses int
	RefreshFailures  int
	Ticks            int
}

// Scheduler owns the current table and the loop around it.
type Scheduler struct {
	cfg Config

	state       State
	table       *state.Table
	lastRefresh time.Time
	stats       Stats
}

// New creates a scheduler. Feed, Updater and Reporter are required.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Feed == nil {
		return nil, errors.New("scheduler: feed is required")
	}
	if cfg.Updater == nil {
		return nil, errors.New("scheduler: updater is required")
	}
	if cfg.Reporter == nil {
		return nil, errors.New("scheduler: reporter is required")
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}

	return &Scheduler{cfg: cfg, state: Initializing}, nil
}

// Run performs the initial refresh and then loops until ctx is cancelled.
//
// Returns an error wrapping ErrNoInitialData if the initial refresh fails
// or finds no valid aircraft. Returns nil after a cancellation once the
// loop is running. Collaborators are closed before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.stop()

	if err := s.refresh(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrNoInitialData, err)
	}
	s.state = Running
	log.Printf("✓ Tracking %d aircraft from snapshot %s (tick %v, refresh every %v)",
		s.table.Len(), s.table.BuiltAt().Format(time.RFC3339), s.cfg.TickInterval, s.cfg.RefreshInterval)

	elapsed := s.cfg.TickInterval.Seconds()
	for {
		if ctx.Err() != nil {
			return nil
		}

		if s.cfg.Clock.Now().Sub(s.lastRefresh) >= s.cfg.RefreshInterval {
			if err := s.refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Printf("✗ Refresh failed, keeping %d aircraft: %v", s.table.Len(), err)
			} else {
				log.Printf("✓ Refreshed %d aircraft from snapshot %s",
					s.table.Len(), s.table.BuiltAt().Format(time.RFC3339))
			}
		}

		s.table.ApplyTick(elapsed, s.cfg.Updater)
		s.stats.Ticks++
		s.cfg.Reporter.Report(s.table)

		if err := s.cfg.Clock.Sleep(ctx, s.cfg.TickInterval); err != nil {
			return nil
		}
	}
}

// refresh replaces the table from a new feed snapshot. The table is left
// untouched on failure. lastRefresh is stamped when the attempt completes,
// success or not, so time spent in paced lookups does not count toward the
// next interval.
func (s *Scheduler) refresh(ctx context.Context) error {
	s.stats.RefreshAttempts++

	table, err := s.fetchAndBuild(ctx)
	s.lastRefresh = s.cfg.Clock.Now()
	if err != nil {
		s.stats.RefreshFailures++
		return err
	}

	s.table = table
	s.stats.RefreshSuccesses++
	return nil
}

func (s *Scheduler) fetchAndBuild(ctx context.Context) (*state.Table, error) {
	raw, err := adsb.RetryWithBackoffResult(ctx, s.cfg.Retry, func() ([]adsb.RawAircraft, error) {
		return s.cfg.Feed.Fetch(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}

	return state.Build(ctx, raw, s.cfg.Resolver, s.cfg.Airports, state.BuildOptions{
		RequireAltitude: s.cfg.RequireAltitude,
		Now:             s.cfg.Clock.Now,
	})
}

// stop releases collaborators that hold resources.
func (s *Scheduler) stop() {
	s.state = Stopped

	closers := []interface{}{s.cfg.Feed, s.cfg.Resolver, s.cfg.Airports}
	for _, c := range closers {
		if closer, ok := c.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				log.Printf("✗ Close failed: %v", err)
			}
		}
	}

	log.Printf("Scheduler stopped: %d refreshes (%d ok, %d failed), %d ticks",
		s.stats.RefreshAttempts, s.stats.RefreshSuccesses, s.stats.RefreshFailures, s.stats.Ticks)
}

// State returns the lifecycle phase.
func (s *Scheduler) State() State {
	return s.state
}

// Stats returns loop counters.
func (s *Scheduler) Stats() Stats {
	return s.stats
}

// Table returns the current table (nil before the first successful refresh).
func (s *Scheduler) Table() *state.Table {
	return s.table
}
