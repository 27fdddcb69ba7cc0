// Package enrich infers the departure airport of an aircraft from its
// recent flight history.
package enrich

import (
	"context"
	"log"
	"time"

	"github.com/unklstewy/ads-reckoner/pkg/opensky"
	"golang.org/x/time/rate"
)

const (
	// DefaultLookback is how far back the flight history window reaches
	DefaultLookback = 20000 * time.Second

	// DefaultTimeout bounds a single lookup
	DefaultTimeout = 10 * time.Second

	// DefaultRequestsPerSecond paces lookups across the whole process
	DefaultRequestsPerSecond = 1.0
)

// FlightLookup returns the flights recorded for an aircraft in a window.
// *opensky.Client satisfies it.
type FlightLookup interface {
	FlightsByAircraft(ctx context.Context, icao24 string, begin, end time.Time) ([]opensky.Flight, error)
}

// Config tunes a Resolver. Zero values select the defaults.
type Config struct {
	Lookback          time.Duration
	Timeout           time.Duration
	RequestsPerSecond float64 // negative disables pacing

	// Now returns the current time (default: time.Now)
	Now func() time.Time
}

// Resolver maps an ICAO address to the departure airport of its most
// recent flight. Lookups are paced and bounded; failures are swallowed.
type Resolver struct {
	lookup   FlightLookup
	lookback time.Duration
	timeout  time.Duration
	limiter  *rate.Limiter
	now      func() time.Time
}

// New creates a resolver backed by lookup.
func New(lookup FlightLookup, cfg Config) *Resolver {
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	limit := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond < 0 {
		limit = rate.Inf
	}

	return &Resolver{
		lookup:   lookup,
		lookback: cfg.Lookback,
		timeout:  cfg.Timeout,
		limiter:  rate.NewLimiter(limit, 1),
		now:      cfg.Now,
	}
}

// Disabled returns a resolver that never performs a lookup.
func Disabled() *Resolver {
	return &Resolver{}
}

// Enabled reports whether the resolver performs lookups.
func (r *Resolver) Enabled() bool {
	return r != nil && r.lookup != nil
}

// Resolve returns the estimated departure airport of the first flight in
// the lookback window. It returns false when the lookup is disabled, fails,
// times out, or the flight carries no departure estimate.
func (r *Resolver) Resolve(ctx context.Context, icao string) (string, bool) {
	if !r.Enabled() {
		return "", false
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	end := r.now()
	flights, err := r.lookup.FlightsByAircraft(ctx, icao, end.Add(-r.lookback), end)
	if err != nil {
		log.Printf("  ✗ Airport lookup failed for %s: %v", icao, err)
		return "", false
	}
	if len(flights) == 0 {
		return "", false
	}

	return flights[0].DepartureAirport()
}
