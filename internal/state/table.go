// Package state holds the in-memory table of tracked aircraft.
//
// A Table is built wholesale from one feed snapshot and then only its
// positions change, one tick at a time, until the next snapshot replaces it.
package state

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"github.com/unklstewy/ads-reckoner/pkg/adsb"
	"github.com/unklstewy/ads-reckoner/pkg/airports"
	"github.com/unklstewy/ads-reckoner/pkg/tracking"
)

// ErrEmpty is returned by Build when no aircraft in the snapshot carries
// complete kinematics. It is a normal outcome, not a fault.
var ErrEmpty = errors.New("no aircraft with valid kinematics")

// Record is one tracked aircraft.
type Record struct {
	// ICAO is the 24-bit address in lowercase hex; unique within a table
	ICAO string

	// Callsign as reported by the feed (may be empty)
	Callsign string

	// Latitude and Longitude in decimal degrees, extrapolated each tick
	Latitude  float64
	Longitude float64

	// Altitude in feet as last reported; not extrapolated
	Altitude *float64

	// GroundSpeed in knots
	GroundSpeed float64

	// Track in degrees clockwise from true north
	Track float64

	// Airport is the inferred departure airport (empty if unknown)
	Airport string

	// City and Country of Airport (empty if unknown)
	City    string
	Country string
}

// AirportResolver infers the departure airport of an aircraft.
// It reports false when nothing could be inferred.
type AirportResolver interface {
	Resolve(ctx context.Context, icao string) (string, bool)
}

// BuildOptions tunes snapshot validation.
type BuildOptions struct {
	// RequireAltitude also drops aircraft without a reported altitude
	RequireAltitude bool

	// Now stamps the table (default: time.Now)
	Now func() time.Time
}

// Table maps ICAO address to record.
type Table struct {
	records map[string]*Record
	builtAt time.Time
}

// Build creates a table from a raw feed snapshot.
//
// Entries without identifier, position, ground speed or track are dropped.
// Each surviving aircraft is resolved exactly once, then joined against the
// airport directory for city and country. A resolver miss or a directory
// failure leaves those fields empty without dropping the aircraft. When the
// same identifier appears twice the first entry wins.
//
// Returns ErrEmpty if nothing survives validation, or the context error if
// ctx is cancelled while enrichment is running.
func Build(ctx context.Context, raw []adsb.RawAircraft, resolver AirportResolver, ref airports.Source, opts BuildOptions) (*Table, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	t := &Table{records: make(map[string]*Record)}
	order := make([]string, 0, len(raw))

	for _, ac := range raw {
		if !ac.HasKinematics() {
			continue
		}
		if opts.RequireAltitude && ac.Altitude == nil {
			continue
		}
		if _, dup := t.records[ac.Hex]; dup {
			continue
		}

		t.records[ac.Hex] = &Record{
			ICAO:        ac.Hex,
			Callsign:    ac.Callsign,
			Latitude:    *ac.Latitude,
			Longitude:   *ac.Longitude,
			Altitude:    ac.Altitude,
			GroundSpeed: *ac.GroundSpeed,
			Track:       *ac.Track,
		}
		order = append(order, ac.Hex)
	}

	if len(t.records) == 0 {
		return nil, ErrEmpty
	}

	resolved := 0
	if resolver != nil {
		for _, icao := range order {
			if airport, ok := resolver.Resolve(ctx, icao); ok {
				t.records[icao].Airport = airport
				resolved++
			}
		}
	}

	// Enrichment results from a cancelled build are partial
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	joined := 0
	if ref != nil && resolved > 0 {
		dir, err := ref.Directory(ctx)
		if err != nil {
			log.Printf("✗ Airport reference unavailable, city/country left blank: %v", err)
		} else {
			for _, rec := range t.records {
				if rec.Airport == "" {
					continue
				}
				if a, ok := dir.Lookup(rec.Airport); ok {
					rec.City = a.City
					rec.Country = a.Country
					joined++
				}
			}
		}
	}

	log.Printf("  ✓ Table built: %d of %d aircraft valid, %d airports inferred, %d located",
		len(t.records), len(raw), resolved, joined)

	t.builtAt = now().UTC()
	return t, nil
}

// ApplyTick advances every record by elapsedSeconds using updater.
// Only latitude and longitude change.
func (t *Table) ApplyTick(elapsedSeconds float64, updater tracking.Updater) {
	if t == nil {
		return
	}
	for _, rec := range t.records {
		rec.Latitude, rec.Longitude = updater.Advance(
			rec.Latitude, rec.Longitude, rec.GroundSpeed, rec.Track, elapsedSeconds,
		)
	}
}

// Len returns the number of tracked aircraft.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.records)
}

// Get returns a copy of the record for an ICAO address.
func (t *Table) Get(icao string) (Record, bool) {
	if t == nil {
		return Record{}, false
	}
	rec, ok := t.records[icao]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Records returns copies of all records ordered by ICAO address.
func (t *Table) Records() []Record {
	if t == nil {
		return nil
	}
	out := make([]Record, 0, len(t.records))
	for _, rec := range t.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ICAO < out[j].ICAO })
	return out
}

// BuiltAt returns when the table was built (UTC).
func (t *Table) BuiltAt() time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.builtAt
}
