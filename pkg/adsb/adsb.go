package adsb

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// RawAircraft is one aircraft entry as reported by a feed.
// Every field is optional; nil means the feed did not report it.
type RawAircraft struct {
	// Hex is the 24-bit ICAO address (e.g., "3c6444"), trimmed
	Hex string

	// Callsign is the flight number or registration, trimmed
	Callsign string

	// Latitude in decimal degrees
	Latitude *float64

	// Longitude in decimal degrees
	Longitude *float64

	// Altitude in feet (barometric or geometric, whichever was reported)
	Altitude *float64

	// GroundSpeed in knots
	GroundSpeed *float64

	// Track is the ground track in degrees (0 = North, 90 = East)
	Track *float64
}

// HasKinematics reports whether the entry carries everything needed to
// extrapolate it: identifier, position, ground speed and track.
func (a RawAircraft) HasKinematics() bool {
	return a.Hex != "" &&
		a.Latitude != nil &&
		a.Longitude != nil &&
		a.GroundSpeed != nil &&
		a.Track != nil
}

// Feed is the interface that all raw feed providers must implement.
// A feed returns the complete current snapshot on each call.
type Feed interface {
	// Fetch returns every aircraft in the current snapshot.
	// On failure it returns a nil slice and an error, never a partial list.
	Fetch(ctx context.Context) ([]RawAircraft, error)

	// Close releases any connection held by the feed.
	Close() error
}

// aircraftDocument is the JSON snapshot written by dump1090/readsb
// (aircraft.json) or returned by airplanes.live.
type aircraftDocument struct {
	Aircraft []aircraftJSON `json:"aircraft"`
	AC       []aircraftJSON `json:"ac"`
}

// aircraftJSON covers both the legacy dump1090 field names
// (altitude, speed) and the readsb ones (alt_baro, alt_geom, gs).
type aircraftJSON struct {
	Hex    string   `json:"hex"`
	Flight *string  `json:"flight"`
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
	Track  *float64 `json:"track"`

	// Legacy dump1090
	Altitude interface{} `json:"altitude"`
	Speed    *float64    `json:"speed"`

	// readsb / airplanes.live
	AltBaro interface{} `json:"alt_baro"`
	AltGeom interface{} `json:"alt_geom"`
	Gs      *float64    `json:"gs"`
}

// ParseAircraftJSON decodes an aircraft snapshot document.
// Both {"aircraft": [...]} and {"ac": [...]} are accepted.
// A document that is not valid JSON is an error; an empty list is not.
func ParseAircraftJSON(data []byte) ([]RawAircraft, error) {
	var doc aircraftDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse aircraft document: %w", err)
	}

	entries := doc.Aircraft
	if len(entries) == 0 {
		entries = doc.AC
	}

	aircraft := make([]RawAircraft, 0, len(entries))
	for _, e := range entries {
		aircraft = append(aircraft, e.toRaw())
	}
	return aircraft, nil
}

func (e aircraftJSON) toRaw() RawAircraft {
	raw := RawAircraft{
		Hex:       strings.ToLower(strings.TrimSpace(e.Hex)),
		Latitude:  e.Lat,
		Longitude: e.Lon,
		Track:     e.Track,
	}

	if e.Flight != nil {
		raw.Callsign = strings.TrimSpace(*e.Flight)
	}

	// Prefer readsb's gs, fall back to legacy speed
	if e.Gs != nil {
		raw.GroundSpeed = e.Gs
	} else {
		raw.GroundSpeed = e.Speed
	}

	// Altitude - prefer geometric (GPS) over barometric, then legacy
	if alt := parseAltitude(e.AltGeom); alt != nil {
		raw.Altitude = alt
	} else if alt := parseAltitude(e.AltBaro); alt != nil {
		raw.Altitude = alt
	} else {
		raw.Altitude = parseAltitude(e.Altitude)
	}

	return raw
}

// parseAltitude safely extracts altitude from interface{} which can be float64 or string.
// Returns nil if the value is invalid; "ground" is reported as zero.
func parseAltitude(val interface{}) *float64 {
	if val == nil {
		return nil
	}

	switch v := val.(type) {
	case float64:
		return &v
	case string:
		if v == "ground" {
			zero := 0.0
			return &zero
		}
		return nil
	default:
		return nil
	}
}
