// Package tracking extrapolates aircraft positions between feed polls.
//
// Two dead-reckoning models are provided. Planar is the default: it treats a
// short displacement as flat, converting north/east meters into degree deltas.
// GreatCircle moves along the sphere with the forward azimuth formula and is
// the better choice for long extrapolation intervals.
package tracking

import (
	"fmt"
	"math"

	"github.com/unklstewy/ads-reckoner/pkg/coordinates"
)

// Model names accepted by NewUpdater.
const (
	ModelPlanar      = "planar"
	ModelGreatCircle = "greatcircle"
)

// Updater advances a position by a time quantum assuming constant
// ground speed and track.
type Updater interface {
	// Advance returns the position reached after elapsedSeconds.
	//   - lat, lon: current position in decimal degrees
	//   - groundSpeedKts: ground speed in knots
	//   - trackDeg: track in degrees clockwise from true north
	Advance(lat, lon, groundSpeedKts, trackDeg, elapsedSeconds float64) (newLat, newLon float64)
}

// NewUpdater returns the updater for a model name. An empty name selects Planar.
func NewUpdater(model string) (Updater, error) {
	switch model {
	case "", ModelPlanar:
		return Planar{}, nil
	case ModelGreatCircle:
		return GreatCircle{}, nil
	default:
		return nil, fmt.Errorf("unknown updater model %q", model)
	}
}

// Planar is flat-earth dead reckoning.
//
// Latitude moves by northMeters/111320. Longitude moves by
// eastMeters/(111320*cos(lat)) using the latitude before the update.
// Longitude is not wrapped at the antimeridian, and near the poles cos(lat)
// approaches zero so the longitude delta grows without bound. Both are left
// as-is; callers that extrapolate polar traffic should use GreatCircle.
type Planar struct{}

// Advance implements Updater.
func (Planar) Advance(lat, lon, groundSpeedKts, trackDeg, elapsedSeconds float64) (float64, float64) {
	speedMS := groundSpeedKts * coordinates.KnotsToMetersPerSecond
	displacement := speedMS * elapsedSeconds
	trackRad := trackDeg * coordinates.DegreesToRadians

	north := displacement * math.Cos(trackRad)
	east := displacement * math.Sin(trackRad)

	deltaLat := north / coordinates.MetersPerDegreeLatitude
	deltaLon := east / (coordinates.MetersPerDegreeLatitude * math.Cos(lat*coordinates.DegreesToRadians))

	return lat + deltaLat, lon + deltaLon
}

// GreatCircle moves along a great circle path from the starting point.
// The resulting longitude is normalized to [-180, 180].
type GreatCircle struct{}

// Advance implements Updater.
func (GreatCircle) Advance(lat, lon, groundSpeedKts, trackDeg, elapsedSeconds float64) (float64, float64) {
	// Convert to radians
	latRad := lat * coordinates.DegreesToRadians
	lonRad := lon * coordinates.DegreesToRadians
	trackRad := trackDeg * coordinates.DegreesToRadians

	distanceMeters := groundSpeedKts * coordinates.KnotsToMetersPerSecond * elapsedSeconds

	// Angular distance (distance / Earth radius)
	angularDistance := distanceMeters / (coordinates.EarthRadiusKm * 1000.0)

	// lat2 = asin(sin(lat1)*cos(d) + cos(lat1)*sin(d)*cos(track))
	newLatRad := math.Asin(
		math.Sin(latRad)*math.Cos(angularDistance) +
			math.Cos(latRad)*math.Sin(angularDistance)*math.Cos(trackRad),
	)

	// lon2 = lon1 + atan2(sin(track)*sin(d)*cos(lat1), cos(d)-sin(lat1)*sin(lat2))
	newLonRad := lonRad + math.Atan2(
		math.Sin(trackRad)*math.Sin(angularDistance)*math.Cos(latRad),
		math.Cos(angularDistance)-math.Sin(latRad)*math.Sin(newLatRad),
	)

	newLat := newLatRad * coordinates.RadiansToDegrees
	newLon := coordinates.NormalizeLongitude(newLonRad * coordinates.RadiansToDegrees)

	return newLat, newLon
}
