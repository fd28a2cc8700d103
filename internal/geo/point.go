// Package geo provides geolocation utilities: coordinate validation and
// great-circle distance computation on the sphere.
package geo

import (
	"errors"
	"math"
)

// EarthRadiusMeters is the mean Earth radius used for spherical distance math.
const EarthRadiusMeters = 6371000.0

// Coordinate bounds in degrees.
const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0
)

// Validation errors for coordinates.
var (
	ErrLatitudeOutOfRange  = errors.New("latitude must be between -90 and 90")
	ErrLongitudeOutOfRange = errors.New("longitude must be between -180 and 180")
)

// Point represents a geographic coordinate with latitude and longitude.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks that the point's coordinates are within valid ranges.
func (p Point) Validate() error {
	if p.Lat < MinLatitude || p.Lat > MaxLatitude {
		return ErrLatitudeOutOfRange
	}
	if p.Lng < MinLongitude || p.Lng > MaxLongitude {
		return ErrLongitudeOutOfRange
	}
	return nil
}

// DistanceMeters returns the great-circle distance in meters between p and
// other, computed with the haversine formula on a sphere of mean Earth radius.
func (p Point) DistanceMeters(other Point) float64 {
	lat1 := p.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - p.Lat) * math.Pi / 180
	dLng := (other.Lng - p.Lng) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	a := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng

	return EarthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
