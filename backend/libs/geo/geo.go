// Package geo holds the great-circle helpers used by proximity queries.
package geo

import "math"

const (
	// EarthRadiusKm is the mean earth radius used by Haversine.
	EarthRadiusKm = 6371.0
	// KmPerDegree is the coarse km-per-degree factor used for bounding boxes. It is applied to
	// longitude as well, without the cos(latitude) correction.
	KmPerDegree = 111.0

	radiansPerDegree = math.Pi / 180.0
)

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// Valid reports whether the point lies inside [-90,90] x [-180,180].
func (p Point) Valid() bool {
	return ValidLatitude(p.Lat) && ValidLongitude(p.Lon)
}

// ValidLatitude reports whether lat is a finite value in [-90, 90].
func ValidLatitude(lat float64) bool {
	return !math.IsNaN(lat) && lat >= -90 && lat <= 90
}

// ValidLongitude reports whether lon is a finite value in [-180, 180].
func ValidLongitude(lon float64) bool {
	return !math.IsNaN(lon) && lon >= -180 && lon <= 180
}

// Bounds is an inclusive latitude/longitude rectangle.
type Bounds struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Contains reports whether p lies inside b, edges included.
func (b Bounds) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// DegreesForKm converts a distance to the coarse degree delta used by BoundingBox.
func DegreesForKm(km float64) float64 {
	return km / KmPerDegree
}

// BoundingBox returns the square prefilter around origin for radiusKm. The same delta is used
// for both axes and nothing is clamped or wrapped at the poles or the antimeridian.
func BoundingBox(origin Point, radiusKm float64) Bounds {
	delta := DegreesForKm(radiusKm)
	return Bounds{
		MinLat: origin.Lat - delta,
		MaxLat: origin.Lat + delta,
		MinLon: origin.Lon - delta,
		MaxLon: origin.Lon + delta,
	}
}

// DistanceKm returns the Haversine great-circle distance between a and b in kilometers.
func DistanceKm(a, b Point) float64 {
	lat1 := a.Lat * radiansPerDegree
	lat2 := b.Lat * radiansPerDegree
	dLat := (b.Lat - a.Lat) * radiansPerDegree
	dLon := (b.Lon - a.Lon) * radiansPerDegree

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)

	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}
