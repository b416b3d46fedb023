// Package geo provides great-circle distance math and an in-memory spatial
// index over longitude/latitude pairs.
package geo

import "math"

// EarthRadiusMeters is the mean earth radius used for spherical distance.
const EarthRadiusMeters = 6371000.0

// Distance returns the great-circle distance in meters between two
// longitude/latitude pairs, using the haversine formula.
func Distance(lng1, lat1, lng2, lat2 float64) float64 {
	const deg = math.Pi / 180

	dLat := (lat2 - lat1) * deg
	dLng := (lng2 - lng1) * deg

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*deg)*math.Cos(lat2*deg)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}
