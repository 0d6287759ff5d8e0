package utils

import "math"

const earthRadiusMeters = 6371000

// CalculateHaversineDistance returns the great-circle distance in meters.
func CalculateHaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// WithinRadius reports whether (lat, lng) lies inside radiusMeters of the center.
func WithinRadius(lat, lng, centerLat, centerLng, radiusMeters float64) (bool, float64) {
	d := CalculateHaversineDistance(lat, lng, centerLat, centerLng)
	return d <= radiusMeters, d
}

func toRadians(deg float64) float64 {
	return deg * (math.Pi / 180.0)
}
