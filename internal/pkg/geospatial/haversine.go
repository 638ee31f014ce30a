package geospatial

import (
	"math"

	"github.com/samirrijal/groupmap/internal/core/domain"
)

const earthRadiusKm = 6371.0

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * 1000 // meters
}

// NearestKm returns the distance in kilometers from (lat, lon) to the closest
// point with both coordinates set.
func NearestKm(lat, lon float64, points []domain.GeoPoint) (float64, bool) {
	best, found := math.Inf(1), false
	for _, p := range points {
		if !p.Valid() {
			continue
		}
		if d := Haversine(lat, lon, *p.Lat, *p.Lng) / 1000; d < best {
			best, found = d, true
		}
	}
	return best, found
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
