package normalize

import "math"

const earthRadiusMiles = 3958.8

// DistanceMiles returns the great-circle distance between two coordinates,
// rounded to whole miles.
func DistanceMiles(lat1, lon1, lat2, lon2 float64) int {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return int(math.Round(earthRadiusMiles * c))
}
