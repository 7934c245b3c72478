package geospatial

import "math"

// BoundingBox returns a bounding box around a point with the given radius in
// meters. The result is clamped to the WGS 84 range; near the poles the
// longitude span is capped at the full circle.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	latDelta := radiusMeters / 111320.0
	lonDelta := 180.0
	if cos := math.Cos(toRad(lat)); cos > 0 {
		lonDelta = math.Min(radiusMeters/(111320.0*cos), 180)
	}

	return math.Max(lat-latDelta, -90), math.Max(lon-lonDelta, -180),
		math.Min(lat+latDelta, 90), math.Min(lon+lonDelta, 180)
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
