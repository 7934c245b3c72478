package geospatial

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// TileSize is the pixel size of one map tile.
const TileSize = 256

// maxMercatorLat is the latitude limit of the spherical Mercator projection.
const maxMercatorLat = 85.0511287798

// Project converts a WGS 84 coordinate to pixel coordinates at the given
// (possibly fractional) zoom level.
func Project(lat, lon, zoom float64) (x, y float64) {
	lat = math.Max(math.Min(lat, maxMercatorLat), -maxMercatorLat)
	m := project.WGS84.ToMercator(orb.Point{lon, lat})

	// web mercator meters span [-πR, πR] on both axes
	half := math.Pi * orb.EarthRadius
	scale := TileSize * math.Exp2(zoom)
	x = (m[0]/half + 1) / 2 * scale
	y = (1 - m[1]/half) / 2 * scale
	return x, y
}

// FitZoom returns the largest fractional zoom at which the box fits inside a
// width×height pixel canvas, clamped to [0, maxZoom]. A degenerate box
// (a single point) yields maxZoom.
func FitZoom(minLat, minLon, maxLat, maxLon float64, width, height int, maxZoom float64) float64 {
	x1, y1 := Project(maxLat, minLon, 0)
	x2, y2 := Project(minLat, maxLon, 0)
	dx := math.Abs(x2 - x1)
	dy := math.Abs(y2 - y1)

	zoom := maxZoom
	if dx > 0 {
		zoom = math.Min(zoom, math.Log2(float64(width)/dx))
	}
	if dy > 0 {
		zoom = math.Min(zoom, math.Log2(float64(height)/dy))
	}
	return math.Max(0, math.Min(zoom, maxZoom))
}
