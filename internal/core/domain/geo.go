package domain

import (
	"math"

	"github.com/paulmach/orb"
)

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the point lies inside the WGS 84 range and is not NaN.
func (p GeoPoint) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Orb converts the point to an orb.Point (lon, lat order).
func (p GeoPoint) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// PointFromOrb converts an orb.Point back to a GeoPoint.
func PointFromOrb(p orb.Point) GeoPoint {
	return GeoPoint{Lat: p.Lat(), Lon: p.Lon()}
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// BoundsOf returns the minimal box covering pts. ok is false when pts is empty.
func BoundsOf(pts []GeoPoint) (b Bounds, ok bool) {
	if len(pts) == 0 {
		return Bounds{}, false
	}
	mp := make(orb.MultiPoint, 0, len(pts))
	for _, p := range pts {
		mp = append(mp, p.Orb())
	}
	ob := mp.Bound()
	return Bounds{
		MinLat: ob.Min.Lat(),
		MinLon: ob.Min.Lon(),
		MaxLat: ob.Max.Lat(),
		MaxLon: ob.Max.Lon(),
	}, true
}

// Pad grows the box by ratio of its span on each side and clamps the result
// to the valid coordinate range.
func (b Bounds) Pad(ratio float64) Bounds {
	dLat := math.Abs(b.MaxLat-b.MinLat) * ratio
	dLon := math.Abs(b.MaxLon-b.MinLon) * ratio
	return Bounds{
		MinLat: math.Max(b.MinLat-dLat, -90),
		MinLon: math.Max(b.MinLon-dLon, -180),
		MaxLat: math.Min(b.MaxLat+dLat, 90),
		MaxLon: math.Min(b.MaxLon+dLon, 180),
	}
}

// Clamp limits the box to the valid coordinate range.
func (b Bounds) Clamp() Bounds {
	return Bounds{
		MinLat: math.Max(b.MinLat, -90),
		MinLon: math.Max(b.MinLon, -180),
		MaxLat: math.Min(b.MaxLat, 90),
		MaxLon: math.Min(b.MaxLon, 180),
	}
}

// Contains reports whether p lies inside the box (edges included).
func (b Bounds) Contains(p GeoPoint) bool {
	return b.orb().Contains(p.Orb())
}

// Center returns the midpoint of the box.
func (b Bounds) Center() GeoPoint {
	return PointFromOrb(b.orb().Center())
}

func (b Bounds) orb() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLon, b.MinLat},
		Max: orb.Point{b.MaxLon, b.MaxLat},
	}
}

// Viewport is the visible region of a map.
type Viewport struct {
	Center GeoPoint `json:"center"`
	Zoom   float64  `json:"zoom"`
	Bounds *Bounds  `json:"bounds,omitempty"`
}

// MapSize is the pixel size of a client's map canvas.
type MapSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}
