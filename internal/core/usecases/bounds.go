package usecases

import (
	"github.com/membermap/membermap/internal/core/domain"
	"github.com/membermap/membermap/internal/pkg/geospatial"
)

// FitPadding is the fraction of the box span added on every side when fitting.
const FitPadding = 0.2

// CollectPoints enumerates the coordinates behind every layer, expanding
// cluster aggregates to all of their child markers.
func CollectPoints(layers []domain.Layer) []domain.GeoPoint {
	var pts []domain.GeoPoint
	for _, l := range layers {
		pts = append(pts, l.Points()...)
	}
	return pts
}

// FitBounds returns the padded bounding box of the layers. ok is false when
// the layers contain no points, in which case the viewport must be left as is.
func FitBounds(layers []domain.Layer) (domain.Bounds, bool) {
	b, ok := domain.BoundsOf(CollectPoints(layers))
	if !ok {
		return domain.Bounds{}, false
	}
	return b.Pad(FitPadding), true
}

// FitViewport fits the layers into a canvas of the given size. When the
// padded box collapses to a point it is widened to minRadiusMeters so the
// map does not jump to its deepest zoom.
func FitViewport(layers []domain.Layer, size domain.MapSize, maxZoom float64, minRadiusMeters float64) (domain.Viewport, bool) {
	b, ok := FitBounds(layers)
	if !ok {
		return domain.Viewport{}, false
	}

	if minRadiusMeters > 0 && b.MinLat == b.MaxLat && b.MinLon == b.MaxLon {
		c := b.Center()
		b.MinLat, b.MinLon, b.MaxLat, b.MaxLon = geospatial.BoundingBox(c.Lat, c.Lon, minRadiusMeters)
		b = b.Clamp()
	}

	zoom := geospatial.FitZoom(b.MinLat, b.MinLon, b.MaxLat, b.MaxLon, size.Width, size.Height, maxZoom)
	return domain.Viewport{
		Center: b.Center(),
		Zoom:   zoom,
		Bounds: &b,
	}, true
}
