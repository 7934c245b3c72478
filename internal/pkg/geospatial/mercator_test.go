package geospatial

import (
	"math"
	"testing"
)

func TestProject_Origin(t *testing.T) {
	x, y := Project(0, 0, 0)
	if math.Abs(x-128) > 1e-9 || math.Abs(y-128) > 1e-9 {
		t.Errorf("expected (128,128), got (%f,%f)", x, y)
	}
}

func TestProject_ScalesWithZoom(t *testing.T) {
	x0, _ := Project(10, 20, 0)
	x3, _ := Project(10, 20, 3)
	if math.Abs(x3-x0*8) > 1e-6 {
		t.Errorf("expected x at zoom 3 to be 8x zoom 0, got %f vs %f", x3, x0)
	}
}

func TestFitZoom_SinglePoint(t *testing.T) {
	z := FitZoom(5, 5, 5, 5, 1024, 768, 19)
	if z != 19 {
		t.Errorf("expected max zoom for a point, got %f", z)
	}
}

func TestFitZoom_WholeWorld(t *testing.T) {
	z := FitZoom(-85, -180, 85, 180, 256, 256, 19)
	if z > 0.01 {
		t.Errorf("expected zoom ~0 for the whole world in one tile, got %f", z)
	}
}

func TestFitZoom_SmallerBoxZoomsIn(t *testing.T) {
	wide := FitZoom(0, 0, 10, 10, 1024, 768, 19)
	narrow := FitZoom(0, 0, 1, 1, 1024, 768, 19)
	if narrow <= wide {
		t.Errorf("expected narrow box to zoom in further: wide=%f narrow=%f", wide, narrow)
	}
}

func TestBoundingBox_ContainsCenter(t *testing.T) {
	minLat, minLon, maxLat, maxLon := BoundingBox(43.263, -2.935, 1000)
	if !(minLat < 43.263 && maxLat > 43.263 && minLon < -2.935 && maxLon > -2.935) {
		t.Errorf("box does not contain its center: %f %f %f %f", minLat, minLon, maxLat, maxLon)
	}
	// 1 km is roughly 0.009 degrees of latitude
	if d := maxLat - 43.263; d < 0.008 || d > 0.01 {
		t.Errorf("unexpected latitude delta %f", d)
	}
}

func TestProject_MatchesTileCorners(t *testing.T) {
	x, y := Project(maxMercatorLat, -180, 1)
	if math.Abs(x) > 1e-6 || math.Abs(y) > 1e-6 {
		t.Errorf("expected top-left corner at (0,0), got (%f,%f)", x, y)
	}
	x, y = Project(-maxMercatorLat, 180, 1)
	if math.Abs(x-512) > 1e-6 || math.Abs(y-512) > 1e-6 {
		t.Errorf("expected bottom-right corner at (512,512), got (%f,%f)", x, y)
	}
}

func TestBoundingBox_ClampedAtPole(t *testing.T) {
	for _, lat := range []float64{90, 89.9999, -90} {
		minLat, minLon, maxLat, maxLon := BoundingBox(lat, 0, 1000)
		if minLat < -90 || maxLat > 90 || minLon < -180 || maxLon > 180 {
			t.Errorf("lat %v: box out of range: %f %f %f %f", lat, minLat, minLon, maxLat, maxLon)
		}
		if minLat >= maxLat || minLon >= maxLon {
			t.Errorf("lat %v: expected a non-empty box, got %f %f %f %f", lat, minLat, minLon, maxLat, maxLon)
		}
	}
}

func TestBoundingBox_ClampedAtAntimeridian(t *testing.T) {
	_, minLon, _, maxLon := BoundingBox(0, 179.999, 1000)
	if maxLon != 180 {
		t.Errorf("expected maxLon clamped to 180, got %f", maxLon)
	}
	if minLon >= 179.999 {
		t.Errorf("expected minLon west of the point, got %f", minLon)
	}
}
