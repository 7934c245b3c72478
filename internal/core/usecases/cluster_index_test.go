package usecases_test

import (
	"testing"

	"github.com/membermap/membermap/internal/core/domain"
	"github.com/membermap/membermap/internal/core/usecases"
)

func delhiMarkers() []domain.Marker {
	return usecases.Aggregate(delhiMembers(), domain.ViewClustered)
}

func TestClusterMarkers_MergesAtLowZoom(t *testing.T) {
	layers := usecases.ClusterMarkers(delhiMarkers(), 2, 80, 19)

	if len(layers) != 1 {
		t.Fatalf("expected 1 layer, got %d", len(layers))
	}
	c := layers[0]
	if c.Kind != domain.LayerCluster || c.Cluster == nil {
		t.Fatalf("expected a cluster, got %+v", c)
	}
	if c.Cluster.Count != 3 {
		t.Errorf("expected count 3, got %d", c.Cluster.Count)
	}
	if got := len(c.ChildMarkers()); got != 3 {
		t.Errorf("expected 3 child markers, got %d", got)
	}
}

func TestClusterMarkers_SeparateAtMaxZoom(t *testing.T) {
	layers := usecases.ClusterMarkers(delhiMarkers(), 19, 80, 19)

	if len(layers) != 3 {
		t.Fatalf("expected 3 layers, got %d", len(layers))
	}
	for i, l := range layers {
		if l.Kind != domain.LayerMarker {
			t.Errorf("layer %d: expected marker, got %s", i, l.Kind)
		}
	}
}

func TestClusterMarkers_FarApartNeverMerge(t *testing.T) {
	markers := []domain.Marker{markerAt("delhi", 28.6, 77.2), markerAt("lima", -12.0, -77.0)}
	layers := usecases.ClusterMarkers(markers, 0, 80, 19)
	if len(layers) != 2 {
		t.Errorf("expected 2 layers, got %d", len(layers))
	}
}

func TestClusterMarkers_CountsConserved(t *testing.T) {
	markers := []domain.Marker{
		markerAt("1", 28.60, 77.20),
		markerAt("2", 28.61, 77.21),
		markerAt("3", 19.07, 72.87),
		markerAt("4", 19.08, 72.88),
		markerAt("5", 12.97, 77.59),
	}
	for z := 0.0; z <= 19; z++ {
		total := 0
		for _, l := range usecases.ClusterMarkers(markers, z, 80, 19) {
			total += len(l.Points())
		}
		if total != len(markers) {
			t.Errorf("zoom %v: expected %d points, got %d", z, len(markers), total)
		}
	}
}

func TestClusterMarkers_DefaultRadius(t *testing.T) {
	a := usecases.ClusterMarkers(delhiMarkers(), 2, 0, 19)
	b := usecases.ClusterMarkers(delhiMarkers(), 2, usecases.DefaultClusterRadius, 19)
	if len(a) != len(b) {
		t.Errorf("expected zero radius to use the default, got %d vs %d layers", len(a), len(b))
	}
}

func TestClusterMarkers_ClusterCountsMatchChildren(t *testing.T) {
	markers := []domain.Marker{
		markerAt("1", 28.60, 77.20),
		markerAt("2", 28.61, 77.21),
		markerAt("3", 28.70, 77.10),
		markerAt("4", 19.07, 72.87),
		markerAt("5", 19.08, 72.88),
	}
	var check func(l domain.Layer)
	check = func(l domain.Layer) {
		if l.Kind != domain.LayerCluster {
			return
		}
		if got := len(l.Points()); got != l.Cluster.Count {
			t.Errorf("cluster %s: count %d, expanded %d points", l.Cluster.ID, l.Cluster.Count, got)
		}
		if len(l.Cluster.Children) < 2 {
			t.Errorf("cluster %s: expected at least 2 children, got %d", l.Cluster.ID, len(l.Cluster.Children))
		}
		for _, c := range l.Cluster.Children {
			check(c)
		}
	}
	for z := 0.0; z <= 19; z++ {
		for _, l := range usecases.ClusterMarkers(markers, z, 80, 19) {
			check(l)
		}
	}
}

func TestClusterMarkers_KeepsInputOrder(t *testing.T) {
	markers := []domain.Marker{markerAt("lima", -12.0, -77.0), markerAt("delhi", 28.6, 77.2)}
	layers := usecases.ClusterMarkers(markers, 5, 80, 19)
	if len(layers) != 2 {
		t.Fatalf("expected 2 layers, got %d", len(layers))
	}
	if layers[0].Marker == nil || layers[0].Marker.ID != "lima" {
		t.Errorf("expected lima first, got %+v", layers[0])
	}
}

func TestClusterMarkers_BeyondMaxZoomReturnsMarkers(t *testing.T) {
	layers := usecases.ClusterMarkers(delhiMarkers(), 21, 80, 19)
	if len(layers) != 3 {
		t.Errorf("expected 3 markers, got %d", len(layers))
	}
	if got := usecases.ClusterMarkers(nil, 2, 80, 19); len(got) != 0 {
		t.Errorf("expected no layers for no markers, got %d", len(got))
	}
}
