package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/membermap/membermap/internal/core/domain"
	"github.com/membermap/membermap/internal/core/ports"
)

// LayersToGeoJSON encodes a rendered layer set as a FeatureCollection.
// Markers become point features carrying their popup; clusters become a
// point at their center with the member count.
func LayersToGeoJSON(layers []domain.Layer) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, l := range layers {
		switch l.Kind {
		case domain.LayerMarker:
			if l.Marker == nil {
				continue
			}
			f := geojson.NewFeature(l.Marker.Location.Orb())
			f.ID = l.Marker.ID
			f.Properties["kind"] = string(domain.LayerMarker)
			f.Properties["label"] = l.Marker.Label
			f.Properties["auto_close"] = l.Marker.AutoClose
			f.Properties["source"] = string(l.Marker.Source)
			fc.Append(f)
		case domain.LayerCluster:
			if l.Cluster == nil {
				continue
			}
			f := geojson.NewFeature(l.Cluster.Center.Orb())
			f.ID = l.Cluster.ID
			f.Properties["kind"] = string(domain.LayerCluster)
			f.Properties["count"] = l.Cluster.Count
			fc.Append(f)
		}
	}
	return fc
}

// ExportService writes snapshots of a client's map to object storage.
type ExportService struct {
	maps    *MapService
	objects ports.ObjectStore
	now     func() time.Time
}

// NewExportService creates a new ExportService.
func NewExportService(maps *MapService, objects ports.ObjectStore) *ExportService {
	return &ExportService{maps: maps, objects: objects, now: time.Now}
}

// Export stores the client's current layer set as GeoJSON and returns the
// object key.
func (s *ExportService) Export(ctx context.Context, clientID string, zoom float64) (string, error) {
	if s.objects == nil {
		return "", fmt.Errorf("object storage not configured")
	}
	layers, err := s.maps.Layers(ctx, clientID, zoom)
	if err != nil {
		return "", err
	}
	data, err := LayersToGeoJSON(layers).MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("encode geojson: %w", err)
	}
	key := fmt.Sprintf("snapshots/%s/%s.geojson", clientID, s.now().UTC().Format("20060102T150405Z"))
	if err := s.objects.Put(ctx, key, "application/geo+json", data); err != nil {
		return "", fmt.Errorf("store snapshot: %w", err)
	}
	return key, nil
}
