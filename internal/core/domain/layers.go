package domain

// LayerKind discriminates the variants of Layer.
type LayerKind string

const (
	LayerMarker  LayerKind = "marker"
	LayerCluster LayerKind = "cluster"
)

// Layer is one entry of a map's rendered layer set: either a single point
// marker or a cluster aggregate standing in for several nearby layers.
type Layer struct {
	Kind    LayerKind `json:"kind"`
	Marker  *Marker   `json:"marker,omitempty"`
	Cluster *Cluster  `json:"cluster,omitempty"`
}

// Cluster is an aggregate of child layers shown as one indicator.
type Cluster struct {
	ID       string   `json:"id"`
	Center   GeoPoint `json:"center"`
	Count    int      `json:"count"`
	Children []Layer  `json:"children,omitempty"`
}

// MarkerLayer wraps m as a layer.
func MarkerLayer(m Marker) Layer {
	return Layer{Kind: LayerMarker, Marker: &m}
}

// ClusterLayer wraps c as a layer.
func ClusterLayer(c Cluster) Layer {
	return Layer{Kind: LayerCluster, Cluster: &c}
}

// Points enumerates the coordinates of every point marker behind the layer.
// Clusters are expanded recursively.
func (l Layer) Points() []GeoPoint {
	switch l.Kind {
	case LayerMarker:
		if l.Marker == nil {
			return nil
		}
		return []GeoPoint{l.Marker.Location}
	case LayerCluster:
		if l.Cluster == nil {
			return nil
		}
		var pts []GeoPoint
		for _, child := range l.Cluster.Children {
			pts = append(pts, child.Points()...)
		}
		return pts
	}
	return nil
}

// ChildMarkers returns every point marker behind the layer.
func (l Layer) ChildMarkers() []Marker {
	switch l.Kind {
	case LayerMarker:
		if l.Marker == nil {
			return nil
		}
		return []Marker{*l.Marker}
	case LayerCluster:
		if l.Cluster == nil {
			return nil
		}
		var out []Marker
		for _, child := range l.Cluster.Children {
			out = append(out, child.ChildMarkers()...)
		}
		return out
	}
	return nil
}
