package usecases

import (
	"fmt"
	"math"
	"sort"

	cluster "github.com/MadAppGang/gocluster"

	"github.com/membermap/membermap/internal/core/domain"
	"github.com/membermap/membermap/internal/pkg/geospatial"
)

const (
	// DefaultClusterRadius is the pixel radius within which layers merge.
	DefaultClusterRadius = 80.0
	// DefaultMaxZoom is the deepest zoom the map allows.
	DefaultMaxZoom = 19
)

// markerPoint adapts a marker to the cluster index.
type markerPoint struct{ loc domain.GeoPoint }

func (p markerPoint) GetCoordinates() cluster.GeoCoordinates {
	return cluster.GeoCoordinates{Lng: p.loc.Lon, Lat: p.loc.Lat}
}

// The whole coordinate range; the index clips to the mercator square itself.
var (
	worldNW = markerPoint{domain.GeoPoint{Lat: 90, Lon: -180}}
	worldSE = markerPoint{domain.GeoPoint{Lat: -90, Lon: 180}}
)

// ClusterMarkers renders markers as they appear at zoom: nearby markers are
// merged into cluster aggregates. The index is built from the deepest zoom
// up so that a cluster at zoom z contains the layers of z+1; each returned
// cluster carries those layers as children. Nothing is cached; each call
// reflects the markers passed in.
func ClusterMarkers(markers []domain.Marker, zoom float64, radius float64, maxZoom int) []domain.Layer {
	if radius <= 0 {
		radius = DefaultClusterRadius
	}
	target := int(math.Floor(zoom))
	if target < 0 {
		target = 0
	}

	// Leaves are indexed by input position, matching the index's point ids.
	level := make(map[int]*node, len(markers))
	for i, m := range markers {
		level[i] = &node{layer: domain.MarkerLayer(m), center: m.Location, count: 1, first: i}
	}
	if len(markers) == 0 || target > maxZoom {
		return flatten(level)
	}

	idx := cluster.NewCluster()
	idx.MinZoom = target
	idx.MaxZoom = maxZoom
	idx.TileSize = geospatial.TileSize
	idx.PointSize = int(math.Max(1, math.Round(radius)))
	points := make([]cluster.GeoPoint, len(markers))
	for i, m := range markers {
		points[i] = markerPoint{m.Location}
	}
	idx.ClusterPoints(points)

	for z := maxZoom; z >= target; z-- {
		level = reconcile(level, idx.GetClusters(worldNW, worldSE, z), z)
	}
	return flatten(level)
}

// node is one layer of a zoom level together with what the next level up
// needs to know about it.
type node struct {
	layer  domain.Layer
	center domain.GeoPoint
	count  int
	first  int // lowest input position among the node's markers
}

// reconcile turns the index's view of zoom z into layers. Ids that survive
// from the level below keep their layer; the nodes that disappeared were
// merged into the new clusters and become their children.
func reconcile(prev map[int]*node, points []cluster.ClusterPoint, z int) map[int]*node {
	next := make(map[int]*node, len(points))
	var fresh []cluster.ClusterPoint
	for _, p := range points {
		if n, ok := prev[p.Id]; ok && n.count == p.NumPoints {
			next[p.Id] = n
			continue
		}
		fresh = append(fresh, p)
	}

	var merged []int
	for id := range prev {
		if _, ok := next[id]; !ok {
			merged = append(merged, id)
		}
	}
	sort.Ints(merged)
	if len(fresh) == 0 {
		// nothing absorbed them; keep the layers as they were
		for _, id := range merged {
			next[id] = prev[id]
		}
		return next
	}

	groups := assign(prev, merged, fresh)
	for i, p := range fresh {
		ids := groups[i]
		switch len(ids) {
		case 0:
		case 1:
			next[ids[0]] = prev[ids[0]]
		default:
			next[p.Id] = mergeNodes(prev, ids, p, z)
		}
	}
	return next
}

// assign hands every merged node to one of the fresh clusters. Pairs are
// taken nearest first while a cluster still has room for the node's count;
// anything left over goes to its nearest cluster.
func assign(prev map[int]*node, merged []int, fresh []cluster.ClusterPoint) [][]int {
	groups := make([][]int, len(fresh))

	type pair struct {
		node, cl int
		dist     float64
	}
	pairs := make([]pair, 0, len(merged)*len(fresh))
	for _, id := range merged {
		c := prev[id].center
		for j, p := range fresh {
			d := math.Hypot(c.Lon-p.X, c.Lat-p.Y)
			pairs = append(pairs, pair{node: id, cl: j, dist: d})
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool { return pairs[a].dist < pairs[b].dist })

	room := make([]int, len(fresh))
	for j, p := range fresh {
		room[j] = p.NumPoints
	}
	placed := make(map[int]bool, len(merged))
	nearest := make(map[int]int, len(merged))
	for _, pr := range pairs {
		if _, ok := nearest[pr.node]; !ok {
			nearest[pr.node] = pr.cl
		}
		if placed[pr.node] || room[pr.cl] < prev[pr.node].count {
			continue
		}
		placed[pr.node] = true
		room[pr.cl] -= prev[pr.node].count
		groups[pr.cl] = append(groups[pr.cl], pr.node)
	}
	for _, id := range merged {
		if !placed[id] {
			j := nearest[id]
			groups[j] = append(groups[j], id)
		}
	}
	for _, g := range groups {
		sort.Slice(g, func(a, b int) bool { return prev[g[a]].first < prev[g[b]].first })
	}
	return groups
}

func mergeNodes(prev map[int]*node, ids []int, p cluster.ClusterPoint, z int) *node {
	total := 0
	first := math.MaxInt
	children := make([]domain.Layer, 0, len(ids))
	for _, id := range ids {
		n := prev[id]
		total += n.count
		if n.first < first {
			first = n.first
		}
		children = append(children, n.layer)
	}
	center := domain.GeoPoint{Lat: p.Y, Lon: p.X}
	c := domain.Cluster{
		ID:       fmt.Sprintf("z%d:%d", z, p.Id),
		Center:   center,
		Count:    total,
		Children: children,
	}
	return &node{layer: domain.ClusterLayer(c), center: center, count: total, first: first}
}

// flatten orders a level by the input position of each layer's first marker.
func flatten(level map[int]*node) []domain.Layer {
	nodes := make([]*node, 0, len(level))
	for _, n := range level {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(a, b int) bool { return nodes[a].first < nodes[b].first })
	out := make([]domain.Layer, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.layer)
	}
	return out
}
