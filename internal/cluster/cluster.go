// Package cluster provides a supercluster-style point index: bookshop
// positions in, cluster/leaf markers for a viewport out. The index is
// rebuilt whenever the filtered point set changes; the dataset is bounded
// (low thousands of points) so a full rebuild stays well under 100ms.
package cluster

import (
	"errors"
	"math"
	"sort"

	"github.com/pagetrail/bookshop-directory/internal/types"
)

// ErrUnknownCluster is returned for ids that did not come out of this index.
var ErrUnknownCluster = errors.New("cluster: unknown cluster id")

// Options control the clustering geometry. These are configuration
// constants, not derived values.
type Options struct {
	MinZoom   int     // lowest zoom clusters are generated for
	MaxZoom   int     // at or above this zoom only leaves render
	Radius    float64 // clustering radius in screen pixels
	Extent    float64 // tile extent the radius is relative to
	MinPoints int     // minimum points to form a cluster
}

// DefaultOptions matches the directory map view: 60px radius, leaves from
// zoom 16 up.
func DefaultOptions() Options {
	return Options{
		MinZoom:   0,
		MaxZoom:   16,
		Radius:    60,
		Extent:    512,
		MinPoints: 2,
	}
}

func (o Options) normalized() Options {
	if o.MaxZoom <= 0 || o.MaxZoom > 16 {
		o.MaxZoom = 16
	}
	if o.MinZoom < 0 {
		o.MinZoom = 0
	}
	if o.MinZoom > o.MaxZoom {
		o.MinZoom = o.MaxZoom
	}
	if o.Radius <= 0 {
		o.Radius = 60
	}
	if o.Extent <= 0 {
		o.Extent = 512
	}
	if o.MinPoints < 2 {
		o.MinPoints = 2
	}
	return o
}

// pt is one entry in a zoom level: either a source leaf or a synthetic
// cluster carried down from a higher zoom.
type pt struct {
	x, y      float64 // world coordinates in [0,1]
	id        uint64  // cluster id, or source index for leaves
	isCluster bool
	numPoints int
	sourceIdx int // valid for leaves only
}

// Index is an immutable clustering of one point set. Cluster ids are
// synthetic and only valid for the Index that produced them.
type Index struct {
	opts   Options
	source []types.GeoPoint
	levels [][]pt         // indexed by zoom - opts.MinZoom
	expand map[uint64]int // cluster id -> zoom at which it splits
	nextID uint64
}

// Load builds the hierarchy for the given points. Loading an empty set is
// valid and yields an index that renders no markers.
func Load(points []types.GeoPoint, opts Options) *Index {
	opts = opts.normalized()
	idx := &Index{
		opts:   opts,
		source: points,
		levels: make([][]pt, opts.MaxZoom-opts.MinZoom+1),
		expand: make(map[uint64]int),
	}

	leaves := make([]pt, 0, len(points))
	for i, p := range points {
		x, y := project(p.Lng, p.Lat)
		leaves = append(leaves, pt{x: x, y: y, id: uint64(i), numPoints: 1, sourceIdx: i})
	}
	sortByX(leaves)
	idx.levels[idx.levelFor(opts.MaxZoom)] = leaves

	// Cluster from the bottom up: level z groups the points of level z+1.
	prev := leaves
	for z := opts.MaxZoom - 1; z >= opts.MinZoom; z-- {
		cur := idx.clusterLevel(prev, z)
		idx.levels[idx.levelFor(z)] = cur
		prev = cur
	}
	return idx
}

func (idx *Index) levelFor(zoom int) int { return zoom - idx.opts.MinZoom }

// radiusAt converts the pixel radius into world units for a zoom level.
func (idx *Index) radiusAt(zoom int) float64 {
	return idx.opts.Radius / (idx.opts.Extent * math.Exp2(float64(zoom)))
}

// clusterLevel sweeps the x-sorted points of the finer level and merges
// neighborhoods within the zoom's radius into weighted-centroid clusters.
// Points without enough neighbors carry through unchanged.
func (idx *Index) clusterLevel(finer []pt, zoom int) []pt {
	r := idx.radiusAt(zoom)
	r2 := r * r
	out := make([]pt, 0, len(finer))
	processed := make([]bool, len(finer))

	for i, p := range finer {
		if processed[i] {
			continue
		}
		members := []int{i}
		count := p.numPoints
		for j := i + 1; j < len(finer); j++ {
			other := finer[j]
			if other.x-p.x > r {
				break // sorted by x, nothing further can be in range
			}
			if processed[j] {
				continue
			}
			dx := other.x - p.x
			dy := other.y - p.y
			if dx*dx+dy*dy <= r2 {
				members = append(members, j)
				count += other.numPoints
			}
		}

		if len(members) >= idx.opts.MinPoints {
			var sumX, sumY float64
			for _, m := range members {
				processed[m] = true
				w := float64(finer[m].numPoints)
				sumX += finer[m].x * w
				sumY += finer[m].y * w
			}
			idx.nextID++
			id := idx.nextID<<5 | uint64(zoom+1)
			idx.expand[id] = zoom + 1
			out = append(out, pt{
				x:         sumX / float64(count),
				y:         sumY / float64(count),
				id:        id,
				isCluster: true,
				numPoints: count,
			})
		} else {
			processed[i] = true
			out = append(out, p)
		}
	}
	sortByX(out)
	return out
}

// ClustersFor returns the markers visible in the given bounds at the given
// zoom. Zoom is clamped to the configured range; at MaxZoom and above every
// marker is a leaf.
func (idx *Index) ClustersFor(bounds types.Bounds, zoom int) []types.Marker {
	if idx == nil || len(idx.source) == 0 {
		return nil
	}
	if zoom > idx.opts.MaxZoom {
		zoom = idx.opts.MaxZoom
	}
	if zoom < idx.opts.MinZoom {
		zoom = idx.opts.MinZoom
	}
	bounds = bounds.Clamp()

	level := idx.levels[idx.levelFor(zoom)]
	markers := make([]types.Marker, 0, len(level))
	for _, p := range level {
		lng, lat := unproject(p.x, p.y)
		if !bounds.Contains(lng, lat) {
			continue
		}
		if p.isCluster {
			markers = append(markers, types.Marker{
				IsCluster:  true,
				ClusterID:  p.id,
				PointCount: p.numPoints,
				CenterLng:  lng,
				CenterLat:  lat,
			})
		} else {
			markers = append(markers, types.Marker{
				BookshopID: idx.source[p.sourceIdx].ID,
				Lng:        lng,
				Lat:        lat,
			})
		}
	}
	return markers
}

// ExpansionZoom returns the minimum zoom at which the cluster splits into
// its constituent leaves or sub-clusters. Ids not issued by this index
// return ErrUnknownCluster; callers treat that as a no-op.
func (idx *Index) ExpansionZoom(clusterID uint64) (int, error) {
	if idx == nil {
		return 0, ErrUnknownCluster
	}
	z, ok := idx.expand[clusterID]
	if !ok {
		return 0, ErrUnknownCluster
	}
	return z, nil
}

// PointCount returns the number of source points in the index.
func (idx *Index) PointCount() int {
	if idx == nil {
		return 0
	}
	return len(idx.source)
}

func sortByX(points []pt) {
	sort.Slice(points, func(i, j int) bool { return points[i].x < points[j].x })
}

// project maps lng/lat onto the web-mercator unit square.
func project(lng, lat float64) (x, y float64) {
	lng = math.Max(-180, math.Min(180, lng))
	lat = math.Max(-85.05112878, math.Min(85.05112878, lat))
	sin := math.Sin(lat * math.Pi / 180)
	x = lng/360 + 0.5
	y = 0.5 - 0.25*math.Log((1+sin)/(1-sin))/math.Pi
	return x, y
}

// unproject is the inverse of project.
func unproject(x, y float64) (lng, lat float64) {
	lng = (x - 0.5) * 360
	lat = math.Atan(math.Sinh(math.Pi*(1-2*y))) * 180 / math.Pi
	return lng, lat
}
