package types

import (
	"math"

	"github.com/google/uuid"
)

// Bounds is a geographic bounding box in lng/lat degrees.
type Bounds struct {
	MinLng float64 `json:"min_lng"`
	MinLat float64 `json:"min_lat"`
	MaxLng float64 `json:"max_lng"`
	MaxLat float64 `json:"max_lat"`
}

// Clamp limits the box to valid lng/lat ranges and orders the corners.
func (b Bounds) Clamp() Bounds {
	b.MinLng = math.Max(-180, math.Min(180, b.MinLng))
	b.MaxLng = math.Max(-180, math.Min(180, b.MaxLng))
	b.MinLat = math.Max(-90, math.Min(90, b.MinLat))
	b.MaxLat = math.Max(-90, math.Min(90, b.MaxLat))
	if b.MinLng > b.MaxLng {
		b.MinLng, b.MaxLng = b.MaxLng, b.MinLng
	}
	if b.MinLat > b.MaxLat {
		b.MinLat, b.MaxLat = b.MaxLat, b.MinLat
	}
	return b
}

// Contains reports whether the point lies inside the box (inclusive).
func (b Bounds) Contains(lng, lat float64) bool {
	return lng >= b.MinLng && lng <= b.MaxLng && lat >= b.MinLat && lat <= b.MaxLat
}

// Extend grows the box to include the point.
func (b *Bounds) Extend(lng, lat float64) {
	b.MinLng = math.Min(b.MinLng, lng)
	b.MinLat = math.Min(b.MinLat, lat)
	b.MaxLng = math.Max(b.MaxLng, lng)
	b.MaxLat = math.Max(b.MaxLat, lat)
}

// Viewport is the map's visible region.
type Viewport struct {
	CenterLng float64 `json:"center_lng"`
	CenterLat float64 `json:"center_lat"`
	Zoom      float64 `json:"zoom"`
	Bounds    Bounds  `json:"bounds"`
}

// GeoPoint is a bookshop position fed to the clusterer.
type GeoPoint struct {
	ID  uuid.UUID `json:"id"`
	Lng float64   `json:"lng"`
	Lat float64   `json:"lat"`
}

// Marker is either a cluster or a leaf rendered on the map. Cluster ids are
// synthetic and only valid within one clustering pass.
type Marker struct {
	IsCluster  bool      `json:"is_cluster"`
	ClusterID  uint64    `json:"cluster_id,omitempty"`
	PointCount int       `json:"point_count,omitempty"`
	CenterLng  float64   `json:"center_lng,omitempty"`
	CenterLat  float64   `json:"center_lat,omitempty"`
	BookshopID uuid.UUID `json:"bookshop_id,omitempty"`
	Lng        float64   `json:"lng,omitempty"`
	Lat        float64   `json:"lat,omitempty"`
}
