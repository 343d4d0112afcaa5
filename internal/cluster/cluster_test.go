package cluster

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagetrail/bookshop-directory/internal/types"
)

var world = types.Bounds{MinLng: -180, MinLat: -90, MaxLng: 180, MaxLat: 90}

func randomPoints(n int, seed int64) []types.GeoPoint {
	rng := rand.New(rand.NewSource(seed))
	pts := make([]types.GeoPoint, n)
	for i := range pts {
		pts[i] = types.GeoPoint{
			ID:  uuid.New(),
			Lng: rng.Float64()*360 - 180,
			Lat: rng.Float64()*160 - 80,
		}
	}
	return pts
}

func TestEmptySetYieldsNoMarkers(t *testing.T) {
	idx := Load(nil, DefaultOptions())
	assert.Empty(t, idx.ClustersFor(world, 4))
	assert.Equal(t, 0, idx.PointCount())
}

func TestMaxZoomShowsOnlyLeaves(t *testing.T) {
	pts := randomPoints(250, 1)
	idx := Load(pts, DefaultOptions())

	markers := idx.ClustersFor(world, DefaultOptions().MaxZoom)
	require.Len(t, markers, len(pts), "one marker per point at max zoom")
	for _, m := range markers {
		assert.False(t, m.IsCluster)
	}

	// zoom above max clamps to max
	assert.Len(t, idx.ClustersFor(world, 22), len(pts))
}

func TestWideRadiusCollapsesToSingleCluster(t *testing.T) {
	opts := DefaultOptions()
	opts.Radius = 2 * opts.Extent // radius spans the whole world at zoom 0
	pts := randomPoints(80, 2)
	idx := Load(pts, opts)

	markers := idx.ClustersFor(world, 0)
	require.Len(t, markers, 1)
	assert.True(t, markers[0].IsCluster)
	assert.Equal(t, len(pts), markers[0].PointCount)
}

func TestPointCountsAreConservedAcrossZooms(t *testing.T) {
	pts := randomPoints(500, 3)
	idx := Load(pts, DefaultOptions())

	for zoom := 0; zoom <= 16; zoom += 4 {
		total := 0
		for _, m := range idx.ClustersFor(world, zoom) {
			if m.IsCluster {
				total += m.PointCount
			} else {
				total++
			}
		}
		assert.Equal(t, len(pts), total, "zoom %d", zoom)
	}
}

func TestExpansionZoomSplitsCluster(t *testing.T) {
	// Two tight neighborhoods far apart: one cluster each at low zoom.
	var pts []types.GeoPoint
	for i := 0; i < 12; i++ {
		pts = append(pts, types.GeoPoint{ID: uuid.New(), Lng: -122.3 + float64(i)*0.001, Lat: 47.6})
	}
	for i := 0; i < 5; i++ {
		pts = append(pts, types.GeoPoint{ID: uuid.New(), Lng: 13.4 + float64(i)*0.001, Lat: 52.5})
	}
	idx := Load(pts, DefaultOptions())

	markers := idx.ClustersFor(world, 3)
	require.Len(t, markers, 2)
	var big types.Marker
	for _, m := range markers {
		require.True(t, m.IsCluster)
		if m.PointCount == 12 {
			big = m
		}
	}
	require.Equal(t, 12, big.PointCount)

	zoom, err := idx.ExpansionZoom(big.ClusterID)
	require.NoError(t, err)
	assert.Greater(t, zoom, 3)

	// At the expansion zoom the cluster's neighborhood renders as more than
	// one marker, and its 12 points are all still accounted for.
	area := types.Bounds{MinLng: -123, MinLat: 47, MaxLng: -122, MaxLat: 48}
	expanded := idx.ClustersFor(area, zoom)
	require.Greater(t, len(expanded), 1)
	total := 0
	for _, m := range expanded {
		if m.IsCluster {
			total += m.PointCount
		} else {
			total++
		}
	}
	assert.Equal(t, 12, total)
}

func TestExpansionZoomUnknownIDIsError(t *testing.T) {
	idx := Load(randomPoints(10, 4), DefaultOptions())
	_, err := idx.ExpansionZoom(9999999)
	assert.ErrorIs(t, err, ErrUnknownCluster)
}

func TestBoundsFiltering(t *testing.T) {
	pts := []types.GeoPoint{
		{ID: uuid.New(), Lng: -122.3, Lat: 47.6}, // Seattle
		{ID: uuid.New(), Lng: 2.35, Lat: 48.85},  // Paris
	}
	idx := Load(pts, DefaultOptions())

	west := types.Bounds{MinLng: -130, MinLat: 40, MaxLng: -110, MaxLat: 55}
	markers := idx.ClustersFor(west, 10)
	require.Len(t, markers, 1)
	assert.Equal(t, pts[0].ID, markers[0].BookshopID)
}
