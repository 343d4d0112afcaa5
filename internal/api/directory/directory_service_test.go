package directory

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagetrail/bookshop-directory/internal/cluster"
	"github.com/pagetrail/bookshop-directory/internal/types"
)

type stubSource struct {
	shops []types.Bookshop
	err   error
	calls atomic.Int32
}

func (s *stubSource) ListLive(_ context.Context) ([]types.Bookshop, error) {
	s.calls.Add(1)
	return s.shops, s.err
}

func worldBounds() types.Bounds {
	return types.Bounds{MinLng: -180, MinLat: -90, MaxLng: 180, MaxLat: 90}
}

func TestServiceSnapshotIsSharedAcrossCalls(t *testing.T) {
	src := &stubSource{shops: sampleShops()}
	svc := NewService(src, slog.Default())

	f := types.FilterState{State: "CA"}
	_, err := svc.Markers(context.Background(), f, worldBounds(), 3)
	require.NoError(t, err)
	_, err = svc.ListBookshops(context.Background(), f)
	require.NoError(t, err)
	_, err = svc.Fit(context.Background(), f)
	require.NoError(t, err)

	assert.Equal(t, int32(1), src.calls.Load(), "same filter should reuse one snapshot")
}

func TestServiceEquivalentFiltersShareSnapshot(t *testing.T) {
	src := &stubSource{shops: sampleShops()}
	svc := NewService(src, slog.Default())

	_, err := svc.ListBookshops(context.Background(), types.FilterState{State: "ca", FeatureIDs: []int{5, 1, 1}})
	require.NoError(t, err)
	_, err = svc.ListBookshops(context.Background(), types.FilterState{State: "CA", FeatureIDs: []int{1, 5}})
	require.NoError(t, err)

	assert.Equal(t, int32(1), src.calls.Load())
}

func TestServiceInvalidateDropsSnapshots(t *testing.T) {
	src := &stubSource{shops: sampleShops()}
	svc := NewService(src, slog.Default())

	_, err := svc.ListBookshops(context.Background(), types.FilterState{})
	require.NoError(t, err)
	svc.Invalidate()
	_, err = svc.ListBookshops(context.Background(), types.FilterState{})
	require.NoError(t, err)

	assert.Equal(t, int32(2), src.calls.Load())
}

func TestServiceExpansionZoomRoundTrip(t *testing.T) {
	src := &stubSource{shops: sampleShops()}
	svc := NewService(src, slog.Default())
	f := types.FilterState{}

	markers, err := svc.Markers(context.Background(), f, worldBounds(), 0)
	require.NoError(t, err)
	require.NotEmpty(t, markers)

	var clusterID uint64
	for _, m := range markers {
		if m.IsCluster {
			clusterID = m.ClusterID
			break
		}
	}
	require.NotZero(t, clusterID, "zoom 0 over the sample set must produce a cluster")

	zoom, err := svc.ExpansionZoom(context.Background(), f, clusterID)
	require.NoError(t, err)
	assert.Greater(t, zoom, 0)
}

func TestServiceExpansionZoomUnknownID(t *testing.T) {
	src := &stubSource{shops: sampleShops()}
	svc := NewService(src, slog.Default())

	_, err := svc.ExpansionZoom(context.Background(), types.FilterState{}, 424242)
	assert.ErrorIs(t, err, cluster.ErrUnknownCluster)
}

func TestServiceExpansionZoomEmptySet(t *testing.T) {
	src := &stubSource{}
	svc := NewService(src, slog.Default())

	_, err := svc.ExpansionZoom(context.Background(), types.FilterState{}, 1)
	assert.ErrorIs(t, err, cluster.ErrUnknownCluster)
}

func TestServiceFitEmptyResultIsNil(t *testing.T) {
	src := &stubSource{shops: sampleShops()}
	svc := NewService(src, slog.Default())

	vp, err := svc.Fit(context.Background(), types.FilterState{State: "TX"})
	require.NoError(t, err)
	assert.Nil(t, vp)
}

func TestServiceSourceErrorPropagates(t *testing.T) {
	src := &stubSource{err: errors.New("db down")}
	svc := NewService(src, slog.Default())

	_, err := svc.ListBookshops(context.Background(), types.FilterState{})
	assert.Error(t, err)
}
