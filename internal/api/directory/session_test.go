package directory

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagetrail/bookshop-directory/internal/types"
)

func sessionShops() []types.Bookshop {
	return []types.Bookshop{
		{ID: uuid.New(), Name: "City Lights", City: "San Francisco", State: "CA", Live: true, Latitude: "37.7976", Longitude: "-122.4065"},
		{ID: uuid.New(), Name: "Green Apple Books", City: "San Francisco", State: "CA", Live: true, Latitude: "37.7836", Longitude: "-122.4730"},
		{ID: uuid.New(), Name: "Powell's City of Books", City: "Portland", State: "OR", Live: true, Latitude: "45.5231", Longitude: "-122.6813"},
	}
}

func TestSessionInitialStateIsLoaded(t *testing.T) {
	s := NewSession(sessionShops(), nil, 0, slog.Default())
	defer s.Close()

	shops, state := s.Filtered()
	assert.Equal(t, StateLoaded, state)
	assert.Len(t, shops, 3)
	assert.NotEmpty(t, s.Markers())
}

func TestSessionFilterToEmptyState(t *testing.T) {
	s := NewSession(sessionShops(), nil, 0, slog.Default())
	defer s.Close()

	s.SetFilter(types.FilterState{State: "TX"})

	shops, state := s.Filtered()
	assert.Equal(t, StateEmpty, state)
	assert.Empty(t, shops)
	assert.Nil(t, s.Markers())

	// Clearing the filter restores the full set.
	s.SetFilter(types.FilterState{})
	shops, state = s.Filtered()
	assert.Equal(t, StateLoaded, state)
	assert.Len(t, shops, 3)
}

func TestSessionClusterClickUnknownIDIsNoOp(t *testing.T) {
	s := NewSession(sessionShops(), nil, 0, slog.Default())
	defer s.Close()

	before := s.Viewport()
	_, ok := s.ClickCluster(types.Marker{IsCluster: true, ClusterID: 999999})
	assert.False(t, ok)
	assert.Equal(t, before, s.Viewport())
}

func TestSessionClusterClickRecentersOnCluster(t *testing.T) {
	s := NewSession(sessionShops(), nil, 0, slog.Default())
	defer s.Close()

	// Zoom out until the two San Francisco shops merge into one cluster.
	s.OnMove(types.Bounds{MinLng: -180, MinLat: -85, MaxLng: 180, MaxLat: 85}, 0, nil)
	var clicked *types.Marker
	for _, m := range s.Markers() {
		if m.IsCluster {
			clicked = &m
			break
		}
	}
	require.NotNil(t, clicked, "expected a cluster at zoom 0")

	zoom, ok := s.ClickCluster(*clicked)
	require.True(t, ok)
	assert.Greater(t, zoom, 0)

	vp := s.Viewport()
	assert.InDelta(t, clicked.CenterLng, vp.CenterLng, 1e-9)
	assert.InDelta(t, clicked.CenterLat, vp.CenterLat, 1e-9)
	assert.Equal(t, float64(zoom), vp.Zoom)
	assert.True(t, vp.Bounds.Contains(clicked.CenterLng, clicked.CenterLat))
}

func TestSessionStaleDetailIsDiscarded(t *testing.T) {
	shops := sessionShops()
	first, second := shops[0].ID, shops[1].ID

	firstStarted := make(chan struct{})
	release := make(chan struct{})
	fetch := func(ctx context.Context, id uuid.UUID) (*types.BookshopDetail, error) {
		if id == first {
			close(firstStarted)
			<-release // hold the first fetch until the second selection lands
		}
		return &types.BookshopDetail{Bookshop: types.Bookshop{ID: id}}, nil
	}

	s := NewSession(shops, fetch, 0, slog.Default())
	defer s.Close()

	s.Select(context.Background(), first)
	<-firstStarted
	s.Select(context.Background(), second)
	close(release)

	require.Eventually(t, func() bool {
		_, detail, state := s.Selected()
		return state == StateLoaded && detail != nil
	}, time.Second, 5*time.Millisecond)

	selectedID, detail, _ := s.Selected()
	assert.Equal(t, second, selectedID)
	assert.Equal(t, second, detail.ID, "stale response must not overwrite newer selection")
}

func TestSessionDetailErrorAllowsRetry(t *testing.T) {
	shops := sessionShops()
	id := shops[0].ID

	var failFirst = true
	fetch := func(ctx context.Context, reqID uuid.UUID) (*types.BookshopDetail, error) {
		if failFirst {
			failFirst = false
			return nil, errors.New("network down")
		}
		return &types.BookshopDetail{Bookshop: types.Bookshop{ID: reqID}}, nil
	}

	s := NewSession(shops, fetch, 0, slog.Default())
	defer s.Close()

	s.Select(context.Background(), id)
	require.Eventually(t, func() bool {
		_, _, state := s.Selected()
		return state == StateError
	}, time.Second, 5*time.Millisecond)
	assert.Error(t, s.Err())

	// Selecting the same id again reissues the fetch.
	s.Select(context.Background(), id)
	require.Eventually(t, func() bool {
		_, detail, state := s.Selected()
		return state == StateLoaded && detail != nil && detail.ID == id
	}, time.Second, 5*time.Millisecond)
}

func TestSessionOnMoveDebouncesRecompute(t *testing.T) {
	s := NewSession(sessionShops(), nil, 20*time.Millisecond, slog.Default())
	defer s.Close()

	settled := make(chan []types.Marker, 10)
	bounds := types.Bounds{MinLng: -130, MinLat: 30, MaxLng: -110, MaxLat: 50}
	for zoom := 3.0; zoom < 8; zoom++ {
		s.OnMove(bounds, zoom, func(m []types.Marker) { settled <- m })
	}

	select {
	case m := <-settled:
		assert.NotEmpty(t, m)
	case <-time.After(time.Second):
		t.Fatal("debounced recompute never fired")
	}

	// Only the trailing call of the burst fires.
	time.Sleep(60 * time.Millisecond)
	assert.Len(t, settled, 0)
}
