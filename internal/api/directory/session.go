package directory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pagetrail/bookshop-directory/internal/cluster"
	"github.com/pagetrail/bookshop-directory/internal/types"
)

// LoadState is the lifecycle of an async piece of view state.
type LoadState string

const (
	StateIdle    LoadState = "idle"
	StateLoading LoadState = "loading"
	StateLoaded  LoadState = "loaded"
	StateEmpty   LoadState = "empty"
	StateError   LoadState = "error"
)

// DetailFetcher loads the full record for one selected bookshop.
type DetailFetcher func(ctx context.Context, id uuid.UUID) (*types.BookshopDetail, error)

// Session keeps the map and the list pane in lockstep: one filtered set,
// one marker index, one selected id. Selection sync goes through state, not
// through the rendered output.
type Session struct {
	mu sync.Mutex

	logger      *slog.Logger
	fetchDetail DetailFetcher
	clusterOpts cluster.Options
	fitOpts     FitOptions
	debounce    *Debouncer

	shops    []types.Bookshop
	filter   types.FilterState
	filtered []types.Bookshop
	index    *cluster.Index
	viewport types.Viewport

	selectedID   uuid.UUID
	detail       *types.BookshopDetail
	detailCancel context.CancelFunc

	listState   LoadState
	detailState LoadState
	lastErr     error
}

// NewSession wires a directory view over the given live set. moveDelay is
// the quiet period before a pan/zoom burst triggers recomputation.
func NewSession(shops []types.Bookshop, fetch DetailFetcher, moveDelay time.Duration, logger *slog.Logger) *Session {
	s := &Session{
		logger:      logger,
		fetchDetail: fetch,
		clusterOpts: cluster.DefaultOptions(),
		fitOpts:     DefaultFitOptions(),
		debounce:    NewDebouncer(moveDelay),
		shops:       shops,
		listState:   StateIdle,
		detailState: StateIdle,
	}
	s.applyFilterLocked(types.FilterState{})
	return s
}

// SetFilter recomputes the filtered subset, rebuilds the marker index and
// refits the viewport to the results.
func (s *Session) SetFilter(f types.FilterState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyFilterLocked(f)
}

func (s *Session) applyFilterLocked(f types.FilterState) {
	s.filter = f.Normalize()
	s.filtered = ApplyFilter(s.shops, s.filter)
	points := MapPoints(s.filtered)
	if len(points) == 0 {
		// Empty result is a distinct state, not an error: both panes show
		// their empty message and no index is built.
		s.index = nil
		s.listState = StateEmpty
		s.viewport = types.Viewport{}
		return
	}
	s.index = cluster.Load(points, s.clusterOpts)
	if vp, ok := FitToResults(points, s.fitOpts); ok {
		s.viewport = vp
	}
	s.listState = StateLoaded
}

// Filtered returns the current list pane contents and its state.
func (s *Session) Filtered() ([]types.Bookshop, LoadState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filtered, s.listState
}

// Viewport returns the current map framing.
func (s *Session) Viewport() types.Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewport
}

// Markers returns what the map renders for the current viewport.
func (s *Session) Markers() []types.Marker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return nil
	}
	return s.index.ClustersFor(s.viewport.Bounds, int(s.viewport.Zoom))
}

// OnMove records a viewport change. Marker recomputation is debounced to
// the end of the gesture; onSettle (optional) runs after the quiet period.
func (s *Session) OnMove(bounds types.Bounds, zoom float64, onSettle func([]types.Marker)) {
	s.mu.Lock()
	s.viewport.Bounds = bounds.Clamp()
	s.viewport.Zoom = zoom
	s.mu.Unlock()

	s.debounce.Trigger(func() {
		markers := s.Markers()
		if onSettle != nil {
			onSettle(markers)
		}
	})
}

// ClickCluster animates the viewport to the zoom at which the clicked
// cluster expands, centered on the cluster's marker. Unknown ids are a
// no-op, never a failure.
func (s *Session) ClickCluster(marker types.Marker) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil || !marker.IsCluster {
		return 0, false
	}
	zoom, err := s.index.ExpansionZoom(marker.ClusterID)
	if err != nil {
		s.logger.Warn("cluster expansion for unknown id ignored", slog.Uint64("cluster_id", marker.ClusterID))
		return 0, false
	}
	s.viewport = ViewportAround(marker.CenterLng, marker.CenterLat, float64(zoom), s.fitOpts)
	return zoom, true
}

// Select marks a bookshop as selected and loads its detail asynchronously.
// If the selection changes while the fetch is in flight, the stale response
// is discarded when it resolves instead of overwriting newer state.
func (s *Session) Select(ctx context.Context, id uuid.UUID) {
	s.mu.Lock()
	s.selectedID = id
	s.detail = nil
	s.detailState = StateLoading
	if s.detailCancel != nil {
		s.detailCancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	s.detailCancel = cancel
	s.mu.Unlock()

	go s.loadDetail(fetchCtx, id)
}

func (s *Session) loadDetail(ctx context.Context, id uuid.UUID) {
	detail, err := s.fetchDetail(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selectedID != id {
		// A different shop was selected before this fetch resolved.
		s.logger.Debug("discarding stale detail response", slog.String("bookshop_id", id.String()))
		return
	}
	if err != nil {
		s.lastErr = err
		s.detailState = StateError
		return
	}
	if detail == nil {
		s.detailState = StateEmpty
		return
	}
	s.detail = detail
	s.detailState = StateLoaded
}

// Selected returns the selected id, the loaded detail (if any) and the
// detail state. An Error state always leaves a retry path: calling Select
// again with the same id reissues the fetch.
func (s *Session) Selected() (uuid.UUID, *types.BookshopDetail, LoadState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedID, s.detail, s.detailState
}

// Err returns the last detail error, for surfacing next to the retry action.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Close releases timers and cancels any in-flight fetch.
func (s *Session) Close() {
	s.debounce.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detailCancel != nil {
		s.detailCancel()
	}
}
