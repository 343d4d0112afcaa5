package directory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/pagetrail/bookshop-directory/app/observability/metrics"
	"github.com/pagetrail/bookshop-directory/internal/cluster"
	"github.com/pagetrail/bookshop-directory/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// ShopSource provides the live bookshop set the directory is built from.
type ShopSource interface {
	ListLive(ctx context.Context) ([]types.Bookshop, error)
}

// Service is the business logic of the map/filter directory view.
type Service interface {
	ListBookshops(ctx context.Context, f types.FilterState) ([]types.Bookshop, error)
	Markers(ctx context.Context, f types.FilterState, bounds types.Bounds, zoom int) ([]types.Marker, error)
	ExpansionZoom(ctx context.Context, f types.FilterState, clusterID uint64) (int, error)
	Fit(ctx context.Context, f types.FilterState) (*types.Viewport, error)
	Invalidate()
}

// snapshot is one clustering pass: the filtered subset plus its index.
// Cluster ids are only valid against the snapshot that issued them, so the
// markers and expand endpoints must resolve the same cache entry.
type snapshot struct {
	shops []types.Bookshop
	index *cluster.Index
}

type ServiceImpl struct {
	logger      *slog.Logger
	source      ShopSource
	snapshots   *cache.Cache
	clusterOpts cluster.Options
	fitOpts     FitOptions
}

// NewService builds the directory service. Snapshots live for a minute and
// are swept; mutations flush them eagerly via Invalidate.
func NewService(source ShopSource, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:      logger,
		source:      source,
		snapshots:   cache.New(time.Minute, 5*time.Minute),
		clusterOpts: cluster.DefaultOptions(),
		fitOpts:     DefaultFitOptions(),
	}
}

// Invalidate drops every cached clustering pass. Called after any mutation
// that changes the live set.
func (s *ServiceImpl) Invalidate() {
	s.snapshots.Flush()
}

func (s *ServiceImpl) snapshotFor(ctx context.Context, f types.FilterState) (*snapshot, error) {
	key := f.Normalize().Encode()
	if cached, found := s.snapshots.Get(key); found {
		return cached.(*snapshot), nil
	}

	shops, err := s.source.ListLive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load live bookshops: %w", err)
	}
	filtered := ApplyFilter(shops, f)
	snap := &snapshot{shops: filtered}
	if points := MapPoints(filtered); len(points) > 0 {
		start := time.Now()
		snap.index = cluster.Load(points, s.clusterOpts)
		if m := metrics.Maybe(); m != nil {
			m.ClusteringDurationSeconds.Record(ctx, time.Since(start).Seconds())
		}
	}
	s.snapshots.Set(key, snap, cache.DefaultExpiration)
	return snap, nil
}

func (s *ServiceImpl) ListBookshops(ctx context.Context, f types.FilterState) ([]types.Bookshop, error) {
	ctx, span := otel.Tracer("DirectoryService").Start(ctx, "ListBookshops")
	defer span.End()
	span.SetAttributes(attribute.String("filter", f.Encode()))

	snap, err := s.snapshotFor(ctx, f)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to build directory snapshot", slog.Any("error", err))
		span.RecordError(err)
		return nil, err
	}
	return snap.shops, nil
}

func (s *ServiceImpl) Markers(ctx context.Context, f types.FilterState, bounds types.Bounds, zoom int) ([]types.Marker, error) {
	ctx, span := otel.Tracer("DirectoryService").Start(ctx, "Markers")
	defer span.End()
	span.SetAttributes(attribute.String("filter", f.Encode()), attribute.Int("zoom", zoom))
	if m := metrics.Maybe(); m != nil {
		m.DirectoryRequestsTotal.Add(ctx, 1)
	}

	snap, err := s.snapshotFor(ctx, f)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if snap.index == nil {
		return []types.Marker{}, nil
	}
	markers := snap.index.ClustersFor(bounds, zoom)
	span.SetAttributes(attribute.Int("marker_count", len(markers)))
	return markers, nil
}

func (s *ServiceImpl) ExpansionZoom(ctx context.Context, f types.FilterState, clusterID uint64) (int, error) {
	ctx, span := otel.Tracer("DirectoryService").Start(ctx, "ExpansionZoom")
	defer span.End()

	snap, err := s.snapshotFor(ctx, f)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	if snap.index == nil {
		return 0, cluster.ErrUnknownCluster
	}
	return snap.index.ExpansionZoom(clusterID)
}

// Fit returns the viewport framing all filtered results, or nil when no
// filtered shop has usable coordinates.
func (s *ServiceImpl) Fit(ctx context.Context, f types.FilterState) (*types.Viewport, error) {
	ctx, span := otel.Tracer("DirectoryService").Start(ctx, "Fit")
	defer span.End()

	snap, err := s.snapshotFor(ctx, f)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	vp, ok := FitToResults(MapPoints(snap.shops), s.fitOpts)
	if !ok {
		return nil, nil
	}
	return &vp, nil
}
