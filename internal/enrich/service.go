package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/pagetrail/bookshop-directory/app/observability/metrics"
	"github.com/pagetrail/bookshop-directory/internal/types"
)

// Store is the slice of the bookshop repository the pipeline needs.
type Store interface {
	ListUnenriched(ctx context.Context, limit int) ([]types.Bookshop, error)
	ApplyEnrichment(ctx context.Context, id uuid.UUID, update types.EnrichmentUpdate) error
	Purge(ctx context.Context, id uuid.UUID) error
}

// batchParallelism bounds concurrent place lookups inside one batch. The
// places client already serializes with a fixed delay, so this only
// overlaps the LLM calls.
const batchParallelism = 4

// Service runs the enrichment pipeline: resolve each unenriched shop
// against the places API, classify its features, backfill a missing
// description, and write everything back. Permanently closed businesses
// are hard deleted.
type Service struct {
	logger     *slog.Logger
	store      Store
	places     *PlacesClient
	classifier *Classifier
	batchSize  int
}

func NewService(logger *slog.Logger, store Store, places *PlacesClient, classifier *Classifier, batchSize int) *Service {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Service{
		logger:     logger,
		store:      store,
		places:     places,
		classifier: classifier,
		batchSize:  batchSize,
	}
}

// Run processes batches until no unenriched shops remain or the context
// is cancelled. Returns the number of shops enriched.
func (s *Service) Run(ctx context.Context) (int, error) {
	ctx, span := otel.Tracer("Enrich").Start(ctx, "Run")
	defer span.End()

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		batch, err := s.store.ListUnenriched(ctx, s.batchSize)
		if err != nil {
			span.RecordError(err)
			return total, fmt.Errorf("failed to list unenriched bookshops: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		n, err := s.processBatch(ctx, batch)
		total += n
		if err != nil {
			span.RecordError(err)
			return total, err
		}
	}

	span.SetAttributes(attribute.Int("enriched", total))
	s.logger.InfoContext(ctx, "enrichment run complete", slog.Int("enriched", total))
	return total, nil
}

func (s *Service) processBatch(ctx context.Context, batch []types.Bookshop) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchParallelism)

	results := make([]error, len(batch))
	for i, shop := range batch {
		g.Go(func() error {
			results[i] = s.enrichOne(gctx, shop)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	enriched := 0
	for i, err := range results {
		if err == nil {
			enriched++
			continue
		}
		if m := metrics.Maybe(); m != nil {
			m.EnrichmentErrorsTotal.Add(ctx, 1)
		}
		s.logger.WarnContext(ctx, "enrichment failed for shop",
			slog.String("shop", batch[i].Name), slog.Any("error", err))
	}
	return enriched, nil
}

func (s *Service) enrichOne(ctx context.Context, shop types.Bookshop) error {
	ctx, span := otel.Tracer("Enrich").Start(ctx, "enrichOne")
	defer span.End()
	span.SetAttributes(attribute.String("shop", shop.Name))

	query := placeQuery(shop)
	place, err := s.places.FindPlace(ctx, query)
	if errors.Is(err, ErrNoMatch) {
		// Mark the shop visited with a sentinel so reruns skip it.
		s.logger.InfoContext(ctx, "no place match", slog.String("shop", shop.Name))
		return s.store.ApplyEnrichment(ctx, shop.ID, types.EnrichmentUpdate{PlaceID: "unmatched"})
	}
	if err != nil {
		span.RecordError(err)
		return err
	}

	if place.BusinessStatus == "CLOSED_PERMANENTLY" {
		s.logger.InfoContext(ctx, "purging permanently closed shop", slog.String("shop", shop.Name))
		if err := s.store.ApplyEnrichment(ctx, shop.ID, types.EnrichmentUpdate{
			PlaceID:        place.PlaceID,
			BusinessStatus: place.BusinessStatus,
		}); err != nil {
			return err
		}
		return s.store.Purge(ctx, shop.ID)
	}

	update := types.EnrichmentUpdate{
		PlaceID:        place.PlaceID,
		Rating:         place.Rating,
		ReviewCount:    place.ReviewCount,
		PriceLevel:     place.PriceLevel,
		Photos:         place.Photos,
		OpeningHours:   place.OpeningHours,
		BusinessStatus: place.BusinessStatus,
	}
	for _, r := range place.Reviews {
		update.Reviews = append(update.Reviews, types.PlaceReview{
			Author: r.Author,
			Rating: r.Rating,
			Text:   r.Text,
			Time:   r.Time,
		})
	}

	ids, err := s.classifier.Classify(ctx, shop, place)
	if err != nil {
		s.logger.WarnContext(ctx, "classification failed, keeping existing features",
			slog.String("shop", shop.Name), slog.Any("error", err))
	} else {
		update.FeatureIDs = ids
	}

	if shop.Description == "" {
		desc, err := s.classifier.Describe(ctx, shop, place)
		if err != nil {
			s.logger.WarnContext(ctx, "description backfill failed",
				slog.String("shop", shop.Name), slog.Any("error", err))
		} else {
			update.Description = desc
		}
	}

	if err := s.store.ApplyEnrichment(ctx, shop.ID, update); err != nil {
		span.RecordError(err)
		return err
	}
	if m := metrics.Maybe(); m != nil {
		m.EnrichmentShopsTotal.Add(ctx, 1)
	}
	return nil
}

func placeQuery(shop types.Bookshop) string {
	parts := []string{shop.Name}
	for _, p := range []string{shop.Street, shop.City, shop.State} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
