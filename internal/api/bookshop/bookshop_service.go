package bookshop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/pagetrail/bookshop-directory/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// Invalidator is notified whenever the live set changes so cached
// clustering passes get dropped. The directory service satisfies this.
type Invalidator interface {
	Invalidate()
}

// Service defines the business logic contract for bookshop operations.
type Service interface {
	ListLive(ctx context.Context) ([]types.Bookshop, error)
	GetByIDOrSlug(ctx context.Context, idOrSlug string) (*types.BookshopDetail, error)
	Create(ctx context.Context, req types.CreateBookshopRequest) (uuid.UUID, error)
	Update(ctx context.Context, id uuid.UUID, req types.UpdateBookshopRequest) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	Purge(ctx context.Context, id uuid.UUID) error
	BulkImport(ctx context.Context, shops []types.CreateBookshopRequest) (int64, error)
}

type ServiceImpl struct {
	logger      *slog.Logger
	repo        Repository
	invalidator Invalidator
}

func NewService(repo Repository, invalidator Invalidator, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:      logger,
		repo:        repo,
		invalidator: invalidator,
	}
}

func (s *ServiceImpl) invalidate() {
	if s.invalidator != nil {
		s.invalidator.Invalidate()
	}
}

func (s *ServiceImpl) ListLive(ctx context.Context) ([]types.Bookshop, error) {
	shops, err := s.repo.ListLive(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list live bookshops", slog.Any("error", err))
		return nil, err
	}
	return shops, nil
}

// GetByIDOrSlug resolves a path segment as a uuid first, then as a slug.
// Detail lookups stay visible for non-live shops so operators can inspect
// soft-deleted records; public routes filter on the live flag upstream.
func (s *ServiceImpl) GetByIDOrSlug(ctx context.Context, idOrSlug string) (*types.BookshopDetail, error) {
	ctx, span := otel.Tracer("BookshopService").Start(ctx, "GetByIDOrSlug")
	defer span.End()
	span.SetAttributes(attribute.String("id_or_slug", idOrSlug))

	if id, err := uuid.Parse(idOrSlug); err == nil {
		return s.repo.GetByID(ctx, id)
	}
	return s.repo.GetBySlug(ctx, idOrSlug)
}

func (s *ServiceImpl) Create(ctx context.Context, req types.CreateBookshopRequest) (uuid.UUID, error) {
	ctx, span := otel.Tracer("BookshopService").Start(ctx, "Create")
	defer span.End()

	if err := validateSubmission(req); err != nil {
		return uuid.Nil, err
	}
	id, err := s.repo.Create(ctx, Slugify(req.Name, req.City), req)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create bookshop", slog.Any("error", err))
		span.RecordError(err)
		return uuid.Nil, err
	}
	s.invalidate()
	return id, nil
}

func (s *ServiceImpl) Update(ctx context.Context, id uuid.UUID, req types.UpdateBookshopRequest) error {
	if err := s.repo.Update(ctx, id, req); err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.ErrorContext(ctx, "failed to update bookshop", slog.Any("error", err))
		}
		return err
	}
	s.invalidate()
	return nil
}

func (s *ServiceImpl) SoftDelete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

func (s *ServiceImpl) Purge(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Purge(ctx, id); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

func (s *ServiceImpl) BulkImport(ctx context.Context, shops []types.CreateBookshopRequest) (int64, error) {
	ctx, span := otel.Tracer("BookshopService").Start(ctx, "BulkImport")
	defer span.End()
	span.SetAttributes(attribute.Int("submitted", len(shops)))

	for i, req := range shops {
		if err := validateSubmission(req); err != nil {
			return 0, fmt.Errorf("record %d: %w", i, err)
		}
	}
	n, err := s.repo.BulkImport(ctx, shops)
	if err != nil {
		s.logger.ErrorContext(ctx, "bulk import failed", slog.Any("error", err))
		span.RecordError(err)
		return 0, err
	}
	s.invalidate()
	s.logger.InfoContext(ctx, "bulk import finished",
		slog.Int("submitted", len(shops)), slog.Int64("inserted", n))
	return n, nil
}

func validateSubmission(req types.CreateBookshopRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(req.City) == "" || strings.TrimSpace(req.State) == "" {
		// City and state are structured fields; they are never recovered by
		// splitting a combined "City, ST" label.
		return errors.New("city and state are required")
	}
	return nil
}

var (
	slugCleaner     = regexp.MustCompile(`[^a-z0-9]+`)
	slugApostrophes = strings.NewReplacer("'", "", "’", "")
)

// Slugify builds the URL slug from name and city, e.g.
// "Powell's Books" / "Portland" -> "powells-books-portland".
// Apostrophes are dropped rather than turned into separators.
func Slugify(name, city string) string {
	raw := slugApostrophes.Replace(strings.ToLower(name + " " + city))
	slug := slugCleaner.ReplaceAllString(raw, "-")
	return strings.Trim(slug, "-")
}
