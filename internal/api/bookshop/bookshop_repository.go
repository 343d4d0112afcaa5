package bookshop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pagetrail/bookshop-directory/app/observability/metrics"
	"github.com/pagetrail/bookshop-directory/internal/types"
)

// PGXPool is the slice of pgxpool.Pool the repository uses; pgxmock
// satisfies it in tests.
type PGXPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

var (
	// ErrNotFound is returned when a bookshop does not exist or is not visible.
	ErrNotFound = errors.New("bookshop not found")
	// ErrNotPermanentlyClosed guards the hard-delete path: only businesses
	// the places data marks permanently closed may be purged.
	ErrNotPermanentlyClosed = errors.New("bookshop is not permanently closed")
)

var _ Repository = (*PostgresRepository)(nil)

// Repository is the storage contract for bookshop records.
type Repository interface {
	ListLive(ctx context.Context) ([]types.Bookshop, error)
	GetByID(ctx context.Context, id uuid.UUID) (*types.BookshopDetail, error)
	GetBySlug(ctx context.Context, slug string) (*types.BookshopDetail, error)
	Create(ctx context.Context, slug string, req types.CreateBookshopRequest) (uuid.UUID, error)
	Update(ctx context.Context, id uuid.UUID, req types.UpdateBookshopRequest) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	Purge(ctx context.Context, id uuid.UUID) error
	BulkImport(ctx context.Context, shops []types.CreateBookshopRequest) (int64, error)
	ApplyEnrichment(ctx context.Context, id uuid.UUID, update types.EnrichmentUpdate) error
	ListUnenriched(ctx context.Context, limit int) ([]types.Bookshop, error)
}

type PostgresRepository struct {
	logger *slog.Logger
	pgpool PGXPool
}

func NewPostgresRepository(pgpool PGXPool, logger *slog.Logger) *PostgresRepository {
	return &PostgresRepository{
		logger: logger,
		pgpool: pgpool,
	}
}

// dbErr counts a failed query and wraps the error for the caller.
func (r *PostgresRepository) dbErr(ctx context.Context, msg string, err error) error {
	if m := metrics.Maybe(); m != nil {
		m.DbQueryErrorsTotal.Add(ctx, 1)
	}
	return fmt.Errorf(msg+": %w", err)
}

const listLiveQuery = `
        SELECT b.id, b.slug, b.name, b.street, b.city, b.state, b.county, b.zip,
               b.latitude, b.longitude, b.description,
               COALESCE(array_agg(bf.feature_id) FILTER (WHERE bf.feature_id IS NOT NULL), '{}'),
               b.live, b.created_at, b.updated_at
        FROM bookshops b
        LEFT JOIN bookshop_features bf ON bf.bookshop_id = b.id
        WHERE b.live = TRUE
        GROUP BY b.id
        ORDER BY b.name
    `

// ListLive returns every publicly visible bookshop with its feature ids.
func (r *PostgresRepository) ListLive(ctx context.Context) ([]types.Bookshop, error) {
	rows, err := r.pgpool.Query(ctx, listLiveQuery)
	if err != nil {
		return nil, r.dbErr(ctx, "failed to query live bookshops", err)
	}
	defer rows.Close()

	var shops []types.Bookshop
	for rows.Next() {
		var s types.Bookshop
		if err := rows.Scan(
			&s.ID, &s.Slug, &s.Name, &s.Street, &s.City, &s.State, &s.County, &s.Zip,
			&s.Latitude, &s.Longitude, &s.Description, &s.FeatureIDs,
			&s.Live, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, r.dbErr(ctx, "failed to scan bookshop row", err)
		}
		shops = append(shops, s)
	}
	if err := rows.Err(); err != nil {
		return nil, r.dbErr(ctx, "failed reading bookshop rows", err)
	}
	return shops, nil
}

const detailQuery = `
        SELECT b.id, b.slug, b.name, b.street, b.city, b.state, b.county, b.zip,
               b.latitude, b.longitude, b.description,
               COALESCE(array_agg(bf.feature_id) FILTER (WHERE bf.feature_id IS NOT NULL), '{}'),
               b.live, b.created_at, b.updated_at,
               b.place_id, b.rating, b.review_count, b.price_level,
               b.photos, b.reviews, b.opening_hours, b.business_status
        FROM bookshops b
        LEFT JOIN bookshop_features bf ON bf.bookshop_id = b.id
        WHERE %s
        GROUP BY b.id
    `

func (r *PostgresRepository) getDetail(ctx context.Context, where string, arg interface{}) (*types.BookshopDetail, error) {
	var d types.BookshopDetail
	var photos, reviews, hours []byte
	err := r.pgpool.QueryRow(ctx, fmt.Sprintf(detailQuery, where), arg).Scan(
		&d.ID, &d.Slug, &d.Name, &d.Street, &d.City, &d.State, &d.County, &d.Zip,
		&d.Latitude, &d.Longitude, &d.Description, &d.FeatureIDs,
		&d.Live, &d.CreatedAt, &d.UpdatedAt,
		&d.PlaceID, &d.Rating, &d.ReviewCount, &d.PriceLevel,
		&photos, &reviews, &hours, &d.BusinessStatus,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, r.dbErr(ctx, "failed to find bookshop", err)
	}

	// Enrichment blobs are stored as jsonb and decoded explicitly; a null
	// column simply leaves the field empty.
	if len(photos) > 0 {
		if err := json.Unmarshal(photos, &d.Photos); err != nil {
			return nil, fmt.Errorf("failed to decode photos: %w", err)
		}
	}
	if len(reviews) > 0 {
		if err := json.Unmarshal(reviews, &d.Reviews); err != nil {
			return nil, fmt.Errorf("failed to decode reviews: %w", err)
		}
	}
	if len(hours) > 0 {
		if err := json.Unmarshal(hours, &d.OpeningHours); err != nil {
			return nil, fmt.Errorf("failed to decode opening hours: %w", err)
		}
	}
	return &d, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*types.BookshopDetail, error) {
	return r.getDetail(ctx, "b.id = $1", id)
}

func (r *PostgresRepository) GetBySlug(ctx context.Context, slug string) (*types.BookshopDetail, error) {
	return r.getDetail(ctx, "b.slug = $1", slug)
}

// Create inserts a submission. New shops start live so they appear in the
// directory immediately after an operator adds them.
func (r *PostgresRepository) Create(ctx context.Context, slug string, req types.CreateBookshopRequest) (uuid.UUID, error) {
	tx, err := r.pgpool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return uuid.Nil, r.dbErr(ctx, "failed to start transaction", err)
	}
	defer tx.Rollback(ctx)

	query := `
        INSERT INTO bookshops (
            slug, name, street, city, state, county, zip,
            latitude, longitude, description, live
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE)
        RETURNING id
    `
	var id uuid.UUID
	if err = tx.QueryRow(ctx, query,
		slug, req.Name, req.Street, req.City, req.State, req.County, req.Zip,
		req.Latitude, req.Longitude, req.Description,
	).Scan(&id); err != nil {
		return uuid.Nil, r.dbErr(ctx, "failed to insert bookshop", err)
	}

	if err := replaceFeatures(ctx, tx, id, req.FeatureIDs); err != nil {
		return uuid.Nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, r.dbErr(ctx, "failed to commit transaction", err)
	}
	return id, nil
}

// Update applies partial field updates, last write wins.
func (r *PostgresRepository) Update(ctx context.Context, id uuid.UUID, req types.UpdateBookshopRequest) error {
	tx, err := r.pgpool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return r.dbErr(ctx, "failed to start transaction", err)
	}
	defer tx.Rollback(ctx)

	query := `
        UPDATE bookshops SET
            name        = COALESCE($2, name),
            street      = COALESCE($3, street),
            city        = COALESCE($4, city),
            state       = COALESCE($5, state),
            county      = COALESCE($6, county),
            zip         = COALESCE($7, zip),
            latitude    = COALESCE($8, latitude),
            longitude   = COALESCE($9, longitude),
            description = COALESCE($10, description),
            live        = COALESCE($11, live),
            updated_at  = NOW()
        WHERE id = $1
    `
	tag, err := tx.Exec(ctx, query, id,
		req.Name, req.Street, req.City, req.State, req.County, req.Zip,
		req.Latitude, req.Longitude, req.Description, req.Live,
	)
	if err != nil {
		return r.dbErr(ctx, "failed to update bookshop", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if req.FeatureIDs != nil {
		if err := replaceFeatures(ctx, tx, id, req.FeatureIDs); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return r.dbErr(ctx, "failed to commit transaction", err)
	}
	return nil
}

// SoftDelete flips the live flag; the record stays for re-listing later.
func (r *PostgresRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE bookshops SET live = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return r.dbErr(ctx, "failed to soft delete bookshop", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Purge hard-deletes a permanently closed business and its events.
func (r *PostgresRepository) Purge(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pgpool.Exec(ctx,
		`DELETE FROM bookshops WHERE id = $1 AND business_status = 'CLOSED_PERMANENTLY'`, id)
	if err != nil {
		return r.dbErr(ctx, "failed to purge bookshop", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotPermanentlyClosed
	}
	return nil
}

// BulkImport inserts many submissions in one transaction; duplicate slugs
// are skipped so re-running an import is safe.
func (r *PostgresRepository) BulkImport(ctx context.Context, shops []types.CreateBookshopRequest) (int64, error) {
	tx, err := r.pgpool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, r.dbErr(ctx, "failed to start transaction", err)
	}
	defer tx.Rollback(ctx)

	var inserted int64
	for _, req := range shops {
		slug := Slugify(req.Name, req.City)
		var id uuid.UUID
		err := tx.QueryRow(ctx, `
            INSERT INTO bookshops (
                slug, name, street, city, state, county, zip,
                latitude, longitude, description, live
            ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE)
            ON CONFLICT (slug) DO NOTHING
            RETURNING id
        `, slug, req.Name, req.Street, req.City, req.State, req.County, req.Zip,
			req.Latitude, req.Longitude, req.Description,
		).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			continue // slug already present
		}
		if err != nil {
			return 0, r.dbErr(ctx, fmt.Sprintf("failed to import bookshop %q", req.Name), err)
		}
		if err := replaceFeatures(ctx, tx, id, req.FeatureIDs); err != nil {
			return 0, err
		}
		inserted++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, r.dbErr(ctx, "failed to commit transaction", err)
	}
	return inserted, nil
}

// ApplyEnrichment writes back what the places/LLM pipeline produced.
func (r *PostgresRepository) ApplyEnrichment(ctx context.Context, id uuid.UUID, update types.EnrichmentUpdate) error {
	photos, err := json.Marshal(update.Photos)
	if err != nil {
		return fmt.Errorf("failed to encode photos: %w", err)
	}
	reviews, err := json.Marshal(update.Reviews)
	if err != nil {
		return fmt.Errorf("failed to encode reviews: %w", err)
	}
	hours, err := json.Marshal(update.OpeningHours)
	if err != nil {
		return fmt.Errorf("failed to encode opening hours: %w", err)
	}

	tx, err := r.pgpool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return r.dbErr(ctx, "failed to start transaction", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
        UPDATE bookshops SET
            place_id        = $2,
            rating          = $3,
            review_count    = $4,
            price_level     = $5,
            photos          = $6,
            reviews         = $7,
            opening_hours   = $8,
            business_status = $9,
            description     = CASE WHEN $10 <> '' THEN $10 ELSE description END,
            updated_at      = NOW()
        WHERE id = $1
    `, id, update.PlaceID, update.Rating, update.ReviewCount, update.PriceLevel,
		photos, reviews, hours, update.BusinessStatus, update.Description,
	)
	if err != nil {
		return r.dbErr(ctx, "failed to apply enrichment", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if len(update.FeatureIDs) > 0 {
		if err := replaceFeatures(ctx, tx, id, update.FeatureIDs); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return r.dbErr(ctx, "failed to commit transaction", err)
	}
	return nil
}

// ListUnenriched returns live shops the pipeline has not visited yet.
func (r *PostgresRepository) ListUnenriched(ctx context.Context, limit int) ([]types.Bookshop, error) {
	rows, err := r.pgpool.Query(ctx, `
        SELECT id, slug, name, street, city, state, county, zip,
               latitude, longitude, description, live, created_at, updated_at
        FROM bookshops
        WHERE live = TRUE AND (place_id IS NULL OR place_id = '')
        ORDER BY created_at
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, r.dbErr(ctx, "failed to query unenriched bookshops", err)
	}
	defer rows.Close()

	var shops []types.Bookshop
	for rows.Next() {
		var s types.Bookshop
		if err := rows.Scan(
			&s.ID, &s.Slug, &s.Name, &s.Street, &s.City, &s.State, &s.County, &s.Zip,
			&s.Latitude, &s.Longitude, &s.Description, &s.Live, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, r.dbErr(ctx, "failed to scan bookshop row", err)
		}
		shops = append(shops, s)
	}
	return shops, rows.Err()
}

// replaceFeatures rewrites the m2m rows for one shop inside the caller's tx.
func replaceFeatures(ctx context.Context, tx pgx.Tx, id uuid.UUID, featureIDs []int) error {
	if _, err := tx.Exec(ctx, `DELETE FROM bookshop_features WHERE bookshop_id = $1`, id); err != nil {
		return fmt.Errorf("failed to clear bookshop features: %w", err)
	}
	for _, fid := range featureIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO bookshop_features (bookshop_id, feature_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			id, fid,
		); err != nil {
			return fmt.Errorf("failed to attach feature %d: %w", fid, err)
		}
	}
	return nil
}
