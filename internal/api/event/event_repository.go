package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pagetrail/bookshop-directory/internal/types"
)

var _ Repository = (*PostgresRepository)(nil)

// Repository stores bookshop calendar entries.
type Repository interface {
	ListByBookshop(ctx context.Context, bookshopID uuid.UUID) ([]types.Event, error)
	ListUpcoming(ctx context.Context, from time.Time, limit int) ([]types.Event, error)
	Create(ctx context.Context, bookshopID uuid.UUID, req types.CreateEventRequest) (uuid.UUID, error)
}

type PostgresRepository struct {
	logger *slog.Logger
	pgpool *pgxpool.Pool
}

func NewPostgresRepository(pgpool *pgxpool.Pool, logger *slog.Logger) *PostgresRepository {
	return &PostgresRepository{
		logger: logger,
		pgpool: pgpool,
	}
}

func (r *PostgresRepository) ListByBookshop(ctx context.Context, bookshopID uuid.UUID) ([]types.Event, error) {
	rows, err := r.pgpool.Query(ctx, `
        SELECT e.id, e.bookshop_id, e.title, e.description, e.starts_at, e.created_at
        FROM events e
        JOIN bookshops b ON b.id = e.bookshop_id
        WHERE e.bookshop_id = $1 AND b.live = TRUE
        ORDER BY e.starts_at
    `, bookshopID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListUpcoming returns the next calendar entries across all live shops.
func (r *PostgresRepository) ListUpcoming(ctx context.Context, from time.Time, limit int) ([]types.Event, error) {
	rows, err := r.pgpool.Query(ctx, `
        SELECT e.id, e.bookshop_id, e.title, e.description, e.starts_at, e.created_at
        FROM events e
        JOIN bookshops b ON b.id = e.bookshop_id
        WHERE e.starts_at >= $1 AND b.live = TRUE
        ORDER BY e.starts_at
        LIMIT $2
    `, from, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query upcoming events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (r *PostgresRepository) Create(ctx context.Context, bookshopID uuid.UUID, req types.CreateEventRequest) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pgpool.QueryRow(ctx, `
        INSERT INTO events (bookshop_id, title, description, starts_at)
        VALUES ($1, $2, $3, $4)
        RETURNING id
    `, bookshopID, req.Title, req.Description, req.StartsAt).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert event: %w", err)
	}
	return id, nil
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEvents(rows pgxRows) ([]types.Event, error) {
	var events []types.Event
	for rows.Next() {
		var e types.Event
		if err := rows.Scan(&e.ID, &e.BookshopID, &e.Title, &e.Description, &e.StartsAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
