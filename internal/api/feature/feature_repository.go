package feature

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pagetrail/bookshop-directory/internal/types"
)

var _ Repository = (*PostgresRepository)(nil)

// Repository reads the feature lookup table. Features are effectively
// static reference data.
type Repository interface {
	ListFeatures(ctx context.Context) ([]types.Feature, error)
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

func (r *PostgresRepository) ListFeatures(ctx context.Context) ([]types.Feature, error) {
	rows, err := r.pgpool.Query(ctx,
		`SELECT id, name, COALESCE(keywords, '{}') FROM features ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query features: %w", err)
	}
	defer rows.Close()

	var features []types.Feature
	for rows.Next() {
		var f types.Feature
		if err := rows.Scan(&f.ID, &f.Name, &f.Keywords); err != nil {
			return nil, fmt.Errorf("failed to scan feature row: %w", err)
		}
		features = append(features, f)
	}
	return features, rows.Err()
}
