package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pagetrail/bookshop-directory/internal/types"
)

// ErrInvalidToken covers unknown, expired and revoked refresh tokens.
var ErrInvalidToken = errors.New("invalid or expired refresh token")

var _ Repository = (*PostgresRepository)(nil)

// Repository persists admin accounts and refresh tokens.
type Repository interface {
	GetAdminByEmail(ctx context.Context, email string) (*types.AdminUser, error)
	StoreRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	ValidateRefreshToken(ctx context.Context, tokenHash string) (uuid.UUID, error)
	InvalidateRefreshToken(ctx context.Context, tokenHash string) error
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

func (r *PostgresRepository) GetAdminByEmail(ctx context.Context, email string) (*types.AdminUser, error) {
	var u types.AdminUser
	err := r.pgpool.QueryRow(ctx, `
        SELECT id, username, email, password_hash, created_at
        FROM admin_users
        WHERE email = $1
    `, email).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find admin user: %w", err)
	}
	return &u, nil
}

func (r *PostgresRepository) StoreRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	_, err := r.pgpool.Exec(ctx, `
        INSERT INTO refresh_tokens (user_id, token_hash, expires_at)
        VALUES ($1, $2, $3)
    `, userID, tokenHash, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ValidateRefreshToken(ctx context.Context, tokenHash string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := r.pgpool.QueryRow(ctx, `
        SELECT user_id FROM refresh_tokens
        WHERE token_hash = $1 AND expires_at > NOW() AND revoked_at IS NULL
    `, tokenHash).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrInvalidToken
		}
		return uuid.Nil, fmt.Errorf("failed to validate refresh token: %w", err)
	}
	return userID, nil
}

func (r *PostgresRepository) InvalidateRefreshToken(ctx context.Context, tokenHash string) error {
	_, err := r.pgpool.Exec(ctx, `
        UPDATE refresh_tokens SET revoked_at = NOW()
        WHERE token_hash = $1 AND revoked_at IS NULL
    `, tokenHash)
	if err != nil {
		return fmt.Errorf("failed to invalidate refresh token: %w", err)
	}
	return nil
}
