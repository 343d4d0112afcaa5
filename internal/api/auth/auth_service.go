package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pagetrail/bookshop-directory/config"
	"github.com/pagetrail/bookshop-directory/internal/types"
)

// ErrInvalidCredentials is deliberately indistinct about whether the email
// or the password was wrong.
var ErrInvalidCredentials = errors.New("invalid email or password")

var _ Service = (*ServiceImpl)(nil)

// Service issues and rotates admin tokens.
type Service interface {
	Login(ctx context.Context, email, password string) (*types.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*types.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   Repository
	cfg    *config.Config
}

func NewService(repo Repository, cfg *config.Config, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
		cfg:    cfg,
	}
}

func (s *ServiceImpl) Login(ctx context.Context, email, password string) (*types.TokenPair, error) {
	user, err := s.repo.GetAdminByEmail(ctx, email)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to look up admin user", slog.Any("error", err))
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issueTokens(ctx, user.ID.String())
}

func (s *ServiceImpl) Refresh(ctx context.Context, refreshToken string) (*types.TokenPair, error) {
	hash := hashToken(refreshToken)
	userID, err := s.repo.ValidateRefreshToken(ctx, hash)
	if err != nil {
		return nil, err
	}
	// Rotate: the presented token is single-use.
	if err := s.repo.InvalidateRefreshToken(ctx, hash); err != nil {
		return nil, err
	}
	return s.issueTokens(ctx, userID.String())
}

func (s *ServiceImpl) Logout(ctx context.Context, refreshToken string) error {
	return s.repo.InvalidateRefreshToken(ctx, hashToken(refreshToken))
}

func (s *ServiceImpl) issueTokens(ctx context.Context, userID string) (*types.TokenPair, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    s.cfg.JWT.Issuer,
		Audience:  jwt.ClaimStrings{s.cfg.JWT.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWT.AccessTokenTTL)),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWT.SecretKey))
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh, err := randomToken()
	if err != nil {
		return nil, err
	}
	uid, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}
	expiresAt := now.Add(s.cfg.JWT.RefreshTokenTTL)
	if err := s.repo.StoreRefreshToken(ctx, uid, hashToken(refresh), expiresAt); err != nil {
		return nil, err
	}

	return &types.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.cfg.JWT.AccessTokenTTL.Seconds()),
	}, nil
}

func parseUserID(s string) (uuid.UUID, error) {
	uid, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user id in token subject: %w", err)
	}
	return uid, nil
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// hashToken stores only a digest of the refresh token at rest.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
