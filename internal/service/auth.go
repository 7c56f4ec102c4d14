// Package service contains application services for authentication,
// card and user lifecycle management, and balance transfers.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	pkgcrypto "github.com/ndolgov/bankcards/internal/crypto"
	"github.com/ndolgov/bankcards/internal/errs"
	"github.com/ndolgov/bankcards/internal/limiter"
	"github.com/ndolgov/bankcards/internal/model"
	"github.com/ndolgov/bankcards/internal/repository"
)

// MinPasswordLen is the minimum accepted password length.
const MinPasswordLen = 6

// AccessClaims is the JWT payload of an access token.
type AccessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService defines registration and authentication operations.
type AuthService interface {
	// Register creates a new user with secure password hashing.
	Register(ctx context.Context, username, password string) (*model.User, error)
	// LoginWithIP applies rate-limiting and authenticates the user.
	LoginWithIP(ctx context.Context, username, password, ip string) (model.Tokens, error)
	// Refresh exchanges a valid stored refresh token for a new access token.
	Refresh(ctx context.Context, refreshToken string) (model.Tokens, error)
}

type AuthServiceImpl struct {
	users      repository.UserRepository
	signKey    []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	lim        limiter.Limiter
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, signKey []byte, accessTTL, refreshTTL time.Duration, lim limiter.Limiter) *AuthServiceImpl {
	return &AuthServiceImpl{users: users, signKey: signKey, accessTTL: accessTTL, refreshTTL: refreshTTL, lim: lim}
}

// Register creates a new ACTIVE user with the USER role.
func (s *AuthServiceImpl) Register(ctx context.Context, username, password string) (*model.User, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: empty username", errs.ErrInvalidOperation)
	}
	if len(password) < MinPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", errs.ErrInvalidOperation, MinPasswordLen)
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	pwdHash, err := pkgcrypto.HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		ID:       uid,
		Username: username,
		PwdHash:  pwdHash,
		Role:     model.RoleUser,
		Status:   model.UserActive,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// LoginWithIP authenticates with rate limiting by (username, ip).
// Only ACTIVE users may log in; the stored refresh token is rotated on success.
func (s *AuthServiceImpl) LoginWithIP(ctx context.Context, username, password, ip string) (model.Tokens, error) {
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, username, ipHash)
	if err != nil {
		return model.Tokens{}, err
	}
	if !allowed {
		return model.Tokens{}, errs.ErrRateLimited
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, err
	}
	if err != nil || !pkgcrypto.VerifyPassword(password, u.PwdHash) {
		// Record failure; if the threshold is reached, report rate-limited.
		if blocked, _, ferr := s.lim.Failure(ctx, username, ipHash); ferr == nil && blocked {
			return model.Tokens{}, errs.ErrRateLimited
		}
		// hide whether the user exists
		return model.Tokens{}, errs.ErrUnauthenticated
	}
	if u.Status != model.UserActive {
		return model.Tokens{}, errs.ErrUnauthenticated
	}

	_ = s.lim.Success(ctx, username, ipHash)

	access, exp, err := s.issueAccessToken(u)
	if err != nil {
		return model.Tokens{}, err
	}
	refresh, err := s.issueRefreshToken(u.ID)
	if err != nil {
		return model.Tokens{}, err
	}
	if err := s.users.SetRefreshToken(ctx, u.ID, refresh); err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: access, RefreshToken: refresh, ExpiresAt: exp}, nil
}

// Refresh validates the refresh token against the stored credential and
// issues a new access token. The refresh token itself is unchanged.
func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (model.Tokens, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(refreshToken, &claims, s.keyFunc)
	if err != nil || !parsed.Valid {
		return model.Tokens{}, errs.ErrUnauthenticated
	}
	userID, err := uuid.FromString(claims.Subject)
	if err != nil {
		return model.Tokens{}, errs.ErrUnauthenticated
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Tokens{}, errs.ErrUnauthenticated
		}
		return model.Tokens{}, err
	}
	if u.Status != model.UserActive {
		return model.Tokens{}, errs.ErrUnauthenticated
	}
	if u.RefreshToken == "" || u.RefreshToken != refreshToken {
		return model.Tokens{}, errs.ErrUnauthenticated
	}

	access, exp, err := s.issueAccessToken(u)
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: access, RefreshToken: refreshToken, ExpiresAt: exp}, nil
}

func (s *AuthServiceImpl) keyFunc(t *jwt.Token) (any, error) {
	if t.Method != jwt.SigningMethodHS256 {
		return nil, errors.New("unexpected signing method")
	}
	return s.signKey, nil
}

// issueAccessToken creates a signed HS256 JWT carrying the user's role.
func (s *AuthServiceImpl) issueAccessToken(u *model.User) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.accessTTL)
	claims := AccessClaims{
		Role: string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}

func (s *AuthServiceImpl) issueRefreshToken(userID uuid.UUID) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(s.signKey)
}
