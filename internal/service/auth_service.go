package service

import (
	"context"
	"strings"
	"time"

	"github.com/spec-kit/pqr-service/internal/auth"
	"github.com/spec-kit/pqr-service/internal/config"
	"github.com/spec-kit/pqr-service/internal/domain"
	"github.com/spec-kit/pqr-service/internal/repository"
	apperrors "github.com/spec-kit/pqr-service/pkg/util"
)

const minPasswordLength = 6

// ProfileInput carries self-service profile changes. Nil fields are left untouched.
type ProfileInput struct {
	Name     *string
	Email    *string
	Phone    *string
	Avatar   *string
	Password *string
}

// AuthService coordinates login and profile flows.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, users repository.UserRepository) *AuthService {
	return &AuthService{
		users:      users,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		bcryptCost: cfg.BcryptCost,
	}
}

// Login authenticates by case-insensitive username.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, string, time.Time, error) {
	username = auth.NormalizeUsername(username)
	if username == "" || password == "" {
		return nil, "", time.Time{}, apperrors.NewValidationError("Usuario y contraseña son obligatorios", nil)
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, "", time.Time{}, errInvalidCredentials()
		}
		return nil, "", time.Time{}, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, errInvalidCredentials()
	}

	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return user, token, exp, nil
}

// UpdateProfile applies the caller's own changes.
func (s *AuthService) UpdateProfile(ctx context.Context, caller *domain.User, input ProfileInput) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, caller.ID)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		user.Name = trimPtr(input.Name)
	}
	if input.Email != nil {
		user.Email = trimPtr(input.Email)
	}
	if input.Phone != nil {
		user.Phone = trimPtr(input.Phone)
	}
	if input.Avatar != nil {
		user.Avatar = trimPtr(input.Avatar)
	}
	if input.Password != nil {
		hash, err := s.hashNewPassword(*input.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) hashNewPassword(password string) (string, error) {
	return hashPassword(password, s.bcryptCost)
}

func hashPassword(password string, cost int) (string, error) {
	if len(strings.TrimSpace(password)) < minPasswordLength {
		return "", apperrors.NewValidationError("La contraseña debe tener al menos 6 caracteres", map[string]any{"field": "password"})
	}
	return auth.HashPassword(password, cost)
}

func errInvalidCredentials() error {
	return apperrors.NewUnauthorized("Usuario o contraseña incorrectos")
}
