// Package seed provisions the bootstrap SUPERADMIN account.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/pqr-service/internal/auth"
	"github.com/spec-kit/pqr-service/internal/config"
	"github.com/spec-kit/pqr-service/internal/domain"
	"github.com/spec-kit/pqr-service/internal/repository"
)

// EnsureSuperAdmin creates the configured SUPERADMIN when no user exists yet.
// It returns the created user, or nil when nothing was done.
func EnsureSuperAdmin(ctx context.Context, users repository.UserRepository, cfg config.SeedConfig, bcryptCost int, logger *zap.Logger) (*domain.User, error) {
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		logger.Debug("admin seed skipped: credentials not configured")
		return nil, nil
	}
	count, err := users.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil, nil
	}

	hash, err := auth.HashPassword(cfg.AdminPassword, bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     auth.NormalizeUsername(cfg.AdminUsername),
		PasswordHash: hash,
		Role:         domain.RoleSuperAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := users.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("create admin: %w", err)
	}
	logger.Info("superadmin seeded", zap.String("username", user.Username))
	return user, nil
}
