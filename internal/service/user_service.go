package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/pqr-service/internal/auth"
	"github.com/spec-kit/pqr-service/internal/domain"
	"github.com/spec-kit/pqr-service/internal/repository"
	apperrors "github.com/spec-kit/pqr-service/pkg/util"
)

// CreateUserInput describes an admin-created account.
type CreateUserInput struct {
	Username string
	Password string
	Role     string
	Name     *string
	Email    *string
	Phone    *string
	Avatar   *string
	AuthCode *string
}

// UpdateUserInput describes admin changes. Nil fields are left untouched.
type UpdateUserInput struct {
	Username *string
	Password *string
	Role     *string
	Name     *string
	Email    *string
	Phone    *string
	Avatar   *string
	AuthCode *string
}

// UserService manages accounts on behalf of a SUPERADMIN.
type UserService struct {
	users      repository.UserRepository
	bcryptCost int
	logger     *zap.Logger
}

// NewUserService builds the service.
func NewUserService(users repository.UserRepository, bcryptCost int, logger *zap.Logger) *UserService {
	return &UserService{users: users, bcryptCost: bcryptCost, logger: logger}
}

// List returns every account.
func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	return s.users.List(ctx)
}

// Create provisions an account.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	username := auth.NormalizeUsername(input.Username)
	if missing := missingFields(map[string]string{"username": username, "password": input.Password, "role": input.Role}, "username", "password", "role"); len(missing) > 0 {
		return nil, apperrors.NewValidationError("Faltan campos obligatorios", map[string]any{"fields": missing})
	}
	role, err := domain.ParseRole(input.Role)
	if err != nil {
		return nil, errInvalidRole(input.Role)
	}
	hash, err := hashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		Name:         trimPtr(input.Name),
		Email:        trimPtr(input.Email),
		Phone:        trimPtr(input.Phone),
		Avatar:       trimPtr(input.Avatar),
		AuthCode:     trimPtr(input.AuthCode),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, mapUserWriteError(err)
	}
	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// Update changes an account.
func (s *UserService) Update(ctx context.Context, id string, input UpdateUserInput) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errUserNotFound()
		}
		return nil, err
	}

	if input.Username != nil {
		username := auth.NormalizeUsername(*input.Username)
		if username == "" {
			return nil, apperrors.NewValidationError("El nombre de usuario no puede estar vacío", map[string]any{"field": "username"})
		}
		user.Username = username
	}
	if input.Role != nil {
		role, err := domain.ParseRole(*input.Role)
		if err != nil {
			return nil, errInvalidRole(*input.Role)
		}
		user.Role = role
	}
	if input.Password != nil {
		hash, err := hashPassword(*input.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
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
	if input.AuthCode != nil {
		user.AuthCode = trimPtr(input.AuthCode)
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, mapUserWriteError(err)
	}
	return user, nil
}

func mapUserWriteError(err error) error {
	if repository.IsUniqueViolation(err) {
		return apperrors.NewConflict("El nombre de usuario o el código de autorización ya está en uso", nil)
	}
	return err
}

func errInvalidRole(value string) error {
	return apperrors.NewValidationError("Rol inválido", map[string]any{
		"role":    strings.TrimSpace(value),
		"allowed": []domain.Role{domain.RoleSuperAdmin, domain.RoleGestor, domain.RoleEntidad},
	})
}

func errUserNotFound() error {
	return apperrors.NewNotFound("Usuario no encontrado", nil)
}
