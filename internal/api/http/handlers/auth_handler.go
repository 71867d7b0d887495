package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/pqr-service/internal/api/dto"
	"github.com/spec-kit/pqr-service/internal/auth"
	"github.com/spec-kit/pqr-service/internal/service"
	apperrors "github.com/spec-kit/pqr-service/pkg/util"
)

// AuthHandler serves login and self-profile endpoints.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{service: authService}
}

// Login POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("Cuerpo de la solicitud inválido", nil)
	}
	user, token, exp, err := h.service.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.AuthResponse{
		Token:     token,
		ExpiresAt: exp,
		User:      dto.NewUserResponse(user, user.IsSuperAdmin()),
	})
}

// Me GET /api/auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewUserResponse(user, user.IsSuperAdmin()))
}

// UpdateMe PUT /api/auth/me.
func (h *AuthHandler) UpdateMe(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.ProfileUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("Cuerpo de la solicitud inválido", nil)
	}
	updated, err := h.service.UpdateProfile(c.UserContext(), user, service.ProfileInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Avatar:   req.Avatar,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.NewUserResponse(updated, updated.IsSuperAdmin()))
}
