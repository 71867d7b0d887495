package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/pqr-service/internal/api/dto"
	"github.com/spec-kit/pqr-service/internal/service"
	apperrors "github.com/spec-kit/pqr-service/pkg/util"
)

// UsersHandler exposes account administration to SUPERADMIN callers.
type UsersHandler struct {
	service *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(userService *service.UserService) *UsersHandler {
	return &UsersHandler{service: userService}
}

// List GET /api/users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	users, err := h.service.List(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, dto.NewUserResponse(&users[i], true))
	}
	return c.JSON(fiber.Map{"items": items})
}

// Create POST /api/users.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("Cuerpo de la solicitud inválido", nil)
	}
	user, err := h.service.Create(c.UserContext(), service.CreateUserInput{
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Avatar:   req.Avatar,
		AuthCode: req.AuthCode,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewUserResponse(user, true))
}

// Update PUT /api/users/:id.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("Cuerpo de la solicitud inválido", nil)
	}
	user, err := h.service.Update(c.UserContext(), c.Params("id"), service.UpdateUserInput{
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Avatar:   req.Avatar,
		AuthCode: req.AuthCode,
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.NewUserResponse(user, true))
}
