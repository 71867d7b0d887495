package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/pqr-service/internal/domain"
	apperrors "github.com/spec-kit/pqr-service/pkg/util"
)

// RequireRole ensures the principal has one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		user, err := CurrentUser(c)
		if err != nil {
			return err
		}
		if _, ok := allowedSet[user.Role]; !ok {
			return apperrors.NewForbidden("No tiene permisos para realizar esta acción")
		}
		return c.Next()
	}
}

// RequireSuperAdmin is the admin-only guard.
func RequireSuperAdmin() fiber.Handler {
	return RequireRole(domain.RoleSuperAdmin)
}

// RequireAuthenticated ensures any user is authenticated.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := CurrentUser(c); err != nil {
			return err
		}
		return c.Next()
	}
}
