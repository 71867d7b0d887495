package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role enumerates account roles.
type Role string

const (
	RoleSuperAdmin Role = "SUPERADMIN"
	RoleGestor     Role = "GESTOR"
	RoleEntidad    Role = "ENTIDAD"
)

// ParseRole validates a role literal.
func ParseRole(value string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(value))) {
	case RoleSuperAdmin:
		return RoleSuperAdmin, nil
	case RoleGestor:
		return RoleGestor, nil
	case RoleEntidad:
		return RoleEntidad, nil
	default:
		return "", fmt.Errorf("unknown role %q", value)
	}
}

// User is an account able to authenticate against the service.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Role         Role
	Name         *string
	Email        *string
	Phone        *string
	Avatar       *string
	AuthCode     *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsSuperAdmin reports whether the user bypasses ownership checks.
func (u *User) IsSuperAdmin() bool {
	return u != nil && u.Role == RoleSuperAdmin
}

// DisplayName prefers the configured name over the username.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Name != nil && strings.TrimSpace(*u.Name) != "" {
		return strings.TrimSpace(*u.Name)
	}
	return u.Username
}
