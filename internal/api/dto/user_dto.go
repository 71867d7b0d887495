package dto

import (
	"time"

	"github.com/spec-kit/pqr-service/internal/domain"
)

// LoginRequest payload for login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

// ProfileUpdateRequest updates the caller's own profile.
type ProfileUpdateRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Avatar   *string `json:"avatar"`
	Password *string `json:"password"`
}

// CreateUserRequest is the admin payload for new accounts.
type CreateUserRequest struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	Role     string  `json:"role"`
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Avatar   *string `json:"avatar"`
	AuthCode *string `json:"authCode"`
}

// UpdateUserRequest is the admin payload for account changes.
type UpdateUserRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Avatar   *string `json:"avatar"`
	AuthCode *string `json:"authCode"`
}

// UserResponse is the account representation. AuthCode is only set for admins.
type UserResponse struct {
	ID        string      `json:"id"`
	Username  string      `json:"username"`
	Role      domain.Role `json:"role"`
	Name      *string     `json:"name"`
	Email     *string     `json:"email"`
	Phone     *string     `json:"phone"`
	Avatar    *string     `json:"avatar"`
	AuthCode  *string     `json:"authCode,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// UserSummary is the compact form embedded in tickets.
type UserSummary struct {
	ID       string      `json:"id"`
	Username string      `json:"username"`
	Name     string      `json:"name"`
	Role     domain.Role `json:"role"`
}

// NewUserResponse maps a user.
func NewUserResponse(u *domain.User, withAuthCode bool) UserResponse {
	resp := UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Role:      u.Role,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Avatar:    u.Avatar,
		CreatedAt: u.CreatedAt,
	}
	if withAuthCode {
		resp.AuthCode = u.AuthCode
	}
	return resp
}

// NewUserSummary maps a user, or nil.
func NewUserSummary(u *domain.User) *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID, Username: u.Username, Name: u.DisplayName(), Role: u.Role}
}
