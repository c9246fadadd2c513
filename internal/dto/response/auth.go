package response

import (
	"time"

	"storefront-auth/internal/data/entity"
)

type UserResponse struct {
	ID           string            `json:"id"`
	Username     string            `json:"username"`
	Name         string            `json:"name,omitempty"`
	Email        string            `json:"email"`
	Role         entity.UserRole   `json:"role"`
	Status       entity.UserStatus `json:"status"`
	AuthProvider string            `json:"authProvider"`
	CreatedAt    time.Time         `json:"createdAt"`
}

type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

// RegisterResponse never carries the code itself. Warning is set when the
// verification email could not be confirmed as sent.
type RegisterResponse struct {
	Email   string `json:"email"`
	Warning string `json:"warning,omitempty"`
}

func UserToResponse(user *entity.User) UserResponse {
	return UserResponse{
		ID:           user.ID.String(),
		Username:     user.Username,
		Name:         user.Name,
		Email:        user.Email,
		Role:         user.Role,
		Status:       user.Status,
		AuthProvider: user.AuthProvider,
		CreatedAt:    user.CreatedAt,
	}
}
