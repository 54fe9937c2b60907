package auth

import (
	"github.com/example/chat-app/domain/apperr"
	domain "github.com/example/chat-app/domain/user"
)

// Failures travel in the Error field of each response so that their kind
// survives the request-reply hop.

// SignupRequest represents a user registration request.
type SignupRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse is returned by signup and login.
type SessionResponse struct {
	User         domain.Profile `json:"user"`
	Token        string         `json:"token,omitempty"`
	ExpiresInSec int64          `json:"expires_in_sec,omitempty"`
	Error        *apperr.Error  `json:"error,omitempty"`
}

// ValidateTokenRequest represents a session validation request.
type ValidateTokenRequest struct {
	Token string `json:"token"`
}

// ValidateTokenResponse carries the user a valid token resolves to.
type ValidateTokenResponse struct {
	Valid bool           `json:"valid"`
	User  domain.Profile `json:"user"`
	Error *apperr.Error  `json:"error,omitempty"`
}

// GetUserRequest represents a get user request.
type GetUserRequest struct {
	UserID string `json:"user_id"`
}

// UserResponse carries a single public profile.
type UserResponse struct {
	User  domain.Profile `json:"user"`
	Error *apperr.Error  `json:"error,omitempty"`
}

// ListUsersRequest asks for the directory as seen by CallerID.
type ListUsersRequest struct {
	CallerID string `json:"caller_id"`
}

// ListUsersResponse carries the directory.
type ListUsersResponse struct {
	Users []domain.Profile `json:"users"`
	Error *apperr.Error    `json:"error,omitempty"`
}

// UpdateProfileRequest sets a new avatar reference.
type UpdateProfileRequest struct {
	UserID     string `json:"user_id"`
	ProfilePic string `json:"profile_pic"`
}
