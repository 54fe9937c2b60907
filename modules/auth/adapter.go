package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/example/chat-app/domain/apperr"
	domain "github.com/example/chat-app/domain/user"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// AuthPort defines the authentication operations other modules depend on.
type AuthPort interface {
	Signup(ctx context.Context, email, fullName, password string) (*SessionResult, error)
	Login(ctx context.Context, email, password string) (*SessionResult, error)
	ValidateToken(ctx context.Context, token string) (*domain.Profile, error)
	GetUser(ctx context.Context, userID string) (*domain.Profile, error)
	ListUsers(ctx context.Context, callerID string) ([]domain.Profile, error)
	UpdateProfile(ctx context.Context, userID, profilePic string) (*domain.Profile, error)
}

// SessionResult is an opened session as seen across the module boundary.
type SessionResult struct {
	User      domain.Profile
	Token     string
	ExpiresIn time.Duration
}

// AuthAdapter implements AuthPort using the service container.
type AuthAdapter struct {
	container mono.ServiceContainer
}

// NewAuthAdapter creates a new AuthAdapter.
func NewAuthAdapter(container mono.ServiceContainer) *AuthAdapter {
	return &AuthAdapter{
		container: container,
	}
}

// Signup registers a user and opens a session.
func (a *AuthAdapter) Signup(ctx context.Context, email, fullName, password string) (*SessionResult, error) {
	req := SignupRequest{Email: email, FullName: fullName, Password: password}
	var resp SessionResponse
	if err := call(ctx, a.container, "signup", &req, &resp); err != nil {
		return nil, err
	}
	return sessionResult(resp)
}

// Login opens a session for existing credentials.
func (a *AuthAdapter) Login(ctx context.Context, email, password string) (*SessionResult, error) {
	req := LoginRequest{Email: email, Password: password}
	var resp SessionResponse
	if err := call(ctx, a.container, "login", &req, &resp); err != nil {
		return nil, err
	}
	return sessionResult(resp)
}

// ValidateToken resolves a session token to its user.
func (a *AuthAdapter) ValidateToken(ctx context.Context, token string) (*domain.Profile, error) {
	req := ValidateTokenRequest{Token: token}
	var resp ValidateTokenResponse
	if err := call(ctx, a.container, "validate-token", &req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	if !resp.Valid {
		return nil, ErrInvalidToken
	}
	return &resp.User, nil
}

// GetUser retrieves a user by ID.
func (a *AuthAdapter) GetUser(ctx context.Context, userID string) (*domain.Profile, error) {
	req := GetUserRequest{UserID: userID}
	var resp UserResponse
	if err := call(ctx, a.container, "get-user", &req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return &resp.User, nil
}

// ListUsers returns the directory without the caller.
func (a *AuthAdapter) ListUsers(ctx context.Context, callerID string) ([]domain.Profile, error) {
	req := ListUsersRequest{CallerID: callerID}
	var resp ListUsersResponse
	if err := call(ctx, a.container, "list-users", &req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Users, nil
}

// UpdateProfile sets the avatar reference of a user.
func (a *AuthAdapter) UpdateProfile(ctx context.Context, userID, profilePic string) (*domain.Profile, error) {
	req := UpdateProfileRequest{UserID: userID, ProfilePic: profilePic}
	var resp UserResponse
	if err := call(ctx, a.container, "update-profile", &req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return &resp.User, nil
}

func call[Req, Resp any](ctx context.Context, container mono.ServiceContainer, service string, req *Req, resp *Resp) error {
	if err := helper.CallRequestReplyService(
		ctx,
		container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return apperr.Internal(service+" request failed", err)
	}
	return nil
}

func sessionResult(resp SessionResponse) (*SessionResult, error) {
	if resp.Error != nil {
		return nil, resp.Error
	}
	return &SessionResult{
		User:      resp.User,
		Token:     resp.Token,
		ExpiresIn: time.Duration(resp.ExpiresInSec) * time.Second,
	}, nil
}
