package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/example/chat-app/domain/apperr"
	domain "github.com/example/chat-app/domain/user"
	"github.com/google/uuid"
)

var (
	// ErrInvalidCredentials is returned when login credentials are invalid.
	ErrInvalidCredentials = apperr.Authentication("invalid credentials")
	// ErrMissingFields is returned when a required signup field is empty.
	ErrMissingFields = apperr.Validation("all fields are required")
	// ErrMissingCredentials is returned when login is attempted without email or password.
	ErrMissingCredentials = apperr.Validation("email and password are required")
	// ErrInvalidEmail is returned when email format is invalid.
	ErrInvalidEmail = apperr.Validation("invalid email format")
	// ErrProfilePicRequired is returned when a profile update carries no image.
	ErrProfilePicRequired = apperr.Validation("profile pic is required")
	// ErrSessionUserGone is returned when a valid token names a user that no longer exists.
	ErrSessionUserGone = apperr.Authorization("user not found")
)

// Session is the result of a successful signup or login.
type Session struct {
	User  *domain.User
	Token string
}

// AuthService handles authentication business logic.
type AuthService struct {
	repo      *UserRepository
	hasher    *PasswordHasher
	jwt       *JWTManager
	directory *Directory
}

// NewAuthService creates a new AuthService.
func NewAuthService(repo *UserRepository, hasher *PasswordHasher, jwt *JWTManager, directory *Directory) *AuthService {
	return &AuthService{
		repo:      repo,
		hasher:    hasher,
		jwt:       jwt,
		directory: directory,
	}
}

// Signup creates a new account and opens a session for it.
func (s *AuthService) Signup(ctx context.Context, email, fullName, password string) (*Session, error) {
	email = normalizeEmail(email)
	fullName = strings.TrimSpace(fullName)

	if email == "" || fullName == "" || password == "" {
		return nil, ErrMissingFields
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if err := s.hasher.Check(password); err != nil {
		return nil, err
	}

	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, apperr.Internal("failed to check email existence", err)
	}
	if exists {
		return nil, ErrUserExists
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperr.Internal("failed to hash password", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		FullName:     fullName,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrUserExists) {
			return nil, ErrUserExists
		}
		return nil, apperr.Internal("failed to create user", err)
	}
	s.directory.Invalidate(ctx)

	return s.openSession(user)
}

// Login authenticates a user and opens a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.hasher.Reject(password)
			return nil, ErrInvalidCredentials
		}
		return nil, apperr.Internal("failed to find user", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.openSession(user)
}

// ValidateToken checks a session token and returns its claims.
func (s *AuthService) ValidateToken(_ context.Context, token string) (*domain.Claims, error) {
	claims, err := s.jwt.ValidateSessionToken(token)
	if err != nil {
		return nil, err
	}

	return &domain.Claims{
		UserID: claims.UserID,
		Email:  claims.Email,
	}, nil
}

// ResolveSession validates a token and loads the user it names.
func (s *AuthService) ResolveSession(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrSessionUserGone
		}
		return nil, apperr.Internal("failed to load session user", err)
	}
	return user, nil
}

// GetUser retrieves a user by ID.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, apperr.Internal("failed to find user", err)
	}
	return user, nil
}

// ListUsers returns the sidebar directory for the given caller.
func (s *AuthService) ListUsers(ctx context.Context, callerID string) ([]domain.Profile, error) {
	profiles, err := s.directory.ListExcept(ctx, callerID)
	if err != nil {
		return nil, apperr.Internal("failed to list users", err)
	}
	return profiles, nil
}

// UpdateProfile replaces the avatar reference of a user.
func (s *AuthService) UpdateProfile(ctx context.Context, userID, profilePic string) (*domain.User, error) {
	if strings.TrimSpace(profilePic) == "" {
		return nil, ErrProfilePicRequired
	}

	if err := s.repo.UpdateProfilePic(ctx, userID, profilePic); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, apperr.Internal("failed to update profile", err)
	}
	s.directory.Invalidate(ctx)

	return s.GetUser(ctx, userID)
}

// SessionDuration returns the lifetime of issued tokens.
func (s *AuthService) SessionDuration() time.Duration {
	return s.jwt.SessionDuration()
}

func (s *AuthService) openSession(user *domain.User) (*Session, error) {
	token, err := s.jwt.GenerateSessionToken(user.ID, user.Email)
	if err != nil {
		return nil, apperr.Internal("failed to generate session token", fmt.Errorf("sign: %w", err))
	}
	return &Session{User: user, Token: token}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
