package auth

import (
	"errors"
	"time"

	"github.com/example/chat-app/domain/apperr"
	"github.com/golang-jwt/jwt/v5"
)

const sessionTokenType = "session"

var (
	// ErrInvalidToken is returned when the token is missing, malformed or tampered with.
	ErrInvalidToken = apperr.Authorization("invalid token")
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = apperr.Authorization("token has expired")
)

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	SecretKey       string
	SessionDuration time.Duration
	Issuer          string
}

// DefaultJWTConfig returns a default JWT configuration.
// In production, the secret key should be loaded from environment variables.
func DefaultJWTConfig() JWTConfig {
	return JWTConfig{
		SecretKey:       "change-me-chat-app-secret",
		SessionDuration: 30 * 24 * time.Hour,
		Issuer:          "chat-app",
	}
}

// JWTClaims represents the custom claims for session tokens.
type JWTClaims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// JWTManager handles session token operations.
type JWTManager struct {
	config JWTConfig
}

// NewJWTManager creates a new JWTManager with the given configuration.
func NewJWTManager(config JWTConfig) *JWTManager {
	return &JWTManager{
		config: config,
	}
}

// GenerateSessionToken issues a signed session token for the given user.
func (m *JWTManager) GenerateSessionToken(userID, email string) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		UserID:    userID,
		Email:     email,
		TokenType: sessionTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.SessionDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.config.SecretKey))
}

// ValidateSessionToken validates the token and returns its claims.
func (m *JWTManager) ValidateSessionToken(tokenString string) (*JWTClaims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(m.config.SecretKey), nil
	}, jwt.WithIssuer(m.config.Issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.TokenType != sessionTokenType || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// SessionDuration returns how long an issued token stays valid.
func (m *JWTManager) SessionDuration() time.Duration {
	return m.config.SessionDuration
}
