package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/example/chat-app/domain/apperr"
	domain "github.com/example/chat-app/domain/user"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds the auth module settings.
type Config struct {
	DBPath     string
	JWT        JWTConfig
	BcryptCost int
}

// DefaultConfig returns the module defaults.
func DefaultConfig() Config {
	return Config{
		DBPath:     "chat_users.db",
		JWT:        DefaultJWTConfig(),
		BcryptCost: DefaultBcryptCost,
	}
}

// AuthModule provides session and user directory services.
type AuthModule struct {
	config  Config
	db      *gorm.DB
	cache   ProfileCache
	service *AuthService
}

// Compile-time interface checks.
var _ mono.Module = (*AuthModule)(nil)
var _ mono.ServiceProviderModule = (*AuthModule)(nil)
var _ mono.HealthCheckableModule = (*AuthModule)(nil)

// NewModule creates a new AuthModule configured from the environment.
func NewModule() *AuthModule {
	return NewModuleWithConfig(loadConfig())
}

// NewModuleWithConfig creates a new AuthModule with explicit settings.
func NewModuleWithConfig(config Config) *AuthModule {
	return &AuthModule{
		config: config,
	}
}

// SetCache enables the cache-aside layer of the user directory.
// It must be called before Start.
func (m *AuthModule) SetCache(cache ProfileCache) {
	m.cache = cache
}

// Name returns the module name.
func (m *AuthModule) Name() string {
	return "auth"
}

// Start opens the user database and builds the service.
func (m *AuthModule) Start(_ context.Context) error {
	db, err := gorm.Open(sqlite.Open(m.config.DBPath), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	if err := db.AutoMigrate(&domain.User{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	repo := NewUserRepository(db)
	m.service = NewAuthService(
		repo,
		NewPasswordHasher(m.config.BcryptCost),
		NewJWTManager(m.config.JWT),
		NewDirectory(repo, m.cache),
	)

	log.Printf("[auth] Module started (database: %s, directory cache: %t)", m.config.DBPath, m.cache != nil)
	return nil
}

// Stop shuts down the module.
func (m *AuthModule) Stop(_ context.Context) error {
	if m.db != nil {
		sqlDB, err := m.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
	log.Println("[auth] Module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *AuthModule) Health(_ context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get database connection: %v", err),
		}
	}

	if err := sqlDB.Ping(); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"database":        m.config.DBPath,
			"directory_cache": m.cache != nil,
		},
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *AuthModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "signup", json.Unmarshal, json.Marshal, m.handleSignup,
	); err != nil {
		return fmt.Errorf("failed to register signup service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "login", json.Unmarshal, json.Marshal, m.handleLogin,
	); err != nil {
		return fmt.Errorf("failed to register login service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "validate-token", json.Unmarshal, json.Marshal, m.handleValidateToken,
	); err != nil {
		return fmt.Errorf("failed to register validate-token service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "get-user", json.Unmarshal, json.Marshal, m.handleGetUser,
	); err != nil {
		return fmt.Errorf("failed to register get-user service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "list-users", json.Unmarshal, json.Marshal, m.handleListUsers,
	); err != nil {
		return fmt.Errorf("failed to register list-users service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "update-profile", json.Unmarshal, json.Marshal, m.handleUpdateProfile,
	); err != nil {
		return fmt.Errorf("failed to register update-profile service: %w", err)
	}

	log.Printf("[auth] Registered services: signup, login, validate-token, get-user, list-users, update-profile")
	return nil
}

func (m *AuthModule) handleSignup(ctx context.Context, req SignupRequest, _ *mono.Msg) (SessionResponse, error) {
	session, err := m.service.Signup(ctx, req.Email, req.FullName, req.Password)
	if err != nil {
		return SessionResponse{Error: fault("signup", err)}, nil
	}
	return m.sessionResponse(session), nil
}

func (m *AuthModule) handleLogin(ctx context.Context, req LoginRequest, _ *mono.Msg) (SessionResponse, error) {
	session, err := m.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		return SessionResponse{Error: fault("login", err)}, nil
	}
	return m.sessionResponse(session), nil
}

// handleValidateToken resolves a token all the way to an existing user.
func (m *AuthModule) handleValidateToken(ctx context.Context, req ValidateTokenRequest, _ *mono.Msg) (ValidateTokenResponse, error) {
	user, err := m.service.ResolveSession(ctx, req.Token)
	if err != nil {
		return ValidateTokenResponse{Valid: false, Error: fault("validate-token", err)}, nil
	}
	return ValidateTokenResponse{Valid: true, User: user.Public()}, nil
}

func (m *AuthModule) handleGetUser(ctx context.Context, req GetUserRequest, _ *mono.Msg) (UserResponse, error) {
	user, err := m.service.GetUser(ctx, req.UserID)
	if err != nil {
		return UserResponse{Error: fault("get-user", err)}, nil
	}
	return UserResponse{User: user.Public()}, nil
}

func (m *AuthModule) handleListUsers(ctx context.Context, req ListUsersRequest, _ *mono.Msg) (ListUsersResponse, error) {
	users, err := m.service.ListUsers(ctx, req.CallerID)
	if err != nil {
		return ListUsersResponse{Error: fault("list-users", err)}, nil
	}
	return ListUsersResponse{Users: users}, nil
}

func (m *AuthModule) handleUpdateProfile(ctx context.Context, req UpdateProfileRequest, _ *mono.Msg) (UserResponse, error) {
	user, err := m.service.UpdateProfile(ctx, req.UserID, req.ProfilePic)
	if err != nil {
		return UserResponse{Error: fault("update-profile", err)}, nil
	}
	return UserResponse{User: user.Public()}, nil
}

func (m *AuthModule) sessionResponse(session *Session) SessionResponse {
	return SessionResponse{
		User:         session.User.Public(),
		Token:        session.Token,
		ExpiresInSec: int64(m.service.SessionDuration().Seconds()),
	}
}

// fault converts err for the wire and logs anything unexpected.
func fault(op string, err error) *apperr.Error {
	e := apperr.From(err)
	if e.Kind == apperr.KindInternal {
		log.Printf("[auth] %s failed: %v", op, err)
	}
	return e
}

// loadConfig loads module configuration from environment variables.
func loadConfig() Config {
	config := DefaultConfig()

	if path := os.Getenv("CHAT_USERS_DB_PATH"); path != "" {
		config.DBPath = path
	}
	if secret := os.Getenv("JWT_SECRET_KEY"); secret != "" {
		config.JWT.SecretKey = secret
	}
	if issuer := os.Getenv("JWT_ISSUER"); issuer != "" {
		config.JWT.Issuer = issuer
	}
	if ttl := os.Getenv("JWT_SESSION_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil && d > 0 {
			config.JWT.SessionDuration = d
		} else {
			log.Printf("[auth] Ignoring invalid JWT_SESSION_TTL %q", ttl)
		}
	}
	if cost := os.Getenv("BCRYPT_COST"); cost != "" {
		if c, err := strconv.Atoi(cost); err == nil {
			config.BcryptCost = c
		}
	}

	return config
}
