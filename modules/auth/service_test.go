package auth

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/chat-app/domain/apperr"
	domain "github.com/example/chat-app/domain/user"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(&domain.User{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// memoryCache is a ProfileCache backed by a map.
type memoryCache struct {
	mu      sync.Mutex
	items   map[string][]byte
	gets    int
	hits    int
	deletes int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: make(map[string][]byte)}
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	data, ok := c.items[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(data, dest)
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = data
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	delete(c.items, key)
	return nil
}

func newTestService(t *testing.T, cache ProfileCache) (*AuthService, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	svc := NewAuthService(
		repo,
		NewPasswordHasher(bcrypt.MinCost),
		NewJWTManager(testJWTConfig()),
		NewDirectory(repo, cache),
	)
	return svc, db
}

func countUsers(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&domain.User{}).Count(&n).Error; err != nil {
		t.Fatalf("count users: %v", err)
	}
	return n
}

func TestAuthService_SignupValidation(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		fullName string
		password string
		wantErr  error
	}{
		{name: "missing email", email: "", fullName: "Ann", password: "secret1", wantErr: ErrMissingFields},
		{name: "missing full name", email: "ann@example.com", fullName: "  ", password: "secret1", wantErr: ErrMissingFields},
		{name: "missing password", email: "ann@example.com", fullName: "Ann", password: "", wantErr: ErrMissingFields},
		{name: "invalid email", email: "not-an-email", fullName: "Ann", password: "secret1", wantErr: ErrInvalidEmail},
		{name: "password of five characters", email: "ann@example.com", fullName: "Ann", password: "12345", wantErr: ErrWeakPassword},
		{name: "password too long", email: "ann@example.com", fullName: "Ann", password: strings.Repeat("a", 73), wantErr: ErrPasswordTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, db := newTestService(t, nil)

			_, err := svc.Signup(context.Background(), tt.email, tt.fullName, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Signup() error = %v, want %v", err, tt.wantErr)
			}
			if apperr.KindOf(err) != apperr.KindValidation {
				t.Errorf("KindOf() = %q, want validation", apperr.KindOf(err))
			}
			if n := countUsers(t, db); n != 0 {
				t.Errorf("users persisted = %d, want 0", n)
			}
		})
	}
}

func TestAuthService_SignupAndLogin(t *testing.T) {
	svc, db := newTestService(t, nil)
	ctx := context.Background()

	session, err := svc.Signup(ctx, " Ann@Example.com ", "Ann Lee", "secret1")
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	if session.User.Email != "ann@example.com" {
		t.Errorf("Email = %q, want normalized address", session.User.Email)
	}
	if session.User.PasswordHash == "secret1" {
		t.Error("password stored in plain text")
	}
	if n := countUsers(t, db); n != 1 {
		t.Errorf("users persisted = %d, want 1", n)
	}

	// Round trip: the issued token resolves to the same user.
	user, err := svc.ResolveSession(ctx, session.Token)
	if err != nil {
		t.Fatalf("ResolveSession() error = %v", err)
	}
	if user.ID != session.User.ID {
		t.Errorf("ResolveSession() user = %q, want %q", user.ID, session.User.ID)
	}

	login, err := svc.Login(ctx, "ann@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if login.User.ID != session.User.ID {
		t.Errorf("Login() user = %q, want %q", login.User.ID, session.User.ID)
	}
}

func TestAuthService_SignupDuplicateEmail(t *testing.T) {
	svc, db := newTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "ann@example.com", "Ann", "secret1"); err != nil {
		t.Fatalf("first Signup() error = %v", err)
	}

	_, err := svc.Signup(ctx, "ANN@example.com", "Another Ann", "secret2")
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("Signup() error = %v, want ErrUserExists", err)
	}
	if n := countUsers(t, db); n != 1 {
		t.Errorf("users persisted = %d, want 1", n)
	}
}

func TestAuthService_LoginFailures(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "ann@example.com", "Ann", "secret1"); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
		wantKind apperr.Kind
	}{
		{name: "unknown email", email: "bob@example.com", password: "secret1", wantErr: ErrInvalidCredentials, wantKind: apperr.KindAuthentication},
		{name: "wrong password", email: "ann@example.com", password: "secret2", wantErr: ErrInvalidCredentials, wantKind: apperr.KindAuthentication},
		{name: "missing password", email: "ann@example.com", password: "", wantErr: ErrMissingCredentials, wantKind: apperr.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(ctx, tt.email, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Login() error = %v, want %v", err, tt.wantErr)
			}
			if apperr.KindOf(err) != tt.wantKind {
				t.Errorf("KindOf() = %q, want %q", apperr.KindOf(err), tt.wantKind)
			}
		})
	}
}

func TestAuthService_ResolveSessionRejects(t *testing.T) {
	svc, db := newTestService(t, nil)
	ctx := context.Background()

	session, err := svc.Signup(ctx, "ann@example.com", "Ann", "secret1")
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	expiredCfg := testJWTConfig()
	expiredCfg.SessionDuration = -time.Minute
	expired, err := NewJWTManager(expiredCfg).GenerateSessionToken(session.User.ID, session.User.Email)
	if err != nil {
		t.Fatalf("GenerateSessionToken() error = %v", err)
	}

	ghost, err := NewJWTManager(testJWTConfig()).GenerateSessionToken("ghost-id", "ghost@example.com")
	if err != nil {
		t.Fatalf("GenerateSessionToken() error = %v", err)
	}

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "missing", token: "", wantErr: ErrInvalidToken},
		{name: "malformed", token: "garbage", wantErr: ErrInvalidToken},
		{name: "tampered", token: session.Token[:len(session.Token)-4] + "AAAA", wantErr: ErrInvalidToken},
		{name: "expired", token: expired, wantErr: ErrExpiredToken},
		{name: "nonexistent user", token: ghost, wantErr: ErrSessionUserGone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.ResolveSession(ctx, tt.token)
			if err == nil {
				t.Fatalf("ResolveSession() resolved to %q, want error", user.ID)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ResolveSession() error = %v, want %v", err, tt.wantErr)
			}
			if apperr.KindOf(err) != apperr.KindAuthorization {
				t.Errorf("KindOf() = %q, want authorization", apperr.KindOf(err))
			}
		})
	}

	// A token stops resolving once its user row is gone.
	if err := db.Delete(&domain.User{}, "id = ?", session.User.ID).Error; err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, err := svc.ResolveSession(ctx, session.Token); !errors.Is(err, ErrSessionUserGone) {
		t.Errorf("ResolveSession() after delete error = %v, want ErrSessionUserGone", err)
	}
}

func TestAuthService_ListUsersExcludesCaller(t *testing.T) {
	cache := newMemoryCache()
	svc, _ := newTestService(t, cache)
	ctx := context.Background()

	ann, err := svc.Signup(ctx, "ann@example.com", "Ann", "secret1")
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	bob, err := svc.Signup(ctx, "bob@example.com", "Bob", "secret1")
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	users, err := svc.ListUsers(ctx, ann.User.ID)
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(users) != 1 || users[0].ID != bob.User.ID {
		t.Fatalf("ListUsers() = %+v, want only bob", users)
	}

	// Second call is served from the cache.
	if _, err := svc.ListUsers(ctx, bob.User.ID); err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if cache.hits != 1 {
		t.Errorf("cache hits = %d, want 1", cache.hits)
	}

	// Signup invalidates the cached directory.
	carol, err := svc.Signup(ctx, "carol@example.com", "Carol", "secret1")
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	users, err = svc.ListUsers(ctx, ann.User.ID)
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(users) != 2 || users[1].ID != carol.User.ID {
		t.Errorf("ListUsers() after signup = %+v, want bob and carol", users)
	}
}

func TestAuthService_UpdateProfile(t *testing.T) {
	cache := newMemoryCache()
	svc, _ := newTestService(t, cache)
	ctx := context.Background()

	ann, err := svc.Signup(ctx, "ann@example.com", "Ann", "secret1")
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	if _, err := svc.UpdateProfile(ctx, ann.User.ID, ""); !errors.Is(err, ErrProfilePicRequired) {
		t.Errorf("UpdateProfile(empty) error = %v, want ErrProfilePicRequired", err)
	}
	if _, err := svc.UpdateProfile(ctx, "missing", "/api/media/x"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("UpdateProfile(missing) error = %v, want ErrUserNotFound", err)
	}

	deletesBefore := cache.deletes
	user, err := svc.UpdateProfile(ctx, ann.User.ID, "/api/media/avatar-1")
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if user.ProfilePic != "/api/media/avatar-1" {
		t.Errorf("ProfilePic = %q", user.ProfilePic)
	}
	if cache.deletes != deletesBefore+1 {
		t.Error("UpdateProfile() should invalidate the directory cache")
	}
}

func TestAuthService_GetUserNotFound(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.GetUser(context.Background(), "nobody")
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("GetUser() kind = %q, want not_found", apperr.KindOf(err))
	}
}
