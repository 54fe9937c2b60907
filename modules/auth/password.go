package auth

import (
	"fmt"

	"github.com/example/chat-app/domain/apperr"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the cost used when BCRYPT_COST is unset.
const DefaultBcryptCost = 12

const (
	minPasswordLength = 6
	// bcrypt ignores everything past 72 bytes.
	maxPasswordLength = 72
)

var (
	// ErrWeakPassword is returned when password is too short.
	ErrWeakPassword = apperr.Validation("password must be at least 6 characters")
	// ErrPasswordTooLong is returned when password exceeds bcrypt's 72-byte limit.
	ErrPasswordTooLong = apperr.Validation("password must be at most 72 characters")
)

// PasswordHasher applies the account password policy and stores passwords
// as bcrypt hashes.
type PasswordHasher struct {
	cost  int
	decoy []byte
}

// NewPasswordHasher creates a PasswordHasher. Costs outside bcrypt's range
// fall back to bcrypt.DefaultCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	// The decoy has the same cost as real hashes, so Reject takes as long as
	// a failed Verify.
	decoy, err := bcrypt.GenerateFromPassword([]byte("decoy-password"), cost)
	if err != nil {
		panic(fmt.Sprintf("auth: bcrypt decoy: %v", err))
	}
	return &PasswordHasher{cost: cost, decoy: decoy}
}

// Check enforces the length policy. Length is counted in bytes.
func (h *PasswordHasher) Check(password string) error {
	switch {
	case len(password) < minPasswordLength:
		return ErrWeakPassword
	case len(password) > maxPasswordLength:
		return ErrPasswordTooLong
	}
	return nil
}

// Hash checks password against the policy and returns its bcrypt hash.
func (h *PasswordHasher) Hash(password string) (string, error) {
	if err := h.Check(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether password matches hash.
func (h *PasswordHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Reject spends the work of one failed Verify. Login calls it for unknown
// emails so response time does not reveal which accounts exist.
func (h *PasswordHasher) Reject(password string) {
	_ = bcrypt.CompareHashAndPassword(h.decoy, []byte(password))
}
