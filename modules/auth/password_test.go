package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_Check(t *testing.T) {
	hasher := NewPasswordHasher(bcrypt.MinCost)

	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{name: "five characters", password: "12345", wantErr: ErrWeakPassword},
		{name: "six characters", password: "123456"},
		{name: "72 bytes", password: strings.Repeat("a", 72)},
		{name: "73 bytes", password: strings.Repeat("a", 73), wantErr: ErrPasswordTooLong},
		// Three characters, six bytes.
		{name: "multibyte counted in bytes", password: "密码码"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := hasher.Check(tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Check() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	hasher := NewPasswordHasher(bcrypt.MinCost)

	tests := []struct {
		name     string
		password string
		attempt  string
		want     bool
	}{
		{name: "matching password", password: "secret123", attempt: "secret123", want: true},
		{name: "wrong password", password: "secret123", attempt: "secret124", want: false},
		{name: "empty attempt", password: "secret123", attempt: "", want: false},
		{name: "unicode password", password: "пароль-密码", attempt: "пароль-密码", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := hasher.Hash(tt.password)
			if err != nil {
				t.Fatalf("Hash() error = %v", err)
			}
			if hash == tt.password {
				t.Fatal("Hash() returned the plain password")
			}
			if got := hasher.Verify(tt.attempt, hash); got != tt.want {
				t.Errorf("Verify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPasswordHasher_HashEnforcesPolicy(t *testing.T) {
	hasher := NewPasswordHasher(bcrypt.MinCost)

	if _, err := hasher.Hash("short"); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("Hash() error = %v, want %v", err, ErrWeakPassword)
	}
}

func TestPasswordHasher_Salted(t *testing.T) {
	hasher := NewPasswordHasher(bcrypt.MinCost)

	hash1, err := hasher.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	hash2, err := hasher.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash1 == hash2 {
		t.Error("two hashes of one password should differ")
	}
}

func TestNewPasswordHasher_CostOutOfRange(t *testing.T) {
	for _, cost := range []int{0, 99} {
		h := NewPasswordHasher(cost)
		if h.cost != bcrypt.DefaultCost {
			t.Errorf("NewPasswordHasher(%d).cost = %d, want %d", cost, h.cost, bcrypt.DefaultCost)
		}
		if got, err := bcrypt.Cost(h.decoy); err != nil || got != h.cost {
			t.Errorf("decoy cost = %d (%v), want %d", got, err, h.cost)
		}
	}
}

func TestPasswordHasher_RejectNeverMatches(t *testing.T) {
	hasher := NewPasswordHasher(bcrypt.MinCost)
	// Must not panic and must not depend on any stored hash.
	hasher.Reject("anything")
	hasher.Reject("")
}
