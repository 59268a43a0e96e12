package crypto

import (
	"strings"
	"testing"
)

// TestHashPassword проверяет базовое хеширование пароля
func TestHashPassword(t *testing.T) {
	tests := []struct {
		name        string
		password    string
		expectError error
	}{
		{"valid password", "correct-horse-battery", nil},
		{"empty password", "", ErrEmptyPassword},
		{"too long", strings.Repeat("x", 73), ErrPasswordTooLong},
		{"exactly max length", strings.Repeat("x", 72), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.password)
			if err != tt.expectError {
				t.Fatalf("expected error %v, got %v", tt.expectError, err)
			}
			if tt.expectError == nil {
				if hash == "" || hash == tt.password {
					t.Error("hash must be non-empty and differ from password")
				}
				if !strings.HasPrefix(hash, "$2a$") && !strings.HasPrefix(hash, "$2b$") {
					t.Errorf("hash should start with bcrypt prefix, got: %s", hash[:4])
				}
			}
		})
	}
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("admin-password")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	if err := VerifyPassword("admin-password", hash); err != nil {
		t.Errorf("correct password rejected: %v", err)
	}

	if err := VerifyPassword("wrong", hash); err != ErrPasswordMismatch {
		t.Errorf("expected ErrPasswordMismatch, got %v", err)
	}

	if err := VerifyPassword("", hash); err != ErrEmptyPassword {
		t.Errorf("expected ErrEmptyPassword, got %v", err)
	}

	if err := VerifyPassword("admin-password", ""); err != ErrInvalidHash {
		t.Errorf("expected ErrInvalidHash, got %v", err)
	}

	if err := VerifyPassword("admin-password", "not-a-bcrypt-hash"); err != ErrInvalidHash {
		t.Errorf("expected ErrInvalidHash for garbage hash, got %v", err)
	}
}

func TestCheckPasswordMatch(t *testing.T) {
	hash, _ := HashPassword("secret")

	if !CheckPasswordMatch("secret", hash) {
		t.Error("expected match")
	}
	if CheckPasswordMatch("other", hash) {
		t.Error("expected mismatch")
	}
}

// TestHashUniqueness: одинаковые пароли дают разные хеши (случайный salt)
func TestHashUniqueness(t *testing.T) {
	h1, _ := HashPassword("same")
	h2, _ := HashPassword("same")
	if h1 == h2 {
		t.Error("two hashes of the same password must differ")
	}
}
