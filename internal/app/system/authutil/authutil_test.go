package authutil

import (
	"strings"
	"testing"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		pw   string
		want error
	}{
		{"secure123", nil},
		{"MyP@ssw0rd", nil},
		{"abcdef1", nil},
		{strings.Repeat("a", 128), nil},
		{"", ErrPasswordTooShort},
		{"abcde", ErrPasswordTooShort},
		{strings.Repeat("a", 129), ErrPasswordTooLong},
		{"password", ErrPasswordCommon},
		{"PASSWORD", ErrPasswordCommon},
		{"ILoveYou", ErrPasswordCommon},
		{"123456", ErrPasswordCommon},
	}
	for _, tt := range tests {
		if got := ValidatePassword(tt.pw); got != tt.want {
			t.Errorf("ValidatePassword(%q) = %v, want %v", tt.pw, got, tt.want)
		}
	}
}

func TestHashPassword_DifferentHashesForSamePassword(t *testing.T) {
	h1, err := HashPassword("SecurePassword123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	h2, err := HashPassword("SecurePassword123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if h1 == h2 {
		t.Error("expected different hashes for the same password")
	}
	if !strings.HasPrefix(h1, "$2") {
		t.Errorf("hash %q is not a bcrypt hash", h1)
	}
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("SecurePassword123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	tests := []struct {
		pw, hash string
		want     bool
	}{
		{"SecurePassword123", hash, true},
		{"WrongPassword456", hash, false},
		{"", hash, false},
		{"SecurePassword123", "not-a-valid-hash", false},
		{"SecurePassword123", "", false},
	}
	for _, tt := range tests {
		if got := CheckPassword(tt.pw, tt.hash); got != tt.want {
			t.Errorf("CheckPassword(%q) = %v, want %v", tt.pw, got, tt.want)
		}
	}
}

func TestNormalizeMail(t *testing.T) {
	got, err := NormalizeMail("  Alice@Example.COM ")
	if err != nil {
		t.Fatalf("NormalizeMail: %v", err)
	}
	if got != "alice@example.com" {
		t.Errorf("NormalizeMail = %q", got)
	}
	for _, bad := range []string{"", "   ", "alice", "alice@"} {
		if _, err := NormalizeMail(bad); err != ErrMailInvalid {
			t.Errorf("NormalizeMail(%q) err = %v, want ErrMailInvalid", bad, err)
		}
	}
}

func TestResolveRegistration(t *testing.T) {
	reg, err := ResolveRegistration(" Alice ", "Alice@Example.com", "secure123")
	if err != nil {
		t.Fatalf("ResolveRegistration: %v", err)
	}
	if reg.Name != "Alice" || reg.Mail != "alice@example.com" {
		t.Errorf("reg = %+v", reg)
	}
	if !CheckPassword("secure123", reg.PasswordHash) {
		t.Error("stored hash does not match password")
	}

	if _, err := ResolveRegistration("", "a@b.co", "secure123"); err != ErrNameRequired {
		t.Errorf("missing name err = %v", err)
	}
	if _, err := ResolveRegistration("A", "a@b.co", "abc"); err != ErrPasswordTooShort {
		t.Errorf("short password err = %v", err)
	}
}
