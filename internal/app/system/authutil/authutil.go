// Package authutil holds the password and account-mail rules used by
// registration and login.
package authutil

import (
	"errors"
	"strings"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/dalemusser/waffle/pantry/validate"
	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 6
	MaxPasswordLength = 128

	// BcryptCost is the work factor for stored password hashes.
	BcryptCost = 12
)

var (
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
	ErrPasswordTooLong  = errors.New("password must be at most 128 characters")
	ErrPasswordCommon   = errors.New("password is too common")
	ErrMailInvalid      = errors.New("a valid email address is required")
	ErrNameRequired     = errors.New("name is required")
)

var commonPasswords = map[string]struct{}{
	"123456": {}, "1234567": {}, "12345678": {}, "123456789": {},
	"password": {}, "qwerty": {}, "abc123": {}, "iloveyou": {},
	"letmein": {}, "football": {}, "welcome": {}, "monkey": {},
	"dragon": {}, "111111": {}, "000000": {}, "admin": {},
}

// ValidatePassword checks length bounds and rejects very common passwords.
func ValidatePassword(pw string) error {
	switch {
	case len(pw) < MinPasswordLength:
		return ErrPasswordTooShort
	case len(pw) > MaxPasswordLength:
		return ErrPasswordTooLong
	}
	if _, bad := commonPasswords[strings.ToLower(pw)]; bad {
		return ErrPasswordCommon
	}
	return nil
}

// HashPassword returns the bcrypt hash of pw.
func HashPassword(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// CheckPassword reports whether pw matches hash.
func CheckPassword(pw, hash string) bool {
	if pw == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// NormalizeMail trims and case-folds an account mail and checks its shape.
// Stored mails are always in this form so lookups can match exactly.
func NormalizeMail(mail string) (string, error) {
	m := text.Fold(strings.TrimSpace(mail))
	if m == "" || !validate.SimpleEmailValid(m) {
		return "", ErrMailInvalid
	}
	return m, nil
}

// Registration is the input to account creation after normalization.
type Registration struct {
	Name         string
	Mail         string
	PasswordHash string
}

// ResolveRegistration validates raw registration input and hashes the
// password.
func ResolveRegistration(name, mail, password string) (Registration, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Registration{}, ErrNameRequired
	}
	m, err := NormalizeMail(mail)
	if err != nil {
		return Registration{}, err
	}
	if err := ValidatePassword(password); err != nil {
		return Registration{}, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return Registration{}, err
	}
	return Registration{Name: name, Mail: m, PasswordHash: hash}, nil
}
