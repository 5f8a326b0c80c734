// internal/app/system/authutil/authutil.go
package authutil

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 6
	// bcrypt only looks at the first 72 bytes; we cap well above that for passphrases.
	MaxPasswordLength = 128
)

var (
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrPasswordTooLong  = fmt.Errorf("password must be at most %d characters", MaxPasswordLength)
	ErrPasswordCommon   = errors.New("password is too common")
)

var commonPasswords = map[string]struct{}{
	"123456": {}, "1234567": {}, "12345678": {}, "123456789": {}, "1234567890": {},
	"password": {}, "password1": {}, "qwerty": {}, "qwerty123": {}, "abc123": {},
	"111111": {}, "000000": {}, "iloveyou": {}, "letmein": {}, "football": {},
	"welcome": {}, "monkey": {}, "dragon": {}, "admin123": {}, "courier": {},
}

// ValidatePassword checks length and rejects well-known passwords.
func ValidatePassword(pw string) error {
	if len(pw) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(pw) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	if _, bad := commonPasswords[strings.ToLower(pw)]; bad {
		return ErrPasswordCommon
	}
	return nil
}

// PasswordRules describes ValidatePassword for form hints.
func PasswordRules() string {
	return fmt.Sprintf("At least %d characters. Avoid common passwords.", MinPasswordLength)
}

// HashPassword returns a bcrypt hash of pw.
func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword reports whether pw matches hash.
func CheckPassword(pw, hash string) bool {
	if pw == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}
