package credential

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidPasskey is returned when a passkey does not match its hash.
var ErrInvalidPasskey = errors.New("invalid passkey")

// ValidatePasskey checks the passkey format: 4 to 6 digits.
func ValidatePasskey(p string) error {
	if len(p) < 4 || len(p) > 6 {
		return fmt.Errorf("passkey must be 4-6 digits")
	}
	for _, r := range p {
		if r < '0' || r > '9' {
			return fmt.Errorf("passkey must be 4-6 digits")
		}
	}
	return nil
}

// HashPasskey returns the bcrypt hash of a valid passkey.
func HashPasskey(p string) (string, error) {
	if err := ValidatePasskey(p); err != nil {
		return "", err
	}
	h, err := bcrypt.GenerateFromPassword([]byte(p), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash passkey: %w", err)
	}
	return string(h), nil
}

// VerifyPasskey returns ErrInvalidPasskey unless p matches hash.
func VerifyPasskey(hash, p string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(p)); err != nil {
		return ErrInvalidPasskey
	}
	return nil
}
