package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// PinTTL bounds how long a password-reset PIN stays redeemable.
const PinTTL = 15 * time.Minute

var (
	ErrPinMismatch = errors.New("pin does not match")
	ErrPinExpired  = errors.New("pin has expired")
)

// HashPassword returns a bcrypt hash of the plain-text password.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether plain matches the stored bcrypt hash.
func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// NewResetPin generates a 6-digit PIN using crypto/rand.
func NewResetPin() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// VerifyPin checks a submitted PIN against the stored one and its deadline.
func VerifyPin(stored, submitted string, expiresAt, now time.Time) error {
	if now.After(expiresAt) {
		return ErrPinExpired
	}
	if stored == "" || stored != submitted {
		return ErrPinMismatch
	}
	return nil
}
