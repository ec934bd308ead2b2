package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.True(t, CheckPassword(hash, "correct horse battery staple"))
	require.False(t, CheckPassword(hash, "wrong"))
}

func TestNewResetPin_SixDigits(t *testing.T) {
	pin, err := NewResetPin()
	require.NoError(t, err)
	require.Len(t, pin, 6)
}

func TestVerifyPin(t *testing.T) {
	now := time.Now()
	expires := now.Add(PinTTL)

	require.NoError(t, VerifyPin("123456", "123456", expires, now))
	require.ErrorIs(t, VerifyPin("123456", "654321", expires, now), ErrPinMismatch)
	require.ErrorIs(t, VerifyPin("123456", "123456", now.Add(-time.Minute), now), ErrPinExpired)
}
