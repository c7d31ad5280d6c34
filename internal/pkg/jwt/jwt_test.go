package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerify(t *testing.T) {
	secret := []byte("test-secret")
	token, err := GenerateToken("manual.pdf", secret, time.Minute)
	require.NoError(t, err)

	require.NoError(t, VerifyObject(token, "manual.pdf", secret))
	require.Error(t, VerifyObject(token, "other.pdf", secret))
	require.Error(t, VerifyObject(token, "manual.pdf", []byte("wrong")))
}

func TestExpiredToken(t *testing.T) {
	secret := []byte("test-secret")
	token, err := GenerateToken("manual.pdf", secret, -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token, secret)
	require.Error(t, err)
}
