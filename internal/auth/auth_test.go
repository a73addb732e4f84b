package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func signToken(t *testing.T, key []byte, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err, "failed to sign test token")
	return token
}

func TestVerify(t *testing.T) {
	v := NewVerifier(testKey)

	token := signToken(t, testKey, jwt.SigningMethodHS256, jwt.MapClaims{
		"user-id": 7,
		"role":    "manager",
	})

	identity, err := v.Verify(token)
	assert.NoError(t, err, "expected a valid token to verify")
	assert.Equal(t, 7, identity.UserId, "expected the user id claim")
	assert.Equal(t, "manager", identity.Role, "expected the role claim")
}

func TestVerifyMissingRole(t *testing.T) {
	v := NewVerifier(testKey)

	token := signToken(t, testKey, jwt.SigningMethodHS256, jwt.MapClaims{
		"user-id": 7,
	})

	identity, err := v.Verify(token)
	assert.NoError(t, err, "role is optional")
	assert.Empty(t, identity.Role, "expected an empty role")
}

func TestVerifyRejects(t *testing.T) {
	v := NewVerifier(testKey)

	testCases := []struct {
		name  string
		token string
	}{
		{
			name:  "garbage",
			token: "not.a.token",
		},
		{
			name: "wrong key",
			token: signToken(t, []byte("another-key-another-key-another!"), jwt.SigningMethodHS256, jwt.MapClaims{
				"user-id": 7,
			}),
		},
		{
			name: "expired",
			token: signToken(t, testKey, jwt.SigningMethodHS256, jwt.MapClaims{
				"user-id": 7,
				"exp":     time.Now().Add(-time.Hour).Unix(),
			}),
		},
		{
			name: "missing user id claim",
			token: signToken(t, testKey, jwt.SigningMethodHS256, jwt.MapClaims{
				"role": "manager",
			}),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Verify(tc.token)
			assert.ErrorIs(t, err, ErrUnauthorized, "expected unauthorized")
		})
	}
}

func TestVerifyRejectsNonHMAC(t *testing.T) {
	v := NewVerifier(testKey)

	// alg=none tokens must never pass
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"user-id": 7,
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrUnauthorized, "expected unsigned tokens rejected")
}
