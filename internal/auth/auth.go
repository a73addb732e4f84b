// Package auth is the boundary to the external credential issuer. The
// coordination core only verifies bearer tokens; issuing them is someone
// else's job.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt"
)

var ErrUnauthorized = errors.New("unauthorized")

const (
	userIdClaim = "user-id"
	roleClaim   = "role"
)

// Identity is what a verified credential resolves to.
type Identity struct {
	UserId int
	Role   string
}

type Verifier struct {
	signingKey []byte
}

func NewVerifier(signingKey []byte) *Verifier {
	return &Verifier{signingKey: signingKey}
}

// Verify parses and validates a bearer token and extracts the identity
// claims. Any parse or claim failure maps to ErrUnauthorized.
func (v *Verifier) Verify(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: parse token: %v", ErrUnauthorized, err)
	}

	if !token.Valid {
		return Identity{}, fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, fmt.Errorf("%w: invalid token claims", ErrUnauthorized)
	}

	userId, ok := claims[userIdClaim].(float64)
	if !ok {
		return Identity{}, fmt.Errorf("%w: invalid user id claim", ErrUnauthorized)
	}

	role, _ := claims[roleClaim].(string)

	return Identity{
		UserId: int(userId),
		Role:   role,
	}, nil
}
