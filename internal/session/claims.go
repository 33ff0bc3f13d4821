package session

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a token cannot be decoded as a JWT
var ErrInvalidToken = errors.New("invalid token")

type identityClaims struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// parseIdentityClaims reads sub and email from a JWT without verifying it.
// The backend verified the token when it issued it.
func parseIdentityClaims(tokenString string) (*identityClaims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	claims := &identityClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, ErrInvalidToken
	}

	// Some issuers put the address in "username"
	if claims.Email == "" {
		claims.Email = claims.Username
	}
	return claims, nil
}
