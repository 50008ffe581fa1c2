// Package auth issues and validates the bearer tokens of the sharescan API.
package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenType distinguishes API access tokens from other tokens signed with
// the same secret.
type TokenType string

const (
	// TokenTypeAccess authorizes calls to /api/v1.
	TokenTypeAccess TokenType = "access"
)

// Claims are the JWT claims of an API token.
type Claims struct {
	jwt.RegisteredClaims

	// TokenType must be TokenTypeAccess for API calls.
	TokenType TokenType `json:"token_type"`
}

// IsAccessToken returns true if this is an access token.
func (c *Claims) IsAccessToken() bool {
	return c.TokenType == TokenTypeAccess
}
