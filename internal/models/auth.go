package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the bearer token payload accepted by the API.
type JWTClaims struct {
	Username string   `json:"username"`
	Role     UserRole `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Actor returns the identity recorded in audit logs.
func (c *JWTClaims) Actor() string {
	if c == nil || c.Username == "" {
		return AnonymousActor
	}
	return c.Username
}
