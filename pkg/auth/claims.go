package auth

import "github.com/golang-jwt/jwt/v5"

// RoleAdmin is the only role the service issues tokens for.
const RoleAdmin = "admin"

// AdminTokenClaims represents the typed JWT issued after an admin login.
type AdminTokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}
