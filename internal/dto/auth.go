package dto

import "github.com/golang-jwt/jwt/v5"

// ==================== Auth DTOs ====================

// JWTClaims operator token claims
type JWTClaims struct {
	Operator string `json:"operator"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenResponse minted operator token
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}
