package handlers

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"twister-backend/internal/dto"
)

const tokenIssuer = "twister-backend"

// JWTClaims operator claims carried in bearer tokens
type JWTClaims = dto.JWTClaims

var (
	jwtSecretMu sync.RWMutex
	jwtSecret   []byte
)

// SetJWTSecret installs the HMAC key used to mint and verify tokens.
func SetJWTSecret(secret string) {
	jwtSecretMu.Lock()
	defer jwtSecretMu.Unlock()
	jwtSecret = []byte(secret)
}

func currentSecret() ([]byte, error) {
	jwtSecretMu.RLock()
	defer jwtSecretMu.RUnlock()
	if len(jwtSecret) == 0 {
		return nil, errors.New("jwt secret is not configured")
	}
	return jwtSecret, nil
}

// GenerateJWTToken mints an HS256 operator token valid for ttl.
func GenerateJWTToken(operator, role string, ttl time.Duration) (*dto.TokenResponse, error) {
	secret, err := currentSecret()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := JWTClaims{
		Operator: operator,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   operator,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &dto.TokenResponse{Token: tokenString, ExpiresAt: expiresAt.Unix()}, nil
}

// ValidateJWTToken verifies signature, algorithm, issuer and expiry.
func ValidateJWTToken(tokenString string) (*JWTClaims, error) {
	secret, err := currentSecret()
	if err != nil {
		return nil, err
	}
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}
