// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/danielhkuo/pitwall/models"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrMissingSecret = errors.New("token secret is empty")
)

// GenerateID creates a random UUID for new rows
func GenerateID() string {
	return uuid.NewString()
}

// principalClaims is the token payload the identity provider issues.
type principalClaims struct {
	User models.Principal `json:"user"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for a principal.
// Used by the identity provider and by tests; this service only verifies.
func IssueToken(p models.Principal, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}

	now := time.Now()
	claims := principalClaims{
		User: p,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// ParseToken verifies a token and returns the principal it carries.
// The principal is trusted verbatim, wallet and admin flag included.
func ParseToken(token, secret string) (models.Principal, error) {
	if secret == "" {
		return models.Principal{}, ErrMissingSecret
	}

	var claims principalClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return models.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.User.ID == "" {
		return models.Principal{}, ErrInvalidToken
	}

	return claims.User, nil
}
