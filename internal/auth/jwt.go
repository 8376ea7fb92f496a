// Package auth issues and checks the bearer tokens used by the recipe API,
// and hashes account passwords.
//
// AUTHENTICATION FLOW:
//  1. POST /api/users/login verifies name + password and returns a token
//  2. The client sends it back as "Authorization: Bearer <token>"
//  3. RequireAuth validates the token and puts the caller's Identity in the
//     request context; handlers read it with IdentityFromContext
//
// The token payload carries {userId, name}. Handlers never look at the token
// format; they only see the resolved user ID.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "recipebook"

// DefaultTokenTTL is how long a login token stays valid.
const DefaultTokenTTL = 6 * time.Hour

// Identity is what a valid token says about its bearer.
type Identity struct {
	UserID string
	Name   string
}

// TokenService signs and validates HS256 tokens with a single shared secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService. A ttl of zero means DefaultTokenTTL.
// The secret should be at least 32 bytes of random data in production.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// claims is the token payload. UserID duplicates Subject so clients that
// decode the token see the same field names as the login response.
type claims struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// Generate signs a token for the user that expires after the service TTL.
func (s *TokenService) Generate(userID, name string) (string, error) {
	return s.GenerateWithDuration(userID, name, s.ttl)
}

// GenerateWithDuration signs a token with a custom lifetime. Tests use a
// negative duration to get an already-expired token.
func (s *TokenService) GenerateWithDuration(userID, name string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		UserID: userID,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a token and returns the identity it carries.
//
// Besides the signature and expiry, the algorithm is pinned to HS256 so a
// token claiming "alg": "none" is rejected.
func (s *TokenService) Validate(tokenStr string) (Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, fmt.Errorf("auth: token expired")
		}
		return Identity{}, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return Identity{}, fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return Identity{}, fmt.Errorf("auth: token has no subject")
	}

	return Identity{UserID: c.Subject, Name: c.Name}, nil
}
