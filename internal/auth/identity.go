package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"kanban/api/internal/rbac"
)

var (
	ErrMissingIdentity   = errors.New("missing identity")
	ErrMalformedIdentity = errors.New("malformed identity")
)

// Identity is the caller as a member of the organisation.
type Identity struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email,omitempty"`
	Role  rbac.Role `json:"role"`
}

type identityClaims struct {
	Name  string    `json:"name"`
	Email string    `json:"email,omitempty"`
	Role  rbac.Role `json:"role"`
	jwt.RegisteredClaims
}

// IssueIdentity signs id into an HS256 JWT valid for ttl.
func IssueIdentity(key []byte, id Identity, ttl time.Duration, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, identityClaims{
		Name:  id.Name,
		Email: id.Email,
		Role:  id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign identity token: %w", err)
	}
	return signed, nil
}

func ParseIdentity(key []byte, tokenString string) (Identity, error) {
	var claims identityClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	})
	if errors.Is(err, jwt.ErrTokenExpired) {
		return Identity{}, ErrExpiredToken
	}
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{
		ID:    claims.Subject,
		Name:  claims.Name,
		Email: claims.Email,
		Role:  rbac.Normalize(string(claims.Role)),
	}, nil
}

// ParseIdentityHeader decodes the JSON member object sent by trusted callers.
// An unknown or empty role is read as viewer.
func ParseIdentityHeader(value string) (Identity, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Identity{}, ErrMissingIdentity
	}
	var raw struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := json.Unmarshal([]byte(value), &raw); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrMalformedIdentity, err)
	}
	if strings.TrimSpace(raw.ID) == "" {
		return Identity{}, fmt.Errorf("%w: id is required", ErrMalformedIdentity)
	}
	return Identity{
		ID:    strings.TrimSpace(raw.ID),
		Name:  strings.TrimSpace(raw.Name),
		Email: strings.TrimSpace(raw.Email),
		Role:  rbac.Normalize(raw.Role),
	}, nil
}
