// Package auth issues and checks the tokens the API relies on: CSRF tokens
// and signed identity tokens. It also parses the trusted identity header.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

// DeriveKey expands secret into a 32 byte key bound to purpose, so the CSRF
// and identity signers never share key material.
func DeriveKey(secret []byte, purpose string) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte("kanban:"+purpose)), key); err != nil {
		return nil, fmt.Errorf("derive %s key: %w", purpose, err)
	}
	return key, nil
}

type csrfClaims struct {
	Nonce string `json:"n"`
	Exp   int64  `json:"exp"`
}

// IssueCSRF returns a payload.signature token valid for ttl.
func IssueCSRF(key []byte, ttl time.Duration, now time.Time) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("csrf nonce: %w", err)
	}
	payloadBytes, err := json.Marshal(csrfClaims{
		Nonce: base64.RawURLEncoding.EncodeToString(nonce),
		Exp:   now.Add(ttl).Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal csrf claims: %w", err)
	}
	payload := base64.RawURLEncoding.EncodeToString(payloadBytes)
	return payload + "." + sign(key, payload), nil
}

func VerifyCSRF(key []byte, token string, now time.Time) error {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return ErrInvalidToken
	}
	payload := parts[0]
	signature := parts[1]

	expected := sign(key, payload)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrInvalidToken
	}

	decoded, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return ErrInvalidToken
	}
	var claims csrfClaims
	if err := json.Unmarshal(decoded, &claims); err != nil {
		return ErrInvalidToken
	}
	if claims.Nonce == "" || claims.Exp == 0 {
		return ErrInvalidToken
	}
	if now.Unix() >= claims.Exp {
		return ErrExpiredToken
	}
	return nil
}

func sign(secret []byte, payload string) string {
	sum := hmac.New(sha256.New, secret)
	_, _ = sum.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(sum.Sum(nil))
}
