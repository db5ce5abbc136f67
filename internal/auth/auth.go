// internal/auth/auth.go
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// TokenConfig holds the configuration for session token signing
type TokenConfig struct {
	Secret     []byte
	Expiration time.Duration
}

// SessionToken binds an HTTP client to a game session
type SessionToken struct {
	SessionID string `json:"session_id"`
	ExpiresAt int64  `json:"expires_at"`
	IssuedAt  int64  `json:"issued_at"`
}

// GenerateSessionToken creates a signed token for a game session
func GenerateSessionToken(sessionID string, config *TokenConfig) (string, error) {
	if len(config.Secret) == 0 {
		return "", fmt.Errorf("secret key is required")
	}

	token := &SessionToken{
		SessionID: sessionID,
		ExpiresAt: time.Now().Add(config.Expiration).Unix(),
		IssuedAt:  time.Now().Unix(),
	}

	payload := fmt.Sprintf("%s|%d|%d", token.SessionID, token.ExpiresAt, token.IssuedAt)

	h := hmac.New(sha256.New, config.Secret)
	h.Write([]byte(payload))
	signature := h.Sum(nil)

	encodedPayload := base64.URLEncoding.EncodeToString([]byte(payload))
	encodedSignature := base64.URLEncoding.EncodeToString(signature)

	return fmt.Sprintf("%s.%s", encodedPayload, encodedSignature), nil
}

// ParseSessionToken parses and validates a session token
func ParseSessionToken(tokenString string, config *TokenConfig) (*SessionToken, error) {
	if len(config.Secret) == 0 {
		return nil, fmt.Errorf("secret key is required")
	}

	parts := strings.Split(tokenString, ".")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid token format")
	}

	payloadBytes, err := base64.URLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid token payload: %w", err)
	}

	signatureBytes, err := base64.URLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid token signature: %w", err)
	}

	expected := hmac.New(sha256.New, config.Secret)
	expected.Write(payloadBytes)

	if !hmac.Equal(signatureBytes, expected.Sum(nil)) {
		return nil, fmt.Errorf("invalid token signature")
	}

	payloadParts := strings.Split(string(payloadBytes), "|")
	if len(payloadParts) != 3 {
		return nil, fmt.Errorf("invalid payload format")
	}

	sessionID := payloadParts[0]
	expiresAt := parseTimestamp(payloadParts[1])
	issuedAt := parseTimestamp(payloadParts[2])

	if time.Now().Unix() > expiresAt {
		return nil, fmt.Errorf("token has expired")
	}

	return &SessionToken{
		SessionID: sessionID,
		ExpiresAt: expiresAt,
		IssuedAt:  issuedAt,
	}, nil
}

func parseTimestamp(timestampStr string) int64 {
	var timestamp int64
	fmt.Sscanf(timestampStr, "%d", &timestamp)
	return timestamp
}

// GenerateSecureKey generates a random key for token signing
func GenerateSecureKey(length int) ([]byte, error) {
	if length <= 0 {
		length = 32
	}

	key := make([]byte, length)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}

	return key, nil
}
