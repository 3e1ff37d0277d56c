package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	// AccessTokenVersion is the leading segment of a service account access token
	AccessTokenVersion = "0"
	// SecretLength is the number of random bytes in a client secret (30 bytes = 240 bits)
	SecretLength = 30
)

// TokenGenerator creates service account client secrets and their hashes
type TokenGenerator struct{}

// NewTokenGenerator creates a new token generator
func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{}
}

// GenerateSecret creates a new client secret.
// Only the hash is stored; the secret is shown to the caller once.
func (tg *TokenGenerator) GenerateSecret() (secret string, secretHash string, err error) {
	randomBytes := make([]byte, SecretLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	secret = base64.RawURLEncoding.EncodeToString(randomBytes)
	return secret, tg.HashSecret(secret), nil
}

// HashSecret computes the SHA256 hash of a client secret for lookup
func (tg *TokenGenerator) HashSecret(secret string) string {
	hash := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(hash[:])
}

// FormatAccessToken assembles the token handed back to the client.
// Format: 0.<api key id>.<client secret>:<encryption key>
func (tg *TokenGenerator) FormatAccessToken(apiKeyID uuid.UUID, secret, encryptionKey string) string {
	return fmt.Sprintf("%s.%s.%s:%s", AccessTokenVersion, apiKeyID, secret, encryptionKey)
}

// ParseAccessToken splits an access token into its id, secret and key parts
func (tg *TokenGenerator) ParseAccessToken(token string) (apiKeyID uuid.UUID, secret string, encryptionKey string, err error) {
	parts := strings.SplitN(token, ".", 3)
	if len(parts) != 3 || parts[0] != AccessTokenVersion {
		return uuid.Nil, "", "", fmt.Errorf("unsupported access token format")
	}

	apiKeyID, err = uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, "", "", fmt.Errorf("invalid access token id: %w", err)
	}

	secretAndKey := strings.SplitN(parts[2], ":", 2)
	if len(secretAndKey) != 2 || secretAndKey[0] == "" {
		return uuid.Nil, "", "", fmt.Errorf("access token is missing its secret")
	}

	if _, err := base64.RawURLEncoding.DecodeString(secretAndKey[0]); err != nil {
		return uuid.Nil, "", "", fmt.Errorf("invalid secret encoding: %w", err)
	}

	return apiKeyID, secretAndKey[0], secretAndKey[1], nil
}
