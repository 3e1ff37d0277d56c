package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const inviteIssuer = "warden/invite"

// ErrInvalidInviteToken indicates the invite token failed validation.
var ErrInvalidInviteToken = errors.New("invalid invite token")

// InviteClaims are the claims carried by an organization invite token.
type InviteClaims struct {
	OrganizationUserID uuid.UUID `json:"orgUserId"`
	Email              string    `json:"email"`
	jwt.RegisteredClaims
}

// InviteTokenFactory signs and verifies expiring invite tokens.
type InviteTokenFactory struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewInviteTokenFactory returns a factory signing with secret.
func NewInviteTokenFactory(secret string, lifetime time.Duration) (*InviteTokenFactory, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("invite token secret is required")
	}
	if lifetime <= 0 {
		return nil, errors.New("invite token lifetime must be greater than zero")
	}
	return &InviteTokenFactory{secret: []byte(secret), lifetime: lifetime, now: time.Now}, nil
}

// Generate signs a token for the invited member.
func (f *InviteTokenFactory) Generate(orgUserID uuid.UUID, email string) (string, error) {
	now := f.now().UTC()
	claims := InviteClaims{
		OrganizationUserID: orgUserID,
		Email:              strings.ToLower(email),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    inviteIssuer,
			Subject:   orgUserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(f.lifetime)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(f.secret)
	if err != nil {
		return "", fmt.Errorf("sign invite token: %w", err)
	}
	return signed, nil
}

// Validate verifies token and checks it belongs to orgUserID and email.
func (f *InviteTokenFactory) Validate(token string, orgUserID uuid.UUID, email string) (*InviteClaims, error) {
	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(token), &InviteClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidInviteToken
		}
		return f.secret, nil
	}, jwt.WithIssuer(inviteIssuer), jwt.WithTimeFunc(f.now))
	if err != nil {
		return nil, ErrInvalidInviteToken
	}

	claims, ok := parsed.Claims.(*InviteClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidInviteToken
	}
	if claims.OrganizationUserID != orgUserID || !strings.EqualFold(claims.Email, email) {
		return nil, ErrInvalidInviteToken
	}
	return claims, nil
}
