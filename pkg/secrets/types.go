package secrets

import (
	"time"

	"github.com/google/uuid"
)

// ScopeSecrets is the only scope granted to service account access tokens
const ScopeSecrets = "api.secrets"

// Project groups secrets inside an organization
type Project struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	// SecretIDs is filled only by GetManyWithSecretsByIDs
	SecretIDs []uuid.UUID `json:"-"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// ProjectWithAccess is a project together with the caller's grant on it
type ProjectWithAccess struct {
	*Project
	Read  bool `json:"read"`
	Write bool `json:"write"`
}

// Secret is an encrypted key/value pair, optionally attached to projects
type Secret struct {
	ID             uuid.UUID   `json:"id"`
	OrganizationID uuid.UUID   `json:"organization_id"`
	Key            string      `json:"key"`
	Value          string      `json:"value"`
	Note           string      `json:"note,omitempty"`
	ProjectIDs     []uuid.UUID `json:"project_ids,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// ServiceAccount is a machine identity that reads secrets through access tokens
type ServiceAccount struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ApiKey is a stored service account access token. Only the secret's hash
// is kept.
type ApiKey struct {
	ID               uuid.UUID  `json:"id"`
	ServiceAccountID uuid.UUID  `json:"service_account_id"`
	Name             string     `json:"name"`
	ClientSecretHash string     `json:"-"`
	Scope            []string   `json:"scope"`
	EncryptedPayload string     `json:"encrypted_payload"`
	Key              string     `json:"key"`
	ExpireAt         *time.Time `json:"expire_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Expired reports whether the key has expired at now.
func (k *ApiKey) Expired(now time.Time) bool {
	return k.ExpireAt != nil && !k.ExpireAt.After(now)
}

// AccessTokenRequest describes a new access token
type AccessTokenRequest struct {
	Name             string     `json:"name"`
	EncryptedPayload string     `json:"encrypted_payload"`
	Key              string     `json:"key"`
	ExpireAt         *time.Time `json:"expire_at,omitempty"`
}

// AccessTokenResult carries the one-time client secret of a new token
type AccessTokenResult struct {
	*ApiKey
	ClientSecret string `json:"client_secret"`
}
