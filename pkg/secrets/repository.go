package secrets

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/warden/pkg/rbac"
)

// ProjectRepository persists projects. Lookups of a single row return
// nil, nil when it does not exist.
type ProjectRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Project, error)
	// GetManyByOrganizationID lists the projects userID may see under client
	GetManyByOrganizationID(ctx context.Context, orgID, userID uuid.UUID, client rbac.AccessClientType) ([]*Project, error)
	// GetManyWithSecretsByIDs returns the existing projects among ids
	GetManyWithSecretsByIDs(ctx context.Context, ids []uuid.UUID) ([]*Project, error)
	AccessToProject(ctx context.Context, id, userID uuid.UUID, client rbac.AccessClientType) (rbac.Access, error)
	// Create stores project and grants its creator read and write access
	Create(ctx context.Context, project *Project, userID uuid.UUID, client rbac.AccessClientType) error
	Replace(ctx context.Context, project *Project) error
	DeleteManyByID(ctx context.Context, ids []uuid.UUID) error
}

// SecretRepository persists secrets
type SecretRepository interface {
	// GetManyByIDs returns the existing secrets among ids
	GetManyByIDs(ctx context.Context, ids []uuid.UUID) ([]*Secret, error)
	AccessToSecret(ctx context.Context, id, userID uuid.UUID, client rbac.AccessClientType) (rbac.Access, error)
	DeleteManyByID(ctx context.Context, ids []uuid.UUID) error
}

// ServiceAccountRepository persists service accounts
type ServiceAccountRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*ServiceAccount, error)
	GetManyByOrganizationID(ctx context.Context, orgID, userID uuid.UUID, client rbac.AccessClientType) ([]*ServiceAccount, error)
	AccessToServiceAccount(ctx context.Context, id, userID uuid.UUID, client rbac.AccessClientType) (rbac.Access, error)
	// Create stores account and grants its creator write access
	Create(ctx context.Context, account *ServiceAccount, userID uuid.UUID) error
	Replace(ctx context.Context, account *ServiceAccount) error
}

// ApiKeyRepository persists service account access tokens
type ApiKeyRepository interface {
	GetManyByServiceAccountID(ctx context.Context, serviceAccountID uuid.UUID) ([]*ApiKey, error)
	Create(ctx context.Context, key *ApiKey) error
	DeleteManyByServiceAccount(ctx context.Context, serviceAccountID uuid.UUID, ids []uuid.UUID) error
	// DeleteExpired removes keys whose expiry is at or before now
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
