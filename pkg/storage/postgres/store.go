package postgres

import (
	"database/sql"
)

// Store bundles every repository over one primary and a read pool
type Store struct {
	Organizations     *OrganizationRepository
	OrganizationUsers *OrganizationUserRepository
	Policies          *PolicyRepository
	Users             *UserRepository
	Projects          *ProjectRepository
	Secrets           *SecretRepository
	ServiceAccounts   *ServiceAccountRepository
	ApiKeys           *ApiKeyRepository
}

var _ ReadPool = (*ConnectionManager)(nil)

// NewStore builds the repositories. A nil read serves reads from primary.
func NewStore(primary *sql.DB, read ReadPool) *Store {
	return &Store{
		Organizations:     NewOrganizationRepository(primary),
		OrganizationUsers: NewOrganizationUserRepository(primary),
		Policies:          NewPolicyRepository(primary),
		Users:             NewUserRepository(primary),
		Projects:          NewProjectRepository(primary, read),
		Secrets:           NewSecretRepository(primary),
		ServiceAccounts:   NewServiceAccountRepository(primary, read),
		ApiKeys:           NewApiKeyRepository(primary, read),
	}
}
