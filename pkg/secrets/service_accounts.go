package secrets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/errs"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/rbac"
)

// Access token validation messages
const (
	MsgTokenExpiryInPast = "Access token expiration must be in the future."
	MsgTokenKeyRequired  = "Access token key and payload are required."
	MsgNoTokensToRevoke  = "No access tokens were provided."
)

// SecretGenerator creates client secrets and their stored hashes
type SecretGenerator interface {
	GenerateSecret() (secret string, secretHash string, err error)
}

// ServiceAccountService manages service accounts and their access tokens.
// Every authorization failure is reported as NotFound.
type ServiceAccountService struct {
	accounts ServiceAccountRepository
	apiKeys  ApiKeyRepository
	secrets  SecretGenerator
	access   *resolver
	logger   logrus.FieldLogger
	now      func() time.Time
}

// NewServiceAccountService creates a service account service. A nil
// generator uses auth.TokenGenerator.
func NewServiceAccountService(accounts ServiceAccountRepository, apiKeys ApiKeyRepository, generator SecretGenerator, evaluator *rbac.Evaluator, metrics *observability.Metrics, logger logrus.FieldLogger) *ServiceAccountService {
	if generator == nil {
		generator = auth.NewTokenGenerator()
	}
	return &ServiceAccountService{
		accounts: accounts,
		apiKeys:  apiKeys,
		secrets:  generator,
		access:   newResolver(evaluator, metrics),
		logger:   defaultLogger(logger),
		now:      time.Now,
	}
}

// authorized loads the account and checks op against it.
func (s *ServiceAccountService) authorized(ctx context.Context, ac *auth.ActorContext, id uuid.UUID, op rbac.Operation) (*ServiceAccount, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get service account: %w", err)
	}
	if account == nil {
		return nil, errs.NotFound("")
	}

	lookup := func(ctx context.Context, userID uuid.UUID, client rbac.AccessClientType) (rbac.Access, error) {
		return s.accounts.AccessToServiceAccount(ctx, id, userID, client)
	}
	_, d, err := s.access.decide(ctx, ac, rbac.ResourceServiceAccount, op, account.OrganizationID, lookup)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, errs.NotFound("")
	}
	return account, nil
}

// List returns the service accounts of orgID visible to the caller.
func (s *ServiceAccountService) List(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID) ([]*ServiceAccount, error) {
	if !ac.AccessSecretsManager(orgID) {
		return nil, errs.NotFound("")
	}

	accounts, err := s.accounts.GetManyByOrganizationID(ctx, orgID, ac.UserID(), s.access.client(ac, orgID))
	if err != nil {
		return nil, fmt.Errorf("failed to list service accounts: %w", err)
	}
	return accounts, nil
}

// Create adds a service account to orgID.
func (s *ServiceAccountService) Create(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, name string) (*ServiceAccount, error) {
	_, d, err := s.access.decide(ctx, ac, rbac.ResourceServiceAccount, rbac.OperationCreate, orgID, nil)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, errs.NotFound("")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.BadRequest(MsgNameRequired)
	}

	now := s.now().UTC()
	account := &ServiceAccount{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Name:           name,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.accounts.Create(ctx, account, ac.UserID()); err != nil {
		return nil, fmt.Errorf("failed to create service account: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"organization_id":    orgID,
		"service_account_id": account.ID,
	}).Info("Service account created")
	return account, nil
}

// Update renames a service account.
func (s *ServiceAccountService) Update(ctx context.Context, ac *auth.ActorContext, id uuid.UUID, name string) (*ServiceAccount, error) {
	account, err := s.authorized(ctx, ac, id, rbac.OperationUpdate)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.BadRequest(MsgNameRequired)
	}

	account.Name = name
	account.UpdatedAt = s.now().UTC()
	if err := s.accounts.Replace(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to update service account: %w", err)
	}
	return account, nil
}

// CreateAccessToken issues a new access token for the account. The client
// secret is returned once and only its hash is stored.
func (s *ServiceAccountService) CreateAccessToken(ctx context.Context, ac *auth.ActorContext, serviceAccountID uuid.UUID, req AccessTokenRequest) (*AccessTokenResult, error) {
	if _, err := s.authorized(ctx, ac, serviceAccountID, rbac.OperationCreateAccessToken); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if req.Key == "" || req.EncryptedPayload == "" {
		return nil, errs.BadRequest(MsgTokenKeyRequired)
	}
	if req.ExpireAt != nil && !req.ExpireAt.After(now) {
		return nil, errs.BadRequest(MsgTokenExpiryInPast)
	}

	secret, hash, err := s.secrets.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate client secret: %w", err)
	}

	key := &ApiKey{
		ID:               uuid.New(),
		ServiceAccountID: serviceAccountID,
		Name:             req.Name,
		ClientSecretHash: hash,
		Scope:            []string{ScopeSecrets},
		EncryptedPayload: req.EncryptedPayload,
		Key:              req.Key,
		ExpireAt:         req.ExpireAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.apiKeys.Create(ctx, key); err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"service_account_id": serviceAccountID,
		"api_key_id":         key.ID,
	}).Info("Access token created")
	return &AccessTokenResult{ApiKey: key, ClientSecret: secret}, nil
}

// GetAccessTokens lists the account's access tokens.
func (s *ServiceAccountService) GetAccessTokens(ctx context.Context, ac *auth.ActorContext, serviceAccountID uuid.UUID) ([]*ApiKey, error) {
	if _, err := s.authorized(ctx, ac, serviceAccountID, rbac.OperationReadAccessTokens); err != nil {
		return nil, err
	}

	keys, err := s.apiKeys.GetManyByServiceAccountID(ctx, serviceAccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list access tokens: %w", err)
	}
	return keys, nil
}

// RevokeAccessTokens deletes the listed tokens of the account.
func (s *ServiceAccountService) RevokeAccessTokens(ctx context.Context, ac *auth.ActorContext, serviceAccountID uuid.UUID, ids []uuid.UUID) error {
	if _, err := s.authorized(ctx, ac, serviceAccountID, rbac.OperationRevokeAccessTokens); err != nil {
		return err
	}
	if len(ids) == 0 {
		return errs.BadRequest(MsgNoTokensToRevoke)
	}

	if err := s.apiKeys.DeleteManyByServiceAccount(ctx, serviceAccountID, ids); err != nil {
		return fmt.Errorf("failed to revoke access tokens: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"service_account_id": serviceAccountID,
		"revoked":            len(ids),
	}).Info("Access tokens revoked")
	return nil
}
