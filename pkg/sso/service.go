package sso

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/warden/pkg/errs"
	"github.com/platinummonkey/warden/pkg/orgs"
)

// ConfigRepository loads an organization's SSO configuration. A missing
// configuration is returned as nil, nil.
type ConfigRepository interface {
	GetByOrganizationID(ctx context.Context, orgID uuid.UUID) (*Config, error)
}

// Service answers SSO questions for the membership services and the API.
type Service struct {
	configs              ConfigRepository
	policies             orgs.PolicyRepository
	users                orgs.UserRepository
	trustedDeviceEnabled bool
	logger               logrus.FieldLogger
}

// NewService creates the SSO service.
func NewService(configs ConfigRepository, policies orgs.PolicyRepository, users orgs.UserRepository, trustedDeviceEnabled bool, logger logrus.FieldLogger) *Service {
	return &Service{
		configs:              configs,
		policies:             policies,
		users:                users,
		trustedDeviceEnabled: trustedDeviceEnabled,
		logger:               logger,
	}
}

// UsesKeyConnector implements orgs.KeyConnectorChecker.
func (s *Service) UsesKeyConnector(ctx context.Context, orgID uuid.UUID) (bool, error) {
	cfg, err := s.configs.GetByOrganizationID(ctx, orgID)
	if err != nil {
		return false, fmt.Errorf("failed to load sso config: %w", err)
	}
	return cfg.UsesKeyConnector(), nil
}

// DecryptionOptions returns userID's unlock options for orgID.
func (s *Service) DecryptionOptions(ctx context.Context, orgID, userID uuid.UUID) (*DecryptionOptions, error) {
	users, err := s.users.GetMany(ctx, []uuid.UUID{userID})
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if len(users) == 0 {
		return nil, errs.NotFound("")
	}

	cfg, err := s.configs.GetByOrganizationID(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sso config: %w", err)
	}

	var policies orgs.Policies
	if cfg != nil && cfg.Data.MemberDecryptionType == DecryptionTrustedDeviceEncryption {
		policies, err = s.policies.GetManyByOrganizationID(ctx, orgID)
		if err != nil {
			return nil, fmt.Errorf("failed to load policies: %w", err)
		}
	}

	opts := BuildDecryptionOptions(users[0], cfg, policies, s.trustedDeviceEnabled)
	s.logger.WithFields(logrus.Fields{
		"organization_id": orgID,
		"user_id":         userID,
		"trusted_device":  opts.TrustedDeviceOption != nil,
		"key_connector":   opts.KeyConnectorOption != nil,
	}).Debug("Computed decryption options")
	return &opts, nil
}
