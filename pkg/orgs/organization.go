package orgs

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/errs"
)

// Organization lifecycle rejections
const (
	MsgDeleteKeyConnector = "You cannot delete an Organization that is using Key Connector."
	MsgKeysExist          = "Organization Keys already exist."
)

// GetOrganization loads an organization, failing with NotFound when it is missing
func (s *Service) GetOrganization(ctx context.Context, orgID uuid.UUID) (*Organization, error) {
	return s.getOrganization(ctx, orgID)
}

// GetOrganizationAbility returns the ability of orgID from the cache,
// loading and caching it from the repository on a miss. It returns nil,
// nil when the organization does not exist. A failing cache is logged and
// bypassed.
func (s *Service) GetOrganizationAbility(ctx context.Context, orgID uuid.UUID) (*Ability, error) {
	if s.abilities != nil {
		cached, err := s.abilities.GetOrganizationAbility(ctx, orgID)
		if err != nil {
			s.logger.WithError(err).WithField("organization_id", orgID).Warn("Failed to read organization ability")
		} else if cached != nil {
			return cached, nil
		}
	}

	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	if org == nil {
		return nil, nil
	}

	ability := AbilityOf(org)
	if s.abilities != nil {
		if err := s.abilities.UpsertOrganizationAbility(ctx, ability); err != nil {
			s.logger.WithError(err).WithField("organization_id", orgID).Warn("Failed to cache organization ability")
		}
	}
	return &ability, nil
}

// DeleteOrganization deletes org and evicts its cached ability. Organizations
// that decrypt members through Key Connector cannot be deleted.
func (s *Service) DeleteOrganization(ctx context.Context, org *Organization) error {
	if s.keyConn != nil {
		uses, err := s.keyConn.UsesKeyConnector(ctx, org.ID)
		if err != nil {
			return fmt.Errorf("failed to check sso configuration: %w", err)
		}
		if uses {
			return errs.BadRequest(MsgDeleteKeyConnector)
		}
	}

	if err := s.orgs.Delete(ctx, org); err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	if s.abilities != nil {
		if err := s.abilities.DeleteOrganizationAbility(ctx, org.ID); err != nil {
			s.logger.WithError(err).WithField("organization_id", org.ID).Error("Failed to evict organization ability")
		}
	}

	s.raise(ctx, ReferenceEvent{
		Type:           ReferenceDeleteAccount,
		OrganizationID: org.ID,
		PlanType:       org.PlanType,
	})
	s.logger.WithField("organization_id", org.ID).Info("Deleted organization")
	return nil
}

// UpdateOrganizationKeys sets the organization's key pair once
func (s *Service) UpdateOrganizationKeys(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, publicKey, privateKey string) error {
	if !ac.ManageResetPassword(orgID) {
		return errs.Unauthorized("")
	}

	org, err := s.getOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	if org.PublicKey != "" || org.PrivateKey != "" {
		return errs.BadRequest(MsgKeysExist)
	}

	org.PublicKey = publicKey
	org.PrivateKey = privateKey
	return s.replaceAndUpdateCache(ctx, org)
}
