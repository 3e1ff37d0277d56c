package orgs

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/errs"
	"github.com/platinummonkey/warden/pkg/rbac"
)

// SaveUser applies the editable fields of user (type, permissions, access
// all, external id) to the stored membership. A nil collections or groups
// slice leaves those assignments unchanged.
func (s *Service) SaveUser(ctx context.Context, ac *auth.ActorContext, user *OrganizationUser, collections []CollectionAccess, groups []uuid.UUID) error {
	if user == nil || user.ID == uuid.Nil {
		return errs.BadRequest(MsgInviteFirst)
	}

	original, err := s.members.GetByID(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to get organization user: %w", err)
	}
	if original == nil || original.OrganizationID != user.OrganizationID {
		return errs.BadRequest(MsgUserNotValid)
	}
	if original.sameEdit(user) && collections == nil && groups == nil {
		return errs.BadRequest(MsgNoChanges)
	}

	role := user.Role()
	previous := original.Type
	if err := s.authorize(ac, rbac.Request{
		Resource:       rbac.ResourceOrganizationUser,
		Operation:      rbac.OperationUpdate,
		OrganizationID: original.OrganizationID,
		TargetType:     role.Type,
		PreviousType:   &previous,
		Permissions:    role.Permissions,
	}); err != nil {
		return err
	}

	org, err := s.getOrganization(ctx, original.OrganizationID)
	if err != nil {
		return err
	}
	if err := rbac.ValidateCustomPermissionsEnabled(org.UseCustomPermissions, role.Type); err != nil {
		return err
	}

	if role.Type != auth.MemberTypeOwner {
		ok, err := s.HasConfirmedOwnersExcept(ctx, org.ID, []uuid.UUID{original.ID})
		if err != nil {
			return err
		}
		if !ok {
			return errs.BadRequest(MsgNoConfirmedOwner)
		}
	}

	original.Type = role.Type
	original.Permissions = role.Permissions
	original.AccessAll = user.AccessAll
	original.ExternalID = user.ExternalID
	original.UpdatedAt = s.now().UTC()
	if original.AccessAll && collections != nil {
		collections = []CollectionAccess{}
	}

	if err := s.members.ReplaceWithCollections(ctx, original, collections); err != nil {
		return mapOwnerGuard(fmt.Errorf("failed to save organization user: %w", err))
	}
	if groups != nil {
		if err := s.members.UpdateGroups(ctx, original.ID, groups); err != nil {
			return fmt.Errorf("failed to update groups: %w", err)
		}
	}

	if previous != original.Type {
		s.metrics.RecordTransition("role_change", 1)
	}
	s.logEvent(ctx, ac, original, EventOrganizationUserUpdated)
	*user = *original
	return nil
}
