package orgs

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/bulk"
	"github.com/platinummonkey/warden/pkg/errs"
	"github.com/platinummonkey/warden/pkg/rbac"
)

func (s *Service) loadMembers(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*OrganizationUser, error) {
	found, err := s.members.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get organization users: %w", err)
	}
	byID := make(map[uuid.UUID]*OrganizationUser, len(found))
	for _, ou := range found {
		if ou.OrganizationID == orgID {
			byID[ou.ID] = ou
		}
	}
	return byID, nil
}

func (s *Service) revoke(ctx context.Context, ac *auth.ActorContext, ou *OrganizationUser, owners []*OrganizationUser, revoking map[uuid.UUID]bool) error {
	if ac.Actor.Is(ou.UserID) {
		return errs.BadRequest(MsgCannotRevokeSelf)
	}
	if err := s.authorize(ac, s.memberRequest(rbac.OperationRevoke, ou)); err != nil {
		return err
	}
	if err := CanRevoke(ou); err != nil {
		return err
	}
	if removesAccess(ou.Type) {
		excluded := idSet(nil, ou.ID)
		for id := range revoking {
			excluded[id] = true
		}
		if !hasConfirmedOwnersExcept(owners, excluded) {
			return errs.BadRequest(MsgNoConfirmedOwner)
		}
	}

	if err := s.members.Revoke(ctx, ou.ID); err != nil {
		return mapOwnerGuard(fmt.Errorf("failed to revoke organization user: %w", err))
	}
	ou.Status = StatusRevoked
	return nil
}

// RevokeUser suspends a member's access without removing the membership
func (s *Service) RevokeUser(ctx context.Context, ac *auth.ActorContext, orgID, orgUserID uuid.UUID) error {
	byID, err := s.loadMembers(ctx, orgID, []uuid.UUID{orgUserID})
	if err != nil {
		return err
	}
	ou, ok := byID[orgUserID]
	if !ok {
		return errs.BadRequest(MsgUserNotValid)
	}

	owners, err := s.confirmedOwners(ctx, orgID)
	if err != nil {
		return err
	}
	if err := s.revoke(ctx, ac, ou, owners, nil); err != nil {
		return err
	}

	s.metrics.RecordTransition("revoke", 1)
	s.logEvent(ctx, ac, ou, EventOrganizationUserRevoked)
	return nil
}

// RevokeUsers revokes many members, reporting a result per id
func (s *Service) RevokeUsers(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, orgUserIDs []uuid.UUID) ([]bulk.Result, error) {
	byID, err := s.loadMembers(ctx, orgID, orgUserIDs)
	if err != nil {
		return nil, err
	}
	owners, err := s.confirmedOwners(ctx, orgID)
	if err != nil {
		return nil, err
	}

	revoking := make(map[uuid.UUID]bool, len(byID))
	var revoked []*OrganizationUser
	results, err := bulk.Run(ctx, "revoke_users", orgUserIDs, identity, func(ctx context.Context, id uuid.UUID) error {
		ou, ok := byID[id]
		if !ok {
			return errs.BadRequest(MsgUserNotValid)
		}
		if err := s.revoke(ctx, ac, ou, owners, revoking); err != nil {
			return err
		}
		revoking[id] = true
		revoked = append(revoked, ou)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition("revoke", len(revoked))
	s.logEvents(ctx, ac, revoked, EventOrganizationUserRevoked)
	s.recordBulk("revoke_users", results)
	return results, nil
}

// restorable checks everything about restoring ou except seats.
func (s *Service) restorable(ctx context.Context, ac *auth.ActorContext, ou *OrganizationUser, c *confirmation) error {
	if ac.Actor.Is(ou.UserID) {
		return errs.BadRequest(MsgCannotRestoreSelf)
	}
	if err := s.authorize(ac, s.memberRequest(rbac.OperationRestore, ou)); err != nil {
		return err
	}
	if err := CanRestore(ou); err != nil {
		return err
	}
	if ou.UserID == nil {
		return nil
	}

	user, ok := c.users[*ou.UserID]
	if !ok {
		return errs.BadRequest(MsgUserNotValid)
	}
	if c.policies.Enabled(PolicyTwoFactorAuthentication) {
		enabled, err := s.twoFactor.TwoFactorIsEnabled(ctx, user)
		if err != nil {
			return fmt.Errorf("failed to check two-step login: %w", err)
		}
		if !enabled {
			return errs.BadRequest(MsgRestoreNeedsTwoFactor)
		}
	}
	if c.policies.Enabled(PolicySingleOrg) && activeElsewhere(c.memberships[user.ID], ou.OrganizationID) {
		return errs.BadRequest(MsgRestoreSingleOrg)
	}
	return nil
}

// reserveSeats makes room for n more occupied seats, autoscaling if needed.
func (s *Service) reserveSeats(ctx context.Context, org *Organization, n int) error {
	if org.Seats == nil || n <= 0 {
		return nil
	}
	occupied, err := s.members.GetCountByOrganization(ctx, org.ID)
	if err != nil {
		return fmt.Errorf("failed to count occupied seats: %w", err)
	}
	if required := occupied + n - *org.Seats; required > 0 {
		return s.AutoAddSeats(ctx, org, required)
	}
	return nil
}

// RestoreUser returns a revoked member to the Invited status
func (s *Service) RestoreUser(ctx context.Context, ac *auth.ActorContext, orgID, orgUserID uuid.UUID) error {
	results, err := s.restoreUsers(ctx, ac, orgID, []uuid.UUID{orgUserID})
	if err != nil {
		return err
	}
	if !results[0].Succeeded() {
		return errs.BadRequest(results[0].Error)
	}
	return nil
}

// RestoreUsers restores many revoked members, reporting a result per id
func (s *Service) RestoreUsers(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, orgUserIDs []uuid.UUID) ([]bulk.Result, error) {
	results, err := s.restoreUsers(ctx, ac, orgID, orgUserIDs)
	if err != nil {
		return nil, err
	}
	s.recordBulk("restore_users", results)
	return results, nil
}

func (s *Service) restoreUsers(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, orgUserIDs []uuid.UUID) ([]bulk.Result, error) {
	org, err := s.getOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	byID, err := s.loadMembers(ctx, orgID, orgUserIDs)
	if err != nil {
		return nil, err
	}

	var userIDs []uuid.UUID
	revokedCount := 0
	for _, ou := range byID {
		if ou.Status == StatusRevoked {
			revokedCount++
		}
		if ou.UserID != nil {
			userIDs = append(userIDs, *ou.UserID)
		}
	}

	if err := s.reserveSeats(ctx, org, revokedCount); err != nil {
		return nil, err
	}

	c, err := s.loadConfirmation(ctx, orgID, userIDs)
	if err != nil {
		return nil, err
	}

	var restored []*OrganizationUser
	results, err := bulk.Run(ctx, "restore_users", orgUserIDs, identity, func(ctx context.Context, id uuid.UUID) error {
		ou, ok := byID[id]
		if !ok {
			return errs.BadRequest(MsgUserNotValid)
		}
		if err := s.restorable(ctx, ac, ou, c); err != nil {
			return err
		}

		status := RestoreStatus(ou)
		if err := s.members.Restore(ctx, ou.ID, status); err != nil {
			return fmt.Errorf("failed to restore organization user: %w", err)
		}
		ou.Status = status
		restored = append(restored, ou)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition("restore", len(restored))
	s.logEvents(ctx, ac, restored, EventOrganizationUserRestored)
	return results, nil
}
