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

// checkRemovable validates removing ou, given the owners of its
// organization and every id already set to go in this operation.
func (s *Service) checkRemovable(ac *auth.ActorContext, ou *OrganizationUser, owners []*OrganizationUser, removing map[uuid.UUID]bool) error {
	if ac.Actor.Is(ou.UserID) {
		return errs.BadRequest(MsgCannotRemoveSelf)
	}
	if err := s.authorize(ac, s.memberRequest(rbac.OperationDelete, ou)); err != nil {
		return err
	}
	if removesAccess(ou.Type) {
		excluded := idSet(nil, ou.ID)
		for id := range removing {
			excluded[id] = true
		}
		if !hasConfirmedOwnersExcept(owners, excluded) {
			return errs.BadRequest(MsgNoConfirmedOwner)
		}
	}
	return nil
}

// DeleteUser removes a single member from orgID
func (s *Service) DeleteUser(ctx context.Context, ac *auth.ActorContext, orgID, orgUserID uuid.UUID) error {
	ou, err := s.members.GetByID(ctx, orgUserID)
	if err != nil {
		return fmt.Errorf("failed to get organization user: %w", err)
	}
	if ou == nil || ou.OrganizationID != orgID {
		return errs.BadRequest(MsgUserNotValid)
	}

	owners, err := s.confirmedOwners(ctx, orgID)
	if err != nil {
		return err
	}
	if err := s.checkRemovable(ac, ou, owners, nil); err != nil {
		return err
	}

	if err := s.members.DeleteMany(ctx, []uuid.UUID{ou.ID}); err != nil {
		return mapOwnerGuard(fmt.Errorf("failed to delete organization user: %w", err))
	}

	s.metrics.RecordTransition("remove", 1)
	s.logEvent(ctx, ac, ou, EventOrganizationUserRemoved)
	return nil
}

// DeleteUsers removes many members from orgID. Each id gets its own
// result; ids that pass every check are deleted in one call.
func (s *Service) DeleteUsers(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, orgUserIDs []uuid.UUID) ([]bulk.Result, error) {
	found, err := s.members.GetMany(ctx, orgUserIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get organization users: %w", err)
	}

	byID := make(map[uuid.UUID]*OrganizationUser, len(found))
	for _, ou := range found {
		if ou.OrganizationID == orgID {
			byID[ou.ID] = ou
		}
	}
	if len(byID) == 0 {
		return nil, errs.BadRequest(MsgUsersInvalid)
	}

	owners, err := s.confirmedOwners(ctx, orgID)
	if err != nil {
		return nil, err
	}

	removing := make(map[uuid.UUID]bool, len(byID))
	results, err := bulk.Run(ctx, "delete_users", orgUserIDs, identity, func(_ context.Context, id uuid.UUID) error {
		ou, ok := byID[id]
		if !ok {
			return errs.BadRequest(MsgUserNotValid)
		}
		if err := s.checkRemovable(ac, ou, owners, removing); err != nil {
			return err
		}
		removing[id] = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	deleted := bulk.Succeeded(results)
	if len(deleted) > 0 {
		if err := s.members.DeleteMany(ctx, deleted); err != nil {
			return nil, mapOwnerGuard(fmt.Errorf("failed to delete organization users: %w", err))
		}
	}

	removed := make([]*OrganizationUser, 0, len(deleted))
	for _, id := range deleted {
		removed = append(removed, byID[id])
	}
	s.metrics.RecordTransition("remove", len(removed))
	s.logEvents(ctx, ac, removed, EventOrganizationUserRemoved)
	s.recordBulk("delete_users", results)
	return results, nil
}
