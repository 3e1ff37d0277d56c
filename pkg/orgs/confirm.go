package orgs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/bulk"
	"github.com/platinummonkey/warden/pkg/errs"
	"github.com/platinummonkey/warden/pkg/rbac"
)

// MemberKey carries the organization key encrypted for one member
type MemberKey struct {
	OrganizationUserID uuid.UUID `json:"id"`
	Key                string    `json:"key"`
}

// confirmation is everything loaded up front for a confirm batch
type confirmation struct {
	users       map[uuid.UUID]*User
	policies    Policies
	memberships map[uuid.UUID][]*OrganizationUser
}

func (s *Service) loadConfirmation(ctx context.Context, orgID uuid.UUID, userIDs []uuid.UUID) (*confirmation, error) {
	c := &confirmation{
		users:       make(map[uuid.UUID]*User, len(userIDs)),
		memberships: make(map[uuid.UUID][]*OrganizationUser, len(userIDs)),
	}

	var users []*User
	var memberships []*OrganizationUser

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = s.users.GetMany(gctx, userIDs)
		if err != nil {
			return fmt.Errorf("failed to get users: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		c.policies, err = s.policies.GetManyByOrganizationID(gctx, orgID)
		if err != nil {
			return fmt.Errorf("failed to get policies: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		memberships, err = s.members.GetManyByManyUsers(gctx, userIDs)
		if err != nil {
			return fmt.Errorf("failed to get user memberships: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, u := range users {
		c.users[u.ID] = u
	}
	for _, m := range memberships {
		if m.UserID != nil {
			c.memberships[*m.UserID] = append(c.memberships[*m.UserID], m)
		}
	}
	return c, nil
}

// activeElsewhere reports whether the user is an accepted or confirmed
// member of an organization other than orgID.
func activeElsewhere(memberships []*OrganizationUser, orgID uuid.UUID) bool {
	for _, m := range memberships {
		if m.OrganizationID != orgID && (m.Status == StatusAccepted || m.Status == StatusConfirmed) {
			return true
		}
	}
	return false
}

func (s *Service) checkConfirmPolicies(ctx context.Context, org *Organization, ou *OrganizationUser, user *User, c *confirmation) error {
	if org.IsFree() && (ou.Type == auth.MemberTypeAdmin || ou.Type == auth.MemberTypeOwner) {
		count, err := s.members.GetCountByFreeOrganizationAdminUser(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("failed to count free organization memberships: %w", err)
		}
		if count > 0 {
			return errs.BadRequest(MsgFreeOrgAdmin)
		}
	}

	if c.policies.Enabled(PolicyTwoFactorAuthentication) {
		enabled, err := s.twoFactor.TwoFactorIsEnabled(ctx, user)
		if err != nil {
			return fmt.Errorf("failed to check two-step login: %w", err)
		}
		if !enabled {
			return errs.BadRequest(MsgTwoFactorRequired)
		}
	}

	if c.policies.Enabled(PolicySingleOrg) && activeElsewhere(c.memberships[user.ID], org.ID) {
		return errs.BadRequest(MsgMemberOfAnotherOrg)
	}
	return nil
}

// ConfirmUser confirms a single accepted member
func (s *Service) ConfirmUser(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, key MemberKey) (*OrganizationUser, error) {
	results, confirmed, err := s.confirmUsers(ctx, ac, orgID, []MemberKey{key})
	if err != nil {
		return nil, err
	}
	if !results[0].Succeeded() {
		return nil, errs.BadRequest(results[0].Error)
	}
	return confirmed[0], nil
}

// ConfirmUsers confirms many accepted members, reporting a result per key
func (s *Service) ConfirmUsers(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, keys []MemberKey) ([]bulk.Result, error) {
	results, _, err := s.confirmUsers(ctx, ac, orgID, keys)
	if err != nil {
		return nil, err
	}
	s.recordBulk("confirm_users", results)
	return results, nil
}

func (s *Service) confirmUsers(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, keys []MemberKey) ([]bulk.Result, []*OrganizationUser, error) {
	org, err := s.getOrganization(ctx, orgID)
	if err != nil {
		return nil, nil, err
	}

	ids := make([]uuid.UUID, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, k.OrganizationUserID)
	}
	found, err := s.members.GetMany(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get organization users: %w", err)
	}

	valid := make(map[uuid.UUID]*OrganizationUser, len(found))
	var userIDs []uuid.UUID
	for _, ou := range found {
		if CanConfirm(ou, orgID) == nil {
			valid[ou.ID] = ou
			userIDs = append(userIDs, *ou.UserID)
		}
	}

	c, err := s.loadConfirmation(ctx, orgID, userIDs)
	if err != nil {
		return nil, nil, err
	}

	var confirmed []*OrganizationUser
	results, err := bulk.Run(ctx, "confirm_users", keys, func(k MemberKey) uuid.UUID { return k.OrganizationUserID }, func(ctx context.Context, k MemberKey) error {
		ou, ok := valid[k.OrganizationUserID]
		if !ok {
			return errs.BadRequest(MsgUserNotValid)
		}
		if err := s.authorize(ac, s.memberRequest(rbac.OperationConfirm, ou)); err != nil {
			return err
		}
		user, ok := c.users[*ou.UserID]
		if !ok {
			return errs.BadRequest(MsgUserNotValid)
		}
		if err := s.checkConfirmPolicies(ctx, org, ou, user, c); err != nil {
			return err
		}

		key := k.Key
		ou.Status = StatusConfirmed
		ou.Key = &key
		ou.Email = nil
		ou.UpdatedAt = s.now().UTC()
		confirmed = append(confirmed, ou)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if len(confirmed) == 0 {
		return results, confirmed, nil
	}

	if err := s.members.ReplaceMany(ctx, confirmed); err != nil {
		return nil, nil, fmt.Errorf("failed to confirm organization users: %w", err)
	}

	s.metrics.RecordTransition("confirm", len(confirmed))
	s.logEvents(ctx, ac, confirmed, EventOrganizationUserConfirmed)
	for _, ou := range confirmed {
		if err := s.mail.SendOrganizationConfirmedEmail(ctx, org.Name, c.users[*ou.UserID].Email); err != nil {
			return nil, nil, fmt.Errorf("failed to send confirmation email: %w", err)
		}
	}
	return results, confirmed, nil
}
