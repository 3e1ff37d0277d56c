package orgs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/errs"
	"github.com/platinummonkey/warden/pkg/rbac"
)

// invitation is one deduplicated email of an invite batch
type invitation struct {
	email      string
	invite     *Invite
	externalID string
}

// InviteUser invites a single email address. It fails when the address
// already holds a membership that cannot be re-invited.
func (s *Service) InviteUser(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, email, externalID string, invite Invite) (*OrganizationUser, error) {
	invite.Emails = []string{email}
	invited, err := s.InviteUsers(ctx, ac, orgID, []InviteRequest{{Invite: invite, ExternalID: externalID}})
	if err != nil {
		return nil, err
	}
	if len(invited) == 0 {
		return nil, errs.BadRequest(MsgAlreadyInvited)
	}
	return invited[0], nil
}

// InviteUsers creates Invited memberships for every email in invites and
// sends one invite email for the whole batch. Emails are deduplicated across
// the batch. Pending invites for the same email are refreshed in place;
// members who already accepted are skipped.
func (s *Service) InviteUsers(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, invites []InviteRequest) ([]*OrganizationUser, error) {
	org, err := s.getOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	allOwners := true
	for i := range invites {
		invite := &invites[i].Invite
		if len(invite.Emails) == 0 {
			return nil, errs.NotFound("")
		}
		if err := s.authorize(ac, rbac.Request{
			Resource:       rbac.ResourceOrganizationUser,
			Operation:      rbac.OperationInvite,
			OrganizationID: orgID,
			TargetType:     invite.Type,
			Permissions:    auth.NewRole(invite.Type, invite.Permissions).Permissions,
		}); err != nil {
			return nil, err
		}
		if err := rbac.ValidateCustomPermissionsEnabled(org.UseCustomPermissions, invite.Type); err != nil {
			return nil, err
		}
		if invite.Type != auth.MemberTypeOwner {
			allOwners = false
		}
	}

	if !allOwners {
		ok, err := s.HasConfirmedOwnersExcept(ctx, orgID, nil)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errs.BadRequest(MsgNoConfirmedOwner)
		}
	}

	pending, err := dedupeInvitations(invites)
	if err != nil {
		return nil, err
	}
	created, refreshed, assignments, err := s.classifyInvitations(ctx, org, pending)
	if err != nil {
		return nil, err
	}

	if err := s.reserveSeats(ctx, org, len(created)); err != nil {
		return nil, err
	}

	invited, err := s.saveInvitations(ctx, created, refreshed, assignments)
	if err != nil {
		return nil, err
	}
	if len(invited) == 0 {
		return invited, nil
	}

	if err := s.sendInvites(ctx, org, invited); err != nil {
		return nil, err
	}
	s.metrics.RecordTransition("invite", len(invited))
	s.logEvents(ctx, ac, invited, EventOrganizationUserInvited)
	s.raise(ctx, ReferenceEvent{
		Type:           ReferenceInvitedUsers,
		OrganizationID: org.ID,
		Users:          len(invited),
	})

	s.logger.WithFields(logrus.Fields{
		"organization_id": org.ID,
		"created":         len(created),
		"refreshed":       len(refreshed),
		"actor":           ac.Actor.String(),
	}).Info("Invited organization users")
	return invited, nil
}

// dedupeInvitations flattens invites into one entry per distinct email,
// keeping the first invite an email appears in.
func dedupeInvitations(invites []InviteRequest) ([]invitation, error) {
	seen := make(map[string]bool)
	var out []invitation
	for i := range invites {
		for _, email := range invites[i].Invite.Emails {
			if email == "" {
				return nil, errs.BadRequest(MsgUserNotValid)
			}
			if seen[email] {
				continue
			}
			seen[email] = true
			out = append(out, invitation{email: email, invite: &invites[i].Invite, externalID: invites[i].ExternalID})
		}
	}
	return out, nil
}

// classifyInvitations splits pending into new rows and refreshed pending
// invites, dropping emails that already belong to an active member.
func (s *Service) classifyInvitations(ctx context.Context, org *Organization, pending []invitation) (created, refreshed []*OrganizationUser, invites map[uuid.UUID]*Invite, err error) {
	existing, err := s.members.GetManyByOrganization(ctx, org.ID, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get organization users: %w", err)
	}
	invites = make(map[uuid.UUID]*Invite, len(pending))
	byEmail := make(map[string]*OrganizationUser, len(existing))
	byUser := make(map[uuid.UUID]*OrganizationUser, len(existing))
	for _, ou := range existing {
		if ou.Email != nil {
			byEmail[*ou.Email] = ou
		}
		if ou.UserID != nil {
			byUser[*ou.UserID] = ou
		}
	}

	now := s.now().UTC()
	for _, p := range pending {
		role := auth.NewRole(p.invite.Type, p.invite.Permissions)

		if ou, ok := byEmail[p.email]; ok {
			if ou.Status != StatusInvited {
				continue
			}
			ou.Type = role.Type
			ou.Permissions = role.Permissions
			ou.AccessAll = p.invite.AccessAll
			if p.externalID != "" {
				ou.ExternalID = p.externalID
			}
			ou.UpdatedAt = now
			invites[ou.ID] = p.invite
			refreshed = append(refreshed, ou)
			continue
		}

		user, err := s.users.GetByEmail(ctx, p.email)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to get user by email: %w", err)
		}
		if user != nil {
			if _, ok := byUser[user.ID]; ok {
				continue
			}
		}

		email := p.email
		ou := &OrganizationUser{
			ID:             uuid.New(),
			OrganizationID: org.ID,
			Email:          &email,
			Type:           role.Type,
			Status:         StatusInvited,
			Permissions:    role.Permissions,
			ExternalID:     p.externalID,
			AccessAll:      p.invite.AccessAll,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		invites[ou.ID] = p.invite
		created = append(created, ou)
	}
	return created, refreshed, invites, nil
}

// saveInvitations persists the batch along with the collection and group
// assignments of each invite.
func (s *Service) saveInvitations(ctx context.Context, created, refreshed []*OrganizationUser, invites map[uuid.UUID]*Invite) ([]*OrganizationUser, error) {
	if len(created) > 0 {
		if err := s.members.CreateMany(ctx, created); err != nil {
			return nil, fmt.Errorf("failed to create organization users: %w", err)
		}
	}
	if len(refreshed) > 0 {
		if err := s.members.UpsertMany(ctx, refreshed); err != nil {
			return nil, fmt.Errorf("failed to update organization users: %w", err)
		}
	}

	invited := append(append([]*OrganizationUser{}, created...), refreshed...)
	for _, ou := range invited {
		invite := invites[ou.ID]
		if !ou.AccessAll && len(invite.Collections) > 0 {
			if err := s.members.ReplaceWithCollections(ctx, ou, invite.Collections); err != nil {
				return nil, fmt.Errorf("failed to assign collections: %w", err)
			}
		}
		if len(invite.Groups) > 0 {
			if err := s.members.UpdateGroups(ctx, ou.ID, invite.Groups); err != nil {
				return nil, fmt.Errorf("failed to assign groups: %w", err)
			}
		}
	}
	return invited, nil
}

func (s *Service) sendInvites(ctx context.Context, org *Organization, invited []*OrganizationUser) error {
	messages := make([]InviteMessage, 0, len(invited))
	for _, ou := range invited {
		token, err := s.tokens.Generate(ou.ID, ou.EmailAddress())
		if err != nil {
			return fmt.Errorf("failed to generate invite token: %w", err)
		}
		messages = append(messages, InviteMessage{OrganizationUser: ou, Token: token})
	}
	if err := s.mail.BulkSendOrganizationInviteEmail(ctx, org.Name, messages, org.IsFree()); err != nil {
		return fmt.Errorf("failed to send invite emails: %w", err)
	}
	return nil
}
