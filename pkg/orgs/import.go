package orgs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/errs"
)

// MsgNoDirectory rejects directory imports for organizations without the feature
const MsgNoDirectory = "Organization cannot use directory syncing."

// ImportSummary counts what a directory import changed
type ImportSummary struct {
	Removed int `json:"removed"`
	Linked  int `json:"linked"`
	Invited int `json:"invited"`
}

// ImportUsers syncs the organization's members with a directory. Members
// whose external id is listed in removeExternalIDs are removed, as are, with
// overwriteExisting, members whose external id is missing from newUsers.
// Owners are never removed. Existing members without an external id are
// linked by email; everyone else is invited as a User.
func (s *Service) ImportUsers(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, newUsers []ImportedUser, removeExternalIDs []string, overwriteExisting bool) (*ImportSummary, error) {
	org, err := s.getOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if !org.UseDirectory {
		return nil, errs.BadRequest(MsgNoDirectory)
	}
	if !ac.Actor.IsSystem() && !ac.ManageUsers(orgID) {
		return nil, errs.Unauthorized("")
	}

	existing, err := s.members.GetManyByOrganization(ctx, orgID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get organization users: %w", err)
	}

	summary := &ImportSummary{}
	imported := make(map[string]bool, len(newUsers))
	for _, u := range newUsers {
		if u.ExternalID != "" {
			imported[u.ExternalID] = true
		}
	}
	toRemove := make(map[string]bool, len(removeExternalIDs))
	for _, id := range removeExternalIDs {
		toRemove[id] = true
	}

	var removed, kept []*OrganizationUser
	for _, ou := range existing {
		drop := ou.ExternalID != "" && ou.Type != auth.MemberTypeOwner &&
			(toRemove[ou.ExternalID] || (overwriteExisting && !imported[ou.ExternalID]))
		if drop {
			removed = append(removed, ou)
		} else {
			kept = append(kept, ou)
		}
	}
	if len(removed) > 0 {
		ids := make([]uuid.UUID, 0, len(removed))
		for _, ou := range removed {
			ids = append(ids, ou.ID)
		}
		if err := s.members.DeleteMany(ctx, ids); err != nil {
			return nil, mapOwnerGuard(fmt.Errorf("failed to remove organization users: %w", err))
		}
		summary.Removed = len(removed)
		s.metrics.RecordTransition("remove", len(removed))
		s.logEvents(ctx, ac, removed, EventOrganizationUserRemoved)
	}

	if len(newUsers) == 0 {
		return summary, nil
	}

	linked, known, err := s.linkImported(ctx, kept, newUsers)
	if err != nil {
		return nil, err
	}
	summary.Linked = len(linked)

	var requests []InviteRequest
	for _, u := range newUsers {
		if u.Email == "" || u.ExternalID == "" || known[u.ExternalID] {
			continue
		}
		known[u.ExternalID] = true
		requests = append(requests, InviteRequest{
			Invite:     Invite{Emails: []string{u.Email}, Type: auth.MemberTypeUser},
			ExternalID: u.ExternalID,
		})
	}
	if len(requests) > 0 {
		invited, err := s.InviteUsers(ctx, ac, orgID, requests)
		if err != nil {
			return nil, err
		}
		summary.Invited = len(invited)
	}

	s.logger.WithFields(logrus.Fields{
		"organization_id": orgID,
		"removed":         summary.Removed,
		"linked":          summary.Linked,
		"invited":         summary.Invited,
	}).Info("Imported directory users")
	return summary, nil
}

// linkImported sets the external id of members that have none but whose
// email matches an imported user. It returns the linked members and every
// external id now present in the organization.
func (s *Service) linkImported(ctx context.Context, members []*OrganizationUser, newUsers []ImportedUser) ([]*OrganizationUser, map[string]bool, error) {
	known := make(map[string]bool, len(members))
	var userIDs []uuid.UUID
	for _, ou := range members {
		if ou.ExternalID != "" {
			known[ou.ExternalID] = true
		}
		if ou.UserID != nil {
			userIDs = append(userIDs, *ou.UserID)
		}
	}

	emails := make(map[uuid.UUID]string, len(userIDs))
	if len(userIDs) > 0 {
		users, err := s.users.GetMany(ctx, userIDs)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get users: %w", err)
		}
		for _, u := range users {
			emails[u.ID] = u.Email
		}
	}

	unlinked := make(map[string]*OrganizationUser)
	for _, ou := range members {
		if ou.ExternalID != "" {
			continue
		}
		email := ou.EmailAddress()
		if ou.UserID != nil {
			email = emails[*ou.UserID]
		}
		if email != "" {
			unlinked[email] = ou
		}
	}

	var linked []*OrganizationUser
	for _, u := range newUsers {
		ou, ok := unlinked[u.Email]
		if !ok || u.ExternalID == "" {
			continue
		}
		delete(unlinked, u.Email)
		ou.ExternalID = u.ExternalID
		ou.UpdatedAt = s.now().UTC()
		known[u.ExternalID] = true
		linked = append(linked, ou)
	}

	if len(linked) > 0 {
		if err := s.members.UpsertMany(ctx, linked); err != nil {
			return nil, nil, fmt.Errorf("failed to link organization users: %w", err)
		}
	}
	return linked, known, nil
}
