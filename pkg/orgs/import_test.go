package orgs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/warden/pkg/auth"
)

func TestImportUsers(t *testing.T) {
	ctx := context.Background()
	scim := auth.SystemContext(auth.SystemUserSCIM)

	t.Run("directory not enabled", func(t *testing.T) {
		h := newHarness(t)
		org := h.addOrg(PlanFree)

		_, err := h.svc.ImportUsers(ctx, scim, org.ID, nil, nil, false)
		require.Error(t, err)
		assert.Equal(t, MsgNoDirectory, err.Error())
	})

	t.Run("creates new users", func(t *testing.T) {
		h := newHarness(t)
		org := h.addOrg(PlanEnterpriseAnnually)
		owner := h.addMember(org, auth.MemberTypeOwner, StatusConfirmed)
		owner.ExternalID = "ext-owner"
		ownerEmail := h.store.users[*owner.UserID].Email

		summary, err := h.svc.ImportUsers(ctx, scim, org.ID, []ImportedUser{
			{Email: "a@x.com", ExternalID: "ext-a"},
			{Email: "b@x.com", ExternalID: "ext-b"},
			{Email: ownerEmail, ExternalID: "ext-owner"},
		}, nil, false)
		require.NoError(t, err)
		assert.Equal(t, 2, summary.Invited)
		assert.Equal(t, 0, summary.Linked)

		assert.Equal(t, 1, h.store.createManyCalls)
		assert.Equal(t, 0, h.store.upsertManyCalls)
		require.Len(t, h.mail.bulk, 1)
		assert.Len(t, h.mail.bulk[0], 2)
		require.Len(t, h.references.events, 1)
		assert.Equal(t, ReferenceInvitedUsers, h.references.events[0].Type)
		assert.Equal(t, 2, h.references.events[0].Users)
	})

	t.Run("links existing members by email", func(t *testing.T) {
		h := newHarness(t)
		org := h.addOrg(PlanEnterpriseAnnually)
		h.addMember(org, auth.MemberTypeOwner, StatusConfirmed)
		existing := h.addMember(org, auth.MemberTypeUser, StatusConfirmed)
		email := h.store.users[*existing.UserID].Email

		summary, err := h.svc.ImportUsers(ctx, scim, org.ID, []ImportedUser{
			{Email: email, ExternalID: "ext-existing"},
			{Email: "new@x.com", ExternalID: "ext-new"},
		}, nil, false)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Linked)
		assert.Equal(t, 1, summary.Invited)
		assert.Equal(t, "ext-existing", h.store.member(existing.ID).ExternalID)
	})

	t.Run("removes listed and missing members but never owners", func(t *testing.T) {
		h := newHarness(t)
		org := h.addOrg(PlanEnterpriseAnnually)
		owner := h.addMember(org, auth.MemberTypeOwner, StatusConfirmed)
		owner.ExternalID = "ext-owner"
		listed := h.addMember(org, auth.MemberTypeUser, StatusConfirmed)
		listed.ExternalID = "ext-listed"
		stale := h.addMember(org, auth.MemberTypeUser, StatusConfirmed)
		stale.ExternalID = "ext-stale"
		kept := h.addMember(org, auth.MemberTypeUser, StatusConfirmed)
		kept.ExternalID = "ext-kept"

		summary, err := h.svc.ImportUsers(ctx, scim, org.ID, []ImportedUser{
			{Email: h.store.users[*kept.UserID].Email, ExternalID: "ext-kept"},
		}, []string{"ext-listed", "ext-owner"}, true)
		require.NoError(t, err)
		assert.Equal(t, 2, summary.Removed)
		assert.Equal(t, 0, summary.Invited)

		assert.NotNil(t, h.store.member(owner.ID))
		assert.NotNil(t, h.store.member(kept.ID))
		assert.Nil(t, h.store.member(listed.ID))
		assert.Nil(t, h.store.member(stale.ID))
		assert.Len(t, h.events.ofType(EventOrganizationUserRemoved), 2)
	})

	t.Run("human importer needs manage users", func(t *testing.T) {
		h := newHarness(t)
		org := h.addOrg(PlanEnterpriseAnnually)
		h.addMember(org, auth.MemberTypeOwner, StatusConfirmed)
		user := h.addMember(org, auth.MemberTypeUser, StatusConfirmed)

		_, err := h.svc.ImportUsers(ctx, actorFor(user), org.ID, []ImportedUser{{Email: "a@x.com", ExternalID: "a"}}, nil, false)
		require.Error(t, err)
	})
}
