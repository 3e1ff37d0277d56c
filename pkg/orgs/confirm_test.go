package orgs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/errs"
)

func TestConfirmUser(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid status", func(t *testing.T) {
		h := newHarness(t)
		org := h.addOrg(PlanTeamsAnnually)
		owner := h.addMember(org, auth.MemberTypeOwner, StatusConfirmed)
		target := h.addMember(org, auth.MemberTypeUser, StatusConfirmed)

		_, err := h.svc.ConfirmUser(ctx, actorFor(owner), org.ID, MemberKey{OrganizationUserID: target.ID, Key: "key"})
		require.Error(t, err)
		assert.True(t, errs.IsBadRequest(err))
		assert.Equal(t, MsgUserNotValid, err.Error())
	})

	t.Run("wrong organization", func(t *testing.T) {
		h := newHarness(t)
		org := h.addOrg(PlanTeamsAnnually)
		other := h.addOrg(PlanTeamsAnnually)
		owner := h.addMember(org, auth.MemberTypeOwner, StatusConfirmed)
		target := h.addMember(other, auth.MemberTypeUser, StatusAccepted)

		_, err := h.svc.ConfirmUser(ctx, actorFor(owner), org.ID, MemberKey{OrganizationUserID: target.ID, Key: "key"})
		require.Error(t, err)
		assert.Equal(t, MsgUserNotValid, err.Error())
	})

	t.Run("success", func(t *testing.T) {
		h := newHarness(t)
		org := h.addOrg(PlanTeamsAnnually)
		owner := h.addMember(org, auth.MemberTypeOwner, StatusConfirmed)
		target := h.addMember(org, auth.MemberTypeUser, StatusAccepted)

		confirmed, err := h.svc.ConfirmUser(ctx, actorFor(owner), org.ID, MemberKey{OrganizationUserID: target.ID, Key: "enc-key"})
		require.NoError(t, err)
		assert.Equal(t, StatusConfirmed, confirmed.Status)

		stored := h.store.member(target.ID)
		assert.Equal(t, StatusConfirmed, stored.Status)
		require.NotNil(t, stored.Key)
		assert.Equal(t, "enc-key", *stored.Key)
		assert.Nil(t, stored.Email)

		assert.Len(t, h.events.ofType(EventOrganizationUserConfirmed), 1)
		assert.Equal(t, []string{h.store.users[*target.UserID].Email}, h.mail.confirmed)
	})

	t.Run("non-owner cannot confirm an owner", func(t *testing.T) {
		h := newHarness(t)
		org := h.addOrg(PlanTeamsAnnually)
		h.addMember(org, auth.MemberTypeOwner, StatusConfirmed)
		admin := h.addMember(org, auth.MemberTypeAdmin, StatusConfirmed)
		target := h.addMember(org, auth.MemberTypeOwner, StatusAccepted)

		_, err := h.svc.ConfirmUser(ctx, actorFor(admin), org.ID, MemberKey{OrganizationUserID: target.ID, Key: "key"})
		require.Error(t, err)
		assert.Equal(t, "Only owners can confirm other owners.", err.Error())
	})
}

func TestConfirmUserFreeOrganizationAdmin(t *testing.T) {
	ctx := context.Background()

	for _, memberType := range []auth.MemberType{auth.MemberTypeAdmin, auth.MemberTypeOwner} {
		t.Run("free "+string(memberType), func(t *testing.T) {
			h := newHarness(t)
			org := h.addOrg(PlanFree)
			owner := h.addMember(org, auth.MemberTypeOwner, StatusConfirmed)
			target := h.addMember(org, memberType, StatusAccepted)

			elsewhere := h.addOrg(PlanFree)
			existing := h.addMember(elsewhere, auth.MemberTypeAdmin, StatusConfirmed)
			existing.UserID = target.UserID

			_, err := h.svc.ConfirmUser(ctx, actorFor(owner), org.ID, MemberKey{OrganizationUserID: target.ID, Key: "key"})
			require.Error(t, err)
			assert.Equal(t, MsgFreeOrgAdmin, err.Error())
		})
	}

	for _, plan := range []PlanType{PlanTeamsMonthly, PlanEnterpriseAnnually} {
		t.Run("paid "+string(plan), func(t *testing.T) {
			h := newHarness(t)
			org := h.addOrg(plan)
			owner := h.addMember(org, auth.MemberTypeOwner, StatusConfirmed)
			target := h.addMember(org, auth.MemberTypeAdmin, StatusAccepted)

			elsewhere := h.addOrg(PlanFree)
			existing := h.addMember(elsewhere, auth.MemberTypeAdmin, StatusConfirmed)
			existing.UserID = target.UserID

			_, err := h.svc.ConfirmUser(ctx, actorFor(owner), org.ID, MemberKey{OrganizationUserID: target.ID, Key: "key"})
			require.NoError(t, err)
		})
	}
}

func TestConfirmUserPolicies(t *testing.T) {
	ctx := context.Background()

	t.Run("single org enabled", func(t *testing.T) {
		h := newHarness(t)
		org := h.addOrg(PlanEnterpriseAnnually)
		owner := h.addMember(org, auth.MemberTypeOwner, StatusConfirmed)
		target := h.addMember(org, auth.MemberTypeUser, StatusAccepted)
		other := h.addMember(h.addOrg(PlanTeamsAnnually), auth.MemberTypeUser, StatusConfirmed)
		other.UserID = target.UserID
		h.enablePolicy(org, PolicySingleOrg)

		_, err := h.svc.ConfirmUser(ctx, actorFor(owner), org.ID, MemberKey{OrganizationUserID: target.ID, Key: "key"})
		require.Error(t, err)
		assert.Equal(t, MsgMemberOfAnotherOrg, err.Error())
	})

	t.Run("single org disabled", func(t *testing.T) {
		h := newHarness(t)
		org := h.addOrg(PlanEnterpriseAnnually)
		owner := h.addMember(org, auth.MemberTypeOwner, StatusConfirmed)
		target := h.addMember(org, auth.MemberTypeUser, StatusAccepted)
		other := h.addMember(h.addOrg(PlanTeamsAnnually), auth.MemberTypeUser, StatusConfirmed)
		other.UserID = target.UserID

		_, err := h.svc.ConfirmUser(ctx, actorFor(owner), org.ID, MemberKey{OrganizationUserID: target.ID, Key: "key"})
		require.NoError(t, err)
	})

	t.Run("single org ignores pending invites elsewhere", func(t *testing.T) {
		h := newHarness(t)
		org := h.addOrg(PlanEnterpriseAnnually)
		owner := h.addMember(org, auth.MemberTypeOwner, StatusConfirmed)
		target := h.addMember(org, auth.MemberTypeUser, StatusAccepted)
		other := h.addMember(h.addOrg(PlanTeamsAnnually), auth.MemberTypeUser, StatusRevoked)
		other.UserID = target.UserID
		h.enablePolicy(org, PolicySingleOrg)

		_, err := h.svc.ConfirmUser(ctx, actorFor(owner), org.ID, MemberKey{OrganizationUserID: target.ID, Key: "key"})
		require.NoError(t, err)
	})

	t.Run("two-step login required", func(t *testing.T) {
		h := newHarness(t)
		org := h.addOrg(PlanEnterpriseAnnually)
		owner := h.addMember(org, auth.MemberTypeOwner, StatusConfirmed)
		target := h.addMember(org, auth.MemberTypeUser, StatusAccepted)
		h.enablePolicy(org, PolicyTwoFactorAuthentication)

		_, err := h.svc.ConfirmUser(ctx, actorFor(owner), org.ID, MemberKey{OrganizationUserID: target.ID, Key: "key"})
		require.Error(t, err)
		assert.Equal(t, MsgTwoFactorRequired, err.Error())

		h.twoFactor[*target.UserID] = true
		_, err = h.svc.ConfirmUser(ctx, actorFor(owner), org.ID, MemberKey{OrganizationUserID: target.ID, Key: "key"})
		require.NoError(t, err)
	})
}

func TestConfirmUsers(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	org := h.addOrg(PlanEnterpriseAnnually)
	owner := h.addMember(org, auth.MemberTypeOwner, StatusConfirmed)
	h.enablePolicy(org, PolicyTwoFactorAuthentication)
	h.enablePolicy(org, PolicySingleOrg)

	ready := h.addMember(org, auth.MemberTypeUser, StatusAccepted)
	h.twoFactor[*ready.UserID] = true

	noTwoFactor := h.addMember(org, auth.MemberTypeUser, StatusAccepted)

	elsewhere := h.addMember(org, auth.MemberTypeUser, StatusAccepted)
	h.twoFactor[*elsewhere.UserID] = true
	other := h.addMember(h.addOrg(PlanTeamsAnnually), auth.MemberTypeUser, StatusAccepted)
	other.UserID = elsewhere.UserID

	results, err := h.svc.ConfirmUsers(ctx, actorFor(owner), org.ID, []MemberKey{
		{OrganizationUserID: ready.ID, Key: "a"},
		{OrganizationUserID: noTwoFactor.ID, Key: "b"},
		{OrganizationUserID: elsewhere.ID, Key: "c"},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "", results[0].Error)
	assert.Equal(t, MsgTwoFactorRequired, results[1].Error)
	assert.Equal(t, MsgMemberOfAnotherOrg, results[2].Error)

	assert.Equal(t, StatusConfirmed, h.store.member(ready.ID).Status)
	assert.Equal(t, StatusAccepted, h.store.member(noTwoFactor.ID).Status)
	assert.Len(t, h.events.ofType(EventOrganizationUserConfirmed), 1)
}
