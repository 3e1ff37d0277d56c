package orgs

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/warden/pkg/auth"
)

func edited(ou *OrganizationUser, fn func(*OrganizationUser)) *OrganizationUser {
	c := cloneMember(ou)
	fn(c)
	return c
}

func TestSaveUser(t *testing.T) {
	ctx := context.Background()

	t.Run("no id", func(t *testing.T) {
		h := newHarness(t)
		err := h.svc.SaveUser(ctx, auth.SystemContext(auth.SystemUserPublicAPI), &OrganizationUser{}, nil, nil)
		require.Error(t, err)
		assert.Equal(t, MsgInviteFirst, err.Error())
	})

	t.Run("no changes", func(t *testing.T) {
		h := newHarness(t)
		org := h.addOrg(PlanTeamsAnnually)
		owner := h.addMember(org, auth.MemberTypeOwner, StatusConfirmed)
		user := h.addMember(org, auth.MemberTypeUser, StatusConfirmed)

		err := h.svc.SaveUser(ctx, actorFor(owner), cloneMember(user), nil, nil)
		require.Error(t, err)
		assert.Equal(t, MsgNoChanges, err.Error())
	})

	t.Run("collections alone count as a change", func(t *testing.T) {
		h := newHarness(t)
		org := h.addOrg(PlanTeamsAnnually)
		owner := h.addMember(org, auth.MemberTypeOwner, StatusConfirmed)
		user := h.addMember(org, auth.MemberTypeUser, StatusConfirmed)
		collections := []CollectionAccess{{CollectionID: uuid.New()}}

		require.NoError(t, h.svc.SaveUser(ctx, actorFor(owner), cloneMember(user), collections, nil))
		assert.Equal(t, collections, h.store.colls[user.ID])
	})

	t.Run("success", func(t *testing.T) {
		h := newHarness(t)
		org := h.addOrg(PlanTeamsAnnually)
		owner := h.addMember(org, auth.MemberTypeOwner, StatusConfirmed)
		user := h.addMember(org, auth.MemberTypeUser, StatusConfirmed)
		groups := []uuid.UUID{uuid.New()}

		update := edited(user, func(ou *OrganizationUser) {
			ou.Type = auth.MemberTypeAdmin
			ou.Status = StatusRevoked
		})
		require.NoError(t, h.svc.SaveUser(ctx, actorFor(owner), update, nil, groups))

		stored := h.store.member(user.ID)
		assert.Equal(t, auth.MemberTypeAdmin, stored.Type)
		assert.Equal(t, StatusConfirmed, stored.Status, "status is not editable")
		assert.Equal(t, groups, h.store.groups[user.ID])
		assert.Len(t, h.events.ofType(EventOrganizationUserUpdated), 1)
	})

	t.Run("custom type without custom permissions", func(t *testing.T) {
		h := newHarness(t)
		org := h.addOrg(PlanTeamsAnnually)
		owner := h.addMember(org, auth.MemberTypeOwner, StatusConfirmed)
		user := h.addMember(org, auth.MemberTypeUser, StatusConfirmed)

		update := edited(user, func(ou *OrganizationUser) { ou.Type = auth.MemberTypeCustom })
		err := h.svc.SaveUser(ctx, actorFor(owner), update, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "To enable custom permissions")
	})

	t.Run("custom type with custom permissions", func(t *testing.T) {
		h := newHarness(t)
		org := h.addOrg(PlanEnterpriseAnnually)
		owner := h.addMember(org, auth.MemberTypeOwner, StatusConfirmed)
		user := h.addMember(org, auth.MemberTypeUser, StatusConfirmed)

		update := edited(user, func(ou *OrganizationUser) {
			ou.Type = auth.MemberTypeCustom
			ou.Permissions = &auth.Permissions{AccessEventLogs: true}
		})
		require.NoError(t, h.svc.SaveUser(ctx, actorFor(owner), update, nil, nil))
		assert.True(t, h.store.member(user.ID).Permissions.AccessEventLogs)
	})

	t.Run("custom user granting a permission it holds", func(t *testing.T) {
		h := newHarness(t)
		org := h.addOrg(PlanEnterpriseAnnually)
		h.addMember(org, auth.MemberTypeOwner, StatusConfirmed)
		saver := h.addMember(org, auth.MemberTypeCustom, StatusConfirmed)
		user := h.addMember(org, auth.MemberTypeCustom, StatusConfirmed)
		held := auth.Permissions{ManageUsers: true, AccessReports: true}

		update := edited(user, func(ou *OrganizationUser) { ou.Permissions = &auth.Permissions{AccessReports: true} })
		require.NoError(t, h.svc.SaveUser(ctx, actorFor(saver, held), update, nil, nil))
	})

	t.Run("custom user granting a permission it lacks", func(t *testing.T) {
		h := newHarness(t)
		org := h.addOrg(PlanEnterpriseAnnually)
		h.addMember(org, auth.MemberTypeOwner, StatusConfirmed)
		saver := h.addMember(org, auth.MemberTypeCustom, StatusConfirmed)
		user := h.addMember(org, auth.MemberTypeCustom, StatusConfirmed)

		update := edited(user, func(ou *OrganizationUser) { ou.Permissions = &auth.Permissions{AccessReports: true} })
		err := h.svc.SaveUser(ctx, actorFor(saver, auth.Permissions{ManageUsers: true}), update, nil, nil)
		require.Error(t, err)
		assert.Equal(t, "Custom users can only grant the same custom permissions that they have.", err.Error())
	})

	t.Run("custom user promoting to admin", func(t *testing.T) {
		h := newHarness(t)
		org := h.addOrg(PlanEnterpriseAnnually)
		h.addMember(org, auth.MemberTypeOwner, StatusConfirmed)
		saver := h.addMember(org, auth.MemberTypeCustom, StatusConfirmed)
		user := h.addMember(org, auth.MemberTypeUser, StatusConfirmed)

		update := edited(user, func(ou *OrganizationUser) { ou.Type = auth.MemberTypeAdmin })
		err := h.svc.SaveUser(ctx, actorFor(saver, auth.Permissions{ManageUsers: true}), update, nil, nil)
		require.Error(t, err)
		assert.Equal(t, "Custom users can not manage Admins or Owners.", err.Error())
	})

	t.Run("demoting the last confirmed owner", func(t *testing.T) {
		h := newHarness(t)
		org := h.addOrg(PlanTeamsAnnually)
		owner := h.addMember(org, auth.MemberTypeOwner, StatusConfirmed)

		update := edited(owner, func(ou *OrganizationUser) { ou.Type = auth.MemberTypeAdmin })
		err := h.svc.SaveUser(ctx, auth.SystemContext(auth.SystemUserPublicAPI), update, nil, nil)
		require.Error(t, err)
		assert.Equal(t, MsgNoConfirmedOwner, err.Error())
		assert.Equal(t, auth.MemberTypeOwner, h.store.member(owner.ID).Type)
	})

	t.Run("demotion caught at commit", func(t *testing.T) {
		h := newHarness(t)
		org := h.addOrg(PlanTeamsAnnually)
		owner := h.addMember(org, auth.MemberTypeOwner, StatusConfirmed)
		second := h.addMember(org, auth.MemberTypeOwner, StatusConfirmed)
		h.store.forceOwnerGuard = true

		update := edited(second, func(ou *OrganizationUser) { ou.Type = auth.MemberTypeUser })
		err := h.svc.SaveUser(ctx, actorFor(owner), update, nil, nil)
		require.Error(t, err)
		assert.Equal(t, MsgNoConfirmedOwner, err.Error())
	})
}
