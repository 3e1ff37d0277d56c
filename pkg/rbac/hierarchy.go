package rbac

import (
	"github.com/google/uuid"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/errs"
)

// ResolveAccessClient maps the caller's client type and admin standing to
// the evaluation mode used for resource access.
func ResolveAccessClient(clientType auth.ClientType, isOrgAdmin bool) AccessClientType {
	switch clientType {
	case auth.ClientTypeServiceAccount:
		return AccessClientServiceAccount
	case auth.ClientTypeOrganization:
		return AccessClientNoAccessCheck
	}
	if isOrgAdmin {
		return AccessClientNoAccessCheck
	}
	return AccessClientUser
}

// CanManage reports whether an actor holding role may manage a member of
// type target.
//
//	actor \ target       owner admin manager custom user
//	owner                  x     x      x       x     x
//	admin                        x      x       x     x
//	custom+manageUsers                  x       x     x
func CanManage(role auth.Role, target auth.MemberType) bool {
	switch role.Type {
	case auth.MemberTypeOwner:
		return true
	case auth.MemberTypeAdmin:
		return target != auth.MemberTypeOwner
	case auth.MemberTypeCustom:
		return role.Has(auth.FlagManageUsers) && target.Rank() < auth.MemberTypeAdmin.Rank()
	}
	return false
}

// ValidateMemberUpdate checks that the actor may give a member newType,
// replacing oldType when the member already exists, with perms as the
// custom permission set. The returned error is a BadRequest carrying the
// user-facing reason.
func ValidateMemberUpdate(ac *auth.ActorContext, orgID uuid.UUID, newType auth.MemberType, oldType *auth.MemberType, perms *auth.Permissions) error {
	if reason := memberUpdateDenial(ac, orgID, newType, oldType, perms); reason != "" {
		return errs.BadRequest(reason)
	}
	return nil
}

func memberUpdateDenial(ac *auth.ActorContext, orgID uuid.UUID, newType auth.MemberType, oldType *auth.MemberType, perms *auth.Permissions) string {
	role, _ := ac.Role(orgID)

	targets := []auth.MemberType{newType}
	if oldType != nil {
		targets = append(targets, *oldType)
	}

	for _, t := range targets {
		if t == auth.MemberTypeOwner && !CanManage(role, t) {
			return ReasonOnlyOwnerConfigures
		}
	}

	if ac.OrganizationAdmin(orgID) {
		return ""
	}

	if !ac.ManageUsers(orgID) {
		return ReasonNoManageUsers
	}

	for _, t := range targets {
		if !CanManage(role, t) {
			return ReasonCustomCannotManage
		}
	}

	if perms != nil && !ValidateCustomPermissionsGrant(ac, orgID, *perms) {
		return ReasonCustomGrantSubset
	}
	return ""
}

// ValidateCustomPermissionsGrant reports whether every flag enabled in perms
// is also held by the actor.
func ValidateCustomPermissionsGrant(ac *auth.ActorContext, orgID uuid.UUID, perms auth.Permissions) bool {
	for _, flag := range perms.Enabled() {
		if !ac.HasPermission(orgID, flag) {
			return false
		}
	}
	return true
}

// ValidateCustomPermissionsEnabled rejects the Custom type for organizations
// that do not use custom permissions.
func ValidateCustomPermissionsEnabled(useCustomPermissions bool, newType auth.MemberType) error {
	if newType == auth.MemberTypeCustom && !useCustomPermissions {
		return errs.BadRequest(ReasonCustomNotEnabled)
	}
	return nil
}
