package orgs

import (
	"github.com/google/uuid"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/errs"
)

// User-facing membership rejections
const (
	MsgUserNotValid          = "User not valid."
	MsgUsersInvalid          = "Users invalid."
	MsgCannotRemoveSelf      = "You cannot remove yourself."
	MsgCannotRevokeSelf      = "You cannot revoke yourself."
	MsgCannotRestoreSelf     = "You cannot restore yourself."
	MsgNoConfirmedOwner      = "Organization must have at least one confirmed owner."
	MsgAlreadyRevoked        = "Already revoked."
	MsgAlreadyActive         = "Already active."
	MsgFreeOrgAdmin          = "User can only be an admin of one free organization."
	MsgMemberOfAnotherOrg    = "User is a member of another organization."
	MsgTwoFactorRequired     = "User does not have two-step login enabled."
	MsgRestoreNeedsTwoFactor = "You cannot restore this user until they enable two-step login."
	MsgRestoreSingleOrg      = "You cannot restore this user until they leave or remove all other organizations."
	MsgInviteFirst           = "Invite the user first."
	MsgNoChanges             = "Please make changes before saving."
	MsgAlreadyInvited        = "This user has already been invited."
)

// transitions lists the statuses each status may move to. Removal is not a
// status: a removed membership no longer exists.
var transitions = map[Status][]Status{
	StatusInvited:   {StatusAccepted, StatusRevoked},
	StatusAccepted:  {StatusConfirmed, StatusRevoked},
	StatusConfirmed: {StatusRevoked},
	StatusRevoked:   {StatusInvited},
}

// CanTransitionTo reports whether a membership in status s may move to next
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanConfirm checks that ou is an accepted member of orgID
func CanConfirm(ou *OrganizationUser, orgID uuid.UUID) error {
	if ou == nil || ou.OrganizationID != orgID || ou.UserID == nil || !ou.Status.CanTransitionTo(StatusConfirmed) {
		return errs.BadRequest(MsgUserNotValid)
	}
	return nil
}

// CanRevoke checks that ou is not already revoked
func CanRevoke(ou *OrganizationUser) error {
	if ou.Status == StatusRevoked {
		return errs.BadRequest(MsgAlreadyRevoked)
	}
	return nil
}

// CanRestore checks that ou is revoked
func CanRestore(ou *OrganizationUser) error {
	if ou.Status != StatusRevoked {
		return errs.BadRequest(MsgAlreadyActive)
	}
	return nil
}

// RestoreStatus is the status a revoked membership returns to. It is always
// Invited, whatever the member held before revocation.
func RestoreStatus(*OrganizationUser) Status {
	return StatusInvited
}

// hasConfirmedOwnersExcept reports whether any confirmed owner in owners
// remains once the excluded ids are gone.
func hasConfirmedOwnersExcept(owners []*OrganizationUser, excluded map[uuid.UUID]bool) bool {
	for _, o := range owners {
		if o.IsConfirmedOwner() && !excluded[o.ID] {
			return true
		}
	}
	return false
}

// idSet builds a set from ids plus any extra ids.
func idSet(ids []uuid.UUID, extra ...uuid.UUID) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(ids)+len(extra))
	for _, id := range ids {
		set[id] = true
	}
	for _, id := range extra {
		set[id] = true
	}
	return set
}

// removesAccess reports whether taking t away can break the owner invariant
func removesAccess(t auth.MemberType) bool {
	return t == auth.MemberTypeOwner
}
