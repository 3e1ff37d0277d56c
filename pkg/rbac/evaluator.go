package rbac

import (
	"time"

	"github.com/platinummonkey/warden/pkg/auth"
)

// Evaluator decides whether an actor may perform an operation. It performs
// no I/O: everything it needs is in the ActorContext and the Request.
type Evaluator struct {
	now func() time.Time
}

// NewEvaluator creates a new evaluator
func NewEvaluator() *Evaluator {
	return &Evaluator{now: time.Now}
}

// Evaluate answers req for the actor described by ac
func (e *Evaluator) Evaluate(ac *auth.ActorContext, req Request) Decision {
	var reason string
	switch req.Resource {
	case ResourceProject, ResourceSecret, ResourceServiceAccount:
		reason = e.secretsManagerDenial(ac, req)
	case ResourceOrganizationUser:
		reason = e.memberDenial(ac, req)
	default:
		reason = ReasonAccessDenied
	}

	return Decision{
		Allowed:   reason == "",
		Reason:    reason,
		CheckedAt: e.now(),
	}
}

func (e *Evaluator) secretsManagerDenial(ac *auth.ActorContext, req Request) string {
	if ac == nil || !ac.AccessSecretsManager(req.OrganizationID) {
		return ReasonAccessDenied
	}

	client := ResolveAccessClient(ac.ClientType, ac.OrganizationAdmin(req.OrganizationID))
	if client == AccessClientNoAccessCheck {
		return ""
	}

	switch req.Operation {
	case OperationList:
		// results are filtered by grant downstream
		return ""
	case OperationCreate:
		if req.Resource == ResourceSecret {
			return deniedUnless(req.Access.Write)
		}
		// service accounts cannot create projects or other service accounts
		return deniedUnless(client == AccessClientUser)
	case OperationRead:
		return deniedUnless(req.Access.Read)
	case OperationUpdate, OperationDelete,
		OperationCreateAccessToken, OperationReadAccessTokens, OperationRevokeAccessTokens:
		return deniedUnless(req.Access.Write)
	}
	return ReasonAccessDenied
}

func (e *Evaluator) memberDenial(ac *auth.ActorContext, req Request) string {
	if ac == nil {
		return ReasonAccessDenied
	}
	if ac.Actor.IsSystem() {
		return ""
	}

	switch req.Operation {
	case OperationInvite, OperationUpdate:
		return memberUpdateDenial(ac, req.OrganizationID, req.TargetType, req.PreviousType, req.Permissions)
	}

	role, _ := ac.Role(req.OrganizationID)
	if req.TargetType == auth.MemberTypeOwner && role.Type != auth.MemberTypeOwner {
		switch req.Operation {
		case OperationDelete:
			return ReasonOnlyOwnersDelete
		case OperationRevoke:
			return ReasonOnlyOwnersRevoke
		case OperationRestore:
			return ReasonOnlyOwnersRestore
		case OperationConfirm:
			return ReasonOnlyOwnersConfirm
		}
		return ReasonOnlyOwnerConfigures
	}

	if !ac.ManageUsers(req.OrganizationID) {
		return ReasonNoManageUsers
	}
	if !CanManage(role, req.TargetType) {
		return ReasonCustomCannotManage
	}
	return ""
}

func deniedUnless(ok bool) string {
	if ok {
		return ""
	}
	return ReasonAccessDenied
}
