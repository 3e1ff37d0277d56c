package rbac

import (
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/warden/pkg/auth"
)

// AccessClientType selects how resource access is evaluated for a caller
type AccessClientType string

const (
	// AccessClientNoAccessCheck skips per-resource grants (org owners and admins)
	AccessClientNoAccessCheck AccessClientType = "no_access_check"
	// AccessClientUser requires an explicit grant on the resource
	AccessClientUser AccessClientType = "user"
	// AccessClientServiceAccount requires an explicit grant for the service account
	AccessClientServiceAccount AccessClientType = "service_account"
)

// Resource represents a resource type in the system
type Resource string

const (
	ResourceProject          Resource = "project"
	ResourceSecret           Resource = "secret"
	ResourceServiceAccount   Resource = "service_account"
	ResourceOrganizationUser Resource = "organization_user"
)

// Operation represents an operation that can be performed on a resource
type Operation string

const (
	OperationList   Operation = "list"
	OperationRead   Operation = "read"
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"

	OperationCreateAccessToken  Operation = "create_access_token"
	OperationReadAccessTokens   Operation = "read_access_tokens"
	OperationRevokeAccessTokens Operation = "revoke_access_tokens"

	OperationInvite  Operation = "invite"
	OperationConfirm Operation = "confirm"
	OperationRevoke  Operation = "revoke"
	OperationRestore Operation = "restore"
)

// Access is the per-resource grant resolved for an actor
type Access struct {
	Read  bool `json:"read"`
	Write bool `json:"write"`
}

// Request describes one authorization question.
//
// Access is the grant already resolved by the caller for secrets manager
// resources. TargetType, PreviousType and Permissions describe the member
// being acted on for organization user operations.
type Request struct {
	Resource       Resource
	Operation      Operation
	OrganizationID uuid.UUID
	Access         Access
	TargetType     auth.MemberType
	PreviousType   *auth.MemberType
	Permissions    *auth.Permissions
}

// Decision represents the result of an authorization check
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Deny reasons surfaced to callers
const (
	ReasonAccessDenied        = "access denied"
	ReasonOnlyOwnerConfigures = "Only an Owner can configure another Owner's account."
	ReasonNoManageUsers       = "Your account does not have permission to manage users."
	ReasonCustomCannotManage  = "Custom users can not manage Admins or Owners."
	ReasonCustomGrantSubset   = "Custom users can only grant the same custom permissions that they have."
	ReasonCustomNotEnabled    = "To enable custom permissions the organization must be on an Enterprise plan."
	ReasonOnlyOwnersDelete    = "Only owners can delete other owners."
	ReasonOnlyOwnersRevoke    = "Only owners can revoke other owners."
	ReasonOnlyOwnersRestore   = "Only owners can restore other owners."
	ReasonOnlyOwnersConfirm   = "Only owners can confirm other owners."
)
