package auth

import "github.com/google/uuid"

// Membership is the actor's standing in one organization, resolved from
// durable claims when the request starts.
type Membership struct {
	OrganizationID       uuid.UUID
	Type                 MemberType
	Permissions          Permissions
	AccessSecretsManager bool
}

// ActorContext is the capability snapshot for a single request. It is built
// once and passed explicitly to every decision; nothing in it is looked up
// lazily.
type ActorContext struct {
	Actor       Actor
	ClientType  ClientType
	memberships map[uuid.UUID]Membership
}

// NewActorContext builds a context for actor with the given memberships.
func NewActorContext(actor Actor, clientType ClientType, memberships ...Membership) *ActorContext {
	ac := &ActorContext{
		Actor:       actor,
		ClientType:  clientType,
		memberships: make(map[uuid.UUID]Membership, len(memberships)),
	}
	for _, m := range memberships {
		ac.memberships[m.OrganizationID] = m
	}
	return ac
}

// SystemContext returns the context used for automated operations.
func SystemContext(kind EventSystemUser) *ActorContext {
	return NewActorContext(System(kind), ClientTypeOrganization)
}

// Membership returns the actor's membership in orgID.
func (ac *ActorContext) Membership(orgID uuid.UUID) (Membership, bool) {
	if ac == nil {
		return Membership{}, false
	}
	m, ok := ac.memberships[orgID]
	return m, ok
}

// Role returns the actor's role in orgID.
func (ac *ActorContext) Role(orgID uuid.UUID) (Role, bool) {
	m, ok := ac.Membership(orgID)
	if !ok {
		return Role{}, false
	}
	perms := m.Permissions
	return NewRole(m.Type, &perms), true
}

// UserID returns the id of a human actor, or uuid.Nil.
func (ac *ActorContext) UserID() uuid.UUID {
	if ac == nil {
		return uuid.Nil
	}
	id, _ := ac.Actor.UserID()
	return id
}

func (ac *ActorContext) memberType(orgID uuid.UUID) MemberType {
	m, _ := ac.Membership(orgID)
	return m.Type
}

// OrganizationOwner reports whether the actor owns orgID.
func (ac *ActorContext) OrganizationOwner(orgID uuid.UUID) bool {
	return ac.memberType(orgID) == MemberTypeOwner
}

// OrganizationAdmin reports whether the actor is an owner or admin of orgID.
func (ac *ActorContext) OrganizationAdmin(orgID uuid.UUID) bool {
	t := ac.memberType(orgID)
	return t == MemberTypeOwner || t == MemberTypeAdmin
}

// OrganizationManager reports whether the actor is a manager of orgID or above.
func (ac *ActorContext) OrganizationManager(orgID uuid.UUID) bool {
	return ac.OrganizationAdmin(orgID) || ac.memberType(orgID) == MemberTypeManager
}

// OrganizationCustom reports whether the actor is a custom member of orgID.
func (ac *ActorContext) OrganizationCustom(orgID uuid.UUID) bool {
	return ac.memberType(orgID) == MemberTypeCustom
}

// OrganizationUser reports whether the actor is a plain user of orgID.
func (ac *ActorContext) OrganizationUser(orgID uuid.UUID) bool {
	return ac.memberType(orgID) == MemberTypeUser
}

// HasPermission reports whether the actor holds flag in orgID, either
// through admin standing or as a custom permission.
func (ac *ActorContext) HasPermission(orgID uuid.UUID, flag Flag) bool {
	if ac.OrganizationAdmin(orgID) {
		return true
	}
	m, ok := ac.Membership(orgID)
	return ok && m.Type == MemberTypeCustom && m.Permissions.Has(flag)
}

func (ac *ActorContext) ManageUsers(orgID uuid.UUID) bool {
	return ac.HasPermission(orgID, FlagManageUsers)
}

func (ac *ActorContext) ManageGroups(orgID uuid.UUID) bool {
	return ac.HasPermission(orgID, FlagManageGroups)
}

func (ac *ActorContext) AccessReports(orgID uuid.UUID) bool {
	return ac.HasPermission(orgID, FlagAccessReports)
}

func (ac *ActorContext) ManagePolicies(orgID uuid.UUID) bool {
	return ac.HasPermission(orgID, FlagManagePolicies)
}

func (ac *ActorContext) ManageScim(orgID uuid.UUID) bool {
	return ac.HasPermission(orgID, FlagManageScim)
}

func (ac *ActorContext) ManageSso(orgID uuid.UUID) bool {
	return ac.HasPermission(orgID, FlagManageSso)
}

func (ac *ActorContext) AccessEventLogs(orgID uuid.UUID) bool {
	return ac.HasPermission(orgID, FlagAccessEventLogs)
}

func (ac *ActorContext) AccessImportExport(orgID uuid.UUID) bool {
	return ac.HasPermission(orgID, FlagAccessImportExport)
}

func (ac *ActorContext) ManageResetPassword(orgID uuid.UUID) bool {
	return ac.HasPermission(orgID, FlagManageResetPassword)
}

// AccessSecretsManager reports whether the actor may use the secrets
// manager product in orgID.
func (ac *ActorContext) AccessSecretsManager(orgID uuid.UUID) bool {
	m, ok := ac.Membership(orgID)
	return ok && m.AccessSecretsManager
}
