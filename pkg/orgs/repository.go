package orgs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/warden/pkg/auth"
)

// ErrLastConfirmedOwner is returned by an OrganizationUserRepository when a
// write would leave the organization without a confirmed owner. It is
// detected inside the write transaction, after concurrent writers commit.
var ErrLastConfirmedOwner = errors.New("organization would have no confirmed owner")

// OrganizationRepository stores organizations. GetByID returns nil, nil
// when nothing matches.
type OrganizationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Organization, error)
	Replace(ctx context.Context, org *Organization) error
	Delete(ctx context.Context, org *Organization) error
}

// OrganizationUserRepository stores memberships. Lookups by id return
// nil, nil when nothing matches.
type OrganizationUserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*OrganizationUser, error)
	GetMany(ctx context.Context, ids []uuid.UUID) ([]*OrganizationUser, error)
	// GetManyByOrganization lists members, filtered to memberType when set
	GetManyByOrganization(ctx context.Context, orgID uuid.UUID, memberType *auth.MemberType) ([]*OrganizationUser, error)
	GetManyByManyUsers(ctx context.Context, userIDs []uuid.UUID) ([]*OrganizationUser, error)
	// GetCountByOrganization counts members occupying a seat (every status but revoked)
	GetCountByOrganization(ctx context.Context, orgID uuid.UUID) (int, error)
	// GetCountByFreeOrganizationAdminUser counts confirmed admin or owner
	// memberships the user holds in free organizations
	GetCountByFreeOrganizationAdminUser(ctx context.Context, userID uuid.UUID) (int, error)
	Create(ctx context.Context, ou *OrganizationUser) error
	CreateMany(ctx context.Context, ous []*OrganizationUser) error
	Upsert(ctx context.Context, ou *OrganizationUser) error
	UpsertMany(ctx context.Context, ous []*OrganizationUser) error
	ReplaceMany(ctx context.Context, ous []*OrganizationUser) error
	// ReplaceWithCollections saves ou and its collection assignments. A nil
	// collections slice leaves assignments untouched. Returns
	// ErrLastConfirmedOwner when ou demotes the last confirmed owner.
	ReplaceWithCollections(ctx context.Context, ou *OrganizationUser, collections []CollectionAccess) error
	UpdateGroups(ctx context.Context, orgUserID uuid.UUID, groupIDs []uuid.UUID) error
	// Revoke returns ErrLastConfirmedOwner when id is the last confirmed owner
	Revoke(ctx context.Context, id uuid.UUID) error
	Restore(ctx context.Context, id uuid.UUID, status Status) error
	// DeleteMany returns ErrLastConfirmedOwner, deleting nothing, when the
	// deletion would remove every confirmed owner of an organization
	DeleteMany(ctx context.Context, ids []uuid.UUID) error
}

// PolicyRepository reads organization policies
type PolicyRepository interface {
	GetManyByOrganizationID(ctx context.Context, orgID uuid.UUID) (Policies, error)
}

// UserRepository stores user accounts
type UserRepository interface {
	GetMany(ctx context.Context, ids []uuid.UUID) ([]*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Replace(ctx context.Context, user *User) error
}

// TwoFactorChecker reports whether a user has two-step login enabled
type TwoFactorChecker interface {
	TwoFactorIsEnabled(ctx context.Context, user *User) (bool, error)
}

// InviteMessage is one recipient of a bulk invite email
type InviteMessage struct {
	OrganizationUser *OrganizationUser
	Token            string
}

// MailService delivers membership emails
type MailService interface {
	BulkSendOrganizationInviteEmail(ctx context.Context, orgName string, invites []InviteMessage, isFree bool) error
	SendOrganizationConfirmedEmail(ctx context.Context, orgName, email string) error
}

// EventType is an organization user audit event
type EventType string

const (
	EventOrganizationUserInvited   EventType = "organization_user_invited"
	EventOrganizationUserConfirmed EventType = "organization_user_confirmed"
	EventOrganizationUserUpdated   EventType = "organization_user_updated"
	EventOrganizationUserRemoved   EventType = "organization_user_removed"
	EventOrganizationUserRevoked   EventType = "organization_user_revoked"
	EventOrganizationUserRestored  EventType = "organization_user_restored"
)

// UserEvent records one action against a membership
type UserEvent struct {
	OrganizationUser *OrganizationUser
	Type             EventType
	Actor            auth.Actor
	Date             time.Time
}

// EventService records the audit trail. Failures are logged by callers,
// never surfaced to the user.
type EventService interface {
	LogOrganizationUserEvent(ctx context.Context, event UserEvent) error
	LogOrganizationUserEvents(ctx context.Context, events []UserEvent) error
}

// ReferenceEventType is a usage telemetry event
type ReferenceEventType string

const (
	ReferenceInvitedUsers  ReferenceEventType = "invited_users"
	ReferenceUpgradePlan   ReferenceEventType = "upgrade_plan"
	ReferenceAdjustSeats   ReferenceEventType = "adjust_seats"
	ReferenceDeleteAccount ReferenceEventType = "delete_account"
)

// ReferenceEvent is usage and billing telemetry
type ReferenceEvent struct {
	Type           ReferenceEventType `json:"type"`
	OrganizationID uuid.UUID          `json:"organization_id"`
	Users          int                `json:"users,omitempty"`
	Seats          *int               `json:"seats,omitempty"`
	PlanType       PlanType           `json:"plan_type,omitempty"`
	PreviousPlan   PlanType           `json:"previous_plan,omitempty"`
	Date           time.Time          `json:"date"`
}

// ReferenceEventService publishes usage events
type ReferenceEventService interface {
	RaiseEvent(ctx context.Context, event ReferenceEvent) error
}

// Ability is the cached subset of an organization read on hot paths
type Ability struct {
	ID                   uuid.UUID `json:"id"`
	Enabled              bool      `json:"enabled"`
	UsePolicies          bool      `json:"use_policies"`
	UseSso               bool      `json:"use_sso"`
	UseKeyConnector      bool      `json:"use_key_connector"`
	UseCustomPermissions bool      `json:"use_custom_permissions"`
	UseSecretsManager    bool      `json:"use_secrets_manager"`
}

// AbilityOf builds the cached ability of org
func AbilityOf(org *Organization) Ability {
	return Ability{
		ID:                   org.ID,
		Enabled:              org.Enabled,
		UsePolicies:          org.UsePolicies,
		UseSso:               org.UseSso,
		UseKeyConnector:      org.UseKeyConnector,
		UseCustomPermissions: org.UseCustomPermissions,
		UseSecretsManager:    org.UseSecretsManager,
	}
}

// SecretsManager reports whether members of the organization may use the
// secrets manager product at all.
func (a *Ability) SecretsManager() bool {
	return a != nil && a.Enabled && a.UseSecretsManager
}

// AbilityCache caches organization abilities. GetOrganizationAbility
// returns nil, nil on a miss.
type AbilityCache interface {
	GetOrganizationAbility(ctx context.Context, orgID uuid.UUID) (*Ability, error)
	UpsertOrganizationAbility(ctx context.Context, ability Ability) error
	DeleteOrganizationAbility(ctx context.Context, orgID uuid.UUID) error
}

// KeyConnectorChecker reports whether an organization's SSO configuration
// decrypts members through Key Connector
type KeyConnectorChecker interface {
	UsesKeyConnector(ctx context.Context, orgID uuid.UUID) (bool, error)
}

// InviteTokens issues expiring invite tokens
type InviteTokens interface {
	Generate(orgUserID uuid.UUID, email string) (string, error)
}
