package orgs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/warden/pkg/auth"
)

// PlanType represents subscription plans
type PlanType string

const (
	PlanFree               PlanType = "free"
	PlanTeamsMonthly       PlanType = "teams_monthly"
	PlanTeamsAnnually      PlanType = "teams_annually"
	PlanEnterpriseMonthly  PlanType = "enterprise_monthly"
	PlanEnterpriseAnnually PlanType = "enterprise_annually"
)

// Organization represents a tenant
type Organization struct {
	ID                    uuid.UUID `json:"id"`
	Name                  string    `json:"name"`
	BillingEmail          string    `json:"billing_email"`
	PlanType              PlanType  `json:"plan_type"`
	Seats                 *int      `json:"seats,omitempty"`
	MaxAutoscaleSeats     *int      `json:"max_autoscale_seats,omitempty"`
	UseDirectory          bool      `json:"use_directory"`
	UseCustomPermissions  bool      `json:"use_custom_permissions"`
	UsePolicies           bool      `json:"use_policies"`
	UseSso                bool      `json:"use_sso"`
	UseKeyConnector       bool      `json:"use_key_connector"`
	UseSecretsManager     bool      `json:"use_secrets_manager"`
	Enabled               bool      `json:"enabled"`
	GatewayCustomerID     string    `json:"gateway_customer_id,omitempty"`
	GatewaySubscriptionID string    `json:"gateway_subscription_id,omitempty"`
	PublicKey             string    `json:"public_key,omitempty"`
	PrivateKey            string    `json:"private_key,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// IsFree reports whether the organization is on the free plan
func (o *Organization) IsFree() bool {
	return o.PlanType == PlanFree
}

// Status is the lifecycle state of an organization membership
type Status string

const (
	StatusInvited   Status = "invited"
	StatusAccepted  Status = "accepted"
	StatusConfirmed Status = "confirmed"
	StatusRevoked   Status = "revoked"
)

// OrganizationUser represents a membership of a user in an organization
type OrganizationUser struct {
	ID                   uuid.UUID         `json:"id"`
	OrganizationID       uuid.UUID         `json:"organization_id"`
	UserID               *uuid.UUID        `json:"user_id,omitempty"`
	Email                *string           `json:"email,omitempty"`
	Key                  *string           `json:"key,omitempty"`
	ResetPasswordKey     *string           `json:"reset_password_key,omitempty"`
	Type                 auth.MemberType   `json:"type"`
	Status               Status            `json:"status"`
	Permissions          *auth.Permissions `json:"permissions,omitempty"`
	ExternalID           string            `json:"external_id,omitempty"`
	AccessAll            bool              `json:"access_all"`
	AccessSecretsManager bool              `json:"access_secrets_manager"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// Role returns the member's role
func (ou *OrganizationUser) Role() auth.Role {
	return auth.NewRole(ou.Type, ou.Permissions)
}

// IsConfirmedOwner reports whether the member counts toward the owner invariant
func (ou *OrganizationUser) IsConfirmedOwner() bool {
	return ou.Type == auth.MemberTypeOwner && ou.Status == StatusConfirmed
}

// EmailAddress returns the invite email or an empty string
func (ou *OrganizationUser) EmailAddress() string {
	if ou.Email == nil {
		return ""
	}
	return *ou.Email
}

// sameEdit reports whether other carries the same editable fields.
func (ou *OrganizationUser) sameEdit(other *OrganizationUser) bool {
	if ou.Type != other.Type || ou.AccessAll != other.AccessAll || ou.ExternalID != other.ExternalID {
		return false
	}
	a, b := ou.Role().Permissions, other.Role().Permissions
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}

// CollectionAccess assigns a member to a collection
type CollectionAccess struct {
	CollectionID  uuid.UUID `json:"id"`
	ReadOnly      bool      `json:"read_only"`
	HidePasswords bool      `json:"hide_passwords"`
}

// PolicyType enumerates organization policies
type PolicyType string

const (
	PolicyTwoFactorAuthentication    PolicyType = "two_factor_authentication"
	PolicyMasterPassword             PolicyType = "master_password"
	PolicyPasswordGenerator          PolicyType = "password_generator"
	PolicySingleOrg                  PolicyType = "single_org"
	PolicyRequireSso                 PolicyType = "require_sso"
	PolicyPersonalOwnership          PolicyType = "personal_ownership"
	PolicyDisableSend                PolicyType = "disable_send"
	PolicySendOptions                PolicyType = "send_options"
	PolicyResetPassword              PolicyType = "reset_password"
	PolicyMaximumVaultTimeout        PolicyType = "maximum_vault_timeout"
	PolicyDisablePersonalVaultExport PolicyType = "disable_personal_vault_export"
)

// Policy constrains membership in an organization
type Policy struct {
	ID             uuid.UUID       `json:"id"`
	OrganizationID uuid.UUID       `json:"organization_id"`
	Type           PolicyType      `json:"type"`
	Enabled        bool            `json:"enabled"`
	Data           json.RawMessage `json:"data,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Policies is an organization's policy set
type Policies []*Policy

// Enabled reports whether a policy of type t is present and enabled
func (p Policies) Enabled(t PolicyType) bool {
	for _, policy := range p {
		if policy.Type == t && policy.Enabled {
			return true
		}
	}
	return false
}

// User is an account that may hold memberships
type User struct {
	ID                 uuid.UUID `json:"id"`
	Email              string    `json:"email"`
	Name               string    `json:"name,omitempty"`
	HasMasterPassword  bool      `json:"has_master_password"`
	TwoFactorProviders string    `json:"-"`
	Premium            bool      `json:"premium"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Invite describes one group of invitations sharing a role
type Invite struct {
	Emails      []string           `json:"emails"`
	Type        auth.MemberType    `json:"type"`
	AccessAll   bool               `json:"access_all"`
	Permissions *auth.Permissions  `json:"permissions,omitempty"`
	Collections []CollectionAccess `json:"collections,omitempty"`
	Groups      []uuid.UUID        `json:"groups,omitempty"`
}

// InviteRequest pairs an invite with the external id it came from
type InviteRequest struct {
	Invite     Invite
	ExternalID string
}

// ImportedUser is a member reported by a directory sync
type ImportedUser struct {
	Email      string `json:"email"`
	ExternalID string `json:"external_id"`
}

// PlanUpgrade describes a requested plan change
type PlanUpgrade struct {
	Plan            PlanType `json:"plan"`
	AdditionalSeats int      `json:"additional_seats"`
	BusinessName    string   `json:"business_name,omitempty"`
}
