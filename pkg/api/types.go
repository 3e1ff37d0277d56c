package api

import (
	"context"

	"github.com/google/uuid"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/bulk"
	"github.com/platinummonkey/warden/pkg/orgs"
	"github.com/platinummonkey/warden/pkg/secrets"
	"github.com/platinummonkey/warden/pkg/sso"
)

// MembershipService is the membership lifecycle served by the organization
// user endpoints. *orgs.Service implements it.
type MembershipService interface {
	InviteUsers(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, invites []orgs.InviteRequest) ([]*orgs.OrganizationUser, error)
	SaveUser(ctx context.Context, ac *auth.ActorContext, user *orgs.OrganizationUser, collections []orgs.CollectionAccess, groups []uuid.UUID) error
	ConfirmUser(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, key orgs.MemberKey) (*orgs.OrganizationUser, error)
	ConfirmUsers(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, keys []orgs.MemberKey) ([]bulk.Result, error)
	RevokeUser(ctx context.Context, ac *auth.ActorContext, orgID, orgUserID uuid.UUID) error
	RevokeUsers(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, orgUserIDs []uuid.UUID) ([]bulk.Result, error)
	RestoreUser(ctx context.Context, ac *auth.ActorContext, orgID, orgUserID uuid.UUID) error
	RestoreUsers(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, orgUserIDs []uuid.UUID) ([]bulk.Result, error)
	DeleteUser(ctx context.Context, ac *auth.ActorContext, orgID, orgUserID uuid.UUID) error
	DeleteUsers(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, orgUserIDs []uuid.UUID) ([]bulk.Result, error)
	ImportUsers(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, newUsers []orgs.ImportedUser, removeExternalIDs []string, overwriteExisting bool) (*orgs.ImportSummary, error)
}

// OrganizationService is the organization lifecycle and billing surface
type OrganizationService interface {
	GetOrganization(ctx context.Context, orgID uuid.UUID) (*orgs.Organization, error)
	DeleteOrganization(ctx context.Context, org *orgs.Organization) error
	UpdateOrganizationKeys(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, publicKey, privateKey string) error
	UpgradePlan(ctx context.Context, orgID uuid.UUID, upgrade orgs.PlanUpgrade) error
	UpdateSubscription(ctx context.Context, orgID uuid.UUID, seatAdjustment int, maxAutoscaleSeats *int) error
	AdjustSeats(ctx context.Context, org *orgs.Organization, adjustment int) error
}

// ProjectService serves the project endpoints
type ProjectService interface {
	List(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID) ([]*secrets.Project, error)
	Get(ctx context.Context, ac *auth.ActorContext, id uuid.UUID) (*secrets.ProjectWithAccess, error)
	Create(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, name string) (*secrets.ProjectWithAccess, error)
	Update(ctx context.Context, ac *auth.ActorContext, id uuid.UUID, name string) (*secrets.ProjectWithAccess, error)
	DeleteMany(ctx context.Context, ac *auth.ActorContext, ids []uuid.UUID) ([]bulk.Result, error)
}

// SecretService serves the secret endpoints
type SecretService interface {
	DeleteMany(ctx context.Context, ac *auth.ActorContext, ids []uuid.UUID) ([]bulk.Result, error)
}

// ServiceAccountService serves the service account and access token endpoints
type ServiceAccountService interface {
	List(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID) ([]*secrets.ServiceAccount, error)
	Create(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, name string) (*secrets.ServiceAccount, error)
	Update(ctx context.Context, ac *auth.ActorContext, id uuid.UUID, name string) (*secrets.ServiceAccount, error)
	CreateAccessToken(ctx context.Context, ac *auth.ActorContext, serviceAccountID uuid.UUID, req secrets.AccessTokenRequest) (*secrets.AccessTokenResult, error)
	GetAccessTokens(ctx context.Context, ac *auth.ActorContext, serviceAccountID uuid.UUID) ([]*secrets.ApiKey, error)
	RevokeAccessTokens(ctx context.Context, ac *auth.ActorContext, serviceAccountID uuid.UUID, ids []uuid.UUID) error
}

// DecryptionService computes SSO decryption options for a member
type DecryptionService interface {
	DecryptionOptions(ctx context.Context, orgID, userID uuid.UUID) (*sso.DecryptionOptions, error)
}

// Services bundles the services a Server routes to. Nil services leave
// their routes unregistered.
type Services struct {
	Members         MembershipService
	Organizations   OrganizationService
	Projects        ProjectService
	Secrets         SecretService
	ServiceAccounts ServiceAccountService
	SSO             DecryptionService
}

// BulkItem is one entry of a bulk response
type BulkItem struct {
	ID    uuid.UUID `json:"id"`
	Error string    `json:"error"`
}

// BulkResponse is the body of every bulk endpoint
type BulkResponse struct {
	Data []BulkItem `json:"data"`
}

// ListResponse wraps a list so the body is always an object
type ListResponse struct {
	Data  interface{} `json:"data"`
	Count int         `json:"count"`
}

// IDsRequest is the body of endpoints that act on a set of ids
type IDsRequest struct {
	IDs []uuid.UUID `json:"ids" validate:"required,min=1"`
}

// NameRequest is the body of project and service account writes
type NameRequest struct {
	Name string `json:"name" validate:"required,max=1000"`
}

// KeysRequest sets the organization key pair
type KeysRequest struct {
	PublicKey           string `json:"public_key" validate:"required"`
	EncryptedPrivateKey string `json:"encrypted_private_key" validate:"required"`
}

// SubscriptionRequest updates seats and the autoscale ceiling
type SubscriptionRequest struct {
	SeatAdjustment    int  `json:"seat_adjustment"`
	MaxAutoscaleSeats *int `json:"max_autoscale_seats,omitempty"`
}

// SeatsRequest adjusts the seat count
type SeatsRequest struct {
	SeatAdjustment int `json:"seat_adjustment"`
}

// InviteBody invites a set of emails sharing a role
type InviteBody struct {
	orgs.Invite
	ExternalID string `json:"external_id,omitempty"`
}

// SaveUserRequest is the editable part of a membership. Nil collections or
// groups leave those assignments unchanged.
type SaveUserRequest struct {
	Type        auth.MemberType         `json:"type"`
	Permissions *auth.Permissions       `json:"permissions,omitempty"`
	AccessAll   bool                    `json:"access_all"`
	ExternalID  string                  `json:"external_id,omitempty"`
	Collections []orgs.CollectionAccess `json:"collections"`
	Groups      []uuid.UUID             `json:"groups"`
}

// ConfirmRequest carries the organization key encrypted for one member
type ConfirmRequest struct {
	Key string `json:"key"`
}

// BulkConfirmRequest carries one encrypted key per member
type BulkConfirmRequest struct {
	Keys []orgs.MemberKey `json:"keys"`
}

// ImportRequest is a directory sync
type ImportRequest struct {
	Members           []orgs.ImportedUser `json:"members"`
	RemoveExternalIDs []string            `json:"remove_external_ids"`
	OverwriteExisting bool                `json:"overwrite_existing"`
}

// OrganizationResponse is an organization without its private key and
// billing gateway ids
type OrganizationResponse struct {
	ID                      uuid.UUID     `json:"id"`
	Name                    string        `json:"name"`
	BillingEmail            string        `json:"billing_email"`
	PlanType                orgs.PlanType `json:"plan_type"`
	Seats                   *int          `json:"seats,omitempty"`
	MaxAutoscaleSeats       *int          `json:"max_autoscale_seats,omitempty"`
	UseDirectory            bool          `json:"use_directory"`
	UseCustomPermissions    bool          `json:"use_custom_permissions"`
	UsePolicies             bool          `json:"use_policies"`
	UseSso                  bool          `json:"use_sso"`
	UseKeyConnector         bool          `json:"use_key_connector"`
	UseSecretsManager       bool          `json:"use_secrets_manager"`
	HasPublicAndPrivateKeys bool          `json:"has_public_and_private_keys"`
}

func newOrganizationResponse(org *orgs.Organization) OrganizationResponse {
	return OrganizationResponse{
		ID:                      org.ID,
		Name:                    org.Name,
		BillingEmail:            org.BillingEmail,
		PlanType:                org.PlanType,
		Seats:                   org.Seats,
		MaxAutoscaleSeats:       org.MaxAutoscaleSeats,
		UseDirectory:            org.UseDirectory,
		UseCustomPermissions:    org.UseCustomPermissions,
		UsePolicies:             org.UsePolicies,
		UseSso:                  org.UseSso,
		UseKeyConnector:         org.UseKeyConnector,
		UseSecretsManager:       org.UseSecretsManager,
		HasPublicAndPrivateKeys: org.PublicKey != "" && org.PrivateKey != "",
	}
}

func newBulkResponse(results []bulk.Result) BulkResponse {
	items := make([]BulkItem, 0, len(results))
	for _, r := range results {
		items = append(items, BulkItem{ID: r.ID, Error: r.Error})
	}
	return BulkResponse{Data: items}
}

var (
	_ MembershipService     = (*orgs.Service)(nil)
	_ OrganizationService   = (*orgs.Service)(nil)
	_ ProjectService        = (*secrets.ProjectService)(nil)
	_ SecretService         = (*secrets.SecretService)(nil)
	_ ServiceAccountService = (*secrets.ServiceAccountService)(nil)
	_ DecryptionService     = (*sso.Service)(nil)
)
