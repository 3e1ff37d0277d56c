package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/contextkeys"
	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/orgs"
)

// Identity headers set by the authenticating proxy after it has verified
// the caller's token. Requests reaching warden directly must never carry
// them.
const (
	HeaderUserID           = "X-User-Id"
	HeaderClientType       = "X-Client-Type"
	HeaderServiceAccountID = "X-Service-Account-Id"
	HeaderOrganizationID   = "X-Organization-Id"
)

// MembershipLoader returns every membership held by the given users
type MembershipLoader interface {
	GetManyByManyUsers(ctx context.Context, userIDs []uuid.UUID) ([]*orgs.OrganizationUser, error)
}

// AbilityLoader returns an organization's ability, or nil when the
// organization does not exist
type AbilityLoader interface {
	GetOrganizationAbility(ctx context.Context, orgID uuid.UUID) (*orgs.Ability, error)
}

// ActorContextMiddleware builds the request's auth.ActorContext from the
// identity headers and stores it with contextkeys.WithActor.
//
//   - user: X-User-Id; memberships are every confirmed one the user holds
//   - service_account: X-Service-Account-Id and X-Organization-Id; a user
//     membership in that organization only
//   - organization: X-Organization-Id; the public API acting as owner
//
// Secrets manager access also requires the organization to be enabled on a
// plan that includes the product.
type ActorContextMiddleware struct {
	memberships MembershipLoader
	abilities   AbilityLoader
}

// NewActorContextMiddleware creates the middleware
func NewActorContextMiddleware(memberships MembershipLoader, abilities AbilityLoader) *ActorContextMiddleware {
	return &ActorContextMiddleware{memberships: memberships, abilities: abilities}
}

// Handler wraps next, rejecting requests without a usable identity
func (m *ActorContextMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, status, msg := m.resolve(r)
		if ac == nil {
			if status == http.StatusInternalServerError {
				httputil.WriteInternalError(w)
				return
			}
			httputil.WriteErrorMessage(w, status, msg)
			return
		}

		ctx := contextkeys.WithActor(r.Context(), ac)
		ctx = contextkeys.WithLogger(ctx, contextkeys.GetLogger(ctx).WithField("actor", ac.Actor.String()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *ActorContextMiddleware) resolve(r *http.Request) (*auth.ActorContext, int, string) {
	clientType := auth.ClientType(r.Header.Get(HeaderClientType))
	if clientType == "" {
		clientType = auth.ClientTypeUser
	}

	switch clientType {
	case auth.ClientTypeUser:
		userID, ok := headerUUID(r, HeaderUserID)
		if !ok {
			return nil, http.StatusUnauthorized, "missing or invalid " + HeaderUserID
		}
		ous, err := m.memberships.GetManyByManyUsers(r.Context(), []uuid.UUID{userID})
		if err != nil {
			contextkeys.GetLogger(r.Context()).WithError(err).Error("failed to load memberships")
			return nil, http.StatusInternalServerError, ""
		}
		memberships, err := m.confirmedMemberships(r.Context(), ous)
		if err != nil {
			contextkeys.GetLogger(r.Context()).WithError(err).Error("failed to load organization abilities")
			return nil, http.StatusInternalServerError, ""
		}
		return auth.NewActorContext(auth.Human(userID), clientType, memberships...), 0, ""

	case auth.ClientTypeServiceAccount:
		accountID, ok := headerUUID(r, HeaderServiceAccountID)
		orgID, orgOK := headerUUID(r, HeaderOrganizationID)
		if !ok || !orgOK {
			return nil, http.StatusUnauthorized, "service account requests need " + HeaderServiceAccountID + " and " + HeaderOrganizationID
		}
		ability, err := m.abilities.GetOrganizationAbility(r.Context(), orgID)
		if err != nil {
			contextkeys.GetLogger(r.Context()).WithError(err).Error("failed to load organization ability")
			return nil, http.StatusInternalServerError, ""
		}
		return auth.NewActorContext(auth.Human(accountID), clientType, auth.Membership{
			OrganizationID:       orgID,
			Type:                 auth.MemberTypeUser,
			AccessSecretsManager: ability.SecretsManager(),
		}), 0, ""

	case auth.ClientTypeOrganization:
		orgID, ok := headerUUID(r, HeaderOrganizationID)
		if !ok {
			return nil, http.StatusUnauthorized, "missing or invalid " + HeaderOrganizationID
		}
		return auth.NewActorContext(auth.System(auth.SystemUserPublicAPI), clientType, auth.Membership{
			OrganizationID: orgID,
			Type:           auth.MemberTypeOwner,
		}), 0, ""
	}
	return nil, http.StatusUnauthorized, "unsupported client type"
}

// confirmedMemberships converts the confirmed memberships among ous. The
// organization's ability is only loaded for members granted secrets
// manager access.
func (m *ActorContextMiddleware) confirmedMemberships(ctx context.Context, ous []*orgs.OrganizationUser) ([]auth.Membership, error) {
	var result []auth.Membership
	for _, ou := range ous {
		if ou.Status != orgs.StatusConfirmed {
			continue
		}
		membership := auth.Membership{
			OrganizationID: ou.OrganizationID,
			Type:           ou.Type,
		}
		if ou.Permissions != nil {
			membership.Permissions = *ou.Permissions
		}
		if ou.AccessSecretsManager {
			ability, err := m.abilities.GetOrganizationAbility(ctx, ou.OrganizationID)
			if err != nil {
				return nil, err
			}
			membership.AccessSecretsManager = ability.SecretsManager()
		}
		result = append(result, membership)
	}
	return result, nil
}

func headerUUID(r *http.Request, name string) (uuid.UUID, bool) {
	v := r.Header.Get(name)
	if v == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// GetActor returns the request's actor context
func GetActor(r *http.Request) (*auth.ActorContext, bool) {
	return contextkeys.GetActor(r.Context())
}
