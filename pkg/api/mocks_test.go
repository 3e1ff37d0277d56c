package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/bulk"
	"github.com/platinummonkey/warden/pkg/contextkeys"
	"github.com/platinummonkey/warden/pkg/orgs"
	"github.com/platinummonkey/warden/pkg/secrets"
	"github.com/platinummonkey/warden/pkg/sso"
)

type mockMembers struct {
	mock.Mock
}

func results(args mock.Arguments) ([]bulk.Result, error) {
	r, _ := args.Get(0).([]bulk.Result)
	return r, args.Error(1)
}

func (m *mockMembers) InviteUsers(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, invites []orgs.InviteRequest) ([]*orgs.OrganizationUser, error) {
	args := m.Called(ctx, ac, orgID, invites)
	users, _ := args.Get(0).([]*orgs.OrganizationUser)
	return users, args.Error(1)
}

func (m *mockMembers) SaveUser(ctx context.Context, ac *auth.ActorContext, user *orgs.OrganizationUser, collections []orgs.CollectionAccess, groups []uuid.UUID) error {
	return m.Called(ctx, ac, user, collections, groups).Error(0)
}

func (m *mockMembers) ConfirmUser(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, key orgs.MemberKey) (*orgs.OrganizationUser, error) {
	args := m.Called(ctx, ac, orgID, key)
	user, _ := args.Get(0).(*orgs.OrganizationUser)
	return user, args.Error(1)
}

func (m *mockMembers) ConfirmUsers(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, keys []orgs.MemberKey) ([]bulk.Result, error) {
	return results(m.Called(ctx, ac, orgID, keys))
}

func (m *mockMembers) RevokeUser(ctx context.Context, ac *auth.ActorContext, orgID, orgUserID uuid.UUID) error {
	return m.Called(ctx, ac, orgID, orgUserID).Error(0)
}

func (m *mockMembers) RevokeUsers(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, orgUserIDs []uuid.UUID) ([]bulk.Result, error) {
	return results(m.Called(ctx, ac, orgID, orgUserIDs))
}

func (m *mockMembers) RestoreUser(ctx context.Context, ac *auth.ActorContext, orgID, orgUserID uuid.UUID) error {
	return m.Called(ctx, ac, orgID, orgUserID).Error(0)
}

func (m *mockMembers) RestoreUsers(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, orgUserIDs []uuid.UUID) ([]bulk.Result, error) {
	return results(m.Called(ctx, ac, orgID, orgUserIDs))
}

func (m *mockMembers) DeleteUser(ctx context.Context, ac *auth.ActorContext, orgID, orgUserID uuid.UUID) error {
	return m.Called(ctx, ac, orgID, orgUserID).Error(0)
}

func (m *mockMembers) DeleteUsers(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, orgUserIDs []uuid.UUID) ([]bulk.Result, error) {
	return results(m.Called(ctx, ac, orgID, orgUserIDs))
}

func (m *mockMembers) ImportUsers(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, newUsers []orgs.ImportedUser, removeExternalIDs []string, overwriteExisting bool) (*orgs.ImportSummary, error) {
	args := m.Called(ctx, ac, orgID, newUsers, removeExternalIDs, overwriteExisting)
	summary, _ := args.Get(0).(*orgs.ImportSummary)
	return summary, args.Error(1)
}

type mockOrganizations struct {
	mock.Mock
}

func (m *mockOrganizations) GetOrganization(ctx context.Context, orgID uuid.UUID) (*orgs.Organization, error) {
	args := m.Called(ctx, orgID)
	org, _ := args.Get(0).(*orgs.Organization)
	return org, args.Error(1)
}

func (m *mockOrganizations) DeleteOrganization(ctx context.Context, org *orgs.Organization) error {
	return m.Called(ctx, org).Error(0)
}

func (m *mockOrganizations) UpdateOrganizationKeys(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, publicKey, privateKey string) error {
	return m.Called(ctx, ac, orgID, publicKey, privateKey).Error(0)
}

func (m *mockOrganizations) UpgradePlan(ctx context.Context, orgID uuid.UUID, upgrade orgs.PlanUpgrade) error {
	return m.Called(ctx, orgID, upgrade).Error(0)
}

func (m *mockOrganizations) UpdateSubscription(ctx context.Context, orgID uuid.UUID, seatAdjustment int, maxAutoscaleSeats *int) error {
	return m.Called(ctx, orgID, seatAdjustment, maxAutoscaleSeats).Error(0)
}

func (m *mockOrganizations) AdjustSeats(ctx context.Context, org *orgs.Organization, adjustment int) error {
	return m.Called(ctx, org, adjustment).Error(0)
}

type mockProjects struct {
	mock.Mock
}

func project(args mock.Arguments) (*secrets.ProjectWithAccess, error) {
	p, _ := args.Get(0).(*secrets.ProjectWithAccess)
	return p, args.Error(1)
}

func (m *mockProjects) List(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID) ([]*secrets.Project, error) {
	args := m.Called(ctx, ac, orgID)
	projects, _ := args.Get(0).([]*secrets.Project)
	return projects, args.Error(1)
}

func (m *mockProjects) Get(ctx context.Context, ac *auth.ActorContext, id uuid.UUID) (*secrets.ProjectWithAccess, error) {
	return project(m.Called(ctx, ac, id))
}

func (m *mockProjects) Create(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, name string) (*secrets.ProjectWithAccess, error) {
	return project(m.Called(ctx, ac, orgID, name))
}

func (m *mockProjects) Update(ctx context.Context, ac *auth.ActorContext, id uuid.UUID, name string) (*secrets.ProjectWithAccess, error) {
	return project(m.Called(ctx, ac, id, name))
}

func (m *mockProjects) DeleteMany(ctx context.Context, ac *auth.ActorContext, ids []uuid.UUID) ([]bulk.Result, error) {
	return results(m.Called(ctx, ac, ids))
}

type mockSecrets struct {
	mock.Mock
}

func (m *mockSecrets) DeleteMany(ctx context.Context, ac *auth.ActorContext, ids []uuid.UUID) ([]bulk.Result, error) {
	return results(m.Called(ctx, ac, ids))
}

type mockServiceAccounts struct {
	mock.Mock
}

func serviceAccount(args mock.Arguments) (*secrets.ServiceAccount, error) {
	sa, _ := args.Get(0).(*secrets.ServiceAccount)
	return sa, args.Error(1)
}

func (m *mockServiceAccounts) List(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID) ([]*secrets.ServiceAccount, error) {
	args := m.Called(ctx, ac, orgID)
	accounts, _ := args.Get(0).([]*secrets.ServiceAccount)
	return accounts, args.Error(1)
}

func (m *mockServiceAccounts) Create(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, name string) (*secrets.ServiceAccount, error) {
	return serviceAccount(m.Called(ctx, ac, orgID, name))
}

func (m *mockServiceAccounts) Update(ctx context.Context, ac *auth.ActorContext, id uuid.UUID, name string) (*secrets.ServiceAccount, error) {
	return serviceAccount(m.Called(ctx, ac, id, name))
}

func (m *mockServiceAccounts) CreateAccessToken(ctx context.Context, ac *auth.ActorContext, serviceAccountID uuid.UUID, req secrets.AccessTokenRequest) (*secrets.AccessTokenResult, error) {
	args := m.Called(ctx, ac, serviceAccountID, req)
	result, _ := args.Get(0).(*secrets.AccessTokenResult)
	return result, args.Error(1)
}

func (m *mockServiceAccounts) GetAccessTokens(ctx context.Context, ac *auth.ActorContext, serviceAccountID uuid.UUID) ([]*secrets.ApiKey, error) {
	args := m.Called(ctx, ac, serviceAccountID)
	keys, _ := args.Get(0).([]*secrets.ApiKey)
	return keys, args.Error(1)
}

func (m *mockServiceAccounts) RevokeAccessTokens(ctx context.Context, ac *auth.ActorContext, serviceAccountID uuid.UUID, ids []uuid.UUID) error {
	return m.Called(ctx, ac, serviceAccountID, ids).Error(0)
}

type mockDecryption struct {
	mock.Mock
}

func (m *mockDecryption) DecryptionOptions(ctx context.Context, orgID, userID uuid.UUID) (*sso.DecryptionOptions, error) {
	args := m.Called(ctx, orgID, userID)
	opts, _ := args.Get(0).(*sso.DecryptionOptions)
	return opts, args.Error(1)
}

// do sends a request through a fresh server. A nil actor leaves the
// request anonymous.
func do(t *testing.T, services Services, ac *auth.ActorContext, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if ac != nil {
		req = req.WithContext(contextkeys.WithActor(req.Context(), ac))
	}

	w := httptest.NewRecorder()
	NewServer(services).ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dest))
}

func member(orgID uuid.UUID, typ auth.MemberType) *auth.ActorContext {
	return auth.NewActorContext(auth.Human(uuid.New()), auth.ClientTypeUser,
		auth.Membership{OrganizationID: orgID, Type: typ})
}
