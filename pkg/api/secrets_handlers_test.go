package api

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/bulk"
	"github.com/platinummonkey/warden/pkg/errs"
	"github.com/platinummonkey/warden/pkg/rbac"
	"github.com/platinummonkey/warden/pkg/secrets"
	"github.com/platinummonkey/warden/pkg/sso"
)

func TestSecretsManagerHandlers_Projects(t *testing.T) {
	orgID := uuid.New()
	ac := auth.NewActorContext(auth.Human(uuid.New()), auth.ClientTypeUser,
		auth.Membership{OrganizationID: orgID, Type: auth.MemberTypeUser, AccessSecretsManager: true})

	t.Run("list returns an empty array", func(t *testing.T) {
		projects := &mockProjects{}
		projects.On("List", mock.Anything, ac, orgID).Return(nil, nil)

		w := do(t, Services{Projects: projects}, ac, http.MethodGet, "/organizations/"+orgID.String()+"/projects", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"data":[],"count":0}`, w.Body.String())
	})

	t.Run("create", func(t *testing.T) {
		created := &secrets.ProjectWithAccess{Project: &secrets.Project{ID: uuid.New(), OrganizationID: orgID, Name: "Billing"}, Read: true, Write: true}
		projects := &mockProjects{}
		projects.On("Create", mock.Anything, ac, orgID, "Billing").Return(created, nil)

		w := do(t, Services{Projects: projects}, ac, http.MethodPost, "/organizations/"+orgID.String()+"/projects", NameRequest{Name: "Billing"})

		require.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), `"write":true`)
	})

	t.Run("create requires a name", func(t *testing.T) {
		projects := &mockProjects{}
		w := do(t, Services{Projects: projects}, ac, http.MethodPost, "/organizations/"+orgID.String()+"/projects", NameRequest{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		projects.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("get without access is not found", func(t *testing.T) {
		id := uuid.New()
		projects := &mockProjects{}
		projects.On("Get", mock.Anything, ac, id).Return(nil, errs.NotFound(""))

		w := do(t, Services{Projects: projects}, ac, http.MethodGet, "/projects/"+id.String(), nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("update", func(t *testing.T) {
		id := uuid.New()
		projects := &mockProjects{}
		projects.On("Update", mock.Anything, ac, id, "Renamed").
			Return(&secrets.ProjectWithAccess{Project: &secrets.Project{ID: id, Name: "Renamed"}, Read: true, Write: true}, nil)

		w := do(t, Services{Projects: projects}, ac, http.MethodPut, "/projects/"+id.String(), NameRequest{Name: "Renamed"})

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Renamed")
	})

	t.Run("bulk delete is not captured by the id route", func(t *testing.T) {
		ids := []uuid.UUID{uuid.New(), uuid.New()}
		projects := &mockProjects{}
		projects.On("DeleteMany", mock.Anything, ac, ids).
			Return([]bulk.Result{{ID: ids[0]}, {ID: ids[1], Error: rbac.ReasonAccessDenied}}, nil)

		w := do(t, Services{Projects: projects}, ac, http.MethodPost, "/projects/delete", IDsRequest{IDs: ids})

		require.Equal(t, http.StatusOK, w.Code)
		var body BulkResponse
		decode(t, w, &body)
		require.Len(t, body.Data, 2)
		assert.Equal(t, rbac.ReasonAccessDenied, body.Data[1].Error)
	})

	t.Run("bulk delete requires ids", func(t *testing.T) {
		w := do(t, Services{Projects: &mockProjects{}}, ac, http.MethodPost, "/projects/delete", IDsRequest{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSecretsManagerHandlers_Secrets(t *testing.T) {
	ac := member(uuid.New(), auth.MemberTypeAdmin)
	ids := []uuid.UUID{uuid.New()}

	service := &mockSecrets{}
	service.On("DeleteMany", mock.Anything, ac, ids).Return(nil, errs.NotFound(""))

	w := do(t, Services{Secrets: service}, ac, http.MethodPost, "/secrets/delete", IDsRequest{IDs: ids})

	assert.Equal(t, http.StatusNotFound, w.Code)
	service.AssertExpectations(t)
}

func TestSecretsManagerHandlers_ServiceAccounts(t *testing.T) {
	orgID, accountID := uuid.New(), uuid.New()
	ac := member(orgID, auth.MemberTypeAdmin)

	t.Run("list", func(t *testing.T) {
		accounts := &mockServiceAccounts{}
		accounts.On("List", mock.Anything, ac, orgID).Return([]*secrets.ServiceAccount{{ID: accountID, Name: "ci"}}, nil)

		w := do(t, Services{ServiceAccounts: accounts}, ac, http.MethodGet, "/organizations/"+orgID.String()+"/service-accounts", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"count":1`)
	})

	t.Run("create and update", func(t *testing.T) {
		accounts := &mockServiceAccounts{}
		accounts.On("Create", mock.Anything, ac, orgID, "ci").Return(&secrets.ServiceAccount{ID: accountID, Name: "ci"}, nil)
		accounts.On("Update", mock.Anything, ac, accountID, "deploy").Return(&secrets.ServiceAccount{ID: accountID, Name: "deploy"}, nil)

		w := do(t, Services{ServiceAccounts: accounts}, ac, http.MethodPost, "/organizations/"+orgID.String()+"/service-accounts", NameRequest{Name: "ci"})
		assert.Equal(t, http.StatusCreated, w.Code)

		w = do(t, Services{ServiceAccounts: accounts}, ac, http.MethodPut, "/service-accounts/"+accountID.String(), NameRequest{Name: "deploy"})
		assert.Equal(t, http.StatusOK, w.Code)
		accounts.AssertExpectations(t)
	})

	t.Run("access token secret is returned once", func(t *testing.T) {
		req := secrets.AccessTokenRequest{Name: "deploy token", EncryptedPayload: "payload", Key: "key"}
		accounts := &mockServiceAccounts{}
		accounts.On("CreateAccessToken", mock.Anything, ac, accountID, req).Return(&secrets.AccessTokenResult{
			ApiKey:       &secrets.ApiKey{ID: uuid.New(), ServiceAccountID: accountID, Name: "deploy token", ClientSecretHash: "hash"},
			ClientSecret: "plain-secret",
		}, nil)

		w := do(t, Services{ServiceAccounts: accounts}, ac, http.MethodPost, "/service-accounts/"+accountID.String()+"/access-tokens", req)

		require.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), `"client_secret":"plain-secret"`)
		assert.NotContains(t, w.Body.String(), `"hash"`)
	})

	t.Run("list tokens", func(t *testing.T) {
		accounts := &mockServiceAccounts{}
		accounts.On("GetAccessTokens", mock.Anything, ac, accountID).Return(nil, nil)

		w := do(t, Services{ServiceAccounts: accounts}, ac, http.MethodGet, "/service-accounts/"+accountID.String()+"/access-tokens", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"data":[],"count":0}`, w.Body.String())
	})

	t.Run("revoke tokens", func(t *testing.T) {
		ids := []uuid.UUID{uuid.New()}
		accounts := &mockServiceAccounts{}
		accounts.On("RevokeAccessTokens", mock.Anything, ac, accountID, ids).Return(nil)

		w := do(t, Services{ServiceAccounts: accounts}, ac, http.MethodPost, "/service-accounts/"+accountID.String()+"/access-tokens/revoke", IDsRequest{IDs: ids})

		assert.Equal(t, http.StatusNoContent, w.Code)
		accounts.AssertExpectations(t)
	})
}

func TestSSOHandlers_DecryptionOptions(t *testing.T) {
	orgID := uuid.New()
	userID := uuid.New()
	ac := auth.NewActorContext(auth.Human(userID), auth.ClientTypeUser)
	path := "/organizations/" + orgID.String() + "/sso/decryption-options"

	t.Run("computes options for the caller", func(t *testing.T) {
		service := &mockDecryption{}
		service.On("DecryptionOptions", mock.Anything, orgID, userID).Return(&sso.DecryptionOptions{HasMasterPassword: true}, nil)

		w := do(t, Services{SSO: service}, ac, http.MethodGet, path, nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"has_master_password":true`)
	})

	t.Run("system actors have no user", func(t *testing.T) {
		w := do(t, Services{SSO: &mockDecryption{}}, auth.SystemContext(auth.SystemUserSCIM), http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
