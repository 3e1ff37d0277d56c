package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/orgs"
)

type pingRegistrar struct{}

func (pingRegistrar) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}).Methods(http.MethodGet)
}

func TestNewServer(t *testing.T) {
	t.Run("unset services leave their routes unregistered", func(t *testing.T) {
		w := do(t, Services{}, member(uuid.New(), auth.MemberTypeOwner), http.MethodGet, "/projects/"+uuid.New().String(), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("external registrars share the router", func(t *testing.T) {
		server := NewServer(Services{})
		server.RegisterRoutes(pingRegistrar{})

		w := httptest.NewRecorder()
		server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusTeapot, w.Code)
		require.NotNil(t, server.Router())
	})

	t.Run("organization and member routes coexist", func(t *testing.T) {
		orgID := uuid.New()
		owner := member(orgID, auth.MemberTypeOwner)

		organizations := &mockOrganizations{}
		organizations.On("GetOrganization", mock.Anything, orgID).Return(&orgs.Organization{ID: orgID}, nil)
		members := &mockMembers{}
		members.On("DeleteUser", mock.Anything, owner, orgID, mock.Anything).Return(nil)

		services := Services{Members: members, Organizations: organizations}

		w := do(t, services, owner, http.MethodGet, "/organizations/"+orgID.String(), nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = do(t, services, owner, http.MethodDelete, "/organizations/"+orgID.String()+"/users/"+uuid.New().String(), nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		orgID := uuid.New()
		w := do(t, Services{Members: &mockMembers{}}, member(orgID, auth.MemberTypeOwner), http.MethodGet, "/organizations/"+orgID.String()+"/users/invite", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}
