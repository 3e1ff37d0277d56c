package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/contextkeys"
	"github.com/platinummonkey/warden/pkg/orgs"
)

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) Search(ctx context.Context, filter SearchFilter) ([]*Event, error) {
	args := m.Called(ctx, filter)
	events, _ := args.Get(0).([]*Event)
	return events, args.Error(1)
}

func serve(h *Handlers, req *http.Request, ac *auth.ActorContext) *httptest.ResponseRecorder {
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	if ac != nil {
		req = req.WithContext(contextkeys.WithActor(req.Context(), ac))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandlers_listEvents(t *testing.T) {
	orgID := uuid.New()
	admin := auth.NewActorContext(auth.Human(uuid.New()), auth.ClientTypeUser,
		auth.Membership{OrganizationID: orgID, Type: auth.MemberTypeAdmin})
	plain := auth.NewActorContext(auth.Human(uuid.New()), auth.ClientTypeUser,
		auth.Membership{OrganizationID: orgID, Type: auth.MemberTypeUser})

	t.Run("admin lists events", func(t *testing.T) {
		store := &mockSearcher{}
		store.On("Search", mock.Anything, mock.MatchedBy(func(f SearchFilter) bool {
			return f.OrganizationID == orgID && len(f.Types) == 1 && f.Types[0] == orgs.EventOrganizationUserInvited && f.Limit == 20
		})).Return([]*Event{{ID: 1, Type: orgs.EventOrganizationUserInvited, OrganizationID: orgID}}, nil)

		req := httptest.NewRequest(http.MethodGet, "/organizations/"+orgID.String()+"/events?type=organization_user_invited&limit=20", nil)
		w := serve(NewHandlers(store), req, admin)

		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Events []*Event `json:"events"`
			Count  int      `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, 1, body.Count)
		store.AssertExpectations(t)
	})

	t.Run("member scoped route", func(t *testing.T) {
		ouID := uuid.New()
		store := &mockSearcher{}
		store.On("Search", mock.Anything, mock.MatchedBy(func(f SearchFilter) bool {
			return f.OrganizationUserID != nil && *f.OrganizationUserID == ouID
		})).Return(nil, nil)

		req := httptest.NewRequest(http.MethodGet, "/organizations/"+orgID.String()+"/users/"+ouID.String()+"/events", nil)
		w := serve(NewHandlers(store), req, admin)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"events":[]`)
	})

	t.Run("missing capability is not found", func(t *testing.T) {
		store := &mockSearcher{}
		req := httptest.NewRequest(http.MethodGet, "/organizations/"+orgID.String()+"/events", nil)

		w := serve(NewHandlers(store), req, plain)

		assert.Equal(t, http.StatusNotFound, w.Code)
		store.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
	})

	t.Run("bad time", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/organizations/"+orgID.String()+"/events?start=yesterday", nil)
		w := serve(NewHandlers(&mockSearcher{}), req, admin)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		store := &mockSearcher{}
		store.On("Search", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

		req := httptest.NewRequest(http.MethodGet, "/organizations/"+orgID.String()+"/events", nil)
		w := serve(NewHandlers(store), req, admin)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
