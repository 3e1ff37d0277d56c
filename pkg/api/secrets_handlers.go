package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/bulk"
	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/secrets"
)

// SecretsManagerHandlers handles project, secret and service account
// requests. Any of the services may be nil, in which case its routes are
// not registered.
type SecretsManagerHandlers struct {
	projects        ProjectService
	secrets         SecretService
	serviceAccounts ServiceAccountService
}

// NewSecretsManagerHandlers creates a new SecretsManagerHandlers
func NewSecretsManagerHandlers(projects ProjectService, secretService SecretService, serviceAccounts ServiceAccountService) *SecretsManagerHandlers {
	return &SecretsManagerHandlers{
		projects:        projects,
		secrets:         secretService,
		serviceAccounts: serviceAccounts,
	}
}

// RegisterRoutes registers secrets manager routes
func (h *SecretsManagerHandlers) RegisterRoutes(router *mux.Router) {
	if h.projects != nil {
		router.HandleFunc("/organizations/{orgId}/projects", h.ListProjects).Methods(http.MethodGet)
		router.HandleFunc("/organizations/{orgId}/projects", h.CreateProject).Methods(http.MethodPost)
		router.HandleFunc("/projects/delete", h.DeleteProjects).Methods(http.MethodPost)
		router.HandleFunc("/projects/{id}", h.GetProject).Methods(http.MethodGet)
		router.HandleFunc("/projects/{id}", h.UpdateProject).Methods(http.MethodPut)
	}

	if h.secrets != nil {
		router.HandleFunc("/secrets/delete", h.DeleteSecrets).Methods(http.MethodPost)
	}

	if h.serviceAccounts != nil {
		router.HandleFunc("/organizations/{orgId}/service-accounts", h.ListServiceAccounts).Methods(http.MethodGet)
		router.HandleFunc("/organizations/{orgId}/service-accounts", h.CreateServiceAccount).Methods(http.MethodPost)
		router.HandleFunc("/service-accounts/{id}", h.UpdateServiceAccount).Methods(http.MethodPut)
		router.HandleFunc("/service-accounts/{id}/access-tokens", h.ListAccessTokens).Methods(http.MethodGet)
		router.HandleFunc("/service-accounts/{id}/access-tokens", h.CreateAccessToken).Methods(http.MethodPost)
		router.HandleFunc("/service-accounts/{id}/access-tokens/revoke", h.RevokeAccessTokens).Methods(http.MethodPost)
	}
}

// ListProjects handles GET /organizations/{orgId}/projects
func (h *SecretsManagerHandlers) ListProjects(w http.ResponseWriter, r *http.Request) {
	orgID, ac, ok := orgRequest(w, r)
	if !ok {
		return
	}

	projects, err := h.projects.List(r.Context(), ac, orgID)
	if projects == nil {
		projects = []*secrets.Project{}
	}
	writeResult(w, r, http.StatusOK, ListResponse{Data: projects, Count: len(projects)}, err)
}

// CreateProject handles POST /organizations/{orgId}/projects
func (h *SecretsManagerHandlers) CreateProject(w http.ResponseWriter, r *http.Request) {
	orgID, ac, ok := orgRequest(w, r)
	if !ok {
		return
	}
	name, ok := parseName(w, r)
	if !ok {
		return
	}

	project, err := h.projects.Create(r.Context(), ac, orgID, name)
	writeResult(w, r, http.StatusCreated, project, err)
}

// GetProject handles GET /projects/{id}
func (h *SecretsManagerHandlers) GetProject(w http.ResponseWriter, r *http.Request) {
	id, ac, ok := idRequest(w, r)
	if !ok {
		return
	}

	project, err := h.projects.Get(r.Context(), ac, id)
	writeResult(w, r, http.StatusOK, project, err)
}

// UpdateProject handles PUT /projects/{id}
func (h *SecretsManagerHandlers) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id, ac, ok := idRequest(w, r)
	if !ok {
		return
	}
	name, ok := parseName(w, r)
	if !ok {
		return
	}

	project, err := h.projects.Update(r.Context(), ac, id, name)
	writeResult(w, r, http.StatusOK, project, err)
}

// DeleteProjects handles POST /projects/delete
func (h *SecretsManagerHandlers) DeleteProjects(w http.ResponseWriter, r *http.Request) {
	bulkDelete(w, r, h.projects.DeleteMany)
}

// DeleteSecrets handles POST /secrets/delete
func (h *SecretsManagerHandlers) DeleteSecrets(w http.ResponseWriter, r *http.Request) {
	bulkDelete(w, r, h.secrets.DeleteMany)
}

// ListServiceAccounts handles GET /organizations/{orgId}/service-accounts
func (h *SecretsManagerHandlers) ListServiceAccounts(w http.ResponseWriter, r *http.Request) {
	orgID, ac, ok := orgRequest(w, r)
	if !ok {
		return
	}

	accounts, err := h.serviceAccounts.List(r.Context(), ac, orgID)
	if accounts == nil {
		accounts = []*secrets.ServiceAccount{}
	}
	writeResult(w, r, http.StatusOK, ListResponse{Data: accounts, Count: len(accounts)}, err)
}

// CreateServiceAccount handles POST /organizations/{orgId}/service-accounts
func (h *SecretsManagerHandlers) CreateServiceAccount(w http.ResponseWriter, r *http.Request) {
	orgID, ac, ok := orgRequest(w, r)
	if !ok {
		return
	}
	name, ok := parseName(w, r)
	if !ok {
		return
	}

	account, err := h.serviceAccounts.Create(r.Context(), ac, orgID, name)
	writeResult(w, r, http.StatusCreated, account, err)
}

// UpdateServiceAccount handles PUT /service-accounts/{id}
func (h *SecretsManagerHandlers) UpdateServiceAccount(w http.ResponseWriter, r *http.Request) {
	id, ac, ok := idRequest(w, r)
	if !ok {
		return
	}
	name, ok := parseName(w, r)
	if !ok {
		return
	}

	account, err := h.serviceAccounts.Update(r.Context(), ac, id, name)
	writeResult(w, r, http.StatusOK, account, err)
}

// ListAccessTokens handles GET /service-accounts/{id}/access-tokens
func (h *SecretsManagerHandlers) ListAccessTokens(w http.ResponseWriter, r *http.Request) {
	id, ac, ok := idRequest(w, r)
	if !ok {
		return
	}

	tokens, err := h.serviceAccounts.GetAccessTokens(r.Context(), ac, id)
	if tokens == nil {
		tokens = []*secrets.ApiKey{}
	}
	writeResult(w, r, http.StatusOK, ListResponse{Data: tokens, Count: len(tokens)}, err)
}

// CreateAccessToken handles POST /service-accounts/{id}/access-tokens. The
// client secret is only ever returned here.
func (h *SecretsManagerHandlers) CreateAccessToken(w http.ResponseWriter, r *http.Request) {
	id, ac, ok := idRequest(w, r)
	if !ok {
		return
	}

	var req secrets.AccessTokenRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := h.serviceAccounts.CreateAccessToken(r.Context(), ac, id, req)
	writeResult(w, r, http.StatusCreated, result, err)
}

// RevokeAccessTokens handles POST /service-accounts/{id}/access-tokens/revoke
func (h *SecretsManagerHandlers) RevokeAccessTokens(w http.ResponseWriter, r *http.Request) {
	id, ac, ok := idRequest(w, r)
	if !ok {
		return
	}

	var req IDsRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	writeEmpty(w, r, h.serviceAccounts.RevokeAccessTokens(r.Context(), ac, id, req.IDs))
}

func bulkDelete(w http.ResponseWriter, r *http.Request, op func(context.Context, *auth.ActorContext, []uuid.UUID) ([]bulk.Result, error)) {
	ac, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req IDsRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	results, err := op(r.Context(), ac, req.IDs)
	writeResult(w, r, http.StatusOK, newBulkResponse(results), err)
}

func orgRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, *auth.ActorContext, bool) {
	orgID, ok := httputil.ParsePathUUIDOrError(w, r, "orgId")
	if !ok {
		return uuid.Nil, nil, false
	}
	ac, ok := requireActor(w, r)
	return orgID, ac, ok
}

func idRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, *auth.ActorContext, bool) {
	id, ok := httputil.ParsePathUUIDOrError(w, r, "id")
	if !ok {
		return uuid.Nil, nil, false
	}
	ac, ok := requireActor(w, r)
	return id, ac, ok
}

func parseName(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req NameRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return "", false
	}
	return req.Name, true
}
