package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/bulk"
	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/orgs"
)

type bulkMemberOp func(ctx context.Context, ac *auth.ActorContext, orgID uuid.UUID, orgUserIDs []uuid.UUID) ([]bulk.Result, error)

// OrganizationUserHandlers handles the membership lifecycle endpoints
type OrganizationUserHandlers struct {
	members MembershipService
}

// NewOrganizationUserHandlers creates a new OrganizationUserHandlers
func NewOrganizationUserHandlers(members MembershipService) *OrganizationUserHandlers {
	return &OrganizationUserHandlers{members: members}
}

// RegisterRoutes registers organization user routes. Bulk routes come first
// so their literal segments are not captured by {id}.
func (h *OrganizationUserHandlers) RegisterRoutes(router *mux.Router) {
	r := router.PathPrefix("/organizations/{orgId}").Subrouter()

	r.HandleFunc("/users/invite", h.Invite).Methods(http.MethodPost)
	r.HandleFunc("/users/confirm", h.BulkConfirm).Methods(http.MethodPost)
	r.HandleFunc("/users/revoke", h.BulkRevoke).Methods(http.MethodPut)
	r.HandleFunc("/users/restore", h.BulkRestore).Methods(http.MethodPut)
	r.HandleFunc("/users", h.BulkDelete).Methods(http.MethodDelete)

	r.HandleFunc("/users/{id}", h.Save).Methods(http.MethodPut)
	r.HandleFunc("/users/{id}", h.Delete).Methods(http.MethodDelete)
	r.HandleFunc("/users/{id}/confirm", h.Confirm).Methods(http.MethodPost)
	r.HandleFunc("/users/{id}/revoke", h.Revoke).Methods(http.MethodPut)
	r.HandleFunc("/users/{id}/restore", h.Restore).Methods(http.MethodPut)

	r.HandleFunc("/import", h.Import).Methods(http.MethodPost)
}

// Invite handles POST /organizations/{orgId}/users/invite
func (h *OrganizationUserHandlers) Invite(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathUUIDOrError(w, r, "orgId")
	if !ok {
		return
	}
	ac, ok := requireActor(w, r)
	if !ok {
		return
	}

	var body InviteBody
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	if len(body.Emails) == 0 {
		httputil.WriteBadRequest(w, "at least one email is required")
		return
	}

	invited, err := h.members.InviteUsers(r.Context(), ac, orgID, []orgs.InviteRequest{{
		Invite:     body.Invite,
		ExternalID: body.ExternalID,
	}})
	if invited == nil {
		invited = []*orgs.OrganizationUser{}
	}
	writeResult(w, r, http.StatusOK, ListResponse{Data: invited, Count: len(invited)}, err)
}

// Save handles PUT /organizations/{orgId}/users/{id}
func (h *OrganizationUserHandlers) Save(w http.ResponseWriter, r *http.Request) {
	orgID, id, ok := parseMemberPath(w, r)
	if !ok {
		return
	}
	ac, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req SaveUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user := &orgs.OrganizationUser{
		ID:             id,
		OrganizationID: orgID,
		Type:           req.Type,
		Permissions:    req.Permissions,
		AccessAll:      req.AccessAll,
		ExternalID:     req.ExternalID,
	}
	err := h.members.SaveUser(r.Context(), ac, user, req.Collections, req.Groups)
	writeResult(w, r, http.StatusOK, user, err)
}

// Delete handles DELETE /organizations/{orgId}/users/{id}
func (h *OrganizationUserHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	orgID, id, ok := parseMemberPath(w, r)
	if !ok {
		return
	}
	ac, ok := requireActor(w, r)
	if !ok {
		return
	}
	writeEmpty(w, r, h.members.DeleteUser(r.Context(), ac, orgID, id))
}

// BulkDelete handles DELETE /organizations/{orgId}/users
func (h *OrganizationUserHandlers) BulkDelete(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, h.members.DeleteUsers)
}

// Confirm handles POST /organizations/{orgId}/users/{id}/confirm
func (h *OrganizationUserHandlers) Confirm(w http.ResponseWriter, r *http.Request) {
	orgID, id, ok := parseMemberPath(w, r)
	if !ok {
		return
	}
	ac, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req ConfirmRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	member, err := h.members.ConfirmUser(r.Context(), ac, orgID, orgs.MemberKey{OrganizationUserID: id, Key: req.Key})
	writeResult(w, r, http.StatusOK, member, err)
}

// BulkConfirm handles POST /organizations/{orgId}/users/confirm
func (h *OrganizationUserHandlers) BulkConfirm(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathUUIDOrError(w, r, "orgId")
	if !ok {
		return
	}
	ac, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req BulkConfirmRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	results, err := h.members.ConfirmUsers(r.Context(), ac, orgID, req.Keys)
	writeResult(w, r, http.StatusOK, newBulkResponse(results), err)
}

// Revoke handles PUT /organizations/{orgId}/users/{id}/revoke
func (h *OrganizationUserHandlers) Revoke(w http.ResponseWriter, r *http.Request) {
	orgID, id, ok := parseMemberPath(w, r)
	if !ok {
		return
	}
	ac, ok := requireActor(w, r)
	if !ok {
		return
	}
	writeEmpty(w, r, h.members.RevokeUser(r.Context(), ac, orgID, id))
}

// BulkRevoke handles PUT /organizations/{orgId}/users/revoke
func (h *OrganizationUserHandlers) BulkRevoke(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, h.members.RevokeUsers)
}

// Restore handles PUT /organizations/{orgId}/users/{id}/restore
func (h *OrganizationUserHandlers) Restore(w http.ResponseWriter, r *http.Request) {
	orgID, id, ok := parseMemberPath(w, r)
	if !ok {
		return
	}
	ac, ok := requireActor(w, r)
	if !ok {
		return
	}
	writeEmpty(w, r, h.members.RestoreUser(r.Context(), ac, orgID, id))
}

// BulkRestore handles PUT /organizations/{orgId}/users/restore
func (h *OrganizationUserHandlers) BulkRestore(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, h.members.RestoreUsers)
}

// Import handles POST /organizations/{orgId}/import
func (h *OrganizationUserHandlers) Import(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathUUIDOrError(w, r, "orgId")
	if !ok {
		return
	}
	ac, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req ImportRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	summary, err := h.members.ImportUsers(r.Context(), ac, orgID, req.Members, req.RemoveExternalIDs, req.OverwriteExisting)
	writeResult(w, r, http.StatusOK, summary, err)
}

// bulk runs a bulk membership operation over the ids in the request body
func (h *OrganizationUserHandlers) bulk(w http.ResponseWriter, r *http.Request, op bulkMemberOp) {
	orgID, ok := httputil.ParsePathUUIDOrError(w, r, "orgId")
	if !ok {
		return
	}
	ac, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req IDsRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	results, err := op(r.Context(), ac, orgID, req.IDs)
	writeResult(w, r, http.StatusOK, newBulkResponse(results), err)
}

func parseMemberPath(w http.ResponseWriter, r *http.Request) (orgID, id uuid.UUID, ok bool) {
	if orgID, ok = httputil.ParsePathUUIDOrError(w, r, "orgId"); !ok {
		return
	}
	id, ok = httputil.ParsePathUUIDOrError(w, r, "id")
	return
}
