package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/platinummonkey/warden/pkg/errs"
	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/orgs"
)

// OrganizationHandlers handles organization lifecycle and billing requests
type OrganizationHandlers struct {
	orgs OrganizationService
}

// NewOrganizationHandlers creates a new OrganizationHandlers
func NewOrganizationHandlers(service OrganizationService) *OrganizationHandlers {
	return &OrganizationHandlers{orgs: service}
}

// RegisterRoutes registers organization routes
func (h *OrganizationHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/organizations/{orgId}", h.Get).Methods(http.MethodGet)
	router.HandleFunc("/organizations/{orgId}", h.Delete).Methods(http.MethodDelete)
	router.HandleFunc("/organizations/{orgId}/keys", h.UpdateKeys).Methods(http.MethodPost)

	// Billing
	router.HandleFunc("/organizations/{orgId}/upgrade", h.Upgrade).Methods(http.MethodPost)
	router.HandleFunc("/organizations/{orgId}/subscription", h.UpdateSubscription).Methods(http.MethodPost)
	router.HandleFunc("/organizations/{orgId}/seats", h.AdjustSeats).Methods(http.MethodPost)
}

// Get handles GET /organizations/{orgId}. Only members see the organization.
func (h *OrganizationHandlers) Get(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathUUIDOrError(w, r, "orgId")
	if !ok {
		return
	}
	ac, ok := requireActor(w, r)
	if !ok {
		return
	}
	if _, member := ac.Membership(orgID); !member {
		httputil.WriteServiceError(w, r, errs.NotFound(""))
		return
	}

	org, err := h.orgs.GetOrganization(r.Context(), orgID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSONOrError(w, r, http.StatusOK, newOrganizationResponse(org))
}

// Delete handles DELETE /organizations/{orgId}
func (h *OrganizationHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	org, ok := h.ownedOrganization(w, r)
	if !ok {
		return
	}
	writeEmpty(w, r, h.orgs.DeleteOrganization(r.Context(), org))
}

// UpdateKeys handles POST /organizations/{orgId}/keys
func (h *OrganizationHandlers) UpdateKeys(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathUUIDOrError(w, r, "orgId")
	if !ok {
		return
	}
	ac, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req KeysRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	writeEmpty(w, r, h.orgs.UpdateOrganizationKeys(r.Context(), ac, orgID, req.PublicKey, req.EncryptedPrivateKey))
}

// Upgrade handles POST /organizations/{orgId}/upgrade
func (h *OrganizationHandlers) Upgrade(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.requireOwner(w, r)
	if !ok {
		return
	}

	var req orgs.PlanUpgrade
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	writeEmpty(w, r, h.orgs.UpgradePlan(r.Context(), orgID, req))
}

// UpdateSubscription handles POST /organizations/{orgId}/subscription
func (h *OrganizationHandlers) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.requireOwner(w, r)
	if !ok {
		return
	}

	var req SubscriptionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	writeEmpty(w, r, h.orgs.UpdateSubscription(r.Context(), orgID, req.SeatAdjustment, req.MaxAutoscaleSeats))
}

// AdjustSeats handles POST /organizations/{orgId}/seats
func (h *OrganizationHandlers) AdjustSeats(w http.ResponseWriter, r *http.Request) {
	org, ok := h.ownedOrganization(w, r)
	if !ok {
		return
	}

	var req SeatsRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	writeEmpty(w, r, h.orgs.AdjustSeats(r.Context(), org, req.SeatAdjustment))
}

// requireOwner parses the organization id and checks the actor owns it.
// Non-owners get a 404 so the organization's existence is not disclosed.
func (h *OrganizationHandlers) requireOwner(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	orgID, ok := httputil.ParsePathUUIDOrError(w, r, "orgId")
	if !ok {
		return uuid.Nil, false
	}
	ac, ok := requireActor(w, r)
	if !ok {
		return uuid.Nil, false
	}
	if !ac.OrganizationOwner(orgID) {
		httputil.WriteServiceError(w, r, errs.NotFound(""))
		return uuid.Nil, false
	}
	return orgID, true
}

func (h *OrganizationHandlers) ownedOrganization(w http.ResponseWriter, r *http.Request) (*orgs.Organization, bool) {
	orgID, ok := h.requireOwner(w, r)
	if !ok {
		return nil, false
	}
	org, err := h.orgs.GetOrganization(r.Context(), orgID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return nil, false
	}
	return org, true
}
