package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/platinummonkey/warden/pkg/errs"
	"github.com/platinummonkey/warden/pkg/httputil"
)

// SSOHandlers handles SSO member decryption requests
type SSOHandlers struct {
	sso DecryptionService
}

// NewSSOHandlers creates a new SSOHandlers
func NewSSOHandlers(service DecryptionService) *SSOHandlers {
	return &SSOHandlers{sso: service}
}

// RegisterRoutes registers sso routes
func (h *SSOHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/organizations/{orgId}/sso/decryption-options", h.DecryptionOptions).Methods(http.MethodGet)
}

// DecryptionOptions handles GET /organizations/{orgId}/sso/decryption-options
// for the calling user.
func (h *SSOHandlers) DecryptionOptions(w http.ResponseWriter, r *http.Request) {
	orgID, ac, ok := orgRequest(w, r)
	if !ok {
		return
	}
	userID := ac.UserID()
	if userID == uuid.Nil {
		httputil.WriteServiceError(w, r, errs.Unauthorized(""))
		return
	}

	opts, err := h.sso.DecryptionOptions(r.Context(), orgID, userID)
	writeResult(w, r, http.StatusOK, opts, err)
}
