package audit

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/warden/pkg/contextkeys"
	"github.com/platinummonkey/warden/pkg/errs"
	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/orgs"
)

// Searcher reads back stored events
type Searcher interface {
	Search(ctx context.Context, filter SearchFilter) ([]*Event, error)
}

// Handlers provides HTTP handlers for the event log API
type Handlers struct {
	store Searcher
}

// NewHandlers creates new audit handlers
func NewHandlers(store Searcher) *Handlers {
	return &Handlers{store: store}
}

// RegisterRoutes registers event log routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/organizations/{orgId}/events", h.listEvents).Methods(http.MethodGet)
	router.HandleFunc("/organizations/{orgId}/users/{id}/events", h.listEvents).Methods(http.MethodGet)
}

// listEvents handles GET /organizations/{orgId}/events
func (h *Handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathUUIDOrError(w, r, "orgId")
	if !ok {
		return
	}

	ac, ok := contextkeys.GetActor(r.Context())
	if !ok || !ac.AccessEventLogs(orgID) {
		httputil.WriteServiceError(w, r, errs.NotFound(""))
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	filter.OrganizationID = orgID

	if _, scoped := mux.Vars(r)["id"]; scoped {
		id, ok := httputil.ParsePathUUIDOrError(w, r, "id")
		if !ok {
			return
		}
		filter.OrganizationUserID = &id
	}

	events, err := h.store.Search(r.Context(), filter)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	if events == nil {
		events = []*Event{}
	}

	httputil.WriteJSONOrError(w, r, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
		"limit":  filter.limit(),
		"offset": filter.Offset,
	})
}

// parseFilter reads the query parameters of an event search
func parseFilter(r *http.Request) (SearchFilter, error) {
	var (
		filter SearchFilter
		err    error
	)

	for _, t := range r.URL.Query()["type"] {
		filter.Types = append(filter.Types, orgs.EventType(t))
	}
	if filter.Start, err = httputil.ParseQueryTime(r, "start"); err != nil {
		return filter, err
	}
	if filter.End, err = httputil.ParseQueryTime(r, "end"); err != nil {
		return filter, err
	}
	if filter.Limit, err = httputil.ParseQueryInt(r, "limit", defaultSearchLimit); err != nil {
		return filter, err
	}
	if filter.Offset, err = httputil.ParseQueryInt(r, "offset", 0); err != nil {
		return filter, err
	}
	return filter, nil
}
