package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/contextkeys"
	"github.com/platinummonkey/warden/pkg/errs"
	"github.com/platinummonkey/warden/pkg/httputil"
)

// Server represents our API server
type Server struct {
	router   *mux.Router
	services Services
}

// NewServer creates a new API server routing to services
func NewServer(services Services) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		services: services,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	if s.services.Members != nil {
		s.RegisterRoutes(NewOrganizationUserHandlers(s.services.Members))
	}
	if s.services.Organizations != nil {
		s.RegisterRoutes(NewOrganizationHandlers(s.services.Organizations))
	}
	if s.services.Projects != nil || s.services.Secrets != nil || s.services.ServiceAccounts != nil {
		s.RegisterRoutes(NewSecretsManagerHandlers(s.services.Projects, s.services.Secrets, s.services.ServiceAccounts))
	}
	if s.services.SSO != nil {
		s.RegisterRoutes(NewSSOHandlers(s.services.SSO))
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router returns the underlying router so middleware can be attached
func (s *Server) Router() *mux.Router {
	return s.router
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// RegisterRoutes registers routes from a RouteRegistrar
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.router)
}

// requireActor returns the request's actor or writes a 401
func requireActor(w http.ResponseWriter, r *http.Request) (*auth.ActorContext, bool) {
	ac, ok := contextkeys.GetActor(r.Context())
	if !ok {
		httputil.WriteServiceError(w, r, errs.Unauthorized(""))
		return nil, false
	}
	return ac, true
}

// writeResult writes err, or data with status on success
func writeResult(w http.ResponseWriter, r *http.Request, status int, data interface{}, err error) {
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSONOrError(w, r, status, data)
}

// writeEmpty writes err, or 204 on success
func writeEmpty(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
