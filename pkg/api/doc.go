// Package api provides the HTTP REST API for warden.
//
// # Overview
//
// The handlers are a thin layer over the orgs, secrets and sso services.
// They parse paths and bodies, pull the caller's *auth.ActorContext from the
// request context and turn typed service errors into status codes. Every
// authorization decision is made by the services, never here, except for the
// billing endpoints whose services take no actor and are restricted to
// organization owners.
//
// # Architecture
//
// The API is built on gorilla/mux and organized into handler groups:
//
//   - Organization users: invite, save, confirm, revoke, restore, remove, import
//   - Organizations: get, delete, keys, plan upgrade, subscription and seats
//   - Secrets manager: projects, secrets and service accounts with access tokens
//   - SSO: member decryption options
//
// Each group implements RouteRegistrar so the binary can mount additional
// registrars (event logs, health, metrics) on the same router:
//
//	server := api.NewServer(api.Services{Members: orgService, ...})
//	server.RegisterRoutes(audit.NewHandlers(eventStore))
//	http.ListenAndServe(":8080", server)
//
// # Bulk responses
//
// Bulk endpoints answer 200 with one entry per requested id. An entry with
// an empty error succeeded:
//
//	{"data": [{"id": "…", "error": ""}, {"id": "…", "error": "User not valid."}]}
//
// # Errors
//
//   - 400: business rule rejected with a user-facing message
//   - 401: missing actor or missing baseline capability
//   - 404: resource missing or not visible to the caller
//   - 500: infrastructure failure, logged with the request logger
package api
