// Package middleware provides the HTTP middleware in front of warden's
// handlers.
//
//   - RequestID: assigns a request id and a request-scoped logger
//   - ActorContextMiddleware: builds the auth.ActorContext from identity
//     headers set by the authenticating proxy
//   - RateLimitMiddleware: per-actor token buckets, in memory
//     (RateLimiter) or shared through Redis (DistributedRateLimiter)
//
// Typical order:
//
//	router.Use(middleware.RequestID(logger))
//	router.Use(middleware.NewActorContextMiddleware(store.OrganizationUsers, orgService).Handler)
//	router.Use(middleware.NewRateLimitMiddleware(limiter).Handler)
package middleware
