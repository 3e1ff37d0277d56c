// Package httputil provides the request and response helpers shared by the
// warden HTTP handlers.
//
// # Errors
//
// Service errors are mapped onto status codes by WriteServiceError:
//
//	errs.NotFoundError     -> 404
//	errs.BadRequestError   -> 400
//	errs.UnauthorizedError -> 401
//	anything else          -> 500 (logged, message hidden)
//
// # Request Parsing
//
//	orgID, ok := httputil.ParsePathUUIDOrError(w, r, "orgId")
//	if !ok {
//		return // Error response already written
//	}
//
//	var req InviteRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return
//	}
//
// Decoded bodies are checked against their go-playground/validator
// `validate` tags; the first failure becomes the 400 message.
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RecoveryMiddleware,
//		httputil.LoggingMiddleware,
//		httputil.MaxBytesMiddleware(1<<20),
//	)
package httputil
