// Package errs defines the typed failures surfaced by the membership and
// secrets services. Each type aborts the entire operation it is returned
// from; bulk operations turn them into per-item messages instead.
package errs

import "errors"

// NotFoundError reports a missing resource or a request the caller may not see.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	if e.Message == "" {
		return "Resource not found."
	}
	return e.Message
}

// BadRequestError reports a business-rule rejection with a user-facing message.
type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string {
	return e.Message
}

// UnauthorizedError reports a caller lacking a baseline capability.
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string {
	if e.Message == "" {
		return "Unauthorized."
	}
	return e.Message
}

// NotFound returns a NotFoundError. An empty message is allowed.
func NotFound(message string) error {
	return &NotFoundError{Message: message}
}

// BadRequest returns a BadRequestError carrying message.
func BadRequest(message string) error {
	return &BadRequestError{Message: message}
}

// Unauthorized returns an UnauthorizedError.
func Unauthorized(message string) error {
	return &UnauthorizedError{Message: message}
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsBadRequest reports whether err wraps a BadRequestError.
func IsBadRequest(err error) bool {
	var target *BadRequestError
	return errors.As(err, &target)
}

// IsUnauthorized reports whether err wraps an UnauthorizedError.
func IsUnauthorized(err error) bool {
	var target *UnauthorizedError
	return errors.As(err, &target)
}

// IsDenial reports whether err is one of the typed business failures
// rather than an infrastructure error.
func IsDenial(err error) bool {
	return IsNotFound(err) || IsBadRequest(err) || IsUnauthorized(err)
}
