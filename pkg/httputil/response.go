package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/platinummonkey/warden/pkg/contextkeys"
	"github.com/platinummonkey/warden/pkg/errs"
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	_ = WriteJSON(w, status, ErrorResponse{Error: message})
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteUnauthorized writes an unauthorized error (401)
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusUnauthorized, message)
}

// WriteTooManyRequests writes a rate limit error (429)
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusTooManyRequests, message)
}

// WriteInternalError writes a 500 without leaking err to the client
func WriteInternalError(w http.ResponseWriter) {
	WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// StatusFor maps a service error onto an HTTP status code
func StatusFor(err error) int {
	switch {
	case errs.IsNotFound(err):
		return http.StatusNotFound
	case errs.IsBadRequest(err):
		return http.StatusBadRequest
	case errs.IsUnauthorized(err):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// WriteServiceError writes the reply for an error returned by a service.
// Typed failures carry their message to the client; anything else is
// logged with the request logger and reported as a bare 500.
func WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		contextkeys.GetLogger(r.Context()).WithError(err).WithField("path", r.URL.Path).Error("request failed")
		WriteInternalError(w)
		return
	}
	WriteErrorMessage(w, status, err.Error())
}

// WriteJSONOrError writes JSON on success or an internal error on failure
func WriteJSONOrError(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if err := WriteJSON(w, status, data); err != nil {
		contextkeys.GetLogger(r.Context()).WithError(fmt.Errorf("failed to encode response: %w", err)).Error("write failed")
	}
}
