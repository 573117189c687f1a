package http

import (
	"net/http"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// APIError is a structured error response.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`    // bad_request, unavailable, internal_error
	Message string `json:"message"` // human-readable
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	sharedobs.WriteJSON(w, status, APIError{Status: status, Code: code, Message: message})
}

func errBadRequest(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, "bad_request", msg)
}

func errUnavailable(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusServiceUnavailable, "unavailable", msg)
}

func errInternal(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusInternalServerError, "internal_error", msg)
}
