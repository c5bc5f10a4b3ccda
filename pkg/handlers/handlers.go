// Package handlers provides JSON response helpers shared by HTTP handlers.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorBody is the JSON shape of every error response.
// Kind classifies the failure for operators (for example "gateway" or
// "notification"); Errors carries field-level detail for validation failures.
type ErrorBody struct {
	Message  string `json:"message"`
	Kind     string `json:"kind,omitempty"`
	Errors   any    `json:"errors,omitempty"`
	Resource any    `json:"resource,omitempty"`
}

// RespondJSON writes data as a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes {"message": err} with the given status.
// Server errors are logged; client errors are not.
func RespondError(w http.ResponseWriter, logger *slog.Logger, status int, err error) {
	RespondProblem(w, logger, status, ErrorBody{Message: err.Error()})
}

// RespondProblem writes a structured error body with the given status.
func RespondProblem(w http.ResponseWriter, logger *slog.Logger, status int, body ErrorBody) {
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "kind", body.Kind, "error", body.Message)
	}
	RespondJSON(w, status, body)
}
