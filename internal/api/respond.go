package api

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/goodtune/trackgate/internal/timeular"
)

// Plain-text bodies returned on failure. Upstream detail is only logged.
const (
	msgExternalService = "external service error"
	msgNotFound        = "activity not found"
	msgBadRequest      = "invalid request body"
	msgInternal        = "internal server error"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		writeText(w, http.StatusInternalServerError, msgInternal)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(body)
}

// writeText writes a plain-text response.
func writeText(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(body))
}

// writeClientError maps a client error kind onto a status and fixed body.
func writeClientError(w http.ResponseWriter, err error) {
	switch timeular.KindOf(err) {
	case timeular.KindNotFound:
		writeText(w, http.StatusNotFound, msgNotFound)
	default:
		writeText(w, http.StatusInternalServerError, msgExternalService)
	}
}
