// Package server holds the HTTP plumbing shared by every mode: JSON responses,
// the error envelope, request logging and graceful shutdown.
package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(v)
}

// WriteError writes an error response in JSON format
func WriteError(w http.ResponseWriter, statusCode int, message, requestID string) {
	WriteJSON(w, statusCode, map[string]interface{}{
		"error":      message,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"request_id": requestID,
	})
}

// DecodeJSON decodes a request body of at most 1 MiB into v.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
}

// HealthFunc reports whether the service's dependencies are reachable.
type HealthFunc func(r *http.Request) bool

// HealthHandler serves GET /health for the named service.
func HealthHandler(service string, check HealthFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		healthy := check == nil || check(r)

		response := map[string]interface{}{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"service":   service,
			"healthy":   healthy,
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
			response["status"] = "unhealthy"
		}
		WriteJSON(w, status, response)
	}
}
