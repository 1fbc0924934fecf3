package api

import (
	"encoding/json"
	"net/http"

	"github.com/aleka07/onchain-agent/internal/logger"
)

// StatusResponse is the body of the health endpoints.
type StatusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// writeJSON sends v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode JSON response", "error", err)
	}
}
