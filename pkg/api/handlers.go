// pkg/api/handlers.go
package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/aleka07/onchain-agent/internal/logger"
)

// WelcomeMessage is the exact body of GET /.
const WelcomeMessage = "On-chain Security AI Agent API"

// Readiness reports whether the service can take traffic. The lifecycle
// controller implements it; the API sees nothing else of the controller.
type Readiness interface {
	Ready(ctx context.Context) error
}

// API holds handler dependencies.
type API struct {
	Readiness    Readiness     // may be nil: the service is then never ready
	ReadyTimeout time.Duration // bound on a single readiness probe
}

// NewAPI creates the handler set.
func NewAPI(readiness Readiness) *API {
	return &API{
		Readiness:    readiness,
		ReadyTimeout: 2 * time.Second,
	}
}

// --- Handlers ---

// WelcomeHandler handles GET /
func WelcomeHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, WelcomeMessage); err != nil {
		logger.Debug("Failed to write welcome response", "error", err)
	}
}

// HealthCheckHandler handles GET /health. It reports process liveness only.
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// ReadinessHandler handles GET /health/ready.
func (a *API) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if a.Readiness == nil {
		writeJSON(w, http.StatusServiceUnavailable, StatusResponse{Status: "unavailable", Error: "readiness not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.ReadyTimeout)
	defer cancel()

	if err := a.Readiness.Ready(ctx); err != nil {
		logger.Debug("Readiness probe failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, StatusResponse{Status: "unavailable", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ready"})
}
