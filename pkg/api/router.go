package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aleka07/onchain-agent/pkg/metrics"
	"github.com/aleka07/onchain-agent/pkg/web"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 100 << 10

// RouterConfig carries the router's collaborators. Every field may be nil.
type RouterConfig struct {
	Readiness Readiness
	Metrics   *metrics.Metrics
}

// NewRouter creates the chi router with the middleware stack and routes.
//
// Every request passes through, in order: request ID, real IP, HEAD-as-GET,
// metrics, request logging, panic recovery, security headers, CORS, body
// size limit and a request timeout.
//
// Routes:
//   - GET /             - welcome text
//   - GET /health       - liveness, always {"status":"ok"}
//   - GET /health/ready - readiness (lifecycle state + storage ping)
//   - GET /app          - frontend shell
//   - GET /metrics      - Prometheus, only when cfg.Metrics is set
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.GetHead)
	r.Use(requestMetrics(cfg.Metrics))
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(corsHandler())
	r.Use(middleware.RequestSize(MaxBodyBytes))
	r.Use(middleware.Timeout(60 * time.Second))

	apiHandler := NewAPI(cfg.Readiness)

	r.Get("/", WelcomeHandler)
	r.Get("/health", HealthCheckHandler)
	r.Get("/health/ready", apiHandler.ReadinessHandler)
	r.Method(http.MethodGet, "/app", web.Handler())

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	return r
}
