package api

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hostline/concierge/internal/log"
)

// ProviderCheck reports whether the model backend answers. Wired from
// the application's embedder so a dead provider surfaces in readiness
// before traffic does.
type ProviderCheck func(ctx context.Context) error

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	pool     *pgxpool.Pool
	provider ProviderCheck
	logger   log.Logger
}

// NewHealthHandler creates a health handler. pool is pinged and
// provider is probed for readiness.
func NewHealthHandler(pool *pgxpool.Pool, provider ProviderCheck, logger log.Logger) *HealthHandler {
	return &HealthHandler{pool: pool, provider: provider, logger: logger}
}

// RegisterRoutes registers health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.liveness)
	mux.HandleFunc("GET /ready", h.readiness)
}

// liveness returns 200 while the process is alive.
func (h *HealthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness reports per-dependency status and returns 200 only when
// both the database and the model provider answer.
func (h *HealthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"database": "ok", "provider": "ok"}
	healthy := true

	switch {
	case h.pool == nil:
		status["database"] = "unconfigured"
		healthy = false
	default:
		if err := h.pool.Ping(r.Context()); err != nil {
			h.logger.Error("readiness check failed", "component", "database", "error", err)
			status["database"] = "unreachable"
			healthy = false
		}
	}

	switch {
	case h.provider == nil:
		status["provider"] = "unconfigured"
		healthy = false
	default:
		if err := h.provider(r.Context()); err != nil {
			h.logger.Error("readiness check failed", "component", "provider", "error", err)
			status["provider"] = "unreachable"
			healthy = false
		}
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, h.logger, code, status)
}
