package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/karthivk/Callcenter/pkg/logger"
	"go.uber.org/zap"
)

// Pinger reports backend reachability, typically the audit database
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and version endpoints
type HealthHandler struct {
	serviceName string
	version     string
	db          Pinger // nil when no database is configured
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(serviceName, version string, db Pinger) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, db: db}
}

// SetupHealthRoutes registers the health routes
func (h *HealthHandler) SetupHealthRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.handleHealth).Methods("GET")
	router.HandleFunc("/healthz", h.handleHealthz).Methods("GET")
	router.HandleFunc("/version", h.handleVersion).Methods("GET")
}

func (h *HealthHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *HealthHandler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			logger.Base().Warn("database ping failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandler) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": h.serviceName,
		"version": h.version,
	})
}
