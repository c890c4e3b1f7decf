package routes

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/aistrack/platform/pkg/common/logger"
	"github.com/aistrack/platform/pkg/ingestion"
	"github.com/gorilla/mux"
)

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// SystemHandler serves feeder statistics and health checks.
type SystemHandler struct {
	listener *ingestion.Listener
	checks   map[string]ReadinessCheck
}

type feedersResponse struct {
	Feeders []ingestion.FeederStats `json:"feeders"`
	Count   int                     `json:"count"`
}

type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func NewSystemHandler(listener *ingestion.Listener, checks map[string]ReadinessCheck) *SystemHandler {
	return &SystemHandler{listener: listener, checks: checks}
}

// Register mounts /health and /ready on root and /feeders on api.
func (h *SystemHandler) Register(root, api *mux.Router) {
	root.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	root.HandleFunc("/ready", h.handleReady).Methods(http.MethodGet)
	api.HandleFunc("/feeders", h.handleFeeders).Methods(http.MethodGet)
}

func (h *SystemHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *SystemHandler) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := readyResponse{Status: "ready", Checks: make(map[string]string, len(names))}
	status := http.StatusOK
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			logger.Log.WithError(err).WithField("check", name).Warn("readiness check failed")
			resp.Checks[name] = err.Error()
			resp.Status = "not_ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, status, resp)
}

func (h *SystemHandler) handleFeeders(w http.ResponseWriter, r *http.Request) {
	stats := h.listener.Stats()
	writeJSON(w, http.StatusOK, feedersResponse{Feeders: stats, Count: len(stats)})
}
