package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ajkula/notifytrigger/config"
	"github.com/ajkula/notifytrigger/domain/port/inbound"
	"github.com/ajkula/notifytrigger/domain/port/outbound"
)

// Handler serves the read-only status API of the pipeline
type Handler struct {
	pipeline inbound.PipelineService
	config   *config.Config
	logger   outbound.Logger
	version  string
}

func NewHandler(pipeline inbound.PipelineService, cfg *config.Config, version string, logger outbound.Logger) *Handler {
	return &Handler{
		pipeline: pipeline,
		config:   cfg,
		logger:   logger,
		version:  version,
	}
}

// SetupRoutes registers the status routes
func (h *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.healthCheck).Methods("GET")
	router.HandleFunc("/api/status", h.getStatus).Methods("GET")
	router.HandleFunc("/api/config", h.getConfig).Methods("GET")
}

// healthCheck answers 503 once the pipeline stopped or recorded a fatal error
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	status := h.pipeline.Status()

	code := http.StatusOK
	state := "ok"
	if !status.Healthy() {
		code = http.StatusServiceUnavailable
		state = "failed"
	}

	response := map[string]any{
		"status":      state,
		"funnelState": status.FunnelState,
		"version":     h.version,
	}
	if status.FatalError != "" {
		response["error"] = status.FatalError
	}

	writeJSON(w, code, response)
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	status := h.pipeline.Status()

	writeJSON(w, http.StatusOK, map[string]any{
		"status": status,
		"uptime": time.Since(status.StartedAt).Round(time.Second).String(),
	})
}

func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.config.Public())
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
