package handlers

import (
	"context"
	"net/http"
	"time"

	"oauth2-token-server/internal/utils"
)

const healthCheckTimeout = 2 * time.Second

// Build information, overridden with -ldflags "-X"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// HealthHandler manages health check requests
type HealthHandler struct {
	*Handlers
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(h *Handlers) *HealthHandler {
	return &HealthHandler{Handlers: h}
}

// ServeHTTP reports healthy only when the token store answers
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	response := map[string]interface{}{
		"status":     "healthy",
		"timestamp":  time.Now().Unix(),
		"version":    Version,
		"git_commit": GitCommit,
		"build_time": BuildTime,
		"storage":    h.StorageType,
	}

	if err := h.Store.Ping(ctx); err != nil {
		h.Logger.Errorf("❌ Health check failed: %v", err)
		response["status"] = "unhealthy"
		response["error"] = "storage unavailable"
		utils.WriteJSONResponse(w, http.StatusServiceUnavailable, response, h.Logger)
		return
	}

	utils.WriteJSONResponse(w, http.StatusOK, response, h.Logger)
}
