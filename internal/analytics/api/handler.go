package analytics_api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"ms-registration/internal/analytics"
	"ms-registration/internal/logger"
	"ms-registration/internal/utils"

	"github.com/go-chi/chi/v5"
)

// Handler handles analytics HTTP endpoints
type Handler struct {
	Service *analytics.Service
	Logger  *logger.Logger
	Timeout time.Duration
}

func NewHandler(service *analytics.Service, logger *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: logger, Timeout: 10 * time.Second}
}

// RegisterRoutes registers the analytics routes on an admin-only router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stats", h.GetStats)
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	stats, err := h.Service.Stats(ctx)
	if err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("GetStats: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to load stats", "storage unavailable, please retry"))
		return
	}
	h.Logger.Debug("ANALYTICS", fmt.Sprintf("GetStats: %d events", len(stats)))
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Event statistics", stats))
}
