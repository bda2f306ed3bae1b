package handler

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/blastline/campaign-dispatch/internal/events"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	db        *sql.DB
	publisher events.Publisher
	logger    *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *sql.DB, publisher events.Publisher, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		db:        db,
		publisher: publisher,
		logger:    logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:   "healthy",
		Services: make(map[string]string),
	}

	// Check database
	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Error("database health check failed", slog.String("error", err.Error()))
		response.Status = "unhealthy"
		response.Services["database"] = "unhealthy"
	} else {
		response.Services["database"] = "healthy"
	}

	// Check event publisher
	if h.publisher != nil {
		if err := h.publisher.Health(ctx); err != nil {
			h.logger.Error("events health check failed", slog.String("error", err.Error()))
			response.Status = "unhealthy"
			response.Services["events"] = "unhealthy"
		} else {
			response.Services["events"] = "healthy"
		}
	} else {
		response.Services["events"] = "not_configured"
	}

	if response.Status == "healthy" {
		writeJSON(w, http.StatusOK, response)
	} else {
		writeJSON(w, http.StatusServiceUnavailable, response)
	}
}
