package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/blastline/campaign-dispatch/internal/service"
)

// CampaignHandler handles campaign HTTP requests
type CampaignHandler struct {
	campaignService service.CampaignService
	logger          *slog.Logger
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaignService service.CampaignService, logger *slog.Logger) *CampaignHandler {
	return &CampaignHandler{
		campaignService: campaignService,
		logger:          logger,
	}
}

// SendBulk handles POST /campaigns/send-bulk
func (h *CampaignHandler) SendBulk(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req service.CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}
	req.UserID = userID

	result, err := h.campaignService.CreateCampaign(r.Context(), &req)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// GetStatus handles GET /campaigns/{id}/status
func (h *CampaignHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	campaignID, err := campaignIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid campaign ID")
		return
	}

	status, err := h.campaignService.GetStatus(r.Context(), userID, campaignID)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// Cancel handles POST /campaigns/{id}/cancel
func (h *CampaignHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	campaignID, err := campaignIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid campaign ID")
		return
	}

	if err := h.campaignService.CancelCampaign(r.Context(), userID, campaignID); err != nil {
		handleError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusAccepted, cancelAccepted{
		CampaignID: campaignID,
		Status:     "cancellation_requested",
	})
}

// ListDeliveries handles GET /campaigns/{id}/deliveries
func (h *CampaignHandler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	campaignID, err := campaignIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid campaign ID")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	result, err := h.campaignService.ListRecentDeliveries(r.Context(), userID, campaignID, limit)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// callerID extracts the authenticated user id from the X-User-ID header.
// Authentication itself lives outside this service; the header is the
// boundary contract with it.
func callerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "X-User-ID header is required")
		return 0, false
	}

	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid X-User-ID header")
		return 0, false
	}

	return userID, true
}

func campaignIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
