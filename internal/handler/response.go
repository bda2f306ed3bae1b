package handler

import (
	"encoding/json"
	"net/http"
)

// errorBody is the error envelope shared by every endpoint
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// cancelAccepted acknowledges a cancellation request. The worker honors it
// at its next iteration boundary, so the campaign may still settle one more
// delivery after this response.
type cancelAccepted struct {
	CampaignID int64  `json:"campaign_id"`
	Status     string `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already out; nothing left to salvage.
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}
