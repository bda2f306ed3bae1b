package service

import (
	"time"

	"github.com/blastline/campaign-dispatch/internal/models"
)

// CreateCampaignRequest represents a request to start a bulk campaign
type CreateCampaignRequest struct {
	UserID        int64                    `json:"-"`
	Template      string                   `json:"template"`
	Media         []models.MediaAttachment `json:"media,omitempty"`
	SelectionMode string                   `json:"selection_mode"`
	ContactIDs    []int64                  `json:"contact_ids,omitempty"`
	DelaySeconds  *int                     `json:"delay_seconds,omitempty"`
}

// CreateCampaignResult represents the result of starting a campaign
type CreateCampaignResult struct {
	CampaignID int64  `json:"campaign_id"`
	Status     string `json:"status"`
	Total      int64  `json:"total"`
}

// CampaignStatus is the status snapshot served to callers
type CampaignStatus struct {
	CampaignID          int64      `json:"campaign_id"`
	Status              string     `json:"status"`
	Total               int64      `json:"total"`
	Sent                int64      `json:"sent"`
	Failed              int64      `json:"failed"`
	PendingRemaining    int64      `json:"pending_remaining"`
	ProgressPercentage  float64    `json:"progress_percentage"`
	StartedAt           *time.Time `json:"started_at,omitempty"`
	EstimatedCompletion *time.Time `json:"estimated_completion,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
}

// DeliveryListResult represents recent delivery records for a campaign
type DeliveryListResult struct {
	CampaignID int64                    `json:"campaign_id"`
	Records    []*models.DeliveryRecord `json:"records"`
}
