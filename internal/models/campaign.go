package models

import (
	"fmt"
	"time"
)

// Campaign status constants
const (
	CampaignStatusPending    = "pending"
	CampaignStatusInProgress = "in_progress"
	CampaignStatusCompleted  = "completed"
	CampaignStatusFailed     = "failed"
	CampaignStatusCancelled  = "cancelled"
)

// Selection mode constants
const (
	SelectionAll      = "all"
	SelectionPending  = "pending"
	SelectionSelected = "selected"
)

// Campaign represents one bulk-send run with fixed configuration
// and mutable progress state.
type Campaign struct {
	ID               int64             `json:"id"`
	UserID           int64             `json:"user_id"`
	Template         string            `json:"template"`
	Media            []MediaAttachment `json:"media,omitempty"`
	SelectionMode    string            `json:"selection_mode"`
	ContactIDs       []int64           `json:"contact_ids,omitempty"`
	DelaySeconds     int               `json:"delay_seconds"`
	Status           string            `json:"status"`
	Total            int64             `json:"total"`
	Sent             int64             `json:"sent"`
	Failed           int64             `json:"failed"`
	PendingRemaining int64             `json:"pending_remaining"`
	StartedAt        *time.Time        `json:"started_at,omitempty"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// Validate performs validation on campaign configuration
func (c *Campaign) Validate() error {
	if c.UserID <= 0 {
		return ErrInvalidInput("user_id is required")
	}
	if c.Template == "" && len(c.Media) == 0 {
		return ErrInvalidInput("either template or media is required")
	}
	if c.DelaySeconds < 0 {
		return ErrInvalidInput("delay_seconds must not be negative")
	}
	if !IsValidSelectionMode(c.SelectionMode) {
		return ErrInvalidInput(fmt.Sprintf("invalid selection mode: %s (must be 'all', 'pending' or 'selected')", c.SelectionMode))
	}
	if c.SelectionMode == SelectionSelected && len(c.ContactIDs) == 0 {
		return ErrInvalidInput("contact_ids is required for 'selected' mode")
	}
	for _, m := range c.Media {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// IsValidSelectionMode checks if the selection mode is valid
func IsValidSelectionMode(mode string) bool {
	switch mode {
	case SelectionAll, SelectionPending, SelectionSelected:
		return true
	default:
		return false
	}
}

// IsTerminalCampaignStatus reports whether the status is terminal
func IsTerminalCampaignStatus(status string) bool {
	switch status {
	case CampaignStatusCompleted, CampaignStatusFailed, CampaignStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a campaign may move from one status to
// another. Transitions only go forward: pending -> in_progress -> terminal.
func CanTransition(from, to string) bool {
	if from == to {
		return false
	}
	switch from {
	case CampaignStatusPending:
		return to == CampaignStatusInProgress || IsTerminalCampaignStatus(to)
	case CampaignStatusInProgress:
		return IsTerminalCampaignStatus(to)
	default:
		// Terminal statuses never revert.
		return false
	}
}
