package models

import (
	"fmt"
	"time"
)

// Delivery status constants
const (
	DeliveryStatusPending = "pending"
	DeliveryStatusSent    = "sent"
	DeliveryStatusFailed  = "failed"
)

// DeliveryRecord is the outcome ledger entry for one (campaign, contact)
// pair. It settles exactly once: pending -> sent or pending -> failed.
type DeliveryRecord struct {
	ID          int64     `json:"id"`
	CampaignID  int64     `json:"campaign_id"`
	ContactID   int64     `json:"contact_id"`
	Status      string    `json:"status"`
	ExternalID  *string   `json:"external_id,omitempty"`
	ErrorReason *string   `json:"error_reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Settled reports whether the record has reached a terminal status
func (d *DeliveryRecord) Settled() bool {
	return d.Status == DeliveryStatusSent || d.Status == DeliveryStatusFailed
}

// Settle moves the record out of pending. Settling a record twice is a
// programming error and is rejected.
func (d *DeliveryRecord) Settle(status string, externalID, errorReason *string) error {
	if d.Settled() {
		return ErrConflictWithMsg(fmt.Sprintf("delivery record %d already settled as %s", d.ID, d.Status))
	}
	if status != DeliveryStatusSent && status != DeliveryStatusFailed {
		return ErrInvalidInput(fmt.Sprintf("invalid terminal delivery status: %s", status))
	}
	d.Status = status
	d.ExternalID = externalID
	d.ErrorReason = errorReason
	d.UpdatedAt = time.Now().UTC()
	return nil
}
