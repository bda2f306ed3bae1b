package events

import (
	"context"
	"time"
)

// DeliveryEvent describes one settled delivery, emitted for downstream
// consumers (dashboards, audit trails). Events are best-effort: a publish
// failure never affects the dispatch outcome.
type DeliveryEvent struct {
	CampaignID  int64     `json:"campaign_id"`
	ContactID   int64     `json:"contact_id"`
	Status      string    `json:"status"`
	ExternalID  string    `json:"external_id,omitempty"`
	ErrorReason string    `json:"error_reason,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher defines the interface for emitting delivery events
type Publisher interface {
	// Publish emits a delivery event
	Publish(ctx context.Context, event *DeliveryEvent) error

	// Close closes the publisher connection
	Close() error

	// Health checks if the publisher is healthy
	Health(ctx context.Context) error
}

// noopPublisher discards events; used when no event backend is configured
type noopPublisher struct{}

// NewNoopPublisher creates a publisher that discards all events
func NewNoopPublisher() Publisher {
	return &noopPublisher{}
}

func (p *noopPublisher) Publish(ctx context.Context, event *DeliveryEvent) error { return nil }
func (p *noopPublisher) Close() error                                            { return nil }
func (p *noopPublisher) Health(ctx context.Context) error                        { return nil }
