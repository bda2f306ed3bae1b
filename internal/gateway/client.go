package gateway

import (
	"context"

	"github.com/blastline/campaign-dispatch/internal/models"
)

// Result is the outcome of a single gateway send. A failed send carries the
// reason; a successful one carries the gateway's message id when available.
type Result struct {
	Success           bool
	ExternalMessageID string
	ErrorReason       string
}

// Client is the messaging gateway contract. Send delivers one message
// (text plus zero or more media items) to one recipient. Transport errors
// and timeouts surface as Result{Success: false}, never as a Go error: a
// failed send is a per-recipient outcome, not a fault of the caller.
type Client interface {
	Send(ctx context.Context, phone, text string, media []models.MediaAttachment) Result
}
