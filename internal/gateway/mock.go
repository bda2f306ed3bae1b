package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/blastline/campaign-dispatch/internal/models"
)

// mockClient simulates gateway sends with a configurable success rate
type mockClient struct {
	successRate float64
	minDelay    time.Duration
	maxDelay    time.Duration
}

// NewMockClient creates a mock gateway client.
// successRate: probability of success (0.0 to 1.0), default 0.92 (92%)
func NewMockClient(successRate float64) Client {
	if successRate <= 0 || successRate > 1.0 {
		successRate = 0.92
	}

	return &mockClient{
		successRate: successRate,
		minDelay:    50 * time.Millisecond, // Simulate network latency
		maxDelay:    200 * time.Millisecond,
	}
}

// Send simulates sending a message
func (c *mockClient) Send(ctx context.Context, phone, text string, media []models.MediaAttachment) Result {
	delay := c.minDelay + time.Duration(rand.Int63n(int64(c.maxDelay-c.minDelay)))

	select {
	case <-time.After(delay):
		// Continue
	case <-ctx.Done():
		return Result{Success: false, ErrorReason: ctx.Err().Error()}
	}

	if rand.Float64() > c.successRate {
		return Result{Success: false, ErrorReason: "mock gateway failed: simulated network error"}
	}

	return Result{
		Success:           true,
		ExternalMessageID: fmt.Sprintf("mock-%d", rand.Int63()),
	}
}
