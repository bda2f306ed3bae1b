package worker

import (
	"sync"
	"time"

	"github.com/blastline/campaign-dispatch/internal/models"
)

// Snapshot is a consistent view of one campaign's progress. The counter
// invariant sent + failed + pending == total holds at every read.
type Snapshot struct {
	CampaignID       int64
	Status           string
	Total            int64
	Sent             int64
	Failed           int64
	PendingRemaining int64
	StartedAt        time.Time
	CompletedAt      *time.Time
}

type progress struct {
	status      string
	total       int64
	sent        int64
	failed      int64
	startedAt   time.Time
	completedAt *time.Time
	cancel      bool
}

// Tracker holds live per-campaign progress. The dispatch loop writes,
// status queries read; both go through the one mutex so counter updates are
// atomic with respect to reads.
type Tracker struct {
	mu        sync.RWMutex
	campaigns map[int64]*progress
}

// NewTracker creates an empty progress tracker
func NewTracker() *Tracker {
	return &Tracker{campaigns: make(map[int64]*progress)}
}

// Begin registers a campaign as in progress with the given total
func (t *Tracker) Begin(campaignID, total int64, startedAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.campaigns[campaignID] = &progress{
		status:    models.CampaignStatusInProgress,
		total:     total,
		startedAt: startedAt,
	}
}

// RecordSent settles one delivery as sent
func (t *Tracker) RecordSent(campaignID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.campaigns[campaignID]; ok {
		p.sent++
	}
}

// RecordFailed settles one delivery as failed
func (t *Tracker) RecordFailed(campaignID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.campaigns[campaignID]; ok {
		p.failed++
	}
}

// Finish moves the campaign to a terminal status. Finishing an already
// terminal campaign is a no-op: status transitions only go forward.
func (t *Tracker) Finish(campaignID int64, status string, completedAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.campaigns[campaignID]
	if !ok || models.IsTerminalCampaignStatus(p.status) {
		return
	}
	p.status = status
	p.completedAt = &completedAt
}

// RequestCancel sets the cooperative cancellation flag. It reports false if
// the campaign is unknown or already terminal.
func (t *Tracker) RequestCancel(campaignID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.campaigns[campaignID]
	if !ok || models.IsTerminalCampaignStatus(p.status) {
		return false
	}
	p.cancel = true
	return true
}

// CancelRequested reports whether cancellation has been requested
func (t *Tracker) CancelRequested(campaignID int64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.campaigns[campaignID]
	return ok && p.cancel
}

// Snapshot returns a consistent copy of the campaign's progress
func (t *Tracker) Snapshot(campaignID int64) (Snapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.campaigns[campaignID]
	if !ok {
		return Snapshot{}, false
	}

	snap := Snapshot{
		CampaignID:       campaignID,
		Status:           p.status,
		Total:            p.total,
		Sent:             p.sent,
		Failed:           p.failed,
		PendingRemaining: p.total - p.sent - p.failed,
		StartedAt:        p.startedAt,
	}
	if p.completedAt != nil {
		at := *p.completedAt
		snap.CompletedAt = &at
	}
	return snap, true
}
