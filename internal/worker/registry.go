package worker

import (
	"fmt"
	"sync"

	"github.com/blastline/campaign-dispatch/internal/models"
)

// Registry tracks which campaigns currently own a dispatch worker. It
// enforces the one-worker-per-campaign rule: a second start for an id that
// is already running is rejected.
type Registry struct {
	mu      sync.Mutex
	running map[int64]struct{}
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{running: make(map[int64]struct{})}
}

// Acquire claims the dispatch slot for a campaign
func (r *Registry) Acquire(campaignID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.running[campaignID]; ok {
		return models.ErrConflictWithMsg(fmt.Sprintf("campaign %d is already dispatching", campaignID))
	}
	r.running[campaignID] = struct{}{}
	return nil
}

// Release frees the dispatch slot when the loop exits
func (r *Registry) Release(campaignID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, campaignID)
}

// Running reports whether a campaign currently owns a worker
func (r *Registry) Running(campaignID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[campaignID]
	return ok
}
