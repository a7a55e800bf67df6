// Package repository maintains an in-memory view of a project's proposal
// feed, refreshed on demand and by realtime notifications. Consumers read a
// consistent snapshot instead of hitting the store on every render.
package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"compasshq.app/compass/internal/model"
	"compasshq.app/compass/internal/realtime"
	"compasshq.app/compass/internal/store"
)

// Filter narrows which records the repository loads.
type Filter struct {
	ComponentID   *int64
	ComponentKind model.ComponentKind
	Statuses      []model.ProposalStatus
	Confidences   []model.Confidence
	ProposalTypes []string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// Snapshot is an immutable view of the feed at one refresh.
type Snapshot struct {
	Records      []model.Proposal
	PendingCount int
	RefreshedAt  time.Time
	Err          error // last refresh failure; Records are the previous good set
}

// ProposalRepository caches one project's proposal records. A failed refresh
// keeps the previous snapshot so readers never see the feed disappear.
type ProposalRepository struct {
	proposals store.ProposalStore
	projectID int64

	mu     sync.RWMutex
	filter Filter
	snap   Snapshot
}

func NewProposalRepository(proposals store.ProposalStore, projectID int64) *ProposalRepository {
	return &ProposalRepository{
		proposals: proposals,
		projectID: projectID,
	}
}

// SetFilter replaces the active filter. It does not refresh; callers refresh
// after changing it.
func (r *ProposalRepository) SetFilter(filter Filter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filter = filter
}

// Refresh reloads the feed from the store and recomputes the pending count.
// On failure the previous records survive and the snapshot carries the error.
func (r *ProposalRepository) Refresh(ctx context.Context) error {
	r.mu.RLock()
	filter := r.filter
	r.mu.RUnlock()

	records, err := r.proposals.List(ctx, store.ProposalQuery{
		ProjectID:     r.projectID,
		ComponentID:   filter.ComponentID,
		ComponentKind: filter.ComponentKind,
		Statuses:      filter.Statuses,
		Confidences:   filter.Confidences,
		ProposalTypes: filter.ProposalTypes,
		CreatedAfter:  filter.CreatedAfter,
		CreatedBefore: filter.CreatedBefore,
	})

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		r.snap.Err = fmt.Errorf("refresh proposals: %w", err)
		return r.snap.Err
	}

	r.snap = Snapshot{
		Records:      records,
		PendingCount: countPending(records),
		RefreshedAt:  time.Now(),
	}
	return nil
}

// Snapshot returns the current view. The record slice is shared and must not
// be mutated by callers.
func (r *ProposalRepository) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// PendingCount reports how many records still need a human decision. Answers
// are informational and never counted, whatever their status.
func (r *ProposalRepository) PendingCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap.PendingCount
}

// Watch keeps the repository fresh from the project's change feed. Bursts of
// feed events inside the merge window collapse into a single reload. Blocks
// until the context ends; the subscription and scheduler are torn down on
// return.
func (r *ProposalRepository) Watch(ctx context.Context, feed realtime.Feed, window time.Duration) error {
	sub, err := feed.Subscribe(ctx, r.projectID)
	if err != nil {
		return fmt.Errorf("watch proposals: %w", err)
	}
	defer sub.Close()

	scheduler := realtime.NewMergeScheduler(r.Refresh, window, nil)
	defer scheduler.Stop()

	if err := r.Refresh(ctx); err != nil {
		return err
	}
	scheduler.Run(ctx, sub)
	return nil
}

func countPending(records []model.Proposal) int {
	n := 0
	for i := range records {
		if records[i].Pending() {
			n++
		}
	}
	return n
}
