package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lexinelai/lexinel-oss/pkg/domain"
)

// MemoryQueue is an in-memory ViolationQueue.
type MemoryQueue struct {
	mu         sync.RWMutex
	violations map[string]PendingViolation
	rules      []domain.Rule
}

// NewMemoryQueue creates an empty in-memory queue serving rules as the
// active rule catalog.
func NewMemoryQueue(rules []domain.Rule) *MemoryQueue {
	return &MemoryQueue{
		violations: make(map[string]PendingViolation),
		rules:      rules,
	}
}

// Enqueue records a violation for review.
func (q *MemoryQueue) Enqueue(_ context.Context, runID, agentID string, v domain.Violation) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := uuid.New().String()
	q.violations[id] = PendingViolation{
		ID:        id,
		RunID:     runID,
		AgentID:   agentID,
		Violation: v,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	return id, nil
}

// List returns queued violations with the given status, newest first.
func (q *MemoryQueue) List(_ context.Context, status ViolationStatus) ([]PendingViolation, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]PendingViolation, 0, len(q.violations))
	for _, pv := range q.violations {
		if status != "" && pv.Status != status {
			continue
		}
		out = append(out, pv)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Resolve marks a queued violation as reviewed.
func (q *MemoryQueue) Resolve(_ context.Context, id, resolution string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	pv, ok := q.violations[id]
	if !ok {
		return fmt.Errorf("violation not found: %s", id)
	}
	if pv.Status == StatusResolved {
		return fmt.Errorf("violation already resolved: %s", id)
	}

	now := time.Now().UTC()
	pv.Status = StatusResolved
	pv.Resolution = resolution
	pv.ResolvedAt = &now
	q.violations[id] = pv
	return nil
}

// ListActiveRules returns the active entries of the rule catalog.
func (q *MemoryQueue) ListActiveRules(_ context.Context) ([]domain.Rule, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]domain.Rule, 0, len(q.rules))
	for _, r := range q.rules {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

// Close is a no-op for the in-memory queue.
func (q *MemoryQueue) Close() error { return nil }
