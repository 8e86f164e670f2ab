// Package storage persists detected violations and the rule catalog.
// Two implementations are provided: an in-memory store for tests and
// single-process runs, and a SQLite store for durable deployments.
package storage

import (
	"context"
	"time"

	"github.com/lexinelai/lexinel-oss/pkg/domain"
)

// ViolationStatus tracks a queued violation through review.
type ViolationStatus string

const (
	StatusPending  ViolationStatus = "PENDING"
	StatusResolved ViolationStatus = "RESOLVED"
)

// PendingViolation is a violation queued for analyst review.
type PendingViolation struct {
	ID         string                 `json:"id"`
	RunID      string                 `json:"runId"`
	AgentID    string                 `json:"agentId"`
	Violation  domain.Violation       `json:"violation"`
	Status     ViolationStatus        `json:"status"`
	Resolution string                 `json:"resolution,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
	ResolvedAt *time.Time             `json:"resolvedAt,omitempty"`
}

// ViolationQueue is the review queue for flagged activity.
type ViolationQueue interface {
	// Enqueue records a violation for review and returns its assigned ID.
	Enqueue(ctx context.Context, runID, agentID string, v domain.Violation) (string, error)
	// List returns violations with the given status, newest first. An
	// empty status returns everything.
	List(ctx context.Context, status ViolationStatus) ([]PendingViolation, error)
	// Resolve marks a queued violation as reviewed.
	Resolve(ctx context.Context, id, resolution string) error
	// Close releases any underlying resources.
	Close() error
}

// RuleStore serves the rule catalog used by batch scanning.
type RuleStore interface {
	ListActiveRules(ctx context.Context) ([]domain.Rule, error)
}
