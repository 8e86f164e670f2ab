// Package runtime defines the core contracts shared by the orchestrator and
// stage implementations, keeping business logic decoupled from execution
// mechanics.
package runtime

import (
	"context"
	"fmt"

	"github.com/lexinelai/lexinel-oss/pkg/domain"
)

// Outcome classifies a stage execution result for observability. A degraded
// outcome still advances the pipeline; stages never abort a request.
type Outcome string

const (
	// OutcomeSuccess indicates the stage completed its contract.
	OutcomeSuccess Outcome = "success"
	// OutcomeDegraded indicates a collaborator or data failure was absorbed
	// and the stage's documented fallback was applied.
	OutcomeDegraded Outcome = "degraded"
)

// Delta is a stage's partial update to the shared request state. Pointer
// fields carry overwrite semantics: nil means "no update". Violations is
// append-only by contract and is concatenated, never replaced.
//
// AgentID and Transaction are immutable after creation and intentionally
// have no delta field.
type Delta struct {
	Message         *string
	IsBlocked       *bool
	BlockReason     *string
	PolicyContext   *[]string
	RiskScore       *float64
	RiskLabel       *domain.RiskLabel
	RiskReasons     *[]string
	Violations      []domain.Violation
	ViolationFound  *bool
	ReportNarrative *string
	Notified        *bool
	Answer          *string
	Citations       *[]string
}

// StageResult bundles a stage's partial state update with exactly one audit
// entry. Degraded results carry an error-marked audit entry but still merge.
type StageResult struct {
	Delta   Delta
	Audit   string
	Outcome Outcome
}

// WithDefaults fills in the outcome and audit entry when a stage omits them,
// so every executed stage leaves at least one trace in the audit log.
func (r StageResult) WithDefaults(stage string) StageResult {
	if r.Outcome == "" {
		r.Outcome = OutcomeSuccess
	}
	if r.Audit == "" {
		r.Audit = fmt.Sprintf("%s: completed", stage)
	}
	return r
}

// Apply merges the result into the shared state according to the per-field
// merge policies: overwrite for scalar fields, append for Violations and the
// audit log. The audit entry is always appended exactly once.
func (r StageResult) Apply(state *domain.RequestState) {
	d := r.Delta
	if d.Message != nil {
		state.Message = *d.Message
	}
	if d.IsBlocked != nil {
		state.IsBlocked = *d.IsBlocked
	}
	if d.BlockReason != nil {
		state.BlockReason = *d.BlockReason
	}
	if d.PolicyContext != nil {
		state.PolicyContext = *d.PolicyContext
	}
	if d.RiskScore != nil {
		state.RiskScore = *d.RiskScore
	}
	if d.RiskLabel != nil {
		state.RiskLabel = *d.RiskLabel
	}
	if d.RiskReasons != nil {
		state.RiskReasons = *d.RiskReasons
	}
	if len(d.Violations) > 0 {
		state.Violations = append(state.Violations, d.Violations...)
	}
	if d.ViolationFound != nil {
		state.ViolationFound = *d.ViolationFound
	}
	if d.ReportNarrative != nil {
		state.ReportNarrative = *d.ReportNarrative
	}
	if d.Notified != nil {
		state.Notified = *d.Notified
	}
	if d.Answer != nil {
		state.Answer = *d.Answer
	}
	if d.Citations != nil {
		state.Citations = *d.Citations
	}
	state.AuditLog = append(state.AuditLog, r.Audit)
}

// Stage is one unit of work in the pipeline. Execute receives a read-only
// snapshot of the request state plus its collaborators (injected at
// construction) and returns a partial update.
//
// Stages never return an error: every collaborator or data failure is caught
// inside the stage and converted into a degraded result with a safe default
// delta and an error-marked audit entry. This is the pipeline's primary
// resilience mechanism.
type Stage interface {
	Name() string
	Execute(ctx context.Context, state *domain.RequestState) StageResult
}

// Ptr returns a pointer to v; shorthand for building deltas.
func Ptr[T any](v T) *T { return &v }
