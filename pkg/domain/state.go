package domain

import (
	"fmt"
	"strings"
)

// RiskLabel classifies the semantic risk level assigned by the risk assessor.
type RiskLabel string

const (
	RiskLow      RiskLabel = "LOW"
	RiskMedium   RiskLabel = "MEDIUM"
	RiskHigh     RiskLabel = "HIGH"
	RiskCritical RiskLabel = "CRITICAL"
)

// ParseRiskLabel normalizes a free-form label from an external assessor.
// Unrecognized labels report ok=false so callers can apply their fallback.
func ParseRiskLabel(raw string) (RiskLabel, bool) {
	switch RiskLabel(strings.ToUpper(strings.TrimSpace(raw))) {
	case RiskLow:
		return RiskLow, true
	case RiskMedium:
		return RiskMedium, true
	case RiskHigh:
		return RiskHigh, true
	case RiskCritical:
		return RiskCritical, true
	default:
		return RiskLow, false
	}
}

// Violation records a single deterministic rule match against a request.
// Violations are created only by the violation-check stage and are immutable
// once appended to the request state.
type Violation struct {
	RuleID    string    `json:"rule_id"`
	RuleName  string    `json:"rule_name"`
	Severity  RiskLabel `json:"severity"`
	Action    string    `json:"action"`
	Framework string    `json:"framework"`
	// Numeric evidence; only the field relevant to the matched rule is set.
	Amount    float64 `json:"amount,omitempty"`
	RiskScore float64 `json:"risk_score,omitempty"`
}

// RequestState is the single shared record that flows through every stage of
// a compliance request. Exactly one instance exists per request, owned by the
// orchestrator for the request's lifetime. Stages receive read-only snapshots
// and publish partial updates that the orchestrator merges back in.
//
// Merge policy per field: Violations and AuditLog are append-only, AgentID
// and Transaction are immutable after creation, everything else overwrites.
type RequestState struct {
	// Input.
	RunID       string       `json:"run_id"`
	Message     string       `json:"message"`
	AgentID     string       `json:"agent_id"`
	Transaction *Transaction `json:"transaction,omitempty"`

	// Screening.
	IsBlocked   bool   `json:"is_blocked"`
	BlockReason string `json:"block_reason"`

	// Retrieval.
	PolicyContext []string `json:"policy_context"`

	// Risk assessment. RiskScore is meaningful only after the scoring stage
	// has run; it defaults to 0.0 before that.
	RiskScore   float64   `json:"risk_score"`
	RiskLabel   RiskLabel `json:"risk_label"`
	RiskReasons []string  `json:"risk_reasons"`

	// Violation detection. ViolationFound == (len(Violations) > 0) holds
	// whenever the violation-check stage has run.
	Violations     []Violation `json:"violations"`
	ViolationFound bool        `json:"violation_found"`

	// Report drafting.
	ReportNarrative string `json:"report_narrative"`

	// Notification dispatch.
	Notified bool `json:"notified"`

	// User-facing result.
	Answer    string   `json:"answer"`
	Citations []string `json:"citations"`

	// Append-only execution trail. Never reordered, cleared, or truncated;
	// this is the sole record of execution for post-hoc review.
	AuditLog []string `json:"audit_log"`
}

// NewRequestState builds the zeroed initial state for a request, seeding the
// audit log with a start entry.
func NewRequestState(runID, message, agentID string, tx *Transaction) *RequestState {
	preview := message
	if len(preview) > 60 {
		preview = preview[:60]
	}
	return &RequestState{
		RunID:          runID,
		Message:        message,
		AgentID:        agentID,
		Transaction:    tx,
		RiskLabel:      RiskLow,
		PolicyContext:  []string{},
		RiskReasons:    []string{},
		Violations:     []Violation{},
		Citations:      []string{},
		AuditLog:       []string{fmt.Sprintf("[START] agent_id=%s | input=%q", agentID, preview)},
		ViolationFound: false,
	}
}
