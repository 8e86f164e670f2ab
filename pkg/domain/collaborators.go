package domain

import "context"

// GuardDecision is the outcome of the deterministic prompt guard.
type GuardDecision struct {
	Blocked   bool
	Processed string // possibly-redacted message
	Reason    string
}

// PromptGuard is the deterministic policy engine consulted by the screening
// stage. Implementations run in-process and must be deterministic.
type PromptGuard interface {
	Check(ctx context.Context, message, agentID string) (GuardDecision, error)
}

// Completer is an opaque generative completion collaborator. It is fallible
// and holds no state besides the text it returns.
type Completer interface {
	Complete(ctx context.Context, prompt, contextBlock string) (string, error)
}

// Embedder converts text into a vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Passage is one retrieved policy chunk.
type Passage struct {
	Text       string `json:"text"`
	SourceName string `json:"source_name"`
}

// Searcher performs vector similarity search against the policy corpus,
// returning the top-k passages in relevance order.
type Searcher interface {
	Search(ctx context.Context, embedding []float64, k int) ([]Passage, error)
}

// AlertEvent is the structured payload dispatched to the notification
// collaborator when a violation is confirmed.
type AlertEvent struct {
	Source           string      `json:"source"`
	AgentID          string      `json:"agent_id"`
	Timestamp        string      `json:"timestamp"`
	RiskLabel        RiskLabel   `json:"risk_label"`
	RiskScore        float64     `json:"risk_score"`
	Violations       []Violation `json:"violations"`
	NarrativePreview string      `json:"narrative_preview"`
}

// Notifier dispatches an alert to the configured sink (SIEM webhook or
// similar). Delivered reports the delivery outcome; implementations apply
// their own bounded timeout.
type Notifier interface {
	Notify(ctx context.Context, event AlertEvent) (delivered bool, err error)
}
