package stages

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexinelai/lexinel-oss/pkg/domain"
	"github.com/lexinelai/lexinel-oss/pkg/engine/runtime"
	"github.com/lexinelai/lexinel-oss/pkg/storage"
	"github.com/lexinelai/lexinel-oss/pkg/telemetry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeGuard implements domain.PromptGuard.
type fakeGuard struct {
	decision domain.GuardDecision
	err      error
}

func (g *fakeGuard) Check(_ context.Context, message, _ string) (domain.GuardDecision, error) {
	if g.err != nil {
		return domain.GuardDecision{}, g.err
	}
	d := g.decision
	if d.Processed == "" {
		d.Processed = message
	}
	return d, nil
}

// fakeCompleter implements domain.Completer.
type fakeCompleter struct {
	response string
	err      error
	prompts  []string
}

func (c *fakeCompleter) Complete(_ context.Context, prompt, _ string) (string, error) {
	c.prompts = append(c.prompts, prompt)
	if c.err != nil {
		return "", c.err
	}
	return c.response, nil
}

// fakeEmbedder implements domain.Embedder.
type fakeEmbedder struct{ err error }

func (e *fakeEmbedder) Embed(_ context.Context, _ string) ([]float64, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float64{1, 0}, nil
}

// fakeSearcher implements domain.Searcher.
type fakeSearcher struct {
	passages []domain.Passage
	err      error
}

func (s *fakeSearcher) Search(_ context.Context, _ []float64, _ int) ([]domain.Passage, error) {
	return s.passages, s.err
}

// fakeNotifier implements domain.Notifier.
type fakeNotifier struct {
	delivered bool
	err       error
	last      domain.AlertEvent
}

func (n *fakeNotifier) Notify(_ context.Context, event domain.AlertEvent) (bool, error) {
	n.last = event
	return n.delivered, n.err
}

func newState(message string, tx *domain.Transaction) *domain.RequestState {
	return domain.NewRequestState("run-1", message, "agent-test", tx)
}

func TestScreenBlocksAndRedacts(t *testing.T) {
	guard := &fakeGuard{decision: domain.GuardDecision{
		Blocked:   true,
		Processed: "my ssn is [SSN-REDACTED]",
		Reason:    "prohibited instruction",
	}}
	stage := NewScreen(guard, testLogger())
	state := newState("my ssn is 123-45-6789", nil)

	result := stage.Execute(context.Background(), state)
	require.Equal(t, runtime.OutcomeSuccess, result.Outcome)

	result.Apply(state)
	assert.True(t, state.IsBlocked)
	assert.Equal(t, "prohibited instruction", state.BlockReason)
	assert.Equal(t, "my ssn is [SSN-REDACTED]", state.Message)
	assert.Contains(t, result.Audit, "SCREEN:")
	assert.Contains(t, result.Audit, "blocked=true")
}

func TestScreenFailsOpenOnGuardError(t *testing.T) {
	stage := NewScreen(&fakeGuard{err: errors.New("engine not compiled")}, testLogger())
	state := newState("hello", nil)

	result := stage.Execute(context.Background(), state)
	assert.Equal(t, runtime.OutcomeDegraded, result.Outcome)
	assert.Contains(t, result.Audit, "SCREEN_ERROR:")

	result.Apply(state)
	assert.False(t, state.IsBlocked)
	assert.Empty(t, state.BlockReason)
}

func TestRetrieveContextCollectsChunksAndCitations(t *testing.T) {
	searcher := &fakeSearcher{passages: []domain.Passage{
		{Text: "chunk one", SourceName: "bsa_ctr.md"},
		{Text: "chunk two", SourceName: "bsa_ctr.md"},
		{Text: "chunk three", SourceName: "fatf_r20.md"},
	}}
	stage := NewRetrieveContext(&fakeEmbedder{}, searcher, testLogger())
	state := newState("what are CTR requirements", nil)

	result := stage.Execute(context.Background(), state)
	require.Equal(t, runtime.OutcomeSuccess, result.Outcome)

	result.Apply(state)
	assert.Equal(t, []string{"chunk one", "chunk two", "chunk three"}, state.PolicyContext)
	assert.Equal(t, []string{"bsa_ctr.md", "fatf_r20.md"}, state.Citations, "citations deduplicated first-seen")
	assert.Contains(t, result.Audit, "3 chunks retrieved")
}

func TestRetrieveContextDegradesOnEmbedderError(t *testing.T) {
	stage := NewRetrieveContext(&fakeEmbedder{err: errors.New("embedder down")}, &fakeSearcher{}, testLogger())
	state := newState("question", nil)

	result := stage.Execute(context.Background(), state)
	assert.Equal(t, runtime.OutcomeDegraded, result.Outcome)
	assert.Contains(t, result.Audit, "RETRIEVE_CONTEXT_ERROR:")

	result.Apply(state)
	assert.Empty(t, state.PolicyContext)
	assert.Equal(t, []string{"Lexinel Rulebook"}, state.Citations)
}

func TestScoreRiskParsesAssessment(t *testing.T) {
	completer := &fakeCompleter{response: "```json\n" + `{
		"risk_score": 0.82,
		"risk_label": "HIGH",
		"risk_reasons": ["large cash movement", "layering pattern"]
	}` + "\n```"}
	stage := NewScoreRisk(completer, testLogger())
	state := newState("wire 50k offshore", nil)
	state.PolicyContext = []string{"ctx1", "ctx2", "ctx3", "ctx4"}

	result := stage.Execute(context.Background(), state)
	require.Equal(t, runtime.OutcomeSuccess, result.Outcome)

	result.Apply(state)
	assert.InDelta(t, 0.82, state.RiskScore, 1e-9)
	assert.Equal(t, domain.RiskHigh, state.RiskLabel)
	assert.Len(t, state.RiskReasons, 2)
	assert.Contains(t, result.Audit, "score=0.82 label=HIGH")

	// Only the top three context chunks feed the prompt.
	require.Len(t, completer.prompts, 1)
	assert.NotContains(t, completer.prompts[0], "ctx4")
}

func TestScoreRiskClampsOutOfRangeScore(t *testing.T) {
	completer := &fakeCompleter{response: `{"risk_score": 1.7, "risk_label": "CRITICAL", "risk_reasons": []}`}
	stage := NewScoreRisk(completer, testLogger())
	state := newState("msg", nil)

	result := stage.Execute(context.Background(), state)
	result.Apply(state)
	assert.Equal(t, 1.0, state.RiskScore)
	assert.Equal(t, domain.RiskCritical, state.RiskLabel)
}

func TestScoreRiskFallbackOnMalformedAnswer(t *testing.T) {
	stage := NewScoreRisk(&fakeCompleter{response: "I think the risk is high."}, testLogger())
	state := newState("msg", nil)

	result := stage.Execute(context.Background(), state)
	assert.Equal(t, runtime.OutcomeDegraded, result.Outcome)
	assert.Contains(t, result.Audit, "SCORE_RISK_ERROR:")

	result.Apply(state)
	assert.Equal(t, 0.1, state.RiskScore)
	assert.Equal(t, domain.RiskLow, state.RiskLabel)
	require.Len(t, state.RiskReasons, 1)
	assert.Contains(t, state.RiskReasons[0], "Risk assessment error:")
}

func TestScoreRiskFallbackOnCompleterError(t *testing.T) {
	stage := NewScoreRisk(&fakeCompleter{err: errors.New("model offline")}, testLogger())
	state := newState("msg", nil)

	result := stage.Execute(context.Background(), state)
	assert.Equal(t, runtime.OutcomeDegraded, result.Outcome)
	result.Apply(state)
	assert.Equal(t, 0.1, state.RiskScore)
}

func TestCheckViolationsDetectsAndQueues(t *testing.T) {
	queue := storage.NewMemoryQueue(nil)
	stage := NewCheckViolations(queue, nil, testLogger())
	state := newState("structuring deposits to avoid reporting", &domain.Transaction{Amount: 12000})
	state.RiskScore = 0.9
	state.RiskLabel = domain.RiskCritical

	result := stage.Execute(context.Background(), state)
	require.Equal(t, runtime.OutcomeSuccess, result.Outcome)

	result.Apply(state)
	require.Len(t, state.Violations, 2)
	assert.True(t, state.ViolationFound)
	assert.Contains(t, result.Audit, "2 violation(s) found")

	queued, err := queue.List(context.Background(), storage.StatusPending)
	require.NoError(t, err)
	assert.Len(t, queued, 2)
}

func TestCheckViolationsUpdatesQueueDepthGauge(t *testing.T) {
	queue := storage.NewMemoryQueue(nil)
	collectors := telemetry.NewCollectors()
	stage := NewCheckViolations(queue, collectors, testLogger())
	state := newState("smurfing the deposit", &domain.Transaction{Amount: 12000})
	state.RiskScore = 0.9
	state.RiskLabel = domain.RiskCritical

	stage.Execute(context.Background(), state)

	assert.Equal(t, 2.0, testutil.ToFloat64(collectors.QueueDepth))
}

func TestCheckViolationsNilQueueAndCleanInput(t *testing.T) {
	stage := NewCheckViolations(nil, nil, testLogger())
	state := newState("what is a CTR", &domain.Transaction{Amount: 50})
	state.RiskScore = 0.2

	result := stage.Execute(context.Background(), state)
	result.Apply(state)
	assert.Empty(t, state.Violations)
	assert.False(t, state.ViolationFound)
	assert.Contains(t, result.Audit, "0 violation(s) found")
}

func TestDraftReportProducesNarrativeAndPreview(t *testing.T) {
	narrative := strings.Repeat("n", 300)
	completer := &fakeCompleter{response: narrative}
	stage := NewDraftReport(completer, testLogger())
	state := newState("investigator notes", &domain.Transaction{ID: "tx-1", Amount: 12000})
	state.Violations = []domain.Violation{{RuleID: "AML-R01"}}

	result := stage.Execute(context.Background(), state)
	require.Equal(t, runtime.OutcomeSuccess, result.Outcome)

	result.Apply(state)
	assert.Equal(t, narrative, state.ReportNarrative)
	assert.Contains(t, state.Answer, "Violation confirmed. SAR drafted automatically.")
	assert.Contains(t, state.Answer, strings.Repeat("n", 200)+"...")
	assert.NotContains(t, state.Answer, strings.Repeat("n", 201))

	require.Len(t, completer.prompts, 1)
	assert.Contains(t, completer.prompts[0], "AML-R01")
	assert.Contains(t, completer.prompts[0], "investigator notes")
}

func TestDraftReportFallbackOnError(t *testing.T) {
	stage := NewDraftReport(&fakeCompleter{err: errors.New("model offline")}, testLogger())
	state := newState("notes", nil)

	result := stage.Execute(context.Background(), state)
	assert.Equal(t, runtime.OutcomeDegraded, result.Outcome)
	assert.Contains(t, result.Audit, "DRAFT_REPORT_ERROR:")

	result.Apply(state)
	assert.Equal(t, draftFallbackNarrative, state.ReportNarrative)
	assert.Equal(t, draftFallbackAnswer, state.Answer)
}

func TestNotifyBuildsEventAndRecordsDelivery(t *testing.T) {
	notifier := &fakeNotifier{delivered: true}
	stage := NewNotify(notifier, testLogger())
	state := newState("msg", nil)
	state.RiskScore = 0.9
	state.RiskLabel = domain.RiskCritical
	state.Violations = []domain.Violation{{RuleID: "AML-R02"}}
	state.ReportNarrative = strings.Repeat("x", 300)

	result := stage.Execute(context.Background(), state)
	require.Equal(t, runtime.OutcomeSuccess, result.Outcome)

	result.Apply(state)
	assert.True(t, state.Notified)
	assert.Contains(t, result.Audit, "notified=true")

	assert.Equal(t, "lexinel-pipeline", notifier.last.Source)
	assert.Equal(t, "agent-test", notifier.last.AgentID)
	assert.Equal(t, domain.RiskCritical, notifier.last.RiskLabel)
	assert.Len(t, notifier.last.NarrativePreview, 200)

	// Event payload round-trips as JSON for webhook delivery.
	_, err := json.Marshal(notifier.last)
	require.NoError(t, err)
}

func TestNotifyDegradesOnDispatchError(t *testing.T) {
	stage := NewNotify(&fakeNotifier{err: errors.New("sink unreachable")}, testLogger())
	state := newState("msg", nil)

	result := stage.Execute(context.Background(), state)
	assert.Equal(t, runtime.OutcomeDegraded, result.Outcome)
	assert.Contains(t, result.Audit, "NOTIFY_ERROR:")

	result.Apply(state)
	assert.False(t, state.Notified)
}

func TestRespondCleanGeneratesGroundedAnswer(t *testing.T) {
	stage := NewRespondClean(&fakeCompleter{response: "A CTR must be filed for cash over $10,000."}, testLogger())
	state := newState("when is a CTR required", nil)
	state.PolicyContext = []string{"ctx"}

	result := stage.Execute(context.Background(), state)
	require.Equal(t, runtime.OutcomeSuccess, result.Outcome)

	result.Apply(state)
	assert.Equal(t, "A CTR must be filed for cash over $10,000.", state.Answer)
}

func TestRespondCleanFallbackOnError(t *testing.T) {
	stage := NewRespondClean(&fakeCompleter{err: errors.New("model offline")}, testLogger())
	state := newState("question", nil)

	result := stage.Execute(context.Background(), state)
	assert.Equal(t, runtime.OutcomeDegraded, result.Outcome)

	result.Apply(state)
	assert.Equal(t, cleanFallbackAnswer, state.Answer)
}

func TestRespondBlockedFormatsReason(t *testing.T) {
	stage := NewRespondBlocked(testLogger())
	state := newState("bad input", nil)
	state.IsBlocked = true
	state.BlockReason = "prohibited instruction detected"

	result := stage.Execute(context.Background(), state)
	require.Equal(t, runtime.OutcomeSuccess, result.Outcome)

	result.Apply(state)
	assert.Equal(t, "Compliance Alert: prohibited instruction detected", state.Answer)
	assert.Equal(t, []string{"PolicyGuard Governance Engine"}, state.Citations)
}
