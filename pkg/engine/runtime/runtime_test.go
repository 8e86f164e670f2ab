package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexinelai/lexinel-oss/pkg/domain"
)

func TestStageResult_ApplyOverwrite(t *testing.T) {
	state := domain.NewRequestState("run-1", "hello", "sentinel-chat", nil)

	res := StageResult{
		Delta: Delta{
			Message:     Ptr("hello [REDACTED]"),
			IsBlocked:   Ptr(true),
			BlockReason: Ptr("prohibited instruction"),
			RiskScore:   Ptr(0.9),
			RiskLabel:   Ptr(domain.RiskHigh),
		},
		Audit: "SCREEN: evaluated",
	}
	res.Apply(state)

	assert.Equal(t, "hello [REDACTED]", state.Message)
	assert.True(t, state.IsBlocked)
	assert.Equal(t, "prohibited instruction", state.BlockReason)
	assert.Equal(t, 0.9, state.RiskScore)
	assert.Equal(t, domain.RiskHigh, state.RiskLabel)

	// A later overwrite replaces, never merges.
	StageResult{Delta: Delta{RiskScore: Ptr(0.2)}, Audit: "x"}.Apply(state)
	assert.Equal(t, 0.2, state.RiskScore)
}

func TestStageResult_ApplyAppendOnly(t *testing.T) {
	state := domain.NewRequestState("run-2", "msg", "sar-pipeline", nil)
	require.Len(t, state.AuditLog, 1) // START entry

	first := StageResult{
		Delta: Delta{Violations: []domain.Violation{{RuleID: "AML-R01"}}},
		Audit: "CHECK: 1 violation",
	}
	first.Apply(state)

	second := StageResult{
		Delta: Delta{Violations: []domain.Violation{{RuleID: "AML-R02"}}},
		Audit: "CHECK: 1 more",
	}
	second.Apply(state)

	require.Len(t, state.Violations, 2)
	assert.Equal(t, "AML-R01", state.Violations[0].RuleID)
	assert.Equal(t, "AML-R02", state.Violations[1].RuleID)

	// Audit log grows by exactly one entry per applied result, in order.
	require.Len(t, state.AuditLog, 3)
	assert.Equal(t, "CHECK: 1 violation", state.AuditLog[1])
	assert.Equal(t, "CHECK: 1 more", state.AuditLog[2])
}

func TestStageResult_NilDeltaFieldsLeaveStateUntouched(t *testing.T) {
	state := domain.NewRequestState("run-3", "msg", "sentinel-chat", nil)
	state.RiskScore = 0.4
	state.Answer = "prior"

	StageResult{Audit: "NOOP: nothing"}.Apply(state)

	assert.Equal(t, 0.4, state.RiskScore)
	assert.Equal(t, "prior", state.Answer)
	assert.Len(t, state.AuditLog, 2)
}

func TestStageResult_WithDefaults(t *testing.T) {
	res := StageResult{}.WithDefaults("NOTIFY")
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, "NOTIFY: completed", res.Audit)

	kept := StageResult{Audit: "NOTIFY: dispatched", Outcome: OutcomeDegraded}.WithDefaults("NOTIFY")
	assert.Equal(t, OutcomeDegraded, kept.Outcome)
	assert.Equal(t, "NOTIFY: dispatched", kept.Audit)
}
