package stages

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lexinelai/lexinel-oss/pkg/domain"
	"github.com/lexinelai/lexinel-oss/pkg/engine/runtime"
	"github.com/lexinelai/lexinel-oss/pkg/rules"
	"github.com/lexinelai/lexinel-oss/pkg/storage"
	"github.com/lexinelai/lexinel-oss/pkg/telemetry"
)

// CheckViolations runs the deterministic rule engine over the transaction,
// message and semantic risk score. The evaluation itself is pure; detected
// violations are additionally queued for analyst review on a best-effort
// basis, and a queue failure never changes the detection outcome.
type CheckViolations struct {
	queue      storage.ViolationQueue
	collectors *telemetry.Collectors
	logger     *slog.Logger
}

// NewCheckViolations builds the violation check stage. queue may be nil when
// no review queue is configured; collectors may be nil.
func NewCheckViolations(queue storage.ViolationQueue, collectors *telemetry.Collectors, logger *slog.Logger) *CheckViolations {
	return &CheckViolations{queue: queue, collectors: collectors, logger: logger}
}

func (s *CheckViolations) Name() string { return NameCheckViolations }

func (s *CheckViolations) Execute(ctx context.Context, state *domain.RequestState) runtime.StageResult {
	s.logger.Debug("running deterministic rule engine", "stage", NameCheckViolations)

	violations := rules.EvaluateAML(state.Transaction, state.Message, state.RiskScore, state.RiskLabel)

	if s.queue != nil {
		for _, v := range violations {
			if _, err := s.queue.Enqueue(ctx, state.RunID, state.AgentID, v); err != nil {
				s.logger.Warn("failed to queue violation for review",
					"stage", NameCheckViolations, "rule_id", v.RuleID, "error", err)
			}
		}
		if s.collectors != nil && len(violations) > 0 {
			if pending, err := s.queue.List(ctx, storage.StatusPending); err == nil {
				s.collectors.QueueDepth.Set(float64(len(pending)))
			}
		}
	}

	return runtime.StageResult{
		Delta: runtime.Delta{
			Violations:     violations,
			ViolationFound: runtime.Ptr(len(violations) > 0),
		},
		Audit: fmt.Sprintf("[%s] CHECK_VIOLATIONS: Running deterministic rule engine → %d violation(s) found",
			timestamp(), len(violations)),
		Outcome: runtime.OutcomeSuccess,
	}
}
