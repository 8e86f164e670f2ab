package stages

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lexinelai/lexinel-oss/pkg/domain"
	"github.com/lexinelai/lexinel-oss/pkg/engine/runtime"
)

// Screen is the first stage: it consults the deterministic prompt guard and
// hard-blocks requests that violate immutable compliance rules. The guard may
// also rewrite the message to redact sensitive values.
//
// A guard failure fails open: the request proceeds unblocked so that a broken
// guard cannot take the whole pipeline down.
type Screen struct {
	guard  domain.PromptGuard
	logger *slog.Logger
}

// NewScreen builds the screening stage.
func NewScreen(guard domain.PromptGuard, logger *slog.Logger) *Screen {
	return &Screen{guard: guard, logger: logger}
}

func (s *Screen) Name() string { return NameScreen }

func (s *Screen) Execute(ctx context.Context, state *domain.RequestState) runtime.StageResult {
	s.logger.Debug("evaluating input", "stage", NameScreen, "agent_id", state.AgentID)

	decision, err := s.guard.Check(ctx, state.Message, state.AgentID)
	if err != nil {
		s.logger.Warn("guard unavailable, failing open", "stage", NameScreen, "error", err)
		return runtime.StageResult{
			Delta: runtime.Delta{
				IsBlocked:   runtime.Ptr(false),
				BlockReason: runtime.Ptr(""),
			},
			Audit:   fmt.Sprintf("[%s] SCREEN_ERROR: %v", timestamp(), err),
			Outcome: runtime.OutcomeDegraded,
		}
	}

	return runtime.StageResult{
		Delta: runtime.Delta{
			IsBlocked:   runtime.Ptr(decision.Blocked),
			BlockReason: runtime.Ptr(decision.Reason),
			Message:     runtime.Ptr(decision.Processed),
		},
		Audit: fmt.Sprintf("[%s] SCREEN: Evaluating input for agent_id=%s → blocked=%v",
			timestamp(), state.AgentID, decision.Blocked),
		Outcome: runtime.OutcomeSuccess,
	}
}
