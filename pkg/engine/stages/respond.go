package stages

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lexinelai/lexinel-oss/pkg/domain"
	"github.com/lexinelai/lexinel-oss/pkg/engine/runtime"
)

const cleanFallbackAnswer = "Unable to generate a compliance response. Please consult the policy documentation."

// RespondClean is the terminal stage for requests with no confirmed
// violation. It produces a grounded answer to the original question using
// the retrieved policy context.
type RespondClean struct {
	completer domain.Completer
	logger    *slog.Logger
}

// NewRespondClean builds the clean-path terminal stage.
func NewRespondClean(completer domain.Completer, logger *slog.Logger) *RespondClean {
	return &RespondClean{completer: completer, logger: logger}
}

func (s *RespondClean) Name() string { return NameRespondClean }

func (s *RespondClean) Execute(ctx context.Context, state *domain.RequestState) runtime.StageResult {
	s.logger.Debug("generating compliance answer", "stage", NameRespondClean)

	answer, err := s.completer.Complete(ctx, state.Message, strings.Join(state.PolicyContext, "\n"))
	if err != nil {
		s.logger.Warn("answer generation failed, applying fallback text", "stage", NameRespondClean, "error", err)
		return runtime.StageResult{
			Delta:   runtime.Delta{Answer: runtime.Ptr(cleanFallbackAnswer)},
			Audit:   fmt.Sprintf("[%s] RESPOND_CLEAN_ERROR: %v", timestamp(), err),
			Outcome: runtime.OutcomeDegraded,
		}
	}

	return runtime.StageResult{
		Delta:   runtime.Delta{Answer: runtime.Ptr(answer)},
		Audit:   fmt.Sprintf("[%s] RESPOND_CLEAN: Generating compliance answer → answer generated", timestamp()),
		Outcome: runtime.OutcomeSuccess,
	}
}

// RespondBlocked is the terminal stage for hard-blocked requests. It is pure
// and cannot degrade.
type RespondBlocked struct {
	logger *slog.Logger
}

// NewRespondBlocked builds the blocked-path terminal stage.
func NewRespondBlocked(logger *slog.Logger) *RespondBlocked {
	return &RespondBlocked{logger: logger}
}

func (s *RespondBlocked) Name() string { return NameRespondBlocked }

func (s *RespondBlocked) Execute(_ context.Context, state *domain.RequestState) runtime.StageResult {
	s.logger.Debug("formatting blocked response", "stage", NameRespondBlocked, "reason", state.BlockReason)

	return runtime.StageResult{
		Delta: runtime.Delta{
			Answer:    runtime.Ptr(fmt.Sprintf("Compliance Alert: %s", state.BlockReason)),
			Citations: runtime.Ptr([]string{"PolicyGuard Governance Engine"}),
		},
		Audit: fmt.Sprintf("[%s] RESPOND_BLOCKED: Input blocked by policy guard, reason=%s",
			timestamp(), state.BlockReason),
		Outcome: runtime.OutcomeSuccess,
	}
}
