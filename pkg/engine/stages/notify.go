package stages

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lexinelai/lexinel-oss/pkg/domain"
	"github.com/lexinelai/lexinel-oss/pkg/engine/runtime"
)

// Notify dispatches the confirmed violation event to the alerting sink. The
// pipeline records only whether delivery succeeded; a failed dispatch never
// fails the request.
type Notify struct {
	notifier domain.Notifier
	source   string
	logger   *slog.Logger
}

// NewNotify builds the notification stage.
func NewNotify(notifier domain.Notifier, logger *slog.Logger) *Notify {
	return &Notify{notifier: notifier, source: "lexinel-pipeline", logger: logger}
}

func (s *Notify) Name() string { return NameNotify }

func (s *Notify) Execute(ctx context.Context, state *domain.RequestState) runtime.StageResult {
	s.logger.Debug("dispatching violation event", "stage", NameNotify)

	event := domain.AlertEvent{
		Source:           s.source,
		AgentID:          state.AgentID,
		Timestamp:        time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		RiskLabel:        state.RiskLabel,
		RiskScore:        state.RiskScore,
		Violations:       state.Violations,
		NarrativePreview: truncateRunes(state.ReportNarrative, 200),
	}

	delivered, err := s.notifier.Notify(ctx, event)
	if err != nil {
		s.logger.Warn("alert dispatch failed", "stage", NameNotify, "error", err)
		return runtime.StageResult{
			Delta:   runtime.Delta{Notified: runtime.Ptr(false)},
			Audit:   fmt.Sprintf("[%s] NOTIFY_ERROR: %v", timestamp(), err),
			Outcome: runtime.OutcomeDegraded,
		}
	}

	return runtime.StageResult{
		Delta: runtime.Delta{Notified: runtime.Ptr(delivered)},
		Audit: fmt.Sprintf("[%s] NOTIFY: Dispatching violation event → notified=%v",
			timestamp(), delivered),
		Outcome: runtime.OutcomeSuccess,
	}
}
