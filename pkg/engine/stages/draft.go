package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lexinelai/lexinel-oss/pkg/domain"
	"github.com/lexinelai/lexinel-oss/pkg/engine/runtime"
)

const draftPromptTemplate = `Act as a Senior AML Investigator. Write a formal SAR narrative.

TRANSACTION DETAILS:
%s

VIOLATIONS DETECTED:
%s

INVESTIGATOR NOTES: %s

Write a professional investigation narrative that covers:
1. Nature and summary of suspicious activity
2. Chronological flow of funds
3. Applicable regulations violated
4. Recommended next steps for law enforcement

Keep it formal, precise, and under 300 words.`

const (
	draftFallbackNarrative = "SAR generation failed, manual review required."
	draftFallbackAnswer    = "Violation detected. SAR generation encountered an error. Please review manually."
)

// DraftReport generates the suspicious activity report narrative once a
// violation is confirmed. The user-facing answer carries a preview of the
// narrative; on failure both fields fall back to fixed manual-review text so
// the request still terminates with an actionable answer.
type DraftReport struct {
	completer domain.Completer
	logger    *slog.Logger
}

// NewDraftReport builds the report drafting stage.
func NewDraftReport(completer domain.Completer, logger *slog.Logger) *DraftReport {
	return &DraftReport{completer: completer, logger: logger}
}

func (s *DraftReport) Name() string { return NameDraftReport }

func (s *DraftReport) Execute(ctx context.Context, state *domain.RequestState) runtime.StageResult {
	s.logger.Debug("generating report narrative", "stage", NameDraftReport)

	violationsSummary := "[]"
	if encoded, err := json.MarshalIndent(state.Violations, "", "  "); err == nil {
		violationsSummary = string(encoded)
	}
	txInfo := "{}"
	if state.Transaction != nil {
		if encoded, err := json.MarshalIndent(state.Transaction, "", "  "); err == nil {
			txInfo = string(encoded)
		}
	}

	prompt := fmt.Sprintf(draftPromptTemplate, txInfo, violationsSummary, state.Message)

	narrative, err := s.completer.Complete(ctx, prompt, strings.Join(state.PolicyContext, "\n"))
	if err != nil {
		s.logger.Warn("report drafting failed, applying fallback text", "stage", NameDraftReport, "error", err)
		return runtime.StageResult{
			Delta: runtime.Delta{
				ReportNarrative: runtime.Ptr(draftFallbackNarrative),
				Answer:          runtime.Ptr(draftFallbackAnswer),
			},
			Audit:   fmt.Sprintf("[%s] DRAFT_REPORT_ERROR: %v", timestamp(), err),
			Outcome: runtime.OutcomeDegraded,
		}
	}

	answer := fmt.Sprintf("Violation confirmed. SAR drafted automatically.\n\n%s...",
		truncateRunes(narrative, 200))

	return runtime.StageResult{
		Delta: runtime.Delta{
			ReportNarrative: runtime.Ptr(narrative),
			Answer:          runtime.Ptr(answer),
		},
		Audit:   fmt.Sprintf("[%s] DRAFT_REPORT: Generating SAR narrative → narrative generated", timestamp()),
		Outcome: runtime.OutcomeSuccess,
	}
}
