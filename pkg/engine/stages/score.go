package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lexinelai/lexinel-oss/pkg/domain"
	"github.com/lexinelai/lexinel-oss/pkg/engine/runtime"
	"github.com/lexinelai/lexinel-oss/pkg/llm"
)

const scorePromptTemplate = `You are a Senior AML Risk Officer. Assess the following for AML/BSA compliance risk.

USER INPUT: %s

TRANSACTION DATA: %s

RELEVANT POLICY CONTEXT:
%s

Respond ONLY in this exact JSON format, no extra text:
{
  "risk_score": <float 0.0 to 1.0>,
  "risk_label": "<LOW|MEDIUM|HIGH|CRITICAL>",
  "risk_reasons": ["<reason 1>", "<reason 2>", "<reason 3>"]
}`

// ScoreRisk asks the completion collaborator for a structured risk
// assessment of the request. The model's answer must be a JSON object; any
// completion or parse failure degrades to a conservative low score so the
// deterministic rule check downstream remains the safety net.
type ScoreRisk struct {
	completer domain.Completer
	logger    *slog.Logger
}

// NewScoreRisk builds the risk scoring stage.
func NewScoreRisk(completer domain.Completer, logger *slog.Logger) *ScoreRisk {
	return &ScoreRisk{completer: completer, logger: logger}
}

func (s *ScoreRisk) Name() string { return NameScoreRisk }

func (s *ScoreRisk) Execute(ctx context.Context, state *domain.RequestState) runtime.StageResult {
	s.logger.Debug("running risk analysis", "stage", NameScoreRisk)

	contextBlock := "No policy context loaded."
	if len(state.PolicyContext) > 0 {
		top := state.PolicyContext
		if len(top) > 3 {
			top = top[:3]
		}
		contextBlock = strings.Join(top, "\n")
	}

	txInfo := "N/A"
	if state.Transaction != nil {
		if encoded, err := json.MarshalIndent(state.Transaction, "", "  "); err == nil {
			txInfo = string(encoded)
		}
	}

	prompt := fmt.Sprintf(scorePromptTemplate, state.Message, txInfo, contextBlock)

	score, label, reasons, err := s.assess(ctx, prompt, contextBlock)
	if err != nil {
		s.logger.Warn("risk assessment failed, applying fallback score", "stage", NameScoreRisk, "error", err)
		return runtime.StageResult{
			Delta: runtime.Delta{
				RiskScore:   runtime.Ptr(0.1),
				RiskLabel:   runtime.Ptr(domain.RiskLow),
				RiskReasons: runtime.Ptr([]string{fmt.Sprintf("Risk assessment error: %v", err)}),
			},
			Audit:   fmt.Sprintf("[%s] SCORE_RISK_ERROR: %v", timestamp(), err),
			Outcome: runtime.OutcomeDegraded,
		}
	}

	return runtime.StageResult{
		Delta: runtime.Delta{
			RiskScore:   runtime.Ptr(score),
			RiskLabel:   runtime.Ptr(label),
			RiskReasons: runtime.Ptr(reasons),
		},
		Audit: fmt.Sprintf("[%s] SCORE_RISK: Running risk analysis → score=%.2f label=%s",
			timestamp(), score, label),
		Outcome: runtime.OutcomeSuccess,
	}
}

func (s *ScoreRisk) assess(ctx context.Context, prompt, contextBlock string) (float64, domain.RiskLabel, []string, error) {
	raw, err := s.completer.Complete(ctx, prompt, contextBlock)
	if err != nil {
		return 0, "", nil, err
	}

	var parsed struct {
		RiskScore   float64  `json:"risk_score"`
		RiskLabel   string   `json:"risk_label"`
		RiskReasons []string `json:"risk_reasons"`
	}
	if err := json.Unmarshal([]byte(llm.StripFences(raw)), &parsed); err != nil {
		return 0, "", nil, fmt.Errorf("malformed assessment: %w", err)
	}

	score := parsed.RiskScore
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	label, ok := domain.ParseRiskLabel(parsed.RiskLabel)
	if !ok {
		label = domain.RiskLow
	}

	reasons := parsed.RiskReasons
	if reasons == nil {
		reasons = []string{}
	}
	return score, label, reasons, nil
}
