package rules

import (
	"strings"

	"github.com/lexinelai/lexinel-oss/pkg/domain"
)

// CTRThreshold is the currency transaction report threshold in USD.
const CTRThreshold = 10_000

// EscalationThreshold is the semantic risk score at or above which an
// otherwise-unflagged request is escalated.
const EscalationThreshold = 0.75

// Stems that indicate a structuring / smurfing pattern in free text.
var structuringStems = []string{"structur", "smurf", "split"}

// EvaluateAML runs the fixed deterministic AML rule set against a request.
// Rule order matters only for which violation is recorded first; the
// semantic escalation rule (AML-R03) fires only when no prior rule matched.
// The function is pure: a nil transaction contributes a zero amount.
func EvaluateAML(tx *domain.Transaction, message string, riskScore float64, riskLabel domain.RiskLabel) []domain.Violation {
	violations := []domain.Violation{}

	var amount float64
	if tx != nil {
		amount = tx.Amount
	}

	// AML-R01: CTR threshold, BSA §1010.310. Always recorded regardless of
	// other rules.
	if amount >= CTRThreshold {
		violations = append(violations, domain.Violation{
			RuleID:    "AML-R01",
			RuleName:  "CTR Threshold Breach",
			Severity:  domain.RiskHigh,
			Amount:    amount,
			Action:    "FLAG_FOR_CTR",
			Framework: "BSA §1010.310",
		})
	}

	// AML-R02: structuring / smurfing heuristic over the message text.
	lower := strings.ToLower(message)
	for _, stem := range structuringStems {
		if strings.Contains(lower, stem) {
			violations = append(violations, domain.Violation{
				RuleID:    "AML-R02",
				RuleName:  "Structuring Pattern Detected",
				Severity:  domain.RiskCritical,
				Action:    "AUTO_SAR",
				Framework: "BSA §1010.314",
			})
			break
		}
	}

	// AML-R03: semantic escalation, evaluated only if no prior rule matched.
	// The ordering dependency is intentional policy carried over unchanged;
	// it is flagged for product review rather than redesigned here.
	if riskScore >= EscalationThreshold && len(violations) == 0 {
		violations = append(violations, domain.Violation{
			RuleID:    "AML-R03",
			RuleName:  "Semantic Risk Threshold Breach",
			Severity:  riskLabel,
			RiskScore: riskScore,
			Action:    "REVIEW_QUEUE",
			Framework: "FATF Recommendation 20",
		})
	}

	return violations
}

// DefaultRules is the built-in fallback rule set used by the batch scanner
// when no authored rules are active.
func DefaultRules() []domain.Rule {
	return []domain.Rule{
		{ID: "R-DFLT-1", Name: "High Value Alert", Logic: "amount > 10000", Summary: "Default threshold check", Active: true},
		{ID: "R-DFLT-2", Name: "Cross Border Risk", Logic: "cross_border = true", Summary: "International risk check", Active: true},
	}
}
