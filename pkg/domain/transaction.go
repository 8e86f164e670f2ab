package domain

import "time"

// Transaction is the structured financial record attached to a request.
// It is absent for chat-only requests and immutable after creation.
type Transaction struct {
	ID            string    `json:"id"`
	FromAccount   string    `json:"from_account"`
	ToAccount     string    `json:"to_account"`
	Amount        float64   `json:"amount"`
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	Country       string    `json:"country"`
	IsCrossBorder bool      `json:"is_cross_border"`
}

// ScanVerdict classifies a batch-scan result for a single transaction.
type ScanVerdict string

const (
	VerdictCompliant ScanVerdict = "COMPLIANT"
	VerdictFlagged   ScanVerdict = "FLAGGED"
)

// Detection records one rule hit produced by the batch sentinel scanner.
type Detection struct {
	RuleID    string    `json:"rule_id"`
	RuleLabel string    `json:"rule_label"`
	Reason    string    `json:"reason"`
	Severity  RiskLabel `json:"severity"`
}

// ScanResult is the per-transaction outcome of a sentinel scan.
type ScanResult struct {
	TransactionID   string      `json:"transaction_id"`
	Timestamp       string      `json:"timestamp"`
	Verdict         ScanVerdict `json:"verdict"`
	Detections      []Detection `json:"detections"`
	RiskScore       int         `json:"risk_score"` // additive 0-100
	EvidenceSummary string      `json:"evidence_summary"`
}

// Rule is a human-authored screening rule matched against transactions by
// the deterministic evaluator. Logic is a short comparison expression such
// as "amount > 10000" or "cross_border = true", not a full grammar.
type Rule struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Logic   string `json:"logic" yaml:"logic"`
	Summary string `json:"summary" yaml:"summary"`
	Active  bool   `json:"active" yaml:"active"`
}
