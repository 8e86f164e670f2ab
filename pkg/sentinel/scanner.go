// Package sentinel implements the batch transaction scanner: a deterministic
// sweep of a transaction dataset against the active rule catalog, independent
// of the interactive request pipeline.
package sentinel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lexinelai/lexinel-oss/pkg/domain"
	"github.com/lexinelai/lexinel-oss/pkg/rules"
	"github.com/lexinelai/lexinel-oss/pkg/storage"
	"github.com/lexinelai/lexinel-oss/pkg/telemetry"
)

const (
	// Severity of a detection is driven by the flagged amount.
	highSeverityAmount = 50_000
	// Each rule hit contributes a fixed increment, capped at 100.
	riskPerDetection = 30
	maxRiskScore     = 100
)

// Scanner sweeps transactions against the active rule catalog. Flagged
// results are queued for analyst review on a best-effort basis.
type Scanner struct {
	ruleStore  storage.RuleStore
	queue      storage.ViolationQueue
	collectors *telemetry.Collectors
	logger     *slog.Logger
}

// ScannerOption customizes a Scanner.
type ScannerOption func(*Scanner)

// WithCollectors attaches Prometheus collectors updated per scan.
func WithCollectors(c *telemetry.Collectors) ScannerOption {
	return func(s *Scanner) { s.collectors = c }
}

// NewScanner builds a scanner. ruleStore and queue may be nil; with no rule
// store the built-in default rules apply, with no queue flagged results are
// only reported.
func NewScanner(ruleStore storage.RuleStore, queue storage.ViolationQueue, logger *slog.Logger, opts ...ScannerOption) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scanner{ruleStore: ruleStore, queue: queue, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan evaluates every transaction against the active rules and returns one
// result per transaction, in input order.
func (s *Scanner) Scan(ctx context.Context, transactions []domain.Transaction) ([]domain.ScanResult, error) {
	catalog, err := s.activeRules(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("starting sentinel scan",
		"transactions", len(transactions),
		"active_rules", len(catalog),
	)

	results := make([]domain.ScanResult, 0, len(transactions))
	for i := range transactions {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, s.scanOne(ctx, &transactions[i], catalog))
	}

	if s.collectors != nil {
		s.collectors.ScansTotal.Inc()
	}
	return results, nil
}

// scanOne applies the catalog to a single transaction.
func (s *Scanner) scanOne(ctx context.Context, tx *domain.Transaction, catalog []domain.Rule) domain.ScanResult {
	var detections []domain.Detection
	riskScore := 0

	for _, rule := range catalog {
		if !rules.Matches(tx, rule.Logic) {
			continue
		}
		severity := domain.RiskMedium
		if tx.Amount > highSeverityAmount {
			severity = domain.RiskHigh
		}
		detections = append(detections, domain.Detection{
			RuleID:    rule.ID,
			RuleLabel: rule.Name,
			Reason:    fmt.Sprintf("Transaction matches logic: %s", truncate(rule.Logic, 50)),
			Severity:  severity,
		})
		riskScore += riskPerDetection
	}
	if riskScore > maxRiskScore {
		riskScore = maxRiskScore
	}

	verdict := domain.VerdictCompliant
	if len(detections) > 0 {
		verdict = domain.VerdictFlagged
		s.enqueueDetections(ctx, tx, detections)
	}

	return domain.ScanResult{
		TransactionID: tx.ID,
		Timestamp:     tx.Timestamp.UTC().Format(time.RFC3339),
		Verdict:       verdict,
		Detections:    detections,
		RiskScore:     riskScore,
		EvidenceSummary: fmt.Sprintf("Processed %s - Orig: %s, Dest: %s, Amt: $%.2f",
			tx.ID, tx.FromAccount, tx.ToAccount, tx.Amount),
	}
}

// enqueueDetections pushes flagged activity to the review queue. A queue
// failure never changes the scan verdict.
func (s *Scanner) enqueueDetections(ctx context.Context, tx *domain.Transaction, detections []domain.Detection) {
	if s.queue == nil {
		return
	}
	for _, d := range detections {
		violation := domain.Violation{
			RuleID:   d.RuleID,
			RuleName: d.RuleLabel,
			Severity: d.Severity,
			Action:   "REVIEW_QUEUE",
			Amount:   tx.Amount,
		}
		if _, err := s.queue.Enqueue(ctx, "sentinel-scan", "sentinel", violation); err != nil {
			s.logger.Warn("failed to queue detection", "transaction_id", tx.ID, "rule_id", d.RuleID, "error", err)
		}
		if s.collectors != nil {
			s.collectors.ViolationsTotal.WithLabelValues(d.RuleID).Inc()
		}
	}
	if s.collectors != nil {
		if pending, err := s.queue.List(ctx, storage.StatusPending); err == nil {
			s.collectors.QueueDepth.Set(float64(len(pending)))
		}
	}
}

// activeRules loads the catalog, falling back to the built-in defaults when
// no store is configured or no authored rules are active.
func (s *Scanner) activeRules(ctx context.Context) ([]domain.Rule, error) {
	if s.ruleStore == nil {
		return rules.DefaultRules(), nil
	}
	catalog, err := s.ruleStore.ListActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rule catalog: %w", err)
	}
	if len(catalog) == 0 {
		return rules.DefaultRules(), nil
	}
	return catalog, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// LoadDataset reads a transaction dataset from a JSON file. Records use the
// exchange format of upstream AML sample sets ("from"/"to" account keys).
func LoadDataset(path string) ([]domain.Transaction, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // Path comes from operator configuration.
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	var records []struct {
		ID            string  `json:"id"`
		From          string  `json:"from"`
		To            string  `json:"to"`
		Amount        float64 `json:"amount"`
		Type          string  `json:"type"`
		Timestamp     string  `json:"timestamp"`
		Country       string  `json:"country"`
		IsCrossBorder bool    `json:"is_cross_border"`
	}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode dataset %s: %w: %v", path, domain.ErrData, err)
	}

	transactions := make([]domain.Transaction, 0, len(records))
	for _, r := range records {
		// A record with an unparseable timestamp still participates in the
		// scan; the timestamp falls back to its zero value.
		ts, err := time.Parse(time.RFC3339, r.Timestamp)
		if err != nil {
			ts = time.Time{}
		}
		transactions = append(transactions, domain.Transaction{
			ID:            r.ID,
			FromAccount:   r.From,
			ToAccount:     r.To,
			Amount:        r.Amount,
			Type:          r.Type,
			Timestamp:     ts,
			Country:       r.Country,
			IsCrossBorder: r.IsCrossBorder,
		})
	}
	return transactions, nil
}
