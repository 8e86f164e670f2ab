package sentinel

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexinelai/lexinel-oss/pkg/domain"
	"github.com/lexinelai/lexinel-oss/pkg/storage"
	"github.com/lexinelai/lexinel-oss/pkg/telemetry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleTransactions() []domain.Transaction {
	ts := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	return []domain.Transaction{
		{ID: "tx-1", FromAccount: "A", ToAccount: "B", Amount: 60000, Type: "wire", Timestamp: ts, Country: "US", IsCrossBorder: true},
		{ID: "tx-2", FromAccount: "C", ToAccount: "D", Amount: 500, Type: "ach", Timestamp: ts, Country: "US"},
		{ID: "tx-3", FromAccount: "E", ToAccount: "F", Amount: 15000, Type: "wire", Timestamp: ts, Country: "KY"},
	}
}

func TestScanWithDefaultRules(t *testing.T) {
	scanner := NewScanner(nil, nil, testLogger())

	results, err := scanner.Scan(context.Background(), sampleTransactions())
	require.NoError(t, err)
	require.Len(t, results, 3)

	// tx-1 hits both default rules: high amount and cross-border.
	assert.Equal(t, domain.VerdictFlagged, results[0].Verdict)
	require.Len(t, results[0].Detections, 2)
	assert.Equal(t, domain.RiskHigh, results[0].Detections[0].Severity, "above 50k is high severity")
	assert.Equal(t, 60, results[0].RiskScore)

	// tx-2 is clean.
	assert.Equal(t, domain.VerdictCompliant, results[1].Verdict)
	assert.Empty(t, results[1].Detections)
	assert.Zero(t, results[1].RiskScore)

	// tx-3 crosses the amount threshold only, below the high-severity bar.
	assert.Equal(t, domain.VerdictFlagged, results[2].Verdict)
	require.Len(t, results[2].Detections, 1)
	assert.Equal(t, "R-DFLT-1", results[2].Detections[0].RuleID)
	assert.Equal(t, domain.RiskMedium, results[2].Detections[0].Severity)
	assert.Contains(t, results[2].EvidenceSummary, "tx-3")
	assert.Contains(t, results[2].EvidenceSummary, "$15000.00")
}

func TestScanRiskScoreCapped(t *testing.T) {
	catalog := make([]domain.Rule, 4)
	for i := range catalog {
		catalog[i] = domain.Rule{ID: "R", Name: "always", Logic: "amount > 1", Active: true}
	}
	queue := storage.NewMemoryQueue(catalog)
	scanner := NewScanner(queue, nil, testLogger())

	results, err := scanner.Scan(context.Background(), []domain.Transaction{{ID: "tx", Amount: 100}})
	require.NoError(t, err)
	require.Len(t, results[0].Detections, 4)
	assert.Equal(t, 100, results[0].RiskScore)
}

func TestScanQueuesFlaggedTransactions(t *testing.T) {
	queue := storage.NewMemoryQueue(nil)
	collectors := telemetry.NewCollectors()
	scanner := NewScanner(nil, queue, testLogger(), WithCollectors(collectors))

	_, err := scanner.Scan(context.Background(), sampleTransactions())
	require.NoError(t, err)

	pending, err := queue.List(context.Background(), storage.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 3, "two hits for tx-1, one for tx-3")
	for _, pv := range pending {
		assert.Equal(t, "sentinel", pv.AgentID)
		assert.Equal(t, "REVIEW_QUEUE", pv.Violation.Action)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(collectors.QueueDepth))
}

func TestScanFallsBackWhenCatalogEmpty(t *testing.T) {
	queue := storage.NewMemoryQueue(nil) // no authored rules
	scanner := NewScanner(queue, nil, testLogger())

	results, err := scanner.Scan(context.Background(), sampleTransactions())
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictFlagged, results[0].Verdict, "default rules applied")
}

func TestScanHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scanner := NewScanner(nil, nil, testLogger())
	_, err := scanner.Scan(ctx, sampleTransactions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.json")
	payload := `[
		{"id": "tx-1", "from": "acct-a", "to": "acct-b", "amount": 12000,
		 "type": "wire", "timestamp": "2026-02-01T09:00:00Z", "country": "KY",
		 "is_cross_border": true}
	]`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))

	transactions, err := LoadDataset(path)
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, "acct-a", transactions[0].FromAccount)
	assert.Equal(t, "acct-b", transactions[0].ToAccount)
	assert.True(t, transactions[0].IsCrossBorder)
	assert.Equal(t, 2026, transactions[0].Timestamp.Year())
}

func TestLoadDatasetMissingFile(t *testing.T) {
	_, err := LoadDataset(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadDatasetMalformedRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"amount": "not a number"}]`), 0o600))

	_, err := LoadDataset(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrData)
}

func TestLoadDatasetZeroTimestampFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.json")
	payload := `[{"id": "tx-1", "from": "a", "to": "b", "amount": 50, "timestamp": "yesterday"}]`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))

	transactions, err := LoadDataset(path)
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.True(t, transactions[0].Timestamp.IsZero())
}

func TestScheduleRejectsInvalidSpec(t *testing.T) {
	scanner := NewScanner(nil, nil, testLogger())
	_, err := NewSchedule(scanner, "data.json", "not a cron spec", testLogger())
	assert.Error(t, err)
}

func TestScheduleStartStop(t *testing.T) {
	scanner := NewScanner(nil, nil, testLogger())
	sched, err := NewSchedule(scanner, "data.json", "@hourly", testLogger())
	require.NoError(t, err)

	sched.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, sched.Stop(ctx))
}
