package sentinel

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/lexinelai/lexinel-oss/pkg/domain"
)

// Schedule runs recurring sentinel scans of a fixed dataset on a cron
// expression.
type Schedule struct {
	scanner *Scanner
	cron    *cron.Cron
	logger  *slog.Logger
}

// NewSchedule registers a scan of datasetPath under spec (standard five-field
// cron syntax). The schedule does not start until Start is called.
func NewSchedule(scanner *Scanner, datasetPath, spec string, logger *slog.Logger) (*Schedule, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Schedule{
		scanner: scanner,
		cron:    cron.New(),
		logger:  logger,
	}

	_, err := s.cron.AddFunc(spec, func() {
		transactions, err := LoadDataset(datasetPath)
		if err != nil {
			logger.Error("scheduled scan skipped, dataset unavailable", "path", datasetPath, "error", err)
			return
		}

		results, err := scanner.Scan(context.Background(), transactions)
		if err != nil {
			logger.Error("scheduled scan failed", "error", err)
			return
		}

		flagged := 0
		for _, r := range results {
			if r.Verdict == domain.VerdictFlagged {
				flagged++
			}
		}
		logger.Info("scheduled scan complete", "transactions", len(results), "flagged", flagged)
	})
	if err != nil {
		return nil, fmt.Errorf("register scan schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins running scheduled scans in a background goroutine.
func (s *Schedule) Start() {
	s.cron.Start()
	s.logger.Info("sentinel schedule started")
}

// Stop halts the schedule and waits for any running scan to finish.
func (s *Schedule) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
