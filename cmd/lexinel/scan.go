package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lexinelai/lexinel-oss/pkg/domain"
	"github.com/lexinelai/lexinel-oss/pkg/sentinel"
)

// newScanCmd creates the command that runs one batch sentinel scan over a
// transaction dataset.
func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a transaction dataset against the active rule catalog",
		RunE:  runScan,
	}

	cmd.Flags().StringP("dataset", "d", "", "Path to the transaction dataset (overrides config)")
	cmd.Flags().Bool("json", false, "Print scan results as JSON")
	return cmd
}

func runScan(cmd *cobra.Command, _ []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer a.shutdown(cmd.Context())

	dataset, _ := cmd.Flags().GetString("dataset")
	if dataset == "" {
		dataset = a.cfg.Sentinel.DatasetPath
	}
	if dataset == "" {
		return fmt.Errorf("no dataset: pass --dataset or set sentinel.dataset_path")
	}

	txs, err := sentinel.LoadDataset(dataset)
	if err != nil {
		return err
	}

	scanner := sentinel.NewScanner(a.ruleStore, a.queue, a.logger,
		sentinel.WithCollectors(a.collectors))
	results, err := scanner.Scan(cmd.Context(), txs)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(results)
	}

	printScanResults(cmd, results)
	return nil
}

func printScanResults(cmd *cobra.Command, results []domain.ScanResult) {
	out := cmd.OutOrStdout()

	flagged := 0
	for _, r := range results {
		if r.Verdict == domain.VerdictFlagged {
			flagged++
		}
	}
	fmt.Fprintf(out, "Scanned %d transaction(s), %d flagged\n\n", len(results), flagged)

	for _, r := range results {
		fmt.Fprintf(out, "%s  %-9s  risk=%d\n", r.TransactionID, r.Verdict, r.RiskScore)
		for _, d := range r.Detections {
			fmt.Fprintf(out, "    [%s] %s (%s): %s\n", d.RuleID, d.RuleLabel, d.Severity, d.Reason)
		}
	}
}
