package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexinelai/lexinel-oss/pkg/domain"
)

// newRunCmd creates the command that runs one request through the pipeline.
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single compliance request through the pipeline",
		RunE:  runRequest,
	}

	cmd.Flags().StringP("message", "m", "", "Request message (required)")
	cmd.Flags().String("agent-id", "lexinel-cli", "Agent identity attached to the request")
	cmd.Flags().Bool("json", false, "Print the full final state as JSON")

	cmd.Flags().String("tx-id", "", "Transaction ID")
	cmd.Flags().Float64("amount", 0, "Transaction amount")
	cmd.Flags().String("tx-type", "", "Transaction type (wire, ach, cash)")
	cmd.Flags().String("from", "", "Originating account")
	cmd.Flags().String("to", "", "Destination account")
	cmd.Flags().String("country", "", "Counterparty country code")
	cmd.Flags().Bool("cross-border", false, "Transaction crosses a border")

	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func runRequest(cmd *cobra.Command, _ []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer a.shutdown(cmd.Context())

	if err := a.loadCorpus(cmd.Context()); err != nil {
		return err
	}

	orch, err := a.pipeline()
	if err != nil {
		return err
	}

	message, _ := cmd.Flags().GetString("message")
	agentID, _ := cmd.Flags().GetString("agent-id")
	tx, err := transactionFromFlags(cmd)
	if err != nil {
		return err
	}

	state, err := orch.Run(cmd.Context(), message, agentID, tx)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(state)
	}

	printState(cmd, state)
	return nil
}

// transactionFromFlags builds the optional transaction record. A transaction
// is attached only when at least one transaction flag is set.
func transactionFromFlags(cmd *cobra.Command) (*domain.Transaction, error) {
	flagsSet := false
	for _, name := range []string{"tx-id", "amount", "tx-type", "from", "to", "country", "cross-border"} {
		if cmd.Flags().Changed(name) {
			flagsSet = true
			break
		}
	}
	if !flagsSet {
		return nil, nil
	}

	amount, _ := cmd.Flags().GetFloat64("amount")
	txID, _ := cmd.Flags().GetString("tx-id")
	txType, _ := cmd.Flags().GetString("tx-type")
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	country, _ := cmd.Flags().GetString("country")
	crossBorder, _ := cmd.Flags().GetBool("cross-border")

	if amount < 0 {
		return nil, fmt.Errorf("amount must be non-negative")
	}

	return &domain.Transaction{
		ID:            txID,
		FromAccount:   from,
		ToAccount:     to,
		Amount:        amount,
		Type:          txType,
		Timestamp:     time.Now().UTC(),
		Country:       country,
		IsCrossBorder: crossBorder,
	}, nil
}

func printState(cmd *cobra.Command, state *domain.RequestState) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Answer:\n%s\n\n", state.Answer)
	if len(state.Citations) > 0 {
		fmt.Fprintf(out, "Citations: %v\n", state.Citations)
	}
	fmt.Fprintf(out, "Risk: %.2f (%s)\n", state.RiskScore, state.RiskLabel)
	if state.ViolationFound {
		fmt.Fprintf(out, "Violations:\n")
		for _, v := range state.Violations {
			fmt.Fprintf(out, "  - [%s] %s (%s) action=%s framework=%s\n",
				v.RuleID, v.RuleName, v.Severity, v.Action, v.Framework)
		}
	}
	fmt.Fprintf(out, "\nAudit trail:\n")
	for _, entry := range state.AuditLog {
		fmt.Fprintf(out, "  %s\n", entry)
	}
}
