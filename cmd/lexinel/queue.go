package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lexinelai/lexinel-oss/pkg/storage"
)

// newQueueCmd creates the command group for inspecting and resolving the
// pending-violation queue.
func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and resolve pending violations",
	}
	cmd.AddCommand(newQueueListCmd(), newQueueResolveCmd())
	return cmd
}

func newQueueListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued violations, newest first",
		RunE:  runQueueList,
	}
	cmd.Flags().String("status", string(storage.StatusPending), "Filter by status (PENDING, RESOLVED, empty for all)")
	cmd.Flags().Bool("json", false, "Print as JSON")
	return cmd
}

func runQueueList(cmd *cobra.Command, _ []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer a.shutdown(cmd.Context())

	status, _ := cmd.Flags().GetString("status")
	items, err := a.queue.List(cmd.Context(), storage.ViolationStatus(status))
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(items)
	}

	out := cmd.OutOrStdout()
	if len(items) == 0 {
		fmt.Fprintln(out, "queue is empty")
		return nil
	}
	for _, item := range items {
		fmt.Fprintf(out, "%s  %-8s  run=%s agent=%s  [%s] %s (%s)\n",
			item.ID, item.Status, item.RunID, item.AgentID,
			item.Violation.RuleID, item.Violation.RuleName, item.Violation.Severity)
		if item.Resolution != "" {
			fmt.Fprintf(out, "    resolution: %s\n", item.Resolution)
		}
	}
	return nil
}

func newQueueResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Mark a queued violation as resolved",
		Args:  cobra.ExactArgs(1),
		RunE:  runQueueResolve,
	}
	cmd.Flags().String("resolution", "reviewed", "Resolution note recorded with the violation")
	return cmd
}

func runQueueResolve(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer a.shutdown(cmd.Context())

	resolution, _ := cmd.Flags().GetString("resolution")
	if err := a.queue.Resolve(cmd.Context(), args[0], resolution); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "resolved %s\n", args[0])
	return nil
}
