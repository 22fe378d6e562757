package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var runsLimit int

// runsCmd lists stored snapshots
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runListRuns,
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete [run-id]",
	Short: "Delete a stored run",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteRun,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Maximum number of runs (0 for all)")
	runsCmd.AddCommand(runsDeleteCmd)
}

func runListRuns(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(timeout)
	defer cancel()

	store, err := requireStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx, runsLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "no stored runs")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(out, "%s  %s  identities=%d threads=%d edges=%d",
			r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Identities, r.Threads, r.Edges)
		if r.Label != "" {
			fmt.Fprintf(out, "  %s", r.Label)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func runDeleteRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(timeout)
	defer cancel()

	store, err := requireStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteRun(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
	return nil
}
