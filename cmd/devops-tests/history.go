package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/AgnieszkaZaba/devops-tests/pkg/presenter"
)

// HistoryOptions contains all options for the history command
type HistoryOptions struct {
	limit int
}

var historyOptions = &HistoryOptions{}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent workflow runs",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()

		st := openStore(ctx)
		if st == nil {
			presenter.Error(fmt.Errorf("store unavailable"), "Cannot list workflow runs")
			os.Exit(1)
		}
		defer st.Close()

		runs, err := st.ListRuns(ctx, historyOptions.limit)
		if err != nil {
			presenter.Error(err, "Failed to list workflow runs")
			os.Exit(1)
		}
		if len(runs) == 0 {
			presenter.Info("No workflow runs recorded yet")
			return
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tEvent\tStatus\tStarted\tDuration")
		fmt.Fprintln(tw, "--\t-----\t------\t-------\t--------")
		for _, run := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				run.ID,
				run.Event,
				run.Status,
				run.StartedAt.Format(time.RFC3339),
				run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond),
			)
		}
		tw.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print the full report of a stored run",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		st := openStore(ctx)
		if st == nil {
			presenter.Error(fmt.Errorf("store unavailable"), "Cannot load workflow run")
			os.Exit(1)
		}
		defer st.Close()

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			presenter.Error(err, fmt.Sprintf("Failed to load run %s", args[0]))
			os.Exit(1)
		}
		fmt.Println(run.Report)
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyOptions.limit, "limit", 20, "Maximum number of runs to display")
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}
