package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AgnieszkaZaba/devops-tests/pkg/logger"
	"github.com/AgnieszkaZaba/devops-tests/pkg/presenter"
	"github.com/AgnieszkaZaba/devops-tests/pkg/store"
	"github.com/AgnieszkaZaba/devops-tests/pkg/workflow"
)

// WorkflowRunOptions contains all options for the workflow run command
type WorkflowRunOptions struct {
	jobs          int
	strictActions bool
}

var workflowRunOptions = &WorkflowRunOptions{}

var workflowRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the pipeline for a simulated event",
	Long: `Builds the plan the given event triggers and executes it on this
machine: ready jobs run in parallel, matrix runs expand, steps shell out.
The outcome is stored and can be inspected later with the history command.`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			presenter.Warning("Cancellation requested, shutting down...")
			cancel()
		}()

		plan := buildPlan(cmd)
		if len(plan.Runs) == 0 {
			presenter.Info(fmt.Sprintf("Nothing to run for %s", describeEvent(plan.Event)))
			return
		}

		runner := workflow.NewRunner(
			workflow.WithJobs(workflowRunOptions.jobs),
			workflow.WithStrictActions(workflowRunOptions.strictActions),
		)

		presenter.Section(fmt.Sprintf("Running %d job runs for %s", len(plan.Runs), describeEvent(plan.Event)))
		report, err := runner.Run(ctx, plan)
		if err != nil {
			presenter.Error(err, "Workflow run aborted")
			os.Exit(1)
		}

		saveReport(ctx, report)
		presentReport(report)

		if !report.Success() {
			os.Exit(1)
		}
	},
}

// saveReport persists the run for the history command. Storage problems are
// logged, not fatal: the run already happened.
func saveReport(ctx context.Context, report *workflow.Report) {
	st := openStore(ctx)
	if st == nil {
		return
	}
	defer st.Close()

	payload, err := report.JSON()
	if err != nil {
		logger.G(ctx).WithError(err).Warn("Failed to encode run report")
		return
	}
	run := store.WorkflowRun{
		ID:         report.ID,
		Event:      string(report.Event.Type),
		Status:     string(report.Status),
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Report:     payload,
	}
	if err := st.SaveRun(ctx, run); err != nil {
		logger.G(ctx).WithError(err).Warn("Failed to store run report")
	}
}

func presentReport(report *workflow.Report) {
	keys := make([]string, 0, len(report.Runs))
	for key := range report.Runs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		run := report.Runs[key]
		line := fmt.Sprintf("%-8s %s (%s)", run.Status, key, run.Duration.Round(time.Millisecond))
		switch run.Status {
		case workflow.StatusSuccess:
			presenter.Success(line)
		case workflow.StatusSkipped:
			presenter.Warning(line)
		default:
			presenter.FileError(key, failedSteps(run))
		}
	}

	duration := report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond)
	if report.Success() {
		presenter.Success(fmt.Sprintf("Workflow succeeded in %s", duration))
	} else {
		presenter.Warning(fmt.Sprintf("Workflow failed after %s", duration))
	}
	presenter.Info(fmt.Sprintf("Run %s stored; inspect it with: devops-tests history show %s", report.ID, report.ID))
}

// failedSteps summarizes what went wrong in a failed run.
func failedSteps(run *workflow.JobRunReport) error {
	for _, step := range run.Steps {
		if step.Status == workflow.StatusFailure {
			return fmt.Errorf("step %q failed after %d attempt(s): %s", step.Name, step.Attempts, step.Error)
		}
	}
	return fmt.Errorf("run failed")
}

func init() {
	addEventFlags(workflowRunCmd)
	workflowRunCmd.Flags().IntVar(&workflowRunOptions.jobs, "jobs", 0, "Concurrent job runs (default: CPU count, capped at 8)")
	workflowRunCmd.Flags().BoolVar(&workflowRunOptions.strictActions, "strict-actions", false, "Fail on actions without a local adapter instead of skipping them")
	workflowCmd.AddCommand(workflowRunCmd)
}
