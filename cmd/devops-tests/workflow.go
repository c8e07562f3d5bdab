package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AgnieszkaZaba/devops-tests/pkg/presenter"
	"github.com/AgnieszkaZaba/devops-tests/pkg/suite"
	"github.com/AgnieszkaZaba/devops-tests/pkg/workflow"
)

// defaultWorkflowFile is where the pipeline definition lives unless
// --file points elsewhere.
const defaultWorkflowFile = ".github/workflows/ci.yml"

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Validate, plan and execute the CI pipeline locally",
	Long: `Commands around the repository's CI pipeline definition: scaffold the
canonical pipeline, validate its shape, inspect the job graph an event would
trigger, and execute it on this machine.`,
}

var workflowInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the canonical pipeline definition",
	Long: `Writes the canonical pipeline (pylint, pre-commit hooks and the matrix
self test) to the workflow file. Existing files are kept unless --override
is given.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		file, _ := cmd.Flags().GetString("file")
		override, _ := cmd.Flags().GetBool("override")

		if !override {
			if _, err := os.Stat(file); err == nil {
				presenter.Warning(fmt.Sprintf("Workflow file already exists at %s", file))
				presenter.Info("To overwrite, use the --override flag")
				return nil
			}
		}

		repo := viper.GetString("repo")
		if repo == "" {
			repo = suite.DetectRepoName()
		}
		data, err := workflow.Canonical(repo)
		if err != nil {
			return err
		}

		if dir := filepath.Dir(file); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return errors.Wrapf(err, "creating %s", dir)
			}
		}
		if err := os.WriteFile(file, data, 0o644); err != nil {
			return errors.Wrapf(err, "writing %s", file)
		}

		presenter.Success(fmt.Sprintf("Workflow written to %s", file))
		return nil
	},
}

var workflowValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the pipeline definition",
	Run: func(cmd *cobra.Command, _ []string) {
		wf := loadWorkflow(cmd)
		if err := wf.Validate(); err != nil {
			presenter.Error(err, "Workflow is invalid")
			os.Exit(1)
		}
		presenter.Success(fmt.Sprintf("Workflow is valid (%d jobs)", len(wf.Jobs)))
	},
}

var workflowPlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the job runs an event would trigger",
	Run: func(cmd *cobra.Command, _ []string) {
		plan := buildPlan(cmd)
		if len(plan.Runs) == 0 {
			presenter.Info(fmt.Sprintf("Nothing to run for %s", describeEvent(plan.Event)))
			return
		}

		presenter.Section(fmt.Sprintf("Plan for %s: %d runs", describeEvent(plan.Event), len(plan.Runs)))
		for i, level := range plan.Levels {
			presenter.Info(fmt.Sprintf("Stage %d:", i+1))
			for _, key := range level {
				run := plan.Runs[key]
				presenter.Info(fmt.Sprintf("  %s [%s]", key, run.Job.RunsOn))
			}
		}
	},
}

var workflowGraphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Render the plan's dependency graph",
	Run: func(cmd *cobra.Command, _ []string) {
		format, _ := cmd.Flags().GetString("format")
		plan := buildPlan(cmd)

		switch format {
		case "dot":
			dot, err := plan.DOT()
			if err != nil {
				presenter.Error(err, "Failed to render graph")
				os.Exit(1)
			}
			fmt.Print(dot)
		case "text":
			for i, level := range plan.Levels {
				fmt.Printf("%d: %s\n", i+1, strings.Join(level, ", "))
			}
		default:
			presenter.Error(errors.Errorf("unknown format %q (expected dot or text)", format), "Invalid arguments")
			os.Exit(1)
		}
	},
}

// loadWorkflow reads the --file workflow or exits with an error.
func loadWorkflow(cmd *cobra.Command) *workflow.Workflow {
	file, _ := cmd.Flags().GetString("file")
	wf, err := workflow.Load(file)
	if err != nil {
		presenter.Error(err, "Failed to load workflow")
		os.Exit(1)
	}
	return wf
}

// eventFromFlags builds the event the plan and run commands simulate.
func eventFromFlags(cmd *cobra.Command) workflow.Event {
	eventName, _ := cmd.Flags().GetString("event")
	branch, _ := cmd.Flags().GetString("branch")
	action, _ := cmd.Flags().GetString("action")

	eventType, err := workflow.ParseEventType(eventName)
	if err != nil {
		presenter.Error(err, "Invalid arguments")
		os.Exit(1)
	}
	return workflow.Event{Type: eventType, Branch: branch, Action: action}
}

func buildPlan(cmd *cobra.Command) *workflow.Plan {
	wf := loadWorkflow(cmd)
	if err := wf.Validate(); err != nil {
		presenter.Error(err, "Workflow is invalid")
		os.Exit(1)
	}
	plan, err := workflow.BuildPlan(wf, eventFromFlags(cmd))
	if err != nil {
		presenter.Error(err, "Failed to build plan")
		os.Exit(1)
	}
	return plan
}

func describeEvent(ev workflow.Event) string {
	switch ev.Type {
	case workflow.EventPush, workflow.EventPullRequest:
		return fmt.Sprintf("%s on %s", ev.Type, ev.Branch)
	case workflow.EventRelease:
		action := ev.Action
		if action == "" {
			action = workflow.DefaultReleaseAction
		}
		return fmt.Sprintf("release %s", action)
	default:
		return string(ev.Type)
	}
}

func addEventFlags(cmd *cobra.Command) {
	cmd.Flags().String("event", "push", "Event to simulate (push, pull_request, schedule, release)")
	cmd.Flags().String("branch", "main", "Branch the simulated event refers to")
	cmd.Flags().String("action", "", "Release action (default published)")
}

func init() {
	workflowCmd.PersistentFlags().StringP("file", "f", defaultWorkflowFile, "Workflow definition file")

	workflowInitCmd.Flags().Bool("override", false, "Overwrite an existing workflow file")
	addEventFlags(workflowPlanCmd)
	addEventFlags(workflowGraphCmd)
	workflowGraphCmd.Flags().String("format", "dot", "Output format (dot, text)")

	workflowCmd.AddCommand(workflowInitCmd)
	workflowCmd.AddCommand(workflowValidateCmd)
	workflowCmd.AddCommand(workflowPlanCmd)
	workflowCmd.AddCommand(workflowGraphCmd)
	rootCmd.AddCommand(workflowCmd)
}
