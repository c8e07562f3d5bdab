package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AgnieszkaZaba/devops-tests/pkg/workflow"
)

func TestFailedSteps(t *testing.T) {
	run := &workflow.JobRunReport{
		Steps: []*workflow.StepReport{
			{Name: "lint", Status: workflow.StatusSuccess},
			{Name: "test", Status: workflow.StatusFailure, Attempts: 2, Error: "command exited with status 3"},
		},
	}

	err := failedSteps(run)
	assert.EqualError(t, err, `step "test" failed after 2 attempt(s): command exited with status 3`)
}

func TestFailedStepsWithoutStepDetails(t *testing.T) {
	run := &workflow.JobRunReport{Status: workflow.StatusFailure}

	assert.EqualError(t, failedSteps(run), "run failed")
}
