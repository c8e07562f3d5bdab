package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportJSONRoundTrip(t *testing.T) {
	report := &Report{
		ID:         "run-1",
		Event:      Event{Type: EventPush, Branch: "main"},
		Status:     StatusFailure,
		StartedAt:  time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 4, 15, 10, 1, 30, 0, time.UTC),
		Runs: map[string]*JobRunReport{
			"lint": {
				Key:    "lint",
				JobID:  "lint",
				RunsOn: "ubuntu-latest",
				Status: StatusFailure,
				Steps: []*StepReport{
					{Name: "pylint", Status: StatusFailure, ExitCode: 2, Attempts: 1, Error: "command exited with status 2"},
				},
				Duration: 90 * time.Second,
			},
			"test (3.9)": {
				Key:    "test (3.9)",
				JobID:  "test",
				Matrix: Combination{"python-version": "3.9"},
				Status: StatusSkipped,
			},
		},
	}

	data, err := report.JSON()
	require.NoError(t, err)
	assert.Contains(t, data, `"id": "run-1"`)

	parsed, err := ParseReport(data)
	require.NoError(t, err)
	assert.Equal(t, report, parsed)
}

func TestParseReport_Invalid(t *testing.T) {
	_, err := ParseReport("{not json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding report")
}

func TestComputeStatus(t *testing.T) {
	r := &Report{Runs: map[string]*JobRunReport{
		"a": {Status: StatusSuccess},
		"b": {Status: StatusSuccess},
	}}
	assert.Equal(t, StatusSuccess, r.computeStatus())

	r.Runs["b"].Status = StatusSkipped
	assert.Equal(t, StatusFailure, r.computeStatus())

	r.Runs["b"].Status = StatusFailure
	assert.Equal(t, StatusFailure, r.computeStatus())

	// No runs at all still counts as success.
	assert.Equal(t, StatusSuccess, (&Report{}).computeStatus())
}
