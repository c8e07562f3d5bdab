package workflow

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// RunStatus is the lifecycle state of a run, job or step.
type RunStatus string

const (
	StatusPending RunStatus = "pending"
	StatusRunning RunStatus = "running"
	StatusSuccess RunStatus = "success"
	StatusFailure RunStatus = "failure"
	StatusSkipped RunStatus = "skipped"
)

// StepReport records one step's outcome within a job run.
type StepReport struct {
	Name     string        `json:"name"`
	Status   RunStatus     `json:"status"`
	ExitCode int           `json:"exitCode"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// JobRunReport records one job run's outcome.
type JobRunReport struct {
	Key      string        `json:"key"`
	JobID    string        `json:"job"`
	RunsOn   string        `json:"runsOn,omitempty"`
	Matrix   Combination   `json:"matrix,omitempty"`
	Status   RunStatus     `json:"status"`
	Steps    []*StepReport `json:"steps,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report is the full record of one workflow execution.
type Report struct {
	ID         string                   `json:"id"`
	Event      Event                    `json:"event"`
	Status     RunStatus                `json:"status"`
	StartedAt  time.Time                `json:"startedAt"`
	FinishedAt time.Time                `json:"finishedAt"`
	Runs       map[string]*JobRunReport `json:"runs"`
}

// Success reports whether every run succeeded.
func (r *Report) Success() bool {
	return r.Status == StatusSuccess
}

// JSON serializes the report for storage.
func (r *Report) JSON() (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "encoding report")
	}
	return string(data), nil
}

// ParseReport decodes a stored report.
func ParseReport(data string) (*Report, error) {
	var report Report
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, errors.Wrap(err, "decoding report")
	}
	return &report, nil
}

// computeStatus derives the overall status: success iff every run succeeded.
func (r *Report) computeStatus() RunStatus {
	for _, run := range r.Runs {
		if run.Status != StatusSuccess {
			return StatusFailure
		}
	}
	return StatusSuccess
}
