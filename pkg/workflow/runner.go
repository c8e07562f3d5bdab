package workflow

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v4/process"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AgnieszkaZaba/devops-tests/pkg/logger"
	"github.com/AgnieszkaZaba/devops-tests/pkg/osutil"
	"github.com/AgnieszkaZaba/devops-tests/pkg/telemetry"
)

var tracer = telemetry.Tracer("devops-tests.workflow")

const defaultRetryDelay = 2 * time.Second

// Runner executes a plan's job runs on the host.
type Runner struct {
	jobs          int
	strictActions bool
	workdir       string
	stdout        io.Writer
	stderr        io.Writer
	retryDelay    time.Duration
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithJobs bounds how many job runs execute concurrently.
func WithJobs(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.jobs = n
		}
	}
}

// WithStrictActions makes unknown `uses` actions fail their job instead of
// being skipped with a warning.
func WithStrictActions(strict bool) RunnerOption {
	return func(r *Runner) {
		r.strictActions = strict
	}
}

// WithWorkdir sets the directory step commands run from.
func WithWorkdir(dir string) RunnerOption {
	return func(r *Runner) {
		r.workdir = dir
	}
}

// WithStepOutput redirects step stdout/stderr, mainly for tests.
func WithStepOutput(stdout, stderr io.Writer) RunnerOption {
	return func(r *Runner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithRetryDelay overrides the fixed backoff between step retries.
func WithRetryDelay(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.retryDelay = d
		}
	}
}

// NewRunner creates a runner with the given options.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		jobs:       defaultParallelism(),
		workdir:    ".",
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func defaultParallelism() int {
	n := runtime.NumCPU()
	if n > 8 {
		return 8
	}
	return n
}

type runResult struct {
	key    string
	report *JobRunReport
}

// Run executes the plan with a ready-set scheduler: a run starts once every
// run it needs has succeeded; a failure skips its dependents transitively
// and, under fail-fast, cancels the failing job's sibling runs. The returned
// report is complete even when the context is canceled mid-flight.
func (r *Runner) Run(ctx context.Context, plan *Plan) (*Report, error) {
	report := &Report{
		ID:        uuid.NewString(),
		Event:     plan.Event,
		StartedAt: time.Now(),
		Runs:      make(map[string]*JobRunReport, len(plan.Runs)),
	}

	ctx, span := tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String("run.id", report.ID),
		attribute.String("event.type", string(plan.Event.Type)),
		attribute.Int("run.count", len(plan.Runs)),
	))
	defer span.End()

	for key, run := range plan.Runs {
		report.Runs[key] = &JobRunReport{
			Key:    key,
			JobID:  run.JobID,
			RunsOn: run.Job.RunsOn,
			Matrix: run.Matrix,
			Status: StatusPending,
		}
	}

	if len(plan.Runs) == 0 {
		report.Status = StatusSuccess
		report.FinishedAt = time.Now()
		span.SetStatus(codes.Ok, "")
		return report, nil
	}

	// Per-job contexts let fail-fast cancel a matrix's running siblings
	// without touching other jobs. Per-job semaphores enforce max-parallel.
	jobCtxs := make(map[string]context.Context)
	jobCancels := make(map[string]context.CancelFunc)
	jobSems := make(map[string]chan struct{})
	for _, run := range plan.Runs {
		if _, ok := jobCtxs[run.JobID]; ok {
			continue
		}
		jobCtx, cancel := context.WithCancel(ctx)
		jobCtxs[run.JobID] = jobCtx
		jobCancels[run.JobID] = cancel
		if mp := run.Job.maxParallel(); mp > 0 {
			jobSems[run.JobID] = make(chan struct{}, mp)
		}
	}
	defer func() {
		for _, cancel := range jobCancels {
			cancel()
		}
	}()

	var g errgroup.Group
	g.SetLimit(r.jobs)
	done := make(chan runResult, len(plan.Runs))

	launch := func(key string) {
		run := plan.Runs[key]
		report.Runs[key].Status = StatusRunning
		g.Go(func() error {
			runCtx := jobCtxs[run.JobID]
			if sem := jobSems[run.JobID]; sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-runCtx.Done():
					jr := &JobRunReport{
						Key: key, JobID: run.JobID, RunsOn: run.Job.RunsOn,
						Matrix: run.Matrix, Status: StatusFailure,
					}
					done <- runResult{key: key, report: jr}
					return nil
				}
			}
			done <- runResult{key: key, report: r.executeRun(runCtx, run, plan.Env)}
			return nil
		})
	}

	sched := newScheduler(plan)
	completed := 0
	cancelDone := ctx.Done()

	for completed < len(plan.Runs) {
		for _, key := range sched.ready() {
			sched.markLaunched(key)
			launch(key)
		}

		select {
		case res := <-done:
			completed++
			report.Runs[res.key] = res.report
			skipped := sched.complete(res.key, res.report.Status)
			if res.report.Status == StatusFailure && plan.Runs[res.key].Job.failFast() {
				jobCancels[plan.Runs[res.key].JobID]()
			}
			for _, key := range skipped {
				completed++
				report.Runs[key].Status = StatusSkipped
			}
		case <-cancelDone:
			// Mark everything not yet launched as skipped; running jobs
			// will deliver failures as their processes die.
			cancelDone = nil
			for _, key := range sched.skipUnlaunched() {
				completed++
				report.Runs[key].Status = StatusSkipped
			}
		}
	}

	_ = g.Wait()

	report.Status = report.computeStatus()
	report.FinishedAt = time.Now()
	if report.Success() {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, string(report.Status))
	}
	return report, nil
}

// executeRun runs a job run's steps sequentially. A failing step aborts the
// remaining steps; they are reported skipped.
func (r *Runner) executeRun(ctx context.Context, run *JobRun, wfEnv map[string]string) *JobRunReport {
	jr := &JobRunReport{
		Key:    run.Key,
		JobID:  run.JobID,
		RunsOn: run.Job.RunsOn,
		Matrix: run.Matrix,
		Status: StatusRunning,
	}
	start := time.Now()

	ctx, span := tracer.Start(ctx, "workflow.job", trace.WithAttributes(
		attribute.String("run.key", run.Key),
		attribute.String("job.id", run.JobID),
	))
	defer span.End()

	if run.Job.TimeoutMinutes > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(run.Job.TimeoutMinutes)*time.Minute)
		defer cancel()
	}

	// workflow < job < matrix; step env merges on top per step.
	env := map[string]string{"CI": "true"}
	mergeEnv(env, wfEnv)
	mergeEnv(env, run.Job.Env)
	mergeEnv(env, run.Matrix.Env())

	log := logger.G(ctx).WithField("run", run.Key)
	log.Info("job run started")

	failed := false
	for i, step := range run.Job.Steps {
		if failed {
			jr.Steps = append(jr.Steps, &StepReport{Name: step.label(i), Status: StatusSkipped})
			continue
		}
		sr := r.executeStep(ctx, step, i, env)
		jr.Steps = append(jr.Steps, sr)
		if sr.Status == StatusFailure {
			failed = true
		}
	}

	jr.Duration = time.Since(start)
	if failed {
		jr.Status = StatusFailure
		span.SetStatus(codes.Error, "job run failed")
		log.Warn("job run failed")
	} else {
		jr.Status = StatusSuccess
		span.SetStatus(codes.Ok, "")
		log.Info("job run succeeded")
	}
	return jr
}

func (r *Runner) executeStep(ctx context.Context, step *Step, index int, jobEnv map[string]string) *StepReport {
	sr := &StepReport{Name: step.label(index), Status: StatusRunning}
	start := time.Now()

	ctx, span := tracer.Start(ctx, "workflow.step", trace.WithAttributes(
		attribute.String("step.name", sr.Name),
	))
	defer span.End()

	if step.TimeoutMinutes > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(step.TimeoutMinutes)*time.Minute)
		defer cancel()
	}

	execute := func() error {
		sr.Attempts++
		if step.Uses != "" {
			// Adapters may export variables for the following steps.
			return runAdapter(ctx, step, jobEnv, r.strictActions)
		}
		stepEnv := make(map[string]string, len(jobEnv)+len(step.Env))
		mergeEnv(stepEnv, jobEnv)
		mergeEnv(stepEnv, step.Env)
		return r.runCommand(ctx, step, stepEnv, sr)
	}

	err := retry.Do(execute,
		retry.Attempts(uint(step.Retries+1)),
		retry.Delay(r.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).WithField("step", sr.Name).WithField("attempt", n+1).Warn("retrying step")
		}),
	)

	sr.Duration = time.Since(start)
	if err != nil {
		sr.Status = StatusFailure
		sr.Error = err.Error()
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		sr.Status = StatusSuccess
		span.SetStatus(codes.Ok, "")
	}
	return sr
}

// runCommand executes a `run` step via the step shell in its own process
// group, so a timeout kills the whole tree.
func (r *Runner) runCommand(ctx context.Context, step *Step, env map[string]string, sr *StepReport) error {
	shell := step.Shell
	if shell == "" {
		shell = "sh"
	}

	cmd := exec.CommandContext(ctx, shell, "-c", step.Run)
	dir := r.workdir
	if step.WorkingDirectory != "" {
		dir = filepath.Join(r.workdir, step.WorkingDirectory)
	}
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), flattenEnv(env)...)
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr
	osutil.SetProcessGroup(cmd)
	osutil.SetProcessGroupKill(cmd)

	err := cmd.Run()
	if cmd.ProcessState != nil {
		sr.ExitCode = cmd.ProcessState.ExitCode()
	}
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		if cmd.Process != nil {
			if alive, _ := process.PidExists(int32(cmd.Process.Pid)); alive {
				logger.G(ctx).WithField("pid", cmd.Process.Pid).Warn("step process survived process group kill")
			}
		}
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return errors.New("step timed out")
		}
		return errors.New("step canceled")
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return errors.Errorf("command exited with status %d", exitErr.ExitCode())
	}
	return errors.Wrap(err, "starting step command")
}

func mergeEnv(dst, src map[string]string) {
	for k, v := range src {
		dst[k] = v
	}
}

func flattenEnv(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k + "=" + env[k]
	}
	return out
}

// scheduler tracks run states for the ready-set loop. All methods are called
// from the scheduling goroutine only.
type scheduler struct {
	plan     *Plan
	status   map[string]RunStatus
	launched map[string]bool
	keys     []string
}

func newScheduler(plan *Plan) *scheduler {
	s := &scheduler{
		plan:     plan,
		status:   make(map[string]RunStatus, len(plan.Runs)),
		launched: make(map[string]bool, len(plan.Runs)),
		keys:     plan.SortedKeys(),
	}
	for _, key := range s.keys {
		s.status[key] = StatusPending
	}
	return s
}

// ready returns the pending, unlaunched runs whose needs all succeeded,
// in run key order.
func (s *scheduler) ready() []string {
	var out []string
	for _, key := range s.keys {
		if s.status[key] != StatusPending || s.launched[key] {
			continue
		}
		satisfied := true
		for _, need := range s.plan.Runs[key].Needs {
			if s.status[need] != StatusSuccess {
				satisfied = false
				break
			}
		}
		if satisfied {
			out = append(out, key)
		}
	}
	return out
}

func (s *scheduler) markLaunched(key string) {
	s.launched[key] = true
}

// complete records a terminal state and returns the runs it doomed: under
// fail-fast the failing job's pending siblings, plus every pending run that
// transitively needs a failed or skipped run.
func (s *scheduler) complete(key string, status RunStatus) []string {
	s.status[key] = status

	var skipped []string
	if status == StatusFailure && s.plan.Runs[key].Job.failFast() {
		jobID := s.plan.Runs[key].JobID
		for _, sib := range s.keys {
			if s.plan.Runs[sib].JobID != jobID || sib == key {
				continue
			}
			if s.status[sib] == StatusPending && !s.launched[sib] {
				s.status[sib] = StatusSkipped
				skipped = append(skipped, sib)
			}
		}
	}

	skipped = append(skipped, s.cascadeSkips()...)
	return skipped
}

// skipUnlaunched marks every pending, unlaunched run skipped. Used when the
// run context is canceled.
func (s *scheduler) skipUnlaunched() []string {
	var skipped []string
	for _, key := range s.keys {
		if s.status[key] == StatusPending && !s.launched[key] {
			s.status[key] = StatusSkipped
			skipped = append(skipped, key)
		}
	}
	return skipped
}

// cascadeSkips marks runs that can no longer start because a need failed or
// was skipped, repeating until a fixpoint.
func (s *scheduler) cascadeSkips() []string {
	var skipped []string
	for changed := true; changed; {
		changed = false
		for _, key := range s.keys {
			if s.status[key] != StatusPending || s.launched[key] {
				continue
			}
			for _, need := range s.plan.Runs[key].Needs {
				if st := s.status[need]; st == StatusFailure || st == StatusSkipped {
					s.status[key] = StatusSkipped
					skipped = append(skipped, key)
					changed = true
					break
				}
			}
		}
	}
	return skipped
}
