package workflow

import (
	"github.com/dominikbraun/graph"
	"github.com/gobwas/glob"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

// Validate checks the workflow's static shape: job and step requirements,
// trigger syntax and an acyclic needs graph. All problems are reported, not
// just the first.
func (w *Workflow) Validate() error {
	var merr *multierror.Error

	if len(w.Jobs) == 0 {
		merr = multierror.Append(merr, errors.New("workflow has no jobs"))
		return merr.ErrorOrNil()
	}

	for _, id := range w.jobIDs() {
		job := w.Jobs[id]
		if job == nil {
			merr = multierror.Append(merr, errors.Errorf("job %s: empty definition", id))
			continue
		}
		if job.RunsOn == "" {
			merr = multierror.Append(merr, errors.Errorf("job %s: runs-on is required", id))
		}
		for _, dep := range job.Needs {
			if _, ok := w.Jobs[dep]; !ok {
				merr = multierror.Append(merr, errors.Errorf("job %s: needs unknown job %q", id, dep))
			}
		}
		if job.Strategy != nil {
			for _, axis := range job.Strategy.Matrix.axisNames() {
				if len(job.Strategy.Matrix.axes[axis]) == 0 {
					merr = multierror.Append(merr, errors.Errorf("job %s: matrix axis %q has no values", id, axis))
				}
			}
		}
		for i, step := range job.Steps {
			if step == nil {
				merr = multierror.Append(merr, errors.Errorf("job %s step %d: empty definition", id, i+1))
				continue
			}
			hasRun, hasUses := step.Run != "", step.Uses != ""
			if hasRun == hasUses {
				merr = multierror.Append(merr, errors.Errorf("job %s step %d: exactly one of run or uses is required", id, i+1))
			}
			if step.Retries < 0 {
				merr = multierror.Append(merr, errors.Errorf("job %s step %d: retries must not be negative", id, i+1))
			}
		}
	}

	merr = multierror.Append(merr, w.validateTriggers()...)

	if err := w.validateNeedsGraph(); err != nil {
		merr = multierror.Append(merr, err)
	}

	return merr.ErrorOrNil()
}

func (w *Workflow) validateTriggers() []error {
	var errs []error

	for _, s := range w.On.Schedule {
		if _, err := cron.ParseStandard(s.Cron); err != nil {
			errs = append(errs, errors.Wrapf(err, "invalid cron expression %q", s.Cron))
		}
	}

	branchFilters := []struct {
		trigger string
		filter  *BranchFilter
	}{
		{"push", w.On.Push},
		{"pull_request", w.On.PullRequest},
	}
	for _, bf := range branchFilters {
		if bf.filter == nil {
			continue
		}
		for _, pattern := range bf.filter.Branches {
			if _, err := glob.Compile(pattern, '/'); err != nil {
				errs = append(errs, errors.Wrapf(err, "invalid %s branch pattern %q", bf.trigger, pattern))
			}
		}
	}

	return errs
}

// validateNeedsGraph inserts every needs edge into a cycle-preventing
// directed graph; the first rejected edge names the cycle.
func (w *Workflow) validateNeedsGraph() error {
	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())

	for _, id := range w.jobIDs() {
		if err := g.AddVertex(id); err != nil {
			return errors.Wrapf(err, "adding job %s to needs graph", id)
		}
	}

	for _, id := range w.jobIDs() {
		job := w.Jobs[id]
		if job == nil {
			continue
		}
		for _, dep := range job.Needs {
			err := g.AddEdge(dep, id)
			switch {
			case err == nil:
			case errors.Is(err, graph.ErrEdgeCreatesCycle):
				return errors.Errorf("dependency cycle: edge %s -> %s closes a cycle", dep, id)
			case errors.Is(err, graph.ErrEdgeAlreadyExists):
				// Duplicate needs entries are harmless.
			case errors.Is(err, graph.ErrVertexNotFound):
				// Unknown needs target, reported above.
			default:
				return errors.Wrapf(err, "adding needs edge %s -> %s", dep, id)
			}
		}
	}

	return nil
}
