package workflow

import (
	"bytes"
	"sort"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
	"github.com/pkg/errors"
)

// JobRun is one scheduled expansion of a job: the job itself plus the matrix
// combination it runs under and the run keys it waits for.
type JobRun struct {
	Key    string
	JobID  string
	Job    *Job
	Matrix Combination
	Needs  []string
}

// Plan is the executable shape of a workflow for one event: every job run,
// their dependency graph and its topological levels. Env carries the
// workflow-level environment into execution.
type Plan struct {
	Event  Event
	Env    map[string]string
	Runs   map[string]*JobRun
	Levels [][]string

	g graph.Graph[string, string]
}

// BuildPlan selects the jobs the event triggers and expands them into job
// runs. The planner does no I/O; an event that triggers nothing yields an
// empty plan.
func BuildPlan(wf *Workflow, ev Event) (*Plan, error) {
	plan := &Plan{
		Event: ev,
		Env:   wf.Env,
		Runs:  make(map[string]*JobRun),
		g:     graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles()),
	}

	if !wf.Triggers(ev) {
		return plan, nil
	}

	// Expand matrices first so needs edges can fan out to every expansion
	// of the needed job.
	expansions := make(map[string][]string, len(wf.Jobs))
	for _, jobID := range wf.jobIDs() {
		job := wf.Jobs[jobID]
		var m Matrix
		if job.Strategy != nil {
			m = job.Strategy.Matrix
		}
		for _, combo := range m.Expand() {
			key := runKey(jobID, combo)
			if _, exists := plan.Runs[key]; exists {
				return nil, errors.Errorf("duplicate job run %q", key)
			}
			plan.Runs[key] = &JobRun{
				Key:    key,
				JobID:  jobID,
				Job:    job,
				Matrix: combo,
			}
			expansions[jobID] = append(expansions[jobID], key)
		}
	}

	for _, jobID := range wf.jobIDs() {
		job := wf.Jobs[jobID]
		var needs []string
		for _, dep := range job.Needs {
			if _, ok := wf.Jobs[dep]; !ok {
				return nil, errors.Errorf("job %s needs unknown job %q", jobID, dep)
			}
			// A dependency whose matrix expanded to zero runs is satisfied.
			needs = append(needs, expansions[dep]...)
		}
		sort.Strings(needs)
		for _, key := range expansions[jobID] {
			plan.Runs[key].Needs = needs
		}
	}

	if err := plan.buildGraph(); err != nil {
		return nil, err
	}
	levels, err := plan.level()
	if err != nil {
		return nil, err
	}
	plan.Levels = levels

	return plan, nil
}

func (p *Plan) buildGraph() error {
	for _, key := range p.SortedKeys() {
		if err := p.g.AddVertex(key); err != nil {
			return errors.Wrapf(err, "adding run %q to plan graph", key)
		}
	}
	for _, key := range p.SortedKeys() {
		for _, dep := range p.Runs[key].Needs {
			err := p.g.AddEdge(dep, key)
			switch {
			case err == nil:
			case errors.Is(err, graph.ErrEdgeAlreadyExists):
			case errors.Is(err, graph.ErrEdgeCreatesCycle):
				return errors.Errorf("dependency cycle: edge %s -> %s closes a cycle", dep, key)
			default:
				return errors.Wrapf(err, "adding plan edge %s -> %s", dep, key)
			}
		}
	}
	return nil
}

// level groups run keys into topological levels: everything in level n only
// needs runs from earlier levels. Keys within a level are sorted.
func (p *Plan) level() ([][]string, error) {
	predecessors, err := p.g.PredecessorMap()
	if err != nil {
		return nil, errors.Wrap(err, "computing predecessor map")
	}
	successors, err := p.g.AdjacencyMap()
	if err != nil {
		return nil, errors.Wrap(err, "computing adjacency map")
	}

	indegree := make(map[string]int, len(predecessors))
	for key, preds := range predecessors {
		indegree[key] = len(preds)
	}

	var levels [][]string
	remaining := len(indegree)
	for remaining > 0 {
		var level []string
		for key, deg := range indegree {
			if deg == 0 {
				level = append(level, key)
			}
		}
		if len(level) == 0 {
			return nil, errors.New("plan graph has a cycle")
		}
		sort.Strings(level)
		for _, key := range level {
			delete(indegree, key)
			for succ := range successors[key] {
				indegree[succ]--
			}
		}
		remaining -= len(level)
		levels = append(levels, level)
	}

	return levels, nil
}

// SortedKeys returns every run key in lexical order.
func (p *Plan) SortedKeys() []string {
	keys := make([]string, 0, len(p.Runs))
	for key := range p.Runs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// DOT renders the plan graph in Graphviz syntax.
func (p *Plan) DOT() (string, error) {
	var buf bytes.Buffer
	if err := draw.DOT(p.g, &buf); err != nil {
		return "", errors.Wrap(err, "rendering plan graph")
	}
	return buf.String(), nil
}
