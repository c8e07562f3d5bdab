// Package workflow parses, validates, plans and executes the repository's CI
// pipeline definition locally. The same job graph an external CI service
// would run (lint, hook suite, matrix self tests) gets executable semantics
// on the developer's machine: triggers select jobs, matrices expand into
// runs, needs edges order them and steps shell out on the host.
package workflow

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Workflow is a parsed pipeline definition.
type Workflow struct {
	Name string            `yaml:"name" json:"name,omitempty"`
	On   Triggers          `yaml:"on" json:"on"`
	Env  map[string]string `yaml:"env" json:"env,omitempty"`
	Jobs map[string]*Job   `yaml:"jobs" json:"jobs"`
}

// Triggers declares which events start the pipeline.
type Triggers struct {
	Push        *BranchFilter  `yaml:"push" json:"push,omitempty"`
	PullRequest *BranchFilter  `yaml:"pull_request" json:"pull_request,omitempty"`
	Schedule    []Schedule     `yaml:"schedule" json:"schedule,omitempty"`
	Release     *ReleaseFilter `yaml:"release" json:"release,omitempty"`
}

// BranchFilter restricts push/pull_request triggers to matching branches.
// Patterns are path-style globs; an empty list matches every branch.
type BranchFilter struct {
	Branches []string `yaml:"branches" json:"branches,omitempty"`
}

// Schedule is a cron trigger in standard 5-field syntax.
type Schedule struct {
	Cron string `yaml:"cron" json:"cron"`
}

// ReleaseFilter restricts release triggers to the listed actions.
// An empty list means published only.
type ReleaseFilter struct {
	Types []string `yaml:"types" json:"types,omitempty"`
}

// Job is a named unit of the pipeline: a step sequence, its dependencies and
// an optional matrix strategy.
type Job struct {
	Name           string            `yaml:"name" json:"name,omitempty"`
	RunsOn         string            `yaml:"runs-on" json:"runs-on"`
	Needs          Needs             `yaml:"needs" json:"needs,omitempty"`
	Env            map[string]string `yaml:"env" json:"env,omitempty"`
	TimeoutMinutes int               `yaml:"timeout-minutes" json:"timeout-minutes,omitempty"`
	Strategy       *Strategy         `yaml:"strategy" json:"strategy,omitempty"`
	Steps          []*Step           `yaml:"steps" json:"steps"`
}

// failFast reports whether a failing matrix run cancels its siblings.
// Defaults to true when unset.
func (j *Job) failFast() bool {
	if j.Strategy == nil || j.Strategy.FailFast == nil {
		return true
	}
	return *j.Strategy.FailFast
}

// maxParallel returns the job's sibling-concurrency bound, 0 for unbounded.
func (j *Job) maxParallel() int {
	if j.Strategy == nil {
		return 0
	}
	return j.Strategy.MaxParallel
}

// Needs lists the jobs that must succeed before a job starts. The YAML form
// is either a single job name or a list of them.
type Needs []string

// UnmarshalYAML accepts both `needs: pylint` and `needs: [pylint, precommit]`.
func (n *Needs) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var name string
		if err := value.Decode(&name); err != nil {
			return err
		}
		*n = Needs{name}
		return nil
	case yaml.SequenceNode:
		var names []string
		if err := value.Decode(&names); err != nil {
			return err
		}
		*n = Needs(names)
		return nil
	default:
		return errors.Errorf("needs must be a job name or a list of job names (line %d)", value.Line)
	}
}

// Strategy controls how a job's matrix expands and executes.
type Strategy struct {
	FailFast    *bool  `yaml:"fail-fast" json:"fail-fast,omitempty"`
	MaxParallel int    `yaml:"max-parallel" json:"max-parallel,omitempty"`
	Matrix      Matrix `yaml:"matrix" json:"matrix,omitempty"`
}

// Matrix expands a job across the cartesian product of its axes. The include
// list appends extra combinations; the exclude list removes matching ones.
type Matrix struct {
	axes    map[string][]string
	Include []map[string]string
	Exclude []map[string]string
}

// UnmarshalYAML reads the axis lists by scalar source text so values like
// 3.10 keep their spelling instead of collapsing through a float.
func (m *Matrix) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return errors.Errorf("matrix must be a mapping (line %d)", value.Line)
	}

	m.axes = make(map[string][]string)
	for i := 0; i < len(value.Content); i += 2 {
		keyNode, valNode := value.Content[i], value.Content[i+1]
		switch keyNode.Value {
		case "include":
			entries, err := scalarMaps(valNode)
			if err != nil {
				return errors.Wrap(err, "decoding matrix include")
			}
			m.Include = entries
		case "exclude":
			entries, err := scalarMaps(valNode)
			if err != nil {
				return errors.Wrap(err, "decoding matrix exclude")
			}
			m.Exclude = entries
		default:
			values, err := scalarList(valNode)
			if err != nil {
				return errors.Wrapf(err, "decoding matrix axis %q", keyNode.Value)
			}
			m.axes[keyNode.Value] = values
		}
	}
	return nil
}

// IsZero reports whether the matrix declares nothing at all.
func (m Matrix) IsZero() bool {
	return len(m.axes) == 0 && len(m.Include) == 0 && len(m.Exclude) == 0
}

// Axes returns a copy of the axis values keyed by axis name.
func (m Matrix) Axes() map[string][]string {
	out := make(map[string][]string, len(m.axes))
	for name, values := range m.axes {
		out[name] = append([]string(nil), values...)
	}
	return out
}

func (m Matrix) axisNames() []string {
	names := make([]string, 0, len(m.axes))
	for name := range m.axes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func scalarList(node *yaml.Node) ([]string, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return []string{node.Value}, nil
	case yaml.SequenceNode:
		values := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, errors.Errorf("expected a scalar value (line %d)", item.Line)
			}
			values = append(values, item.Value)
		}
		return values, nil
	default:
		return nil, errors.Errorf("expected a value or a list of values (line %d)", node.Line)
	}
}

func scalarMaps(node *yaml.Node) ([]map[string]string, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, errors.Errorf("expected a list of mappings (line %d)", node.Line)
	}
	out := make([]map[string]string, 0, len(node.Content))
	for _, item := range node.Content {
		if item.Kind != yaml.MappingNode {
			return nil, errors.Errorf("expected a mapping (line %d)", item.Line)
		}
		entry := make(map[string]string, len(item.Content)/2)
		for i := 0; i < len(item.Content); i += 2 {
			keyNode, valNode := item.Content[i], item.Content[i+1]
			if valNode.Kind != yaml.ScalarNode {
				return nil, errors.Errorf("expected a scalar value (line %d)", valNode.Line)
			}
			entry[keyNode.Value] = valNode.Value
		}
		out = append(out, entry)
	}
	return out, nil
}

// Step is a single job action: either a local shell command (`run`) or a
// hosted action reference (`uses`) resolved by the adapter registry.
type Step struct {
	ID               string            `yaml:"id" json:"id,omitempty"`
	Name             string            `yaml:"name" json:"name,omitempty"`
	Uses             string            `yaml:"uses" json:"uses,omitempty"`
	Run              string            `yaml:"run" json:"run,omitempty"`
	Shell            string            `yaml:"shell" json:"shell,omitempty"`
	WorkingDirectory string            `yaml:"working-directory" json:"working-directory,omitempty"`
	Env              map[string]string `yaml:"env" json:"env,omitempty"`
	With             map[string]string `yaml:"with" json:"with,omitempty"`
	TimeoutMinutes   int               `yaml:"timeout-minutes" json:"timeout-minutes,omitempty"`
	Retries          int               `yaml:"retries" json:"retries,omitempty"`
}

// label names a step for reports and logs.
func (s *Step) label(index int) string {
	if s.Name != "" {
		return s.Name
	}
	if s.ID != "" {
		return s.ID
	}
	if s.Uses != "" {
		return s.Uses
	}
	return fmt.Sprintf("step %d", index+1)
}

// Load reads and parses a workflow file.
func Load(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading workflow %s", path)
	}
	wf, err := ParseWorkflow(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return wf, nil
}

// ParseWorkflow decodes a workflow definition, rejecting unknown fields.
func ParseWorkflow(data []byte) (*Workflow, error) {
	var wf Workflow
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&wf); err != nil {
		return nil, errors.Wrap(err, "decoding workflow YAML")
	}
	return &wf, nil
}

// jobIDs returns the workflow's job names in sorted order.
func (w *Workflow) jobIDs() []string {
	ids := make([]string, 0, len(w.Jobs))
	for id := range w.Jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
