// Package checks provides the builtin notebook hygiene checks: badge
// cells, notebook structure, the Colab bootstrap header, output
// cleanliness, execution-count integrity and plotting-helper usage.
// Each check validates a parsed notebook; checks that also implement
// Fixer can rewrite the notebook in place.
package checks

import (
	"context"
	"sort"

	"github.com/AgnieszkaZaba/devops-tests/pkg/notebook"
	"github.com/pkg/errors"
)

// DefaultOwner is the GitHub owner badges and headers point at unless
// the configuration overrides it.
const DefaultOwner = "open-atmos"

// Context carries the per-notebook settings a check needs beyond the
// notebook itself.
type Context struct {
	// RepoName is the repository the notebook lives in, e.g. "PySDM".
	RepoName string
	// RepoOwner is the GitHub owner, "open-atmos" unless overridden.
	RepoOwner string
	// Path is the notebook path relative to the repository root. Badge
	// links embed it verbatim.
	Path string
	// PinnedVersion is an optional version constraint for the packages
	// installed by the Colab header, e.g. ">=2.31". A version already
	// present in the notebook wins over it.
	PinnedVersion string
	// Fix allows checks implementing Fixer to modify the notebook.
	Fix bool
}

// Owner returns the configured repo owner, falling back to DefaultOwner.
func (cc *Context) Owner() string {
	if cc.RepoOwner == "" {
		return DefaultOwner
	}
	return cc.RepoOwner
}

// Check validates one aspect of a notebook. Run returns nil when the
// notebook passes; multiple violations come back joined in a
// multierror.
type Check interface {
	Name() string
	Description() string
	Run(ctx context.Context, nb *notebook.Notebook, cc *Context) error
}

// Fixer is implemented by checks that can repair the violations they
// detect. FixUp reports whether the notebook was modified; the caller
// is responsible for writing it back.
type Fixer interface {
	Check
	FixUp(ctx context.Context, nb *notebook.Notebook, cc *Context) (bool, error)
}

// builtins holds all builtin checks mapped by their names
var builtins = map[string]Check{
	"badges":          &BadgesCheck{},
	"structure":       &StructureCheck{},
	"colab-header":    &ColabHeaderCheck{},
	"outputs":         &OutputsCheck{},
	"execution-count": &ExecutionCountCheck{},
	"plotting":        &PlottingCheck{},
}

// Lookup returns the builtin check with the given name.
func Lookup(name string) (Check, bool) {
	c, ok := builtins[name]
	return c, ok
}

// All returns every builtin check sorted by name.
func All() []Check {
	out := make([]Check, 0, len(builtins))
	for _, c := range builtins {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Names returns the sorted names of all builtin checks.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateNames rejects check names that no builtin answers to.
func ValidateNames(names []string) error {
	for _, name := range names {
		if _, ok := builtins[name]; !ok {
			return errors.Errorf("unknown check: %s", name)
		}
	}
	return nil
}
