package checks

import (
	"context"

	"github.com/AgnieszkaZaba/devops-tests/pkg/notebook"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// ExecutionCountCheck verifies that every code cell carries the
// execution_count key at all. Some IDEs strip the key when saving,
// which produces files other Jupyter tooling refuses to read; JetBrains
// tracks this as PY-66491.
type ExecutionCountCheck struct{}

func (c *ExecutionCountCheck) Name() string { return "execution-count" }

func (c *ExecutionCountCheck) Description() string {
	return "every code cell keeps its execution_count attribute"
}

func (c *ExecutionCountCheck) Run(_ context.Context, nb *notebook.Notebook, _ *Context) error {
	var result *multierror.Error

	for i, cell := range nb.Cells {
		if cell.IsCode() && !cell.HasExecutionCount() {
			result = multierror.Append(result, errors.Errorf("cell %d: Notebook cell missing execution_count attribute", i))
		}
	}

	return result.ErrorOrNil()
}
