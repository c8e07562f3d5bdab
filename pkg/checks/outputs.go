package checks

import (
	"context"
	"strings"

	"github.com/AgnieszkaZaba/devops-tests/pkg/notebook"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// joblibPrefix marks the one kind of stderr output tolerated in
// committed notebooks: joblib's parallel progress diagnostics.
const joblibPrefix = "[Parallel(n_jobs="

// OutputsCheck verifies that committed notebooks were actually executed
// and ran cleanly: every non-empty code cell has an execution count and
// nothing was printed to stderr.
type OutputsCheck struct{}

func (c *OutputsCheck) Name() string { return "outputs" }

func (c *OutputsCheck) Description() string {
	return "code cells were executed and produced no stderr output"
}

func (c *OutputsCheck) Run(_ context.Context, nb *notebook.Notebook, _ *Context) error {
	var result *multierror.Error

	for i, cell := range nb.Cells {
		if !cell.IsCode() {
			continue
		}
		if cell.Source != "" && cell.ExecutionCount == nil {
			result = multierror.Append(result, errors.Errorf("cell %d: Cell does not contain output!", i))
		}
		for _, output := range cell.Outputs {
			if !output.HasName() || output.Name != "stderr" {
				continue
			}
			if strings.HasPrefix(output.Text, joblibPrefix) {
				continue
			}
			result = multierror.Append(result, errors.Errorf("cell %d: stderr output: %s", i, strings.TrimRight(output.Text, "\n")))
		}
	}

	return result.ErrorOrNil()
}
