package checks

import (
	"context"

	"github.com/AgnieszkaZaba/devops-tests/pkg/notebook"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// StructureCheck verifies the basic cell layout shared by all example
// notebooks: room for the badge, description and header cells, with a
// markdown description in second place.
type StructureCheck struct{}

func (c *StructureCheck) Name() string { return "structure" }

func (c *StructureCheck) Description() string {
	return "at least three cells, with a markdown description cell second"
}

func (c *StructureCheck) Run(_ context.Context, nb *notebook.Notebook, _ *Context) error {
	var result *multierror.Error

	if len(nb.Cells) < 3 {
		result = multierror.Append(result, errors.New("Notebook should have at least 3 cells"))
	}
	if len(nb.Cells) >= 2 && !nb.Cells[1].IsMarkdown() {
		result = multierror.Append(result, errors.New("Second cell is not a markdown cell"))
	}

	return result.ErrorOrNil()
}
