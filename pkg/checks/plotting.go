package checks

import (
	"context"
	"strings"

	"github.com/AgnieszkaZaba/devops-tests/pkg/notebook"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// PlottingCheck verifies that notebooks plot through the
// open-atmos-jupyter-utils wrappers instead of bare matplotlib calls,
// so figures end up as vector output that renders outside a live
// kernel.
type PlottingCheck struct{}

func (c *PlottingCheck) Name() string { return "plotting" }

func (c *PlottingCheck) Description() string {
	return "matplotlib figures and animations go through show_plot/show_anim"
}

func (c *PlottingCheck) Run(_ context.Context, nb *notebook.Notebook, _ *Context) error {
	var (
		plotUsed     bool
		showPlotUsed bool
		animUsed     bool
		showAnimUsed bool
	)

	for _, cell := range nb.Cells {
		if !cell.IsCode() {
			continue
		}
		src := cell.Source
		if strings.Contains(src, "pyplot.show(") || strings.Contains(src, "plt.show(") {
			plotUsed = true
		}
		if strings.Contains(src, "show_plot(") {
			showPlotUsed = true
		}
		if strings.Contains(src, "funcAnimation") ||
			strings.Contains(src, "matplotlib.animation") ||
			strings.Contains(src, "from matplotlib import animation") {
			animUsed = true
		}
		if strings.Contains(src, "show_anim(") {
			showAnimUsed = true
		}
	}

	var result *multierror.Error
	if plotUsed && !showPlotUsed {
		result = multierror.Append(result, errors.New("if using matplotlib, please use open_atmos_jupyter_utils.show_plot()"))
	}
	if animUsed && !showAnimUsed {
		result = multierror.Append(result, errors.New("if using matplotlib for animations, please use open_atmos_jupyter_utils.show_anim()"))
	}
	return result.ErrorOrNil()
}
