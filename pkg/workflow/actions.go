package workflow

import (
	"context"
	"os/exec"
	"strings"

	"github.com/pkg/errors"

	"github.com/AgnieszkaZaba/devops-tests/pkg/logger"
)

// Adapter gives a hosted action a local equivalent. Adapters may export
// environment variables for the following steps by mutating env.
type Adapter func(ctx context.Context, step *Step, env map[string]string) error

// adapters maps action names (version suffix stripped) to their local
// implementations.
var adapters = map[string]Adapter{
	"actions/checkout":     checkoutAdapter,
	"actions/setup-python": setupPythonAdapter,
}

// lookupAdapter resolves a `uses` reference, ignoring the pinned version:
// `actions/checkout@v4` and `actions/checkout` name the same adapter.
func lookupAdapter(uses string) (Adapter, bool) {
	name := uses
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	adapter, ok := adapters[name]
	return adapter, ok
}

// checkoutAdapter is a no-op: the working tree is already on disk when the
// pipeline runs locally.
func checkoutAdapter(ctx context.Context, step *Step, env map[string]string) error {
	logger.G(ctx).Debug("checkout: using the local working tree")
	return nil
}

// setupPythonAdapter resolves a Python interpreter on the PATH and exports
// it as PYTHON. The version comes from `with: python-version:`, falling back
// to the run's MATRIX_PYTHON_VERSION axis, falling back to any python.
func setupPythonAdapter(ctx context.Context, step *Step, env map[string]string) error {
	version := step.With["python-version"]
	if version == "" {
		version = env["MATRIX_PYTHON_VERSION"]
	}

	var candidates []string
	if version != "" {
		candidates = append(candidates, "python"+version)
		if major, _, ok := strings.Cut(version, "."); ok {
			candidates = append(candidates, "python"+major)
		}
	}
	candidates = append(candidates, "python3", "python")

	for _, name := range candidates {
		path, err := exec.LookPath(name)
		if err != nil {
			continue
		}
		logger.G(ctx).WithField("python", path).Debug("setup-python: resolved interpreter")
		env["PYTHON"] = path
		return nil
	}

	if version != "" {
		return errors.Errorf("setup-python: no python %s interpreter found in PATH", version)
	}
	return errors.New("setup-python: no python interpreter found in PATH")
}

// runAdapter executes a uses step. Unknown actions are skipped with a
// warning unless strict mode makes them fail.
func runAdapter(ctx context.Context, step *Step, env map[string]string, strict bool) error {
	adapter, ok := lookupAdapter(step.Uses)
	if !ok {
		if strict {
			return errors.Errorf("no local adapter for action %q", step.Uses)
		}
		logger.G(ctx).WithField("uses", step.Uses).Warn("no local adapter for action, skipping step")
		return nil
	}
	if err := adapter(ctx, step, env); err != nil {
		return errors.Wrapf(err, "action %s", step.Uses)
	}
	return nil
}
