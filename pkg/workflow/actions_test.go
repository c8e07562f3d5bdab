package workflow

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupAdapter(t *testing.T) {
	_, ok := lookupAdapter("actions/checkout@v4")
	assert.True(t, ok)

	_, ok = lookupAdapter("actions/checkout")
	assert.True(t, ok)

	_, ok = lookupAdapter("actions/setup-python@v5.1.0")
	assert.True(t, ok)

	_, ok = lookupAdapter("actions/upload-artifact@v4")
	assert.False(t, ok)
}

func TestCheckoutAdapter(t *testing.T) {
	env := map[string]string{}
	err := checkoutAdapter(context.Background(), &Step{Uses: "actions/checkout@v4"}, env)
	require.NoError(t, err)
	assert.Empty(t, env)
}

// fakePython drops an executable python shim into a directory and points
// PATH at it alone.
func fakePython(t *testing.T, names ...string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("executable shims are posix only")
	}
	dir := t.TempDir()
	for _, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	}
	t.Setenv("PATH", dir)
	return dir
}

func TestSetupPythonAdapter_ExactVersion(t *testing.T) {
	dir := fakePython(t, "python3.11", "python3")

	env := map[string]string{}
	step := &Step{Uses: "actions/setup-python@v5", With: map[string]string{"python-version": "3.11"}}
	require.NoError(t, setupPythonAdapter(context.Background(), step, env))

	assert.Equal(t, filepath.Join(dir, "python3.11"), env["PYTHON"])
}

func TestSetupPythonAdapter_MajorFallback(t *testing.T) {
	dir := fakePython(t, "python3")

	env := map[string]string{}
	step := &Step{Uses: "actions/setup-python@v5", With: map[string]string{"python-version": "3.11"}}
	require.NoError(t, setupPythonAdapter(context.Background(), step, env))

	assert.Equal(t, filepath.Join(dir, "python3"), env["PYTHON"])
}

func TestSetupPythonAdapter_MatrixVersionFallback(t *testing.T) {
	dir := fakePython(t, "python3.9", "python3")

	env := map[string]string{"MATRIX_PYTHON_VERSION": "3.9"}
	step := &Step{Uses: "actions/setup-python@v5"}
	require.NoError(t, setupPythonAdapter(context.Background(), step, env))

	assert.Equal(t, filepath.Join(dir, "python3.9"), env["PYTHON"])
}

func TestSetupPythonAdapter_NoVersionUsesAnyPython(t *testing.T) {
	dir := fakePython(t, "python")

	env := map[string]string{}
	step := &Step{Uses: "actions/setup-python@v5"}
	require.NoError(t, setupPythonAdapter(context.Background(), step, env))

	assert.Equal(t, filepath.Join(dir, "python"), env["PYTHON"])
}

func TestSetupPythonAdapter_NotFound(t *testing.T) {
	fakePython(t) // empty PATH

	step := &Step{Uses: "actions/setup-python@v5", With: map[string]string{"python-version": "3.11"}}
	err := setupPythonAdapter(context.Background(), step, map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no python 3.11 interpreter found in PATH")

	err = setupPythonAdapter(context.Background(), &Step{Uses: "actions/setup-python@v5"}, map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no python interpreter found in PATH")
}

func TestRunAdapter_UnknownAction(t *testing.T) {
	ctx := context.Background()
	step := &Step{Uses: "actions/upload-artifact@v4"}

	// Lenient mode skips the step.
	assert.NoError(t, runAdapter(ctx, step, map[string]string{}, false))

	err := runAdapter(ctx, step, map[string]string{}, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no local adapter for action "actions/upload-artifact@v4"`)
}

func TestRunAdapter_WrapsAdapterError(t *testing.T) {
	fakePython(t) // empty PATH

	step := &Step{Uses: "actions/setup-python@v5"}
	err := runAdapter(context.Background(), step, map[string]string{}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "action actions/setup-python@v5")
}
