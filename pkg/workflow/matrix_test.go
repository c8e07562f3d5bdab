package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatrixExpand_CartesianProduct(t *testing.T) {
	m := Matrix{axes: map[string][]string{
		"os":             {"ubuntu-latest", "macos-latest"},
		"python-version": {"3.9", "3.10"},
	}}

	combos := m.Expand()
	require.Len(t, combos, 4)

	// Axes are walked in sorted name order, values in listed order.
	assert.Equal(t, Combination{"os": "ubuntu-latest", "python-version": "3.9"}, combos[0])
	assert.Equal(t, Combination{"os": "ubuntu-latest", "python-version": "3.10"}, combos[1])
	assert.Equal(t, Combination{"os": "macos-latest", "python-version": "3.9"}, combos[2])
	assert.Equal(t, Combination{"os": "macos-latest", "python-version": "3.10"}, combos[3])
}

func TestMatrixExpand_NoAxes(t *testing.T) {
	combos := Matrix{}.Expand()
	require.Len(t, combos, 1)
	assert.Empty(t, combos[0])
}

func TestMatrixExpand_Exclude(t *testing.T) {
	m := Matrix{
		axes: map[string][]string{
			"os":             {"ubuntu-latest", "macos-latest"},
			"python-version": {"3.9", "3.10"},
		},
		Exclude: []map[string]string{
			{"os": "macos-latest", "python-version": "3.9"},
		},
	}

	combos := m.Expand()
	require.Len(t, combos, 3)
	for _, combo := range combos {
		assert.False(t, combo["os"] == "macos-latest" && combo["python-version"] == "3.9")
	}
}

func TestMatrixExpand_ExcludeSubsetMatch(t *testing.T) {
	m := Matrix{
		axes: map[string][]string{
			"os":             {"ubuntu-latest", "macos-latest"},
			"python-version": {"3.9", "3.10"},
		},
		// A partial entry removes every combination it is a subset of.
		Exclude: []map[string]string{{"os": "macos-latest"}},
	}

	combos := m.Expand()
	require.Len(t, combos, 2)
	for _, combo := range combos {
		assert.Equal(t, "ubuntu-latest", combo["os"])
	}
}

func TestMatrixExpand_ExcludeEverything(t *testing.T) {
	m := Matrix{
		axes:    map[string][]string{"os": {"ubuntu-latest"}},
		Exclude: []map[string]string{{"os": "ubuntu-latest"}},
	}

	assert.Empty(t, m.Expand())
}

func TestMatrixExpand_IncludeAppends(t *testing.T) {
	m := Matrix{
		axes: map[string][]string{"python-version": {"3.9"}},
		Include: []map[string]string{
			{"python-version": "3.12"},
		},
	}

	combos := m.Expand()
	require.Len(t, combos, 2)
	assert.Equal(t, Combination{"python-version": "3.9"}, combos[0])
	assert.Equal(t, Combination{"python-version": "3.12"}, combos[1])
}

func TestMatrixExpand_IncludeDeduplicates(t *testing.T) {
	m := Matrix{
		axes: map[string][]string{"python-version": {"3.9"}},
		Include: []map[string]string{
			{"python-version": "3.9"},
		},
	}

	assert.Len(t, m.Expand(), 1)
}

func TestMatrixExpand_IncludeRestoresExcluded(t *testing.T) {
	m := Matrix{
		axes:    map[string][]string{"os": {"ubuntu-latest", "macos-latest"}},
		Exclude: []map[string]string{{"os": "macos-latest"}},
		Include: []map[string]string{{"os": "macos-latest"}},
	}

	combos := m.Expand()
	require.Len(t, combos, 2)
	assert.Equal(t, Combination{"os": "macos-latest"}, combos[1])
}

func TestCombinationKey(t *testing.T) {
	assert.Equal(t, "", Combination{}.Key())
	assert.Equal(t, "3.9", Combination{"python-version": "3.9"}.Key())
	// Values are ordered by axis name, not insertion.
	assert.Equal(t, "ubuntu-latest, 3.9",
		Combination{"python-version": "3.9", "os": "ubuntu-latest"}.Key())
}

func TestCombinationEnv(t *testing.T) {
	env := Combination{"os": "ubuntu-latest", "python-version": "3.10"}.Env()

	assert.Equal(t, map[string]string{
		"MATRIX_OS":             "ubuntu-latest",
		"MATRIX_PYTHON_VERSION": "3.10",
	}, env)
}

func TestRunKey(t *testing.T) {
	assert.Equal(t, "pylint", runKey("pylint", Combination{}))
	assert.Equal(t, "selftest (ubuntu-latest, 3.9)",
		runKey("selftest", Combination{"os": "ubuntu-latest", "python-version": "3.9"}))
}
