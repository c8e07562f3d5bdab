package suite

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
repo: PySDM
owner: open-atmos
jobs: 2
hooks:
  - id: badges
    files: "examples/**/*.ipynb"
    exclude: "**/.ipynb_checkpoints/**"
  - id: colab-header
    files: "examples/**/*.ipynb"
    fix: true
    version: ">=2.31"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "PySDM", cfg.Repo)
	assert.Equal(t, "open-atmos", cfg.Owner)
	assert.Equal(t, 2, cfg.Jobs)
	require.Len(t, cfg.Hooks, 2)
	assert.Equal(t, "badges", cfg.Hooks[0].ID)
	assert.Equal(t, "**/.ipynb_checkpoints/**", cfg.Hooks[0].Exclude)
	assert.True(t, cfg.Hooks[1].Fix)
	assert.Equal(t, ">=2.31", cfg.Hooks[1].Version)
}

func TestLoadConfigDefaultsJobs(t *testing.T) {
	path := writeConfig(t, `
repo: PySDM
hooks:
  - id: badges
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Greater(t, cfg.Jobs, 0)
	assert.LessOrEqual(t, cfg.Jobs, maxDefaultJobs)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "no hooks",
			content: "repo: PySDM\n",
			want:    "declares no hooks",
		},
		{
			name:    "hook without id",
			content: "repo: PySDM\nhooks:\n  - files: '**/*.ipynb'\n",
			want:    "hook 0 has no id",
		},
		{
			name:    "bad yaml",
			content: "hooks: [}",
			want:    "parsing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading suite config")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.NotEmpty(t, cfg.Repo)
	assert.Greater(t, cfg.Jobs, 0)
	require.NotEmpty(t, cfg.Hooks)
	for _, h := range cfg.Hooks {
		assert.NotEmpty(t, h.ID)
	}
}

func TestFingerprint(t *testing.T) {
	cfg := &Config{Repo: "PySDM", Owner: "open-atmos"}
	hook := HookConfig{ID: "colab-header", Files: "**/*.ipynb"}

	base := cfg.Fingerprint(hook)
	assert.Equal(t, base, cfg.Fingerprint(hook), "fingerprint is stable")

	pinned := hook
	pinned.Version = ">=2.31"
	assert.NotEqual(t, base, cfg.Fingerprint(pinned), "hook config changes the fingerprint")

	other := &Config{Repo: "PyMPDATA", Owner: "open-atmos"}
	assert.NotEqual(t, base, other.Fingerprint(hook), "repo changes the fingerprint")
}

func TestSchema(t *testing.T) {
	schema := Schema()
	require.NotNil(t, schema)

	data, err := json.Marshal(schema)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"hooks"`)
	assert.Contains(t, string(data), `"repo"`)
}
