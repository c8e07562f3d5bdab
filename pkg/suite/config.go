// Package suite runs a configured set of notebook hooks over a
// repository: builtin checks from pkg/checks plus external executables
// discovered on disk. It mirrors pre-commit semantics, a run fails when
// any file failed a hook or had to be rewritten.
package suite

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is where LoadConfig looks unless told otherwise.
const DefaultConfigFile = ".devops-tests.yaml"

// maxDefaultJobs caps the default worker count on large machines.
const maxDefaultJobs = 8

// Config is the hook suite configuration, usually loaded from
// .devops-tests.yaml at the repository root.
type Config struct {
	// Repo is the repository name badges and headers refer to. Defaults
	// to the base name of the git toplevel.
	Repo string `yaml:"repo" json:"repo"`
	// Owner is the GitHub owner, open-atmos unless overridden.
	Owner string `yaml:"owner,omitempty" json:"owner,omitempty"`
	// Jobs caps per-hook worker parallelism.
	Jobs  int          `yaml:"jobs,omitempty" json:"jobs,omitempty"`
	Hooks []HookConfig `yaml:"hooks" json:"hooks"`
}

// HookConfig configures one hook of the suite. ID names either a
// builtin check or a discovered external hook.
type HookConfig struct {
	ID string `yaml:"id" json:"id"`
	// Files is a doublestar glob selecting the files to check, rooted
	// at the repository.
	Files string `yaml:"files,omitempty" json:"files,omitempty"`
	// Exclude drops matched files again.
	Exclude string `yaml:"exclude,omitempty" json:"exclude,omitempty"`
	// Version pins the package version the Colab header installs.
	Version string `yaml:"version,omitempty" json:"version,omitempty"`
	// Fix lets the hook rewrite offending files.
	Fix bool `yaml:"fix,omitempty" json:"fix,omitempty"`
	// Args is passed through to external hooks.
	Args []string `yaml:"args,omitempty" json:"args,omitempty"`
}

// DefaultConfig returns the configuration used when no config file
// exists: every builtin check over all notebooks, repo name taken from
// the git toplevel.
func DefaultConfig() *Config {
	return &Config{
		Repo: DetectRepoName(),
		Jobs: defaultJobs(),
		Hooks: []HookConfig{
			{ID: "structure", Files: "**/*.ipynb"},
			{ID: "badges", Files: "**/*.ipynb"},
			{ID: "colab-header", Files: "**/*.ipynb"},
			{ID: "outputs", Files: "**/*.ipynb"},
			{ID: "execution-count", Files: "**/*.ipynb"},
			{ID: "plotting", Files: "**/*.ipynb"},
		},
	}
}

// LoadConfig reads and validates a suite configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading suite config")
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.Repo == "" {
		c.Repo = DetectRepoName()
	}
	if c.Jobs <= 0 {
		c.Jobs = defaultJobs()
	}
	if len(c.Hooks) == 0 {
		return errors.New("suite config declares no hooks")
	}
	for i := range c.Hooks {
		// Files stays empty here so an external hook's manifest glob can
		// still apply; the runner falls back to **/*.ipynb last.
		if c.Hooks[i].ID == "" {
			return errors.Errorf("hook %d has no id", i)
		}
	}
	return nil
}

// Fingerprint hashes the parts of the configuration that influence a
// hook's verdict on a file. Cached results are keyed on it so config
// edits invalidate the cache.
func (c *Config) Fingerprint(h HookConfig) string {
	payload, err := json.Marshal(struct {
		Repo  string     `json:"repo"`
		Owner string     `json:"owner"`
		Hook  HookConfig `json:"hook"`
	}{Repo: c.Repo, Owner: c.Owner, Hook: h})
	if err != nil {
		// Config structs marshal unconditionally; this is unreachable.
		panic(err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Schema returns the JSON Schema of the suite configuration for editor
// validation.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(&Config{})
}

// DetectRepoName asks git for the toplevel directory and falls back to
// the working directory's base name outside a repository.
func DetectRepoName() string {
	out, err := exec.Command("git", "rev-parse", "--show-toplevel").Output()
	if err == nil {
		if top := strings.TrimSpace(string(out)); top != "" {
			return filepath.Base(top)
		}
	}
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Base(wd)
}

func defaultJobs() int {
	jobs := runtime.NumCPU()
	if jobs > maxDefaultJobs {
		jobs = maxDefaultJobs
	}
	return jobs
}
