package suite

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
)

const manifestFileName = "HOOK.md"

// ExternalHook is an executable hook found on disk. Hooks live either
// as bare executables in a hook directory, or as a subdirectory holding
// an executable named "run" plus an optional HOOK.md manifest.
type ExternalHook struct {
	ID          string
	Path        string
	Description string
	// Files is the manifest's default file glob, used when the suite
	// config does not set one for this hook.
	Files string
}

// manifest is the YAML frontmatter of a HOOK.md file.
type manifest struct {
	ID          string `mapstructure:"id"`
	Description string `mapstructure:"description"`
	Files       string `mapstructure:"files"`
}

// Discovery finds external hooks in configured directories.
type Discovery struct {
	hookDirs []string
}

// DiscoveryOption is a function that configures a Discovery
type DiscoveryOption func(*Discovery) error

// WithDefaultDirs initializes with default hook directories
func WithDefaultDirs() DiscoveryOption {
	return func(d *Discovery) error {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "failed to get user home directory")
		}
		d.hookDirs = []string{
			filepath.Join(".devops-tests", "hooks"),          // Repo-local (higher precedence)
			filepath.Join(homeDir, ".devops-tests", "hooks"), // User-global
		}
		return nil
	}
}

// WithHookDirs sets custom hook directories
func WithHookDirs(dirs ...string) DiscoveryOption {
	return func(d *Discovery) error {
		d.hookDirs = dirs
		return nil
	}
}

// NewDiscovery creates a new hook discovery instance
func NewDiscovery(opts ...DiscoveryOption) (*Discovery, error) {
	d := &Discovery{}

	if len(opts) == 0 {
		if err := WithDefaultDirs()(d); err != nil {
			return nil, err
		}
	} else {
		for _, opt := range opts {
			if err := opt(d); err != nil {
				return nil, err
			}
		}
	}

	return d, nil
}

// DiscoverHooks finds all external hooks, keyed by id. Earlier
// directories take precedence when ids collide.
func (d *Discovery) DiscoverHooks() (map[string]*ExternalHook, error) {
	hooks := make(map[string]*ExternalHook)

	for _, dir := range d.hookDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrapf(err, "failed to read hook directory %s", dir)
		}

		for _, entry := range entries {
			entryPath := filepath.Join(dir, entry.Name())

			var hook *ExternalHook
			if entry.IsDir() {
				hook = loadHookDir(entryPath, entry.Name())
			} else {
				hook = loadHookFile(entryPath, entry.Name())
			}
			if hook == nil {
				continue
			}

			if _, exists := hooks[hook.ID]; !exists {
				hooks[hook.ID] = hook
			}
		}
	}

	return hooks, nil
}

// GetHook returns a specific external hook by id.
func (d *Discovery) GetHook(id string) (*ExternalHook, error) {
	hooks, err := d.DiscoverHooks()
	if err != nil {
		return nil, err
	}

	hook, exists := hooks[id]
	if !exists {
		return nil, errors.Errorf("hook '%s' not found", id)
	}
	return hook, nil
}

// loadHookFile treats a bare executable as a hook named after the file.
func loadHookFile(path, name string) *ExternalHook {
	if !isExecutable(path) {
		return nil
	}
	return &ExternalHook{ID: name, Path: path}
}

// loadHookDir loads a hook packaged as a directory with a "run"
// executable and an optional HOOK.md manifest.
func loadHookDir(dir, name string) *ExternalHook {
	runPath := filepath.Join(dir, "run")
	if !isExecutable(runPath) {
		return nil
	}

	hook := &ExternalHook{ID: name, Path: runPath}
	if m, err := loadManifest(filepath.Join(dir, manifestFileName)); err == nil {
		if m.ID != "" {
			hook.ID = m.ID
		}
		hook.Description = m.Description
		hook.Files = m.Files
	}
	return hook
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0
}

// loadManifest parses the YAML frontmatter of a HOOK.md file.
func loadManifest(path string) (*manifest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read hook manifest")
	}

	md := goldmark.New(
		goldmark.WithExtensions(meta.Meta),
	)

	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return nil, errors.Wrap(err, "failed to parse hook manifest")
	}

	metaData := meta.Get(pctx)
	if metaData == nil {
		return nil, errors.New("missing frontmatter")
	}

	m := &manifest{}
	if err := mapstructure.Decode(metaData, m); err != nil {
		return nil, errors.Wrap(err, "failed to decode hook manifest")
	}
	return m, nil
}
