package suite

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/AgnieszkaZaba/devops-tests/pkg/checks"
	"github.com/AgnieszkaZaba/devops-tests/pkg/logger"
	"github.com/AgnieszkaZaba/devops-tests/pkg/notebook"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Cache remembers (hook, file) pairs that passed so unchanged files are
// skipped on the next run. Implementations must never report a hit when
// either the file hash or the config fingerprint moved.
type Cache interface {
	// CacheGet returns the stored hashes for a pair, empty strings on a
	// miss.
	CacheGet(ctx context.Context, hookID, file string) (fileHash, configHash string, err error)
	CachePut(ctx context.Context, hookID, file, fileHash, configHash string) error
}

// Runner executes the configured hook suite against a repository.
type Runner struct {
	config    *Config
	root      string
	cache     Cache
	executor  *Executor
	discovery *Discovery
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRoot sets the repository root the file globs are resolved
// against. Defaults to the working directory.
func WithRoot(root string) RunnerOption {
	return func(r *Runner) { r.root = root }
}

// WithCache enables result caching.
func WithCache(c Cache) RunnerOption {
	return func(r *Runner) { r.cache = c }
}

// WithExecutor overrides the external hook executor.
func WithExecutor(e *Executor) RunnerOption {
	return func(r *Runner) { r.executor = e }
}

// WithDiscovery overrides external hook discovery.
func WithDiscovery(d *Discovery) RunnerOption {
	return func(r *Runner) { r.discovery = d }
}

// NewRunner creates a runner for the given configuration.
func NewRunner(cfg *Config, opts ...RunnerOption) *Runner {
	r := &Runner{
		config: cfg,
		root:   ".",
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.executor == nil {
		r.executor = NewExecutor(0)
	}
	if r.executor.Dir == "" {
		r.executor.Dir = r.root
	}
	return r
}

// Run executes every hook in declaration order and returns the
// collected results. Hook ids must resolve to a builtin check or a
// discovered executable before anything runs.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	external, err := r.resolveExternal()
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	for _, h := range r.config.Hooks {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		files, err := r.matchFiles(h, external[h.ID])
		if err != nil {
			return nil, err
		}
		log := logger.G(ctx).WithField("hook", h.ID).WithField("files", len(files))
		if len(files) == 0 {
			log.Debug("no files matched")
			continue
		}
		log.Debug("running hook")

		var results []Result
		if check, ok := checks.Lookup(h.ID); ok {
			results, err = r.runBuiltin(ctx, check, h, files)
			if err != nil {
				return summary, err
			}
		} else {
			results = r.runExternal(ctx, external[h.ID], h, files)
		}
		summary.Results = append(summary.Results, results...)
	}

	return summary, nil
}

// resolveExternal maps every non-builtin hook id to a discovered
// executable, failing up front when an id resolves to nothing.
func (r *Runner) resolveExternal() (map[string]*ExternalHook, error) {
	var needed []string
	for _, h := range r.config.Hooks {
		if _, ok := checks.Lookup(h.ID); !ok {
			needed = append(needed, h.ID)
		}
	}

	external := make(map[string]*ExternalHook)
	if len(needed) == 0 {
		return external, nil
	}

	discovery := r.discovery
	if discovery == nil {
		var err error
		discovery, err = NewDiscovery()
		if err != nil {
			return nil, err
		}
	}
	discovered, err := discovery.DiscoverHooks()
	if err != nil {
		return nil, err
	}

	for _, id := range needed {
		hook, ok := discovered[id]
		if !ok {
			return nil, errors.Errorf("unknown hook %q: not a builtin check and no executable found", id)
		}
		external[id] = hook
	}
	return external, nil
}

// matchFiles resolves a hook's file set: the configured glob, falling
// back to the external hook's manifest default, then to all notebooks.
func (r *Runner) matchFiles(h HookConfig, ext *ExternalHook) ([]string, error) {
	pattern := h.Files
	if pattern == "" && ext != nil {
		pattern = ext.Files
	}
	if pattern == "" {
		pattern = "**/*.ipynb"
	}

	matches, err := doublestar.Glob(os.DirFS(r.root), pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "bad files pattern %q", pattern)
	}

	if h.Exclude != "" {
		exclude, err := glob.Compile(h.Exclude, '/')
		if err != nil {
			return nil, errors.Wrapf(err, "bad exclude pattern %q", h.Exclude)
		}
		kept := matches[:0]
		for _, m := range matches {
			if !exclude.Match(m) {
				kept = append(kept, m)
			}
		}
		matches = kept
	}

	sort.Strings(matches)
	return matches, nil
}

// runBuiltin fans the files of one builtin check out over a worker
// pool. Results land at their file's index, so output order stays
// deterministic regardless of completion order.
func (r *Runner) runBuiltin(ctx context.Context, check checks.Check, h HookConfig, files []string) ([]Result, error) {
	fingerprint := r.config.Fingerprint(h)
	results := make([]Result, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Jobs)
	for i, file := range files {
		g.Go(func() error {
			if gctx.Err() != nil {
				results[i] = Result{Hook: h.ID, File: file, Status: StatusSkipped}
				return nil
			}
			results[i] = r.checkFile(gctx, check, h, fingerprint, file)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

// checkFile applies one builtin check to one file, consulting and
// feeding the cache.
func (r *Runner) checkFile(ctx context.Context, check checks.Check, h HookConfig, fingerprint, file string) Result {
	start := time.Now()
	res := Result{Hook: h.ID, File: file}
	finish := func() Result {
		res.Duration = time.Since(start)
		return res
	}
	fail := func(err error) Result {
		res.Status = StatusFail
		res.Err = err
		return finish()
	}

	fullPath := filepath.Join(r.root, file)
	fileHash, err := hashFile(fullPath)
	if err != nil {
		return fail(err)
	}

	if r.cache != nil {
		cachedFile, cachedConfig, err := r.cache.CacheGet(ctx, h.ID, file)
		if err != nil {
			logger.G(ctx).WithError(err).WithField("file", file).Warn("cache lookup failed")
		} else if cachedFile == fileHash && cachedConfig == fingerprint {
			res.Status = StatusCached
			return finish()
		}
	}

	nb, err := notebook.Read(fullPath)
	if err != nil {
		return fail(err)
	}

	cc := &checks.Context{
		RepoName:      r.config.Repo,
		RepoOwner:     r.config.Owner,
		Path:          file,
		PinnedVersion: h.Version,
		Fix:           h.Fix,
	}

	modified := false
	if h.Fix {
		if fixer, ok := check.(checks.Fixer); ok {
			modified, err = fixer.FixUp(ctx, nb, cc)
			if err != nil {
				return fail(err)
			}
			if modified {
				if err := nb.Write(fullPath); err != nil {
					return fail(err)
				}
				res.Reformatted = true
			}
		}
	}

	if err := check.Run(ctx, nb, cc); err != nil {
		return fail(err)
	}

	if modified {
		res.Status = StatusFixed
		return finish()
	}

	res.Status = StatusPass
	if r.cache != nil {
		if err := r.cache.CachePut(ctx, h.ID, file, fileHash, fingerprint); err != nil {
			logger.G(ctx).WithError(err).WithField("file", file).Warn("cache store failed")
		}
	}
	return finish()
}

// runExternal executes an external hook once over its pending files.
// The hook sees every non-cached file in one payload; a non-zero exit
// fails them all.
func (r *Runner) runExternal(ctx context.Context, hook *ExternalHook, h HookConfig, files []string) []Result {
	fingerprint := r.config.Fingerprint(h)

	hashes := make(map[string]string, len(files))
	cached := make(map[string]bool)
	var pending []string
	for _, file := range files {
		hash, err := hashFile(filepath.Join(r.root, file))
		if err == nil {
			hashes[file] = hash
			if r.cache != nil {
				cachedFile, cachedConfig, cerr := r.cache.CacheGet(ctx, h.ID, file)
				if cerr == nil && cachedFile == hash && cachedConfig == fingerprint {
					cached[file] = true
					continue
				}
			}
		}
		pending = append(pending, file)
	}

	start := time.Now()
	var execErr error
	if len(pending) > 0 {
		execErr = r.executor.Execute(ctx, hook, h.Args, Payload{
			Hook:  h.ID,
			Repo:  r.config.Repo,
			Owner: r.config.Owner,
			Fix:   h.Fix,
			Files: pending,
		})
	}
	duration := time.Since(start)

	results := make([]Result, 0, len(files))
	for _, file := range files {
		res := Result{Hook: h.ID, File: file, Duration: duration}
		switch {
		case cached[file]:
			res.Status = StatusCached
			res.Duration = 0
		case execErr != nil:
			res.Status = StatusFail
			res.Err = execErr
		default:
			res.Status = StatusPass
			if h.Fix {
				// A fixing hook may have rewritten the file underneath us.
				if newHash, err := hashFile(filepath.Join(r.root, file)); err == nil && newHash != hashes[file] {
					res.Status = StatusFixed
					res.Reformatted = true
				}
			}
			if res.Status == StatusPass && r.cache != nil && hashes[file] != "" {
				if err := r.cache.CachePut(ctx, h.ID, file, hashes[file], fingerprint); err != nil {
					logger.G(ctx).WithError(err).WithField("file", file).Warn("cache store failed")
				}
			}
		}
		results = append(results, res)
	}
	return results
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "hashing file")
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrap(err, "hashing file")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
