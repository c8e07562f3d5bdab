package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AgnieszkaZaba/devops-tests/pkg/logger"
	"github.com/AgnieszkaZaba/devops-tests/pkg/presenter"
	"github.com/AgnieszkaZaba/devops-tests/pkg/store"
	"github.com/AgnieszkaZaba/devops-tests/pkg/suite"
)

// RunOptions contains all options for the run command
type RunOptions struct {
	configPath string
	noCache    bool
	jobs       int
	fix        bool
}

var runOptions = &RunOptions{}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the configured hook suite",
	Long: `Execute every hook of the suite configuration against the repository.
Without a configuration file the builtin checks run over all notebooks.
Results of unchanged files are cached between runs.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			presenter.Warning("Cancellation requested, shutting down...")
			cancel()
		}()

		cfg, err := loadSuiteConfig(cmd, runOptions.configPath)
		if err != nil {
			presenter.Error(err, "Failed to load suite configuration")
			os.Exit(1)
		}
		applySuiteOverrides(cfg, runOptions.jobs, runOptions.fix)

		opts := []suite.RunnerOption{}
		if !runOptions.noCache {
			if st := openStore(ctx); st != nil {
				defer st.Close()
				opts = append(opts, suite.WithCache(st))
			}
		}

		summary, err := suite.NewRunner(cfg, opts...).Run(ctx)
		if err != nil {
			presenter.Error(err, "Suite run aborted")
			os.Exit(1)
		}

		presentSummary(summary)
		if summary.Failed() {
			os.Exit(1)
		}
	},
}

// loadSuiteConfig reads the configured suite file. A missing file is only an
// error when the path was given explicitly; otherwise the defaults apply.
func loadSuiteConfig(cmd *cobra.Command, path string) (*suite.Config, error) {
	cfg, err := suite.LoadConfig(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("config") {
		return suite.DefaultConfig(), nil
	}
	return nil, err
}

func applySuiteOverrides(cfg *suite.Config, jobs int, fix bool) {
	if repo := viper.GetString("repo"); repo != "" {
		cfg.Repo = repo
	}
	if owner := viper.GetString("owner"); owner != "" {
		cfg.Owner = owner
	}
	if jobs > 0 {
		cfg.Jobs = jobs
	}
	if fix {
		for i := range cfg.Hooks {
			cfg.Hooks[i].Fix = true
		}
	}
}

// openStore opens the shared database for result caching. Failures degrade
// to a cacheless run.
func openStore(ctx context.Context) *store.Store {
	path, err := store.DefaultPath()
	if err != nil {
		logger.G(ctx).WithError(err).Warn("Cannot resolve storage path, caching disabled")
		return nil
	}
	st, err := store.Open(ctx, path)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("Cannot open storage, caching disabled")
		return nil
	}
	return st
}

func presentSummary(summary *suite.Summary) {
	for _, r := range summary.Failures() {
		presenter.FileError(r.File, errors.Wrap(r.Err, r.Hook))
	}
	reformatted := summary.ReformattedFiles()
	for _, file := range reformatted {
		presenter.Reformatted(file)
	}
	presenter.Summary(len(reformatted), len(summary.UnchangedFiles()))

	if summary.Failed() {
		return
	}
	presenter.Success(fmt.Sprintf("%d results, all good", len(summary.Results)))
}

func init() {
	runCmd.Flags().StringVar(&runOptions.configPath, "config", suite.DefaultConfigFile, "Suite configuration file")
	runCmd.Flags().BoolVar(&runOptions.noCache, "no-cache", false, "Check every file even when cached as passing")
	runCmd.Flags().IntVar(&runOptions.jobs, "jobs", 0, "Per-hook worker count (default from config)")
	runCmd.Flags().BoolVar(&runOptions.fix, "fix", false, "Let hooks rewrite offending files")
	rootCmd.AddCommand(runCmd)
}
