package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/AgnieszkaZaba/devops-tests/pkg/logger"
	"github.com/AgnieszkaZaba/devops-tests/pkg/presenter"
	"github.com/AgnieszkaZaba/devops-tests/pkg/suite"
)

// WatchConfig holds configuration for the watch command
type WatchConfig struct {
	IgnoreDirs   []string
	DebounceTime int
}

// NewWatchConfig creates a new WatchConfig with default values
func NewWatchConfig() *WatchConfig {
	return &WatchConfig{
		IgnoreDirs:   []string{".git", ".ipynb_checkpoints", "node_modules"},
		DebounceTime: 500,
	}
}

// Validate validates the WatchConfig and returns an error if invalid
func (c *WatchConfig) Validate() error {
	if c.DebounceTime < 0 {
		return errors.Errorf("debounce time cannot be negative: %d", c.DebounceTime)
	}
	return nil
}

// FileEvent represents a file system event with additional metadata
type FileEvent struct {
	Path string
	Op   fsnotify.Op
	Time time.Time
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run the hook suite whenever a notebook changes",
	Long: `Continuously monitors the current directory and re-runs the configured
hook suite whenever a notebook is written or created.

By default it watches the current directory and all subdirectories,
ignoring .git, .ipynb_checkpoints and node_modules. Results of unchanged
files come from the cache, so a run after a single edit stays fast.`,
	Run: func(cmd *cobra.Command, args []string) {
		// Create a cancellable context that listens for signals
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		config := getWatchConfigFromFlags(cmd)

		// Set up signal handling
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			presenter.Warning("Cancellation requested, shutting down...")
			cancel()
		}()

		if err := config.Validate(); err != nil {
			presenter.Error(err, "Invalid configuration")
			os.Exit(1)
		}

		configPath, _ := cmd.Flags().GetString("config")
		fix, _ := cmd.Flags().GetBool("fix")
		noCache, _ := cmd.Flags().GetBool("no-cache")

		cfg, err := loadSuiteConfig(cmd, configPath)
		if err != nil {
			presenter.Error(err, "Failed to load suite configuration")
			os.Exit(1)
		}
		applySuiteOverrides(cfg, 0, fix)

		opts := []suite.RunnerOption{}
		if !noCache {
			if st := openStore(ctx); st != nil {
				defer st.Close()
				opts = append(opts, suite.WithCache(st))
			}
		}
		runner := suite.NewRunner(cfg, opts...)

		runWatchMode(ctx, runner, config)
	},
}

func init() {
	defaults := NewWatchConfig()
	watchCmd.Flags().StringSliceP("ignore", "i", defaults.IgnoreDirs, "Directories to ignore")
	watchCmd.Flags().IntP("debounce", "d", defaults.DebounceTime, "Debounce time in milliseconds for file change events")
	watchCmd.Flags().String("config", suite.DefaultConfigFile, "Suite configuration file")
	watchCmd.Flags().Bool("fix", false, "Let hooks rewrite offending files")
	watchCmd.Flags().Bool("no-cache", false, "Check every file even when cached as passing")
	rootCmd.AddCommand(watchCmd)
}

// getWatchConfigFromFlags extracts watch configuration from command flags
func getWatchConfigFromFlags(cmd *cobra.Command) *WatchConfig {
	config := NewWatchConfig()

	if ignoreDirs, err := cmd.Flags().GetStringSlice("ignore"); err == nil {
		config.IgnoreDirs = ignoreDirs
	}
	if debounceTime, err := cmd.Flags().GetInt("debounce"); err == nil {
		config.DebounceTime = debounceTime
	}

	return config
}

func runWatchMode(ctx context.Context, runner *suite.Runner, config *WatchConfig) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		presenter.Error(err, "Failed to create file watcher")
		logger.G(ctx).WithError(err).Fatal("Failed to create file watcher")
	}
	defer watcher.Close()

	events := make(chan FileEvent)
	debouncedEvents := make(chan FileEvent)

	go debounceFileEvents(ctx, events, debouncedEvents, time.Duration(config.DebounceTime)*time.Millisecond)

	// Process debounced events sequentially so suite runs never overlap
	go func() {
		for {
			select {
			case event, ok := <-debouncedEvents:
				if !ok {
					return
				}
				presenter.Info(fmt.Sprintf("Change detected: %s (%s)", event.Path, event.Op))
				logger.G(ctx).WithFields(map[string]interface{}{
					"file":      event.Path,
					"operation": event.Op.String(),
					"timestamp": event.Time,
				}).Debug("Notebook change detected")
				processNotebookChange(ctx, runner, event.Path)
			case <-ctx.Done():
				return
			}
		}
	}()

	// Watch for events
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				// Skip ignored directories
				skipEvent := false
				for _, ignoreDir := range config.IgnoreDirs {
					if strings.Contains(event.Name, ignoreDir+string(os.PathSeparator)) {
						skipEvent = true
						break
					}
				}
				if skipEvent {
					continue
				}

				// Only notebook writes and creations trigger a run
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					if !strings.HasSuffix(event.Name, ".ipynb") {
						continue
					}
					events <- FileEvent{
						Path: event.Name,
						Op:   event.Op,
						Time: time.Now(),
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				presenter.Error(err, "File watcher error")
				logger.G(ctx).WithError(err).Error("Error watching files")
			case <-ctx.Done():
				return
			}
		}
	}()

	// Add current directory and subdirectories to watcher
	err = filepath.Walk(".", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			for _, ignoreDir := range config.IgnoreDirs {
				if strings.Contains(path, ignoreDir+string(os.PathSeparator)) || path == ignoreDir {
					return filepath.SkipDir
				}
			}
			logger.G(ctx).WithField("directory", path).Debug("Adding directory to watcher")
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		presenter.Error(err, "Failed to watch directories")
		logger.G(ctx).WithError(err).Fatal("Failed to watch directories")
	}

	presenter.Info("Watching for notebook changes... Press Ctrl+C to stop")

	// Wait for context cancellation
	<-ctx.Done()
}

// Debounce file events to prevent processing multiple rapid changes to the same file
func debounceFileEvents(ctx context.Context, input <-chan FileEvent, output chan<- FileEvent, delay time.Duration) {
	var pending = make(map[string]*time.Timer)

	for {
		select {
		case event, ok := <-input:
			if !ok {
				for _, timer := range pending {
					timer.Stop()
				}
				return
			}
			// Cancel any pending timers for this file
			if timer, exists := pending[event.Path]; exists {
				timer.Stop()
				delete(pending, event.Path)
			}

			eventCopy := event
			pending[event.Path] = time.AfterFunc(delay, func() {
				select {
				case output <- eventCopy:
					delete(pending, eventCopy.Path)
				case <-ctx.Done():
					delete(pending, eventCopy.Path)
				}
			})
		case <-ctx.Done():
			for _, timer := range pending {
				timer.Stop()
			}
			return
		}
	}
}

// processNotebookChange re-runs the whole suite. The cache keeps this cheap:
// only the changed file misses, everything else is a hash lookup.
func processNotebookChange(ctx context.Context, runner *suite.Runner, path string) {
	presenter.Section(fmt.Sprintf("Re-running suite after %s", path))

	summary, err := runner.Run(ctx)
	if err != nil {
		// Keep watching; the next change gets a fresh run
		presenter.Error(err, "Suite run failed")
		logger.G(ctx).WithError(err).WithField("file", path).Error("Suite run failed")
		return
	}
	presentSummary(summary)
	presenter.Separator()
}
