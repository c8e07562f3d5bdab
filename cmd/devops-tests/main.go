package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AgnieszkaZaba/devops-tests/pkg/logger"
	"github.com/AgnieszkaZaba/devops-tests/pkg/presenter"
	"github.com/AgnieszkaZaba/devops-tests/pkg/store"
	"github.com/AgnieszkaZaba/devops-tests/pkg/store/migrations"
)

func init() {
	// Environment variables
	viper.SetEnvPrefix("DEVOPS_TESTS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	// Config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.devops-tests")
	viper.AddConfigPath(".")
}

var rootCmd = &cobra.Command{
	Use:   "devops-tests",
	Short: "Notebook hygiene checks and a local CI pipeline runner",
	Long: `devops-tests keeps Jupyter notebooks in a publishable state (badges,
structure, Colab headers, stripped outputs) and executes the repository's CI
pipeline definition locally: triggers, job matrices, needs ordering and steps.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfgFile := viper.GetString("config"); cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		}
		// Load config file if it exists (ignore errors if it doesn't)
		_ = viper.ReadInConfig()

		if err := logger.Setup(viper.GetString("log-level"), viper.GetString("log-format")); err != nil {
			return err
		}
		presenter.SetQuiet(viper.GetBool("quiet"))

		if shutdown, err := initTracing(ctx); err != nil {
			logger.G(ctx).WithError(err).Warn("Failed to initialize tracing")
		} else {
			tracingShutdown = shutdown
		}

		// Storage migrations run once per invocation; commands that never
		// touch the store still work when the database is unavailable.
		if err := store.Migrate(ctx, migrations.All()); err != nil {
			logger.G(ctx).WithError(err).Warn("Failed to apply storage migrations")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if tracingShutdown != nil {
			if err := tracingShutdown(cmd.Context()); err != nil {
				logger.G(cmd.Context()).WithError(err).Debug("Tracing shutdown failed")
			}
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(1)
	},
}

func main() {
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default config.yaml under ~/.devops-tests or .)")
	rootCmd.PersistentFlags().String("repo", "", "Repository name badges and headers refer to (default: git toplevel)")
	rootCmd.PersistentFlags().String("owner", "", "GitHub owner for badge and header URLs")
	rootCmd.PersistentFlags().Bool("quiet", false, "Suppress non-error output")

	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("repo", rootCmd.PersistentFlags().Lookup("repo"))
	viper.BindPFlag("owner", rootCmd.PersistentFlags().Lookup("owner"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
