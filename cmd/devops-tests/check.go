package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/aymanbagabas/go-udiff"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AgnieszkaZaba/devops-tests/pkg/checks"
	"github.com/AgnieszkaZaba/devops-tests/pkg/logger"
	"github.com/AgnieszkaZaba/devops-tests/pkg/notebook"
	"github.com/AgnieszkaZaba/devops-tests/pkg/presenter"
	"github.com/AgnieszkaZaba/devops-tests/pkg/suite"
)

// CheckOptions contains all options for the check command
type CheckOptions struct {
	fix  bool
	diff bool
	list bool
}

var checkOptions = &CheckOptions{}

var checkCmd = &cobra.Command{
	Use:   "check [check...] [flags] <notebook>...",
	Short: "Run notebook hygiene checks against explicit files",
	Long: `Run the named builtin checks (default: all of them) against the given
notebook files. With --fix, checks that can repair violations rewrite the
files in place; with --diff, the rewrite is printed as a unified diff
instead. Arguments ending in .ipynb are notebooks, everything else names a
check.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		if checkOptions.list {
			presenter.Section("Builtin checks")
			for _, c := range checks.All() {
				presenter.Info(fmt.Sprintf("  %-16s %s", c.Name(), c.Description()))
			}
			return
		}

		var names, files []string
		for _, arg := range args {
			if strings.HasSuffix(arg, ".ipynb") {
				files = append(files, arg)
			} else {
				names = append(names, arg)
			}
		}
		if err := checks.ValidateNames(names); err != nil {
			presenter.Error(err, "Invalid arguments")
			os.Exit(1)
		}
		if len(names) == 0 {
			names = checks.Names()
		}
		if len(files) == 0 {
			presenter.Error(errors.New("no notebook files given"), "Nothing to check")
			os.Exit(1)
		}

		repo := viper.GetString("repo")
		if repo == "" {
			repo = suite.DetectRepoName()
		}

		failed := false
		var reformatted, unchanged int
		for _, file := range files {
			cc := &checks.Context{
				RepoName:  repo,
				RepoOwner: viper.GetString("owner"),
				Path:      file,
				Fix:       checkOptions.fix || checkOptions.diff,
			}

			nb, err := notebook.Read(file)
			if err != nil {
				presenter.FileError(file, err)
				failed = true
				continue
			}
			before, err := nb.Bytes()
			if err != nil {
				presenter.FileError(file, err)
				failed = true
				continue
			}

			changed := false
			for _, name := range names {
				c, _ := checks.Lookup(name)
				if fixer, ok := c.(checks.Fixer); ok && cc.Fix {
					fixed, err := fixer.FixUp(ctx, nb, cc)
					if err != nil {
						presenter.FileError(file, errors.Wrap(err, name))
						failed = true
					}
					changed = changed || fixed
					continue
				}
				if err := c.Run(ctx, nb, cc); err != nil {
					presenter.FileError(file, errors.Wrap(err, name))
					failed = true
				}
			}

			if !changed {
				unchanged++
				continue
			}
			reformatted++
			if checkOptions.diff {
				after, err := nb.Bytes()
				if err != nil {
					presenter.FileError(file, err)
					failed = true
					continue
				}
				fmt.Print(udiff.Unified(file+" (current)", file+" (fixed)", string(before), string(after)))
				continue
			}
			if err := nb.Write(file); err != nil {
				presenter.FileError(file, err)
				failed = true
				continue
			}
			presenter.Reformatted(file)
			logger.G(ctx).WithField("file", file).Info("notebook rewritten")
		}

		presenter.Summary(reformatted, unchanged)
		if failed || reformatted > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	checkCmd.Flags().BoolVar(&checkOptions.fix, "fix", false, "Rewrite files to repair violations where possible")
	checkCmd.Flags().BoolVar(&checkOptions.diff, "diff", false, "Print fixes as unified diffs instead of rewriting")
	checkCmd.Flags().BoolVar(&checkOptions.list, "list", false, "List the builtin checks and exit")
	rootCmd.AddCommand(checkCmd)
}
