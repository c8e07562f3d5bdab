package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/AgnieszkaZaba/devops-tests/pkg/presenter"
	"github.com/AgnieszkaZaba/devops-tests/pkg/suite"
)

var hooksCmd = &cobra.Command{
	Use:   "hooks",
	Short: "External hook management commands",
}

var hooksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List discovered external hooks",
	Long: `Lists executable hooks found in .devops-tests/hooks and
~/.devops-tests/hooks, with their source path and manifest description.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		discovery, err := suite.NewDiscovery(suite.WithDefaultDirs())
		if err != nil {
			return err
		}
		hooks, err := discovery.DiscoverHooks()
		if err != nil {
			return err
		}

		if len(hooks) == 0 {
			presenter.Info("No external hooks found")
			return nil
		}

		ids := make([]string, 0, len(hooks))
		for id := range hooks {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		presenter.Section(fmt.Sprintf("External hooks (%d)", len(ids)))
		for _, id := range ids {
			hook := hooks[id]
			desc := hook.Description
			if desc == "" {
				desc = "(no description)"
			}
			presenter.Info(fmt.Sprintf("  %-20s %s", id, desc))
			presenter.Info(fmt.Sprintf("  %-20s %s", "", hook.Path))
		}
		return nil
	},
}

func init() {
	hooksCmd.AddCommand(hooksListCmd)
	rootCmd.AddCommand(hooksCmd)
}
