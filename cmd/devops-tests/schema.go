package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/AgnieszkaZaba/devops-tests/pkg/presenter"
	"github.com/AgnieszkaZaba/devops-tests/pkg/suite"
	"github.com/AgnieszkaZaba/devops-tests/pkg/workflow"
)

var schemaCmd = &cobra.Command{
	Use:   "schema <suite|workflow>",
	Short: "Print the JSON schema for a configuration file",
	Long: `Prints the JSON schema describing either the hook suite configuration
or the workflow file. Point your editor's YAML language server at it to get
completion and validation while editing.`,
	Args: cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		var schema *jsonschema.Schema
		switch args[0] {
		case "suite":
			schema = suite.Schema()
		case "workflow":
			schema = workflow.Schema()
		default:
			presenter.Error(fmt.Errorf("unknown schema %q", args[0]), "Expected suite or workflow")
			os.Exit(1)
		}

		data, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			presenter.Error(err, "Failed to encode schema")
			os.Exit(1)
		}
		fmt.Println(string(data))
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
