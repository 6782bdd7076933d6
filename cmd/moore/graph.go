package main

import (
	"fmt"

	"github.com/aretw0/moore/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the machine as a Mermaid diagram",
	Long:  `Loads the definition and prints a Mermaid flowchart (graph TD) of its states and transitions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd, true, nil)
		if err != nil {
			return err
		}
		def, err := app.Definition()
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(def, nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
