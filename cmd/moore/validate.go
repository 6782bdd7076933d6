package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the machine definition for consistency",
	Long:  `Loads the definition and reports unknown transition targets, missing initial or terminal states, and invalid schemas.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd, true, nil)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		def, err := app.Definition()
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Machine %q is valid: %d states, initial %s\n", def.Name, len(def.States), def.Initial)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
