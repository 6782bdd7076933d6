package main

import (
	"fmt"
	"os"

	"github.com/aretw0/moore/internal/cli"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "moore",
	Short: "moore runs LLM-driven conversational state machines",
	Long: `moore loads a machine definition (YAML or JSON) and runs it as a chat,
an HTTP API or an MCP server. Each turn makes one structured model call that
answers the user and may request a declared transition.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "moore.yaml", "Machine definition file (.yaml or .json)")
	rootCmd.PersistentFlags().Bool("debug", false, "Log every turn and transition")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Write logs as JSON")
}

// newApp builds the App from the persistent flags.
func newApp(cmd *cobra.Command, offline bool, reg prometheus.Registerer) (*cli.App, error) {
	path, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")
	jsonLogs, _ := cmd.Flags().GetBool("json-logs")

	return cli.NewApp(cli.Options{
		ConfigPath: path,
		Debug:      debug,
		JSONLogs:   jsonLogs,
		Offline:    offline,
		Registerer: reg,
	})
}
