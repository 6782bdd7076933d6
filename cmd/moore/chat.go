package main

import (
	"context"
	"os"

	"github.com/aretw0/moore"
	"github.com/aretw0/moore/internal/cli"
	"github.com/aretw0/moore/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the machine in the terminal",
	Long: `Starts an interactive conversation. Type exit to leave, /state to inspect
the context, /graph to print the visited path and /reset to start over.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		offline, _ := cmd.Flags().GetBool("offline")

		app, err := newApp(cmd, offline, nil)
		if err != nil {
			return err
		}
		defer app.Close()

		m, err := app.Machine()
		if err != nil {
			return err
		}

		opts := cli.ChatOptions{In: os.Stdin, Out: os.Stdout}
		if cli.IsTerminal(os.Stdout) {
			tui.PrintBanner(os.Stdout, moore.Version)
			opts.Render = tui.NewRenderer(100)
			opts.Styler = tui.NewStyler(os.Stdout)
		}

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Stop()
		return cli.Chat(ctx, m, opts)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().Bool("offline", false, "Echo the input instead of calling the model")
}
