package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/aretw0/moore/internal/cli"
	"github.com/aretw0/moore/pkg/adapters/mcp"
	"github.com/aretw0/moore/pkg/session"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts the machine as an MCP Server. Agents start sessions and run turns
through tools, and read the machine definition as a resource.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Logs go to Stderr.
- sse: Uses Server-Sent Events over HTTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		addr, _ := cmd.Flags().GetString("addr")
		baseURL, _ := cmd.Flags().GetString("base-url")
		offline, _ := cmd.Flags().GetBool("offline")

		app, err := newApp(cmd, offline, nil)
		if err != nil {
			return err
		}
		defer app.Close()

		def, err := app.Definition()
		if err != nil {
			return err
		}
		mgr := session.NewManager(app.Factory(), session.WithLogger(app.Logger))
		srv := mcp.NewServer(mgr, def, mcp.WithLogger(app.Logger))

		switch transport {
		case "stdio":
			app.Logger.Info("Starting moore MCP Server (Stdio)")
			return srv.ServeStdio()
		case "sse":
			if baseURL == "" {
				baseURL = "http://localhost" + addr
			}
			ctx := cli.NewSignalContext(context.Background())
			defer ctx.Stop()
			if err := srv.ServeSSE(ctx, addr, baseURL); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			app.Logger.Info("MCP Server stopped gracefully")
			return nil
		default:
			return errors.New("unknown transport: " + transport + " (supported: stdio, sse)")
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().String("addr", ":8081", "Address to listen on (only for SSE)")
	mcpCmd.Flags().String("base-url", "", "Public base URL announced to SSE clients")
	mcpCmd.Flags().Bool("offline", false, "Echo the input instead of calling the model")
}
