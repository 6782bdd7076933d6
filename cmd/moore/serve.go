package main

import (
	"context"
	"net/http"

	"github.com/aretw0/moore/internal/cli"
	httpadapter "github.com/aretw0/moore/pkg/adapters/http"
	"github.com/aretw0/moore/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve conversations over HTTP",
	Long: `Exposes the machine as a JSON API. Each session is an independent
conversation; turns of the same session run one at a time. Prometheus
metrics are served on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		offline, _ := cmd.Flags().GetBool("offline")

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		app, err := newApp(cmd, offline, reg)
		if err != nil {
			return err
		}
		defer app.Close()

		def, err := app.Definition()
		if err != nil {
			return err
		}

		sessionOpts := []session.Option{session.WithLogger(app.Logger)}
		if locker := app.Locker(); locker != nil {
			sessionOpts = append(sessionOpts, session.WithLocker(locker, session.DefaultLockTTL))
		}
		mgr := session.NewManager(app.Factory(), sessionOpts...)

		handler := httpadapter.NewHandler(mgr,
			httpadapter.WithDefinition(def),
			httpadapter.WithLogger(app.Logger),
			httpadapter.WithMount("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})),
		)

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Stop()
		return cli.ListenAndServe(ctx, &http.Server{Addr: addr, Handler: handler}, app.Logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().Bool("offline", false, "Echo the input instead of calling the model")
}
