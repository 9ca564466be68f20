package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/chainguard-dev/clog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/dshills/ticketgate/internal/metrics"
	"github.com/dshills/ticketgate/internal/server"
)

func (a *app) serveCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve GitHub pull_request webhooks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, ok := a.prepare(cmd.Context())
			if !ok {
				return nil
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			rec := metrics.New(reg)

			g, err := a.newGate(ctx, cfg, rec)
			if err != nil {
				fmt.Fprintf(a.stderr, "Error: %v\n", err)
				a.exitCode = ExitUsageError
				return nil
			}
			if cfg.Server.WebhookSecret == "" {
				clog.FromContext(ctx).Warn("GITHUB_WEBHOOK_SECRET is not set; webhook signatures are not verified")
			}

			if err := server.New(cfg.Server, g, reg).Serve(ctx); err != nil && ctx.Err() == nil {
				fmt.Fprintf(a.stderr, "Error: %v\n", err)
				a.exitCode = ExitRuntimeError
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides PORT)")
	return cmd
}

