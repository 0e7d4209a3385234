package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/rfm-dashboard/internal/dashboard"
	"github.com/KaramelBytes/rfm-dashboard/internal/metrics"
	"github.com/KaramelBytes/rfm-dashboard/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireConfig(); err != nil {
			return err
		}
		addr := cfg.ListenAddr
		if cmd.Flags().Changed("addr") && serveAddr != "" {
			addr = serveAddr
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m := metrics.New(reg)

		svc, err := newService(m)
		if err != nil {
			return err
		}
		p := svc.Profile()
		logger.Info().
			Str("profile", p.Name).
			Str("lookup_version", p.LookupVersion).
			Str("donors", p.DonorsURL).
			Bool("pivot", p.HasPivot()).
			Msg("dashboard configured")

		router := server.NewRouter(dashboard.NewHandler(svc, logger), reg, logger)
		srv := server.New(server.Options{
			Addr:              addr,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout(),
			ShutdownTimeout:   cfg.ShutdownTimeout(),
		}, router, logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		fmt.Printf("✓ Serving %q on %s\n", p.Title, addr)
		if err := srv.Run(ctx); err != nil {
			return err
		}
		fmt.Println("✓ Stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides listen_addr)")
}
