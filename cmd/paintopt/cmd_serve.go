package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/paintlab/paintopt/internal/webserver"
)

func newServeCommand() *cobra.Command {
	var (
		port       int
		host       string
		resultsDir string
		origins    []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

Endpoints:
  GET  /api/health      Service and predictor health
  POST /api/validate    Validate a recipe
  POST /api/optimize    Run an optimization and return the ranked recipes
  GET  /api/runs        Finished runs (sort=timestamp|fitness|evaluations|duration, order=asc|desc)
  GET  /api/runs/{id}   One finished run
  GET  /api/summary     Aggregate metrics across runs
  GET  /api/catalog     The material catalogue
  GET  /metrics         Prometheus metrics

The server binds to 127.0.0.1 unless --host says otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadProjectConfig(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("port") {
				port = cfg.Server.Port
			}

			logger := slog.Default()
			backend, err := newBackend(cfg, logger)
			if err != nil {
				return err
			}

			srv, err := webserver.New(webserver.Config{
				Host:           host,
				Port:           port,
				ResultsDir:     resultsDir,
				AllowedOrigins: origins,
				Backend:        backend,
				Logger:         logger,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.ErrOrStderr(), "paintopt API: http://%s:%d\n", hostOrLoopback(host), port) //nolint:errcheck
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default: server.port from config, 3000)")
	cmd.Flags().StringVar(&host, "host", "", "Interface to bind (default: 127.0.0.1)")
	cmd.Flags().StringVar(&resultsDir, "results-dir", "", "Directory for finished run JSON files (default: keep in memory)")
	cmd.Flags().StringSliceVar(&origins, "allow-origin", nil, "Origins allowed to call the API from a browser (can be repeated)")

	return cmd
}

func hostOrLoopback(host string) string {
	if host == "" {
		return "127.0.0.1"
	}
	return host
}
