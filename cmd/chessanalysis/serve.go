package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Melvud/ChessAnalysis-sub000/internal/server"
	promstats "github.com/Melvud/ChessAnalysis-sub000/internal/stats/prometheus"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis HTTP API",
	Long: `Serve game analysis over HTTP until interrupted.

Routes:
  POST /v1/analyses       {"pgn": "..."} starts an analysis, returns its id
  GET  /v1/analyses/{id}  progress of an analysis
  GET  /v1/reports/{key}  cached report
  POST /v1/evaluate       {"fen": "...", "depth": 18} evaluates a position
  GET  /metrics           Prometheus metrics

Examples:
  chessanalysis serve --addr :8080 --cache redis`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "listen address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	client, err := newClient(ctx, promstats.New(registry))
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}
	defer client.Close()

	sc := cfg.Server
	srv := server.New(client,
		server.WithAddr(sc.Addr),
		server.WithTimeouts(sc.ReadTimeout, sc.WriteTimeout, sc.ShutdownTimeout),
		server.WithRequestTimeout(sc.RequestTimeout),
		server.WithAnalysisTimeout(cfg.Analysis.Timeout),
		server.WithGatherer(registry),
		server.WithLogger(logger),
	)
	logger.Info("starting server",
		zap.String("addr", sc.Addr),
		zap.String("mode", cfg.Oracle.Mode),
		zap.String("cache", cfg.Cache.Backend),
	)
	return srv.Run(ctx)
}
