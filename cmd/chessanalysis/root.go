package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Melvud/ChessAnalysis-sub000"
	"github.com/Melvud/ChessAnalysis-sub000/internal/config"
	"github.com/Melvud/ChessAnalysis-sub000/internal/stats"
	statslogger "github.com/Melvud/ChessAnalysis-sub000/internal/stats/logger"
)

var (
	// Global flags.
	configFile string
	verbose    bool

	// Set before any command runs.
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "chessanalysis",
	Short: "Analyze chess games with a UCI engine or an evaluation database",
	Long: `chessanalysis grades every move of a chess game, estimates each
side's accuracy and playing strength, and caches the reports.

Positions are evaluated by a UCI engine such as Stockfish, by an
evaluation database built from the Lichess evaluation export, or by
both (database first).

Settings come from chessanalysis.yaml, CHESSANALYSIS_* environment
variables and flags, in increasing priority.

Examples:
  # Analyze a game
  chessanalysis analyze game.pgn

  # Watch the evaluation of a position deepen
  chessanalysis eval "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"

  # Serve the HTTP API
  chessanalysis serve --addr :8080`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configFile, cmd.Flags())
		if err != nil {
			return err
		}
		if verbose {
			c.Log.Development = true
			c.Log.Level = "debug"
		}
		l, err := config.NewLogger(c.Log)
		if err != nil {
			return err
		}
		cfg, logger = c, l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVarP(&configFile, "config", "c", "", "config file (default: ./chessanalysis.yaml)")
	f.BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	f.String("engine", "stockfish", "path of the UCI engine")
	f.String("mode", config.ModeEngine, "oracle: engine, evaldb or hybrid")
	f.Int("threads", 1, "engine threads")
	f.Int("hash", 64, "engine hash table size in MB")
	f.Int("depth", chessanalysis.DefaultDepth, "search depth")
	f.Int("multipv", chessanalysis.DefaultMultiPV, "lines per position")
	f.Duration("timeout", 0, "give up after this long (0 uses the configured timeout)")
	f.String("cache", config.BackendMemory, "report cache: memory, disk, gcs, s3 or redis")
	f.StringP("data-dir", "d", "./data", "directory containing the evaluation database")
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// collector returns the stats collector of one-shot commands.
func collector() stats.Collector {
	if verbose {
		return statslogger.New(logger)
	}
	return stats.NewNoop()
}

// newClient builds a client from the loaded configuration.
func newClient(ctx context.Context, c stats.Collector) (*chessanalysis.Client, error) {
	return cfg.NewClient(ctx, logger, c)
}
