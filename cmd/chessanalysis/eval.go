package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Melvud/ChessAnalysis-sub000"
)

var evalCmd = &cobra.Command{
	Use:   "eval [FEN]",
	Short: "Evaluate a position at increasing depth",
	Long: `Evaluate a position given in FEN notation, printing the best lines
each time the search reaches a new depth. Scores are from White's point
of view.

Examples:
  # After 1.e4, from depth 1 up to the configured depth
  chessanalysis eval "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"

  # Three lines, depths 10 to 24
  chessanalysis eval --from 10 --depth 24 --multipv 3 "<FEN>"`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

var (
	evalFrom int
	evalJSON bool
)

func init() {
	evalCmd.Flags().IntVar(&evalFrom, "from", 1, "first depth to report")
	evalCmd.Flags().BoolVar(&evalJSON, "json", false, "print only the final evaluation as JSON")
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	client, err := newClient(ctx, collector())
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}
	defer client.Close()

	from := evalFrom
	if from > cfg.Analysis.Depth {
		from = cfg.Analysis.Depth
	}
	run, err := client.StartDepthRun(ctx, chessanalysis.DepthRequest{
		FEN:         args[0],
		StartDepth:  from,
		TargetDepth: cfg.Analysis.Depth,
		MultiPV:     cfg.Analysis.MultiPV,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !evalJSON {
		unsubscribe := run.Subscribe(func(pe chessanalysis.PositionEval) {
			printLines(out, pe)
		})
		defer unsubscribe()
	}

	err = run.Wait()
	if chessanalysis.IsCancelled(err) {
		// Keep what was reached.
		err = nil
	}
	if err != nil {
		return err
	}
	if evalJSON {
		pe, ok := run.Latest()
		if !ok {
			return fmt.Errorf("no evaluation reached")
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(pe)
	}
	return nil
}

func printLines(w io.Writer, pe chessanalysis.PositionEval) {
	fmt.Fprintf(w, "depth %d\n", pe.Depth())
	for i, l := range pe.Lines {
		fmt.Fprintf(w, "  %d. %7s  %s\n", i+1, l.Score(), strings.Join(l.PV, " "))
	}
}
