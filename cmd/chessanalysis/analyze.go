package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Melvud/ChessAnalysis-sub000"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [PGN file]",
	Short: "Analyze a game",
	Long: `Analyze the game in a PGN file ("-" reads standard input).

Every position is evaluated, every move is graded, and a summary with
accuracy, average centipawn loss and estimated ratings is printed.
Reports are cached by the game's moves and tags, so analyzing the same
game again is instant when the cache is persistent.

Examples:
  # Text summary with progress on stderr
  chessanalysis analyze game.pgn

  # Full report as JSON, deeper and with three lines per position
  chessanalysis analyze game.pgn --json --depth 18 --multipv 3

  # Use the evaluation database, falling back to the engine
  chessanalysis analyze game.pgn --mode hybrid --data-dir ./data`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var (
	analyzeJSON   bool
	analyzeOutput string
	analyzeQuiet  bool
)

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the full report as JSON")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "write the report to a file instead of stdout")
	analyzeCmd.Flags().BoolVarP(&analyzeQuiet, "quiet", "q", false, "do not report progress")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	text, err := readInput(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Analysis.Timeout)
	defer cancel()

	client, err := newClient(ctx, collector())
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}
	defer client.Close()

	var progress chessanalysis.ProgressFunc
	if !analyzeQuiet {
		progress = printProgress(cmd.ErrOrStderr())
	}
	report, err := client.AnalyzeGame(ctx, text, chessanalysis.AnalyzeParams{Progress: progress})
	if err != nil {
		if chessanalysis.IsCancelled(err) {
			return fmt.Errorf("analysis interrupted")
		}
		return err
	}

	out := cmd.OutOrStdout()
	if analyzeOutput != "" {
		f, err := os.Create(analyzeOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	if analyzeJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printReport(out, report)
	return nil
}

func readInput(stdin io.Reader, name string) (string, error) {
	var data []byte
	var err error
	if name == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", name, err)
	}
	return string(data), nil
}

func printProgress(w io.Writer) chessanalysis.ProgressFunc {
	return func(s chessanalysis.AnalysisSnapshot) {
		switch s.Stage {
		case chessanalysis.StageEvaluating, chessanalysis.StageClassifying:
			fmt.Fprintf(w, "\r[%s] %5.1f%% ply %d/%d, %s left   ",
				s.Stage, s.Percent, s.Ply, s.Total, s.ETA.Round(time.Second))
		case chessanalysis.StageDone:
			fmt.Fprintf(w, "\r[done] %d plies in %s%s\n",
				s.Total, s.UpdatedAt.Sub(s.StartedAt).Round(time.Millisecond), strings.Repeat(" ", 20))
		}
	}
}

func printReport(w io.Writer, r *chessanalysis.FullReport) {
	h := r.Header
	fmt.Fprintf(w, "%s vs %s", orUnknown(h.White), orUnknown(h.Black))
	if h.Result != "" {
		fmt.Fprintf(w, "  %s", h.Result)
	}
	fmt.Fprintln(w)
	if h.ECO != "" || h.Opening != "" {
		fmt.Fprintf(w, "Opening:  %s %s\n", h.ECO, h.Opening)
	}
	fmt.Fprintf(w, "Depth:    %d (%d lines)\n\n", r.Depth, r.MultiPV)

	fmt.Fprintf(w, "%-10s %8s %8s\n", "", "White", "Black")
	fmt.Fprintf(w, "%-10s %8.1f %8.1f\n", "Accuracy", r.Accuracy.White.Itera, r.Accuracy.Black.Itera)
	fmt.Fprintf(w, "%-10s %8d %8d\n", "ACPL", r.Acpl.White, r.Acpl.Black)
	fmt.Fprintf(w, "%-10s %8d %8d\n\n", "Est. Elo", r.EstimatedElo.White, r.EstimatedElo.Black)

	counts := make(map[chessanalysis.Side]map[chessanalysis.MoveClass]int)
	for _, m := range r.Moves {
		side := m.Mover()
		if counts[side] == nil {
			counts[side] = make(map[chessanalysis.MoveClass]int)
		}
		counts[side][m.Classification]++
	}
	for _, class := range chessanalysis.MoveClasses {
		white, black := counts[chessanalysis.White][class], counts[chessanalysis.Black][class]
		if white+black > 0 {
			fmt.Fprintf(w, "%-10s %8d %8d\n", strings.ToLower(string(class)), white, black)
		}
	}
	fmt.Fprintln(w)

	for _, m := range r.Moves {
		if !m.Classification.IsError() && m.Classification != chessanalysis.Splendid {
			continue
		}
		fmt.Fprintf(w, "%3d%s %-8s %-10s best was %s\n",
			m.Ply/2+1, moveDots(m.Mover()), m.SAN, strings.ToLower(string(m.Classification)),
			r.Positions[m.Ply].BestMove())
	}
	for _, line := range r.AnalysisLog {
		fmt.Fprintf(w, "note: %s\n", line)
	}
}

func moveDots(side chessanalysis.Side) string {
	if side == chessanalysis.Black {
		return "..."
	}
	return "."
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}
