package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Melvud/ChessAnalysis-sub000"
)

var variationCmd = &cobra.Command{
	Use:   "variation [FEN] [UCI move...]",
	Short: "Play moves from a position and grade each one",
	Long: `Play a line of moves in UCI notation from a position and print how
each move is graded, with the evaluation after it.

Examples:
  # Try the Sicilian against 1.e4
  chessanalysis variation "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1" c7c5 g1f3 d7d6`,
	Args: cobra.MinimumNArgs(2),
	RunE: runVariation,
}

func init() {
	rootCmd.AddCommand(variationCmd)
}

func runVariation(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	client, err := newClient(ctx, collector())
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}
	defer client.Close()

	explorer := client.NewExplorer()
	out := cmd.OutOrStdout()
	fen := args[0]
	var before *chessanalysis.PositionEval
	for i, uci := range args[1:] {
		res, err := explorer.PlayMove(ctx, fen, uci, before)
		if err != nil {
			return fmt.Errorf("move %d (%s): %w", i+1, uci, err)
		}
		score := "?"
		if top, ok := res.After.Top(); ok {
			score = top.Score()
		}
		fmt.Fprintf(out, "%-8s %-10s %7s  win %4.1f%% -> %4.1f%%", res.SAN,
			strings.ToLower(string(res.Class)), score, res.WinBefore, res.WinAfter)
		if len(res.Tags) > 0 {
			fmt.Fprintf(out, "  [%s]", strings.Join(res.Tags, ", "))
		}
		fmt.Fprintln(out)

		fen = res.FEN
		after := res.After
		before = &after
	}
	return nil
}
