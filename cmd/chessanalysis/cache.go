package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Melvud/ChessAnalysis-sub000/internal/builder"
	"github.com/Melvud/ChessAnalysis-sub000/internal/config"
	"github.com/Melvud/ChessAnalysis-sub000/internal/pgn"
	"github.com/Melvud/ChessAnalysis-sub000/internal/reportcache"
	"github.com/Melvud/ChessAnalysis-sub000/internal/store/diskstore"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the report cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show statistics about the report cache",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cacheKeyCmd = &cobra.Command{
	Use:   "key [PGN file]",
	Short: "Print the cache key of a game",
	Long: `Print the key a game's report is cached under. Tag order, comments,
clock annotations and formatting do not change it.`,
	Args: cobra.ExactArgs(1),
	RunE: runCacheKey,
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheKeyCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	c := cfg.Cache
	fmt.Fprintf(out, "Backend:        %s\n", c.Backend)
	fmt.Fprintf(out, "Codec:          %s\n", c.Codec)

	switch c.Backend {
	case config.BackendMemory:
		fmt.Fprintf(out, "Capacity:       %d reports\n", c.Size)
		fmt.Fprintln(out, "The memory cache lives only as long as one process.")
		return nil
	case config.BackendDisk:
	default:
		fmt.Fprintf(out, "Location:       %s\n", describeStore(c))
		return nil
	}

	st, err := config.OpenStore(cmd.Context(), c, false)
	if err != nil {
		return fmt.Errorf("opening report cache: %w", err)
	}
	defer st.Close()
	count, size, err := st.(*diskstore.Store).Usage(reportcache.KeyPrefix)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Directory:      %s\n", c.Dir)
	fmt.Fprintf(out, "Reports:        %d\n", count)
	fmt.Fprintf(out, "Total size:     %s\n", builder.FormatBytes(size))
	return nil
}

func runCacheKey(cmd *cobra.Command, args []string) error {
	text, err := readInput(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}
	key, err := pgn.CanonicalKey(text)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), key)
	return nil
}
