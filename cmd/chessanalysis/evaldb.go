package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"

	"github.com/Melvud/ChessAnalysis-sub000/internal/builder"
	"github.com/Melvud/ChessAnalysis-sub000/internal/config"
	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle/evaldb"
	"github.com/Melvud/ChessAnalysis-sub000/internal/shard"
	"github.com/Melvud/ChessAnalysis-sub000/internal/store"
	"github.com/Melvud/ChessAnalysis-sub000/internal/store/diskstore"
)

var evaldbCmd = &cobra.Command{
	Use:   "evaldb",
	Short: "Build and query the evaluation database",
	Long: `Manage the evaluation database: precomputed engine evaluations from
the Lichess evaluation export, sharded and compressed so that a single
position can be read without loading the rest.

The database lives in the evaldb store (evaldb.backend in the config),
a directory by default (--data-dir).`,
}

var evaldbBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the evaluation database from the Lichess export",
	Long: `Download and process the Lichess evaluation database.

This command will:
1. Read the evaluation records from a URL or a local file
2. Distribute positions to shards using the configured strategy
3. Sort positions within each shard by FEN
4. Compress the shards and write them with a manifest to the evaldb store

The default source is the Lichess evaluation database:
  https://database.lichess.org/lichess_db_eval.jsonl.zst

Examples:
  # Build from the default Lichess source
  chessanalysis evaldb build --data-dir ./data

  # Build from a local file
  chessanalysis evaldb build --source ./lichess_db_eval.jsonl.zst

  # Specify number of shards and strategy
  chessanalysis evaldb build --shards 32768 --strategy material

  # Build straight into a bucket
  CHESSANALYSIS_EVALDB_BACKEND=gcs CHESSANALYSIS_EVALDB_BUCKET=evals chessanalysis evaldb build`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

var evaldbLookupCmd = &cobra.Command{
	Use:   "lookup [FEN]",
	Short: "Look up the stored evaluations of a position",
	Long: `Look up the evaluations stored for a position given in FEN notation.

Examples:
  # Starting position
  chessanalysis evaldb lookup "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq -"

  # After 1.e4
  chessanalysis evaldb lookup "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3"`,
	Args: cobra.ExactArgs(1),
	RunE: runLookup,
}

var evaldbVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the integrity of the evaluation database",
	Long: `Verify that all shards in the database are valid.

This command checks:
- Each shard can be read and decompressed
- Each line holds a record with a FEN
- Positions are sorted within each shard
- The shards agree with the manifest`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

var evaldbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show statistics about the evaluation database",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var (
	sourceURL    string
	totalShards  int
	strategyName string
	workers      int
	maxMemoryMB  int

	lookupJSON  bool
	showTiming  bool
	verifyQuick bool
)

func init() {
	evaldbBuildCmd.Flags().StringVar(&sourceURL, "source", builder.DefaultSource, "source URL or local file path")
	evaldbBuildCmd.Flags().IntVar(&totalShards, "shards", builder.DefaultTotalShards, "number of shards to create")
	evaldbBuildCmd.Flags().StringVar(&strategyName, "strategy", "material", "sharding strategy: material, fnv32")
	evaldbBuildCmd.Flags().IntVar(&workers, "workers", 4, "number of parallel workers for compression")
	evaldbBuildCmd.Flags().IntVar(&maxMemoryMB, "max-memory", 1024, "max memory in MB before spilling to disk")

	evaldbLookupCmd.Flags().BoolVar(&lookupJSON, "json", false, "output result as JSON")
	evaldbLookupCmd.Flags().BoolVar(&showTiming, "timing", false, "show lookup timing")

	evaldbVerifyCmd.Flags().BoolVar(&verifyQuick, "quick", false, "only check first and last entries in each shard")

	evaldbCmd.AddCommand(evaldbBuildCmd, evaldbLookupCmd, evaldbVerifyCmd, evaldbStatsCmd)
	rootCmd.AddCommand(evaldbCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	strategy, err := shard.ByName(strategyName)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	st, err := config.OpenStore(ctx, cfg.EvalDB, true)
	if err != nil {
		return fmt.Errorf("opening evaldb store: %w", err)
	}
	defer st.Close()

	out := cmd.OutOrStdout()
	b := builder.New(st,
		builder.WithSource(sourceURL),
		builder.WithTotalShards(totalShards),
		builder.WithStrategy(strategy),
		builder.WithCodecName(cfg.EvalDB.Codec),
		builder.WithWorkers(workers),
		builder.WithMaxMemoryMB(maxMemoryMB),
		builder.WithProgress(builder.TextProgress(out)),
		builder.WithLogger(logger),
	)

	fmt.Fprintf(out, "Building evaluation database\n")
	fmt.Fprintf(out, "  Source:     %s\n", sourceURL)
	fmt.Fprintf(out, "  Output:     %s\n", describeStore(cfg.EvalDB))
	fmt.Fprintf(out, "  Shards:     %d\n", totalShards)
	fmt.Fprintf(out, "  Strategy:   %s\n", strategy.Name())
	fmt.Fprintf(out, "  Workers:    %d\n", workers)
	fmt.Fprintf(out, "  Max Memory: %d MB\n", maxMemoryMB)
	fmt.Fprintln(out)

	var m *evaldb.Manifest
	if _, statErr := os.Stat(sourceURL); statErr == nil {
		m, err = b.BuildFromFile(ctx, sourceURL)
	} else {
		m, err = buildFromURL(ctx, b, sourceURL)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %d records to %d of %d shards\n", m.RecordCount, m.ShardCount, m.TotalShards)
	return nil
}

func buildFromURL(ctx context.Context, b *builder.Builder, url string) (*evaldb.Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading %s: %s", url, resp.Status)
	}

	var r io.Reader = resp.Body
	if strings.HasSuffix(url, ".zst") {
		dec, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		defer dec.Close()
		r = dec
	}
	return b.Build(ctx, r)
}

func describeStore(s config.StoreConfig) string {
	switch s.Backend {
	case config.BackendDisk:
		return s.Dir
	case config.BackendRedis:
		return "redis://" + s.RedisAddr + "/" + s.Prefix
	default:
		return s.Backend + "://" + s.Bucket + "/" + s.Prefix
	}
}

func runLookup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	db, err := config.OpenEvalDB(ctx, cfg.EvalDB, logger, collector())
	if err != nil {
		return fmt.Errorf("opening evaluation database: %w", err)
	}
	defer db.Close()

	start := time.Now()
	rec, err := db.Lookup(ctx, args[0])
	if err != nil {
		if errors.Is(err, evaldb.ErrNotFound) {
			return fmt.Errorf("position not found in database")
		}
		return fmt.Errorf("lookup failed: %w", err)
	}
	elapsed := time.Since(start)

	out := cmd.OutOrStdout()
	if lookupJSON {
		return json.NewEncoder(out).Encode(struct {
			*evaldb.Record
			ElapsedMS int64 `json:"elapsed_ms,omitempty"`
		}{rec, timing(elapsed).Milliseconds()})
	}

	fmt.Fprintf(out, "FEN:   %s\n", rec.FEN)
	for _, e := range rec.Evals {
		fmt.Fprintf(out, "Depth %d (%d knodes)\n", e.Depth, e.Knodes)
		for i, pv := range e.PVs {
			fmt.Fprintf(out, "  PV %d: %7s  %s\n", i+1, pvScore(pv), pv.Line)
		}
	}
	if showTiming {
		fmt.Fprintf(out, "Time:  %s\n", elapsed)
	}
	return nil
}

func timing(d time.Duration) time.Duration {
	if showTiming {
		return d
	}
	return 0
}

func pvScore(pv evaldb.PV) string {
	switch {
	case pv.Mate != nil:
		return fmt.Sprintf("#%d", *pv.Mate)
	case pv.CP != nil:
		return fmt.Sprintf("%+.2f", float64(*pv.CP)/100)
	}
	return "?"
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := config.OpenStore(ctx, cfg.EvalDB, false)
	if err != nil {
		return fmt.Errorf("opening evaldb store: %w", err)
	}
	defer st.Close()

	m, err := evaldb.ReadManifest(ctx, st)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Verifying %d shards...\n", m.TotalShards)
	strategy, err := shard.ByName(m.Strategy)
	if err != nil {
		return err
	}

	var found, errCount int
	var records int64
	for id := 0; id < m.TotalShards; id++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := shard.Key(id)
		data, err := st.Get(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		found++
		if err != nil {
			fmt.Fprintf(out, "  ERROR: %s: %v\n", key, err)
			errCount++
			continue
		}
		if verbose {
			fmt.Fprintf(out, "  [%d/%d] %s\n", id+1, m.TotalShards, key)
		}
		n, err := verifyShard(data, id, m.TotalShards, strategy, verifyQuick)
		if err != nil {
			fmt.Fprintf(out, "  ERROR: %s: %v\n", key, err)
			errCount++
			continue
		}
		records += int64(n)
	}

	if found != m.ShardCount {
		fmt.Fprintf(out, "  ERROR: found %d shards, manifest lists %d\n", found, m.ShardCount)
		errCount++
	}
	if !verifyQuick && errCount == 0 && records != m.RecordCount {
		fmt.Fprintf(out, "  ERROR: found %d records, manifest lists %d\n", records, m.RecordCount)
		errCount++
	}
	if errCount > 0 {
		return fmt.Errorf("%d problems found", errCount)
	}

	fmt.Fprintln(out, "All shards verified successfully.")
	return nil
}

// verifyShard checks the ordering and placement of the records of shard
// id and returns how many it holds.
func verifyShard(data []byte, id, total int, strategy shard.Strategy, quick bool) (int, error) {
	lines := evaldb.SplitLines(data)
	if len(lines) == 0 {
		return 0, fmt.Errorf("empty shard")
	}

	indices := make([]int, 0, len(lines))
	if quick {
		indices = append(indices, 0)
		if len(lines) > 1 {
			indices = append(indices, len(lines)-1)
		}
	} else {
		for i := range lines {
			indices = append(indices, i)
		}
	}

	var prevFEN string
	for _, idx := range indices {
		fen := evaldb.ExtractFEN(lines[idx])
		if fen == "" {
			return 0, fmt.Errorf("line %d: invalid JSON or missing FEN", idx+1)
		}
		if prevFEN != "" && fen < prevFEN {
			return 0, fmt.Errorf("lines not sorted: %q comes after %q", fen, prevFEN)
		}
		if got := strategy.ShardID(fen, total); got != id {
			return 0, fmt.Errorf("line %d: %q belongs in shard %d", idx+1, fen, got)
		}
		prevFEN = fen
	}
	return len(lines), nil
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := config.OpenStore(ctx, cfg.EvalDB, false)
	if err != nil {
		return fmt.Errorf("opening evaldb store: %w", err)
	}
	defer st.Close()

	m, err := evaldb.ReadManifest(ctx, st)
	if errors.Is(err, store.ErrNotFound) {
		fmt.Fprintln(cmd.OutOrStdout(), "No database found. Run 'chessanalysis evaldb build' to create it.")
		return nil
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Store:          %s\n", describeStore(cfg.EvalDB))
	fmt.Fprintf(out, "Built:          %s\n", m.BuiltAt.Format(time.RFC3339))
	if m.Source != "" {
		fmt.Fprintf(out, "Source:         %s\n", m.Source)
	}
	fmt.Fprintf(out, "Strategy:       %s\n", m.Strategy)
	fmt.Fprintf(out, "Codec:          %s\n", m.Codec)
	fmt.Fprintf(out, "Records:        %d\n", m.RecordCount)
	fmt.Fprintf(out, "Shards:         %d of %d\n", m.ShardCount, m.TotalShards)
	if ds, ok := st.(*diskstore.Store); ok {
		_, size, err := ds.Usage("shards")
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Total size:     %s\n", builder.FormatBytes(size))
	}
	return nil
}
