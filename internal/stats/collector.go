// Package stats provides a unified interface for collecting metrics.
package stats

// Metric names used throughout the module.
const (
	// Oracle metrics.
	MetricOracleCalls   = "chessanalysis_oracle_calls_total"
	MetricOracleErrors  = "chessanalysis_oracle_errors_total"
	MetricOracleSeconds = "chessanalysis_oracle_seconds"
	MetricEvalDBHits    = "chessanalysis_evaldb_hits_total"
	MetricEvalDBMisses  = "chessanalysis_evaldb_misses_total"

	// Analysis metrics.
	MetricAnalyses         = "chessanalysis_analyses_total"
	MetricAnalysisFailures = "chessanalysis_analysis_failures_total"
	MetricAnalysisDuration = "chessanalysis_analysis_duration_seconds"
	MetricActiveAnalyses   = "chessanalysis_active_analyses"
	MetricDepthRuns        = "chessanalysis_depth_runs_total"
	MetricDepthCancelled   = "chessanalysis_depth_runs_cancelled_total"
	MetricVariationMoves   = "chessanalysis_variation_moves_total"

	// Report cache metrics.
	MetricCacheHits         = "chessanalysis_cache_hits_total"
	MetricCacheMisses       = "chessanalysis_cache_misses_total"
	MetricSingleflightShare = "chessanalysis_singleflight_shared_total"

	// Store cache metrics.
	MetricStoreCacheHits   = "chessanalysis_store_cache_hits_total"
	MetricStoreCacheMisses = "chessanalysis_store_cache_misses_total"
	MetricStoreCacheSize   = "chessanalysis_store_cache_size"
)

// Help returns a description of a known metric, or the name itself.
func Help(name string) string {
	if h, ok := help[name]; ok {
		return h
	}
	return name
}

var help = map[string]string{
	MetricOracleCalls:       "Evaluation requests sent to the oracle.",
	MetricOracleErrors:      "Evaluation requests that failed.",
	MetricOracleSeconds:     "Time spent in a single oracle evaluation.",
	MetricEvalDBHits:        "Positions found in the evaluation database.",
	MetricEvalDBMisses:      "Positions missing from the evaluation database or too shallow.",
	MetricAnalyses:          "Full-game analyses started.",
	MetricAnalysisFailures:  "Full-game analyses that ended with an error.",
	MetricAnalysisDuration:  "Wall time of a full-game analysis.",
	MetricActiveAnalyses:    "Full-game analyses currently running.",
	MetricDepthRuns:         "Incremental depth runs started.",
	MetricDepthCancelled:    "Incremental depth runs cancelled before their target depth.",
	MetricVariationMoves:    "Moves played in variation mode.",
	MetricCacheHits:         "Report cache hits.",
	MetricCacheMisses:       "Report cache misses.",
	MetricSingleflightShare: "Analyses whose result was shared with a concurrent request.",
	MetricStoreCacheHits:    "In-memory store cache hits.",
	MetricStoreCacheMisses:  "In-memory store cache misses.",
	MetricStoreCacheSize:    "Entries held by the in-memory store cache.",
}

// Collector defines the interface for collecting metrics.
type Collector interface {
	// IncCounter increments a counter metric by delta.
	IncCounter(name string, delta int64)

	// SetGauge sets a gauge metric to value.
	SetGauge(name string, value int64)

	// ObserveHistogram records a value in a histogram metric.
	ObserveHistogram(name string, value float64)
}
