package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for FilesParsedTotal.
const (
	OutcomeOK         = "ok"
	OutcomeLexError   = "lex_error"
	OutcomeParseError = "parse_error"
	OutcomeReadError  = "read_error"
)

var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "symtree_parsing_seconds",
		Help:    "Time spent parsing a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	FilesParsedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "symtree_files_parsed_total",
		Help: "Total number of files handed to the parser, by outcome.",
	}, []string{"outcome"})

	SymbolsExtractedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "symtree_symbols_extracted_total",
		Help: "Total number of top-level symbols extracted, by kind.",
	}, []string{"kind"})

	DiagnosticsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "symtree_diagnostics_total",
		Help: "Total number of non-fatal diagnostics recorded, by kind.",
	}, []string{"kind"})

	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "symtree_batch_seconds",
		Help:    "Time spent parsing one batch of files.",
		Buckets: prometheus.DefBuckets,
	})

	StoreWriteDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "symtree_store_write_seconds",
		Help:    "Latency for persisting one run to the symbol index.",
		Buckets: prometheus.DefBuckets,
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "symtree_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)
