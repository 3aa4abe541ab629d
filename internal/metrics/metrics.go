package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Mint-watch counters and histograms. Labels use the upstream host for
// indexer traffic and the terminal candidate status for classification.

var (
	// Scanner
	ScanRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mintwatch",
		Subsystem: "scanner",
		Name:      "runs_total",
		Help:      "Total scan runs by outcome",
	}, []string{"outcome"})

	ScanPagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mintwatch",
		Subsystem: "scanner",
		Name:      "pages_fetched_total",
		Help:      "Total indexer pages fetched",
	})

	ScanRowsScanned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mintwatch",
		Subsystem: "scanner",
		Name:      "rows_scanned_total",
		Help:      "Total indexer rows scanned",
	})

	ScanRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mintwatch",
		Subsystem: "scanner",
		Name:      "run_duration_seconds",
		Help:      "End-to-end scan run duration",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	// Classification
	CandidatesClassified = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mintwatch",
		Subsystem: "policy",
		Name:      "candidates_classified_total",
		Help:      "Total candidates classified, by terminal status",
	}, []string{"status"})

	CandidatesIgnoredExisting = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mintwatch",
		Subsystem: "policy",
		Name:      "candidates_ignored_existing_total",
		Help:      "Total detections skipped because they are already in the manifest",
	})

	// Indexer HTTP
	IndexerCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mintwatch",
		Subsystem: "indexer",
		Name:      "calls_total",
		Help:      "Total indexer HTTP calls by host and status class",
	}, []string{"host", "status"})

	IndexerCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mintwatch",
		Subsystem: "indexer",
		Name:      "call_duration_seconds",
		Help:      "Indexer HTTP call duration by host",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 45},
	}, []string{"host"})

	IndexerRateLimitWaits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mintwatch",
		Subsystem: "indexer",
		Name:      "rate_limit_waits_total",
		Help:      "Total indexer calls delayed by the client-side rate limiter",
	})

	ContentCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mintwatch",
		Subsystem: "indexer",
		Name:      "content_cache_total",
		Help:      "Content cache lookups by result",
	}, []string{"result"})

	// Alerting
	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mintwatch",
		Subsystem: "alert",
		Name:      "sent_total",
		Help:      "Total alerts sent by channel and type",
	}, []string{"channel", "type"})

	AlertsCooldownSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mintwatch",
		Subsystem: "alert",
		Name:      "cooldown_skipped_total",
		Help:      "Total alerts suppressed by cooldown",
	}, []string{"channel", "type"})
)
