// Package metrics provides Prometheus metrics for fern.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CandidatesTotal tracks accepted candidate pairs by outcome
	CandidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "matching",
			Name:      "candidates_total",
			Help:      "Total number of candidate pairs recorded by the generator",
		},
		[]string{"project", "outcome"},
	)

	// PairsScoredTotal tracks how many pairs the generator scored
	PairsScoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "matching",
			Name:      "pairs_scored_total",
			Help:      "Total number of entity pairs scored",
		},
		[]string{"project", "mode"},
	)

	// GenerateDuration tracks candidate generation runs
	GenerateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "matching",
			Name:      "generate_duration_seconds",
			Help:      "Duration of candidate generation runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		},
		[]string{"project", "mode"},
	)

	// JudgementsTotal tracks judgements written to the decision store
	JudgementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "decision",
			Name:      "judgements_total",
			Help:      "Total number of judgements emitted by judgement value",
		},
		[]string{"project", "judgement", "decided"},
	)

	// InconsistenciesTotal tracks false judgements found inside a true cluster
	InconsistenciesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "decision",
			Name:      "inconsistent_judgements_total",
			Help:      "Total number of false judgements contradicted by a true cluster",
		},
		[]string{"project"},
	)

	// CleanupDeletedTotal tracks stale candidates removed by cleanup
	CleanupDeletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "decision",
			Name:      "cleanup_deleted_total",
			Help:      "Total number of undecided generated mappings deleted",
		},
		[]string{"project"},
	)

	// Clusters tracks the multi-member cluster count after the last canonicalize
	Clusters = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fern",
			Subsystem: "canonical",
			Name:      "clusters",
			Help:      "Number of multi-member clusters after the last canonicalize",
		},
		[]string{"project"},
	)

	// CanonicalizeDuration tracks canonicalize passes
	CanonicalizeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "canonical",
			Name:      "canonicalize_duration_seconds",
			Help:      "Duration of canonicalize passes in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"project"},
	)

	// RecordsIngestedTotal tracks ingested records by kind and status
	RecordsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "ingest",
			Name:      "records_total",
			Help:      "Total number of ingested records by kind and status",
		},
		[]string{"kind", "status"},
	)

	// LockAcquisitionsTotal tracks phase lock acquisition outcomes
	LockAcquisitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "pipeline",
			Name:      "lock_acquisitions_total",
			Help:      "Total number of phase lock acquisitions by phase and status",
		},
		[]string{"phase", "status"},
	)

	// MessagesTotal tracks kafka messages processed or published
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "messages_total",
			Help:      "Total number of kafka messages by direction and status",
		},
		[]string{"direction", "status"},
	)
)
