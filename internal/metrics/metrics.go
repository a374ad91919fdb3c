package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "yard"

// Исходы задачи распознавания
const (
	OutcomeCompleted = "completed"
	OutcomeNoPlate   = "no_plate"
	OutcomeFailed    = "failed"
	OutcomeTimeout   = "timeout"
	OutcomePanic     = "panic"
	OutcomeRejected  = "rejected"
	OutcomeAborted   = "aborted"
)

var (
	RecognitionJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "recognition",
		Name:      "jobs_total",
		Help:      "Recognition jobs by outcome.",
	}, []string{"outcome"})

	RecognitionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "recognition",
		Name:      "job_duration_seconds",
		Help:      "Time spent in the OCR engine per job.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
	})

	RecognitionQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "recognition",
		Name:      "queue_depth",
		Help:      "Images waiting for a recognition worker.",
	})

	ParkingOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "parking",
		Name:      "operations_total",
		Help:      "Allocate and release calls by operation and result.",
	}, []string{"operation", "result"})

	FuzzyPlateMatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "parking",
		Name:      "fuzzy_matches_total",
		Help:      "Allocations resolved through approximate plate matching.",
	})
)
