package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Turn outcomes.
const (
	OutcomeOK              = "ok"
	OutcomeGenerationError = "generation_error"
	OutcomeExecutionError  = "execution_error"
	OutcomeAnswerError     = "answer_error"
	OutcomeRejected        = "rejected"
)

// Pipeline stages timed per turn.
const (
	StageSQL     = "sql"
	StageExecute = "execute"
	StageAnswer  = "answer"
	StageExport  = "export"
)

var (
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "govsearch_turns_total",
			Help: "Total number of conversation turns by outcome.",
		},
		[]string{"outcome"},
	)
	followUpsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "govsearch_followups_total",
			Help: "Turns classified as follow-ups to a previous query.",
		},
	)
	stageLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "govsearch_generation_latency_seconds",
			Help:    "Latency of each turn stage in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 60},
		},
		[]string{"stage"},
	)
	resultRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "govsearch_result_rows",
			Help:    "Rows returned by executed queries.",
			Buckets: []float64{0, 1, 5, 20, 100, 500, 1000, 5000, 10000},
		},
	)
	exportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "govsearch_exports_total",
			Help: "Result exports by format.",
		},
		[]string{"format"},
	)
)

func init() {
	prometheus.MustRegister(
		turnsTotal,
		followUpsTotal,
		stageLatencySeconds,
		resultRows,
		exportsTotal,
	)
}

func ObserveTurn(outcome string, followUp bool) {
	turnsTotal.WithLabelValues(outcome).Inc()
	if followUp {
		followUpsTotal.Inc()
	}
}

func ObserveStage(stage string, elapsed time.Duration) {
	stageLatencySeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func ObserveResultRows(rows int) {
	if rows < 0 {
		rows = 0
	}
	resultRows.Observe(float64(rows))
}

func IncrementExports(format string) {
	exportsTotal.WithLabelValues(format).Inc()
}
