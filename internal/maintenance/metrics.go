package maintenance

import "github.com/prometheus/client_golang/prometheus"

var (
	retentionRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "govsearch_retention_runs_total",
			Help: "Total number of session retention runs by status.",
		},
		[]string{"status"},
	)
	sessionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "govsearch_sessions_expired_total",
			Help: "Total number of sessions removed by retention.",
		},
	)
	exportsDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "govsearch_exports_deleted_total",
			Help: "Total number of export objects removed by retention.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		retentionRunsTotal,
		sessionsExpiredTotal,
		exportsDeletedTotal,
	)
}
