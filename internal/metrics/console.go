package metrics

import "github.com/prometheus/client_golang/prometheus"

// Console Prometheus metrics.
var (
	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esre_console",
			Name:      "backend_requests_total",
			Help:      "Total number of evaluation backend requests",
		},
		[]string{"operation", "status"}, // status: ok, transport_error, backend_error
	)

	BackendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "esre_console",
			Name:      "backend_request_duration_seconds",
			Help:      "Evaluation backend request duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 4},
		},
		[]string{"operation"},
	)

	DisplayCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esre_console",
			Name:      "display_cache_total",
			Help:      "Display map cache lookups",
		},
		[]string{"result"}, // "memo" / "hit" / "miss"
	)

	RatingWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esre_console",
			Name:      "rating_writes_total",
			Help:      "Rating commit and clear outcomes",
		},
		[]string{"action", "outcome"},
	)

	JudgeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esre_console",
			Name:      "judge_requests_total",
			Help:      "Total number of AI judge model requests",
		},
		[]string{"model", "status"},
	)

	JudgeTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esre_console",
			Name:      "judge_tokens_total",
			Help:      "Total AI judge tokens consumed",
		},
		[]string{"model", "type"},
	)
)

var consoleMetricsRegistered bool

// RegisterConsoleMetrics registers console Prometheus metrics. Must be called once from main.
func RegisterConsoleMetrics() {
	if consoleMetricsRegistered {
		return
	}
	prometheus.MustRegister(BackendRequestsTotal)
	prometheus.MustRegister(BackendRequestDuration)
	prometheus.MustRegister(DisplayCacheTotal)
	prometheus.MustRegister(RatingWritesTotal)
	prometheus.MustRegister(JudgeRequestsTotal)
	prometheus.MustRegister(JudgeTokensTotal)
	consoleMetricsRegistered = true
}
