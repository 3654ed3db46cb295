package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdnchat_http_requests_total",
			Help: "Total number of HTTP requests by route pattern.",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pdnchat_http_request_duration_seconds",
			Help: "HTTP request latency by route pattern.",
			// Chat turns wait on two model calls, so the tail reaches well past DefBuckets.
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path", "status"},
	)
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdnchat_turns_total",
			Help: "Total number of conversation turns by outcome.",
		},
		[]string{"outcome"},
	)
	stageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pdnchat_stage_duration_seconds",
			Help:    "Latency of each turn stage (synthesize, execute, compose, history).",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		},
		[]string{"stage"},
	)
	llmRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdnchat_llm_requests_total",
			Help: "Total number of language model requests by purpose and status.",
		},
		[]string{"purpose", "status"},
	)
	datasetRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdnchat_dataset_refresh_total",
			Help: "Total number of dataset refresh attempts from object storage.",
		},
		[]string{"status"},
	)
	datasetRefreshedAt = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pdnchat_dataset_last_refresh_timestamp_seconds",
			Help: "Unix time of the last successful dataset refresh.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		turnsTotal,
		stageDurationSeconds,
		llmRequestsTotal,
		datasetRefreshTotal,
		datasetRefreshedAt,
	)
}

// ObserveHTTPRequest records one served request. route should be the mux
// pattern so conversation ids never become label values.
func ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	code := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, code).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, code).Observe(elapsed.Seconds())
}

func ObserveTurn(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	turnsTotal.WithLabelValues(outcome).Inc()
}

func ObserveStage(stage string, elapsed time.Duration) {
	stageDurationSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func ObserveLLMRequest(purpose string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	llmRequestsTotal.WithLabelValues(purpose, status).Inc()
}

func ObserveDatasetRefresh(err error, at time.Time) {
	if err != nil {
		datasetRefreshTotal.WithLabelValues("error").Inc()
		return
	}
	datasetRefreshTotal.WithLabelValues("ok").Inc()
	datasetRefreshedAt.Set(float64(at.Unix()))
}
