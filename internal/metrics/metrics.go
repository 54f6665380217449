// Package metrics 集中定义 moviefinder 的 prometheus 指标。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeHTTPError = "http_error"
	OutcomeNoResults = "no_results"
	OutcomeRejected  = "rejected"
	OutcomeStale     = "stale"
)

var (
	upstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moviefinder_upstream_requests_total",
		Help: "Outbound requests to movie sources by host and outcome",
	}, []string{"host", "outcome"})

	upstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "moviefinder_upstream_request_duration_seconds",
		Help:    "Outbound request latency by host",
		Buckets: prometheus.DefBuckets,
	}, []string{"host"})

	searchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moviefinder_search_total",
		Help: "Search session transitions by outcome",
	}, []string{"outcome"})

	favoritesPersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moviefinder_favorites_persist_failures_total",
		Help: "Favorites slot writes that failed (state stays in memory)",
	})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "moviefinder_http_request_duration_seconds",
		Help:    "Local API request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// ObserveUpstream 记录一次外部请求。
func ObserveUpstream(host, outcome string, d time.Duration) {
	upstreamRequests.WithLabelValues(host, outcome).Inc()
	upstreamDuration.WithLabelValues(host).Observe(d.Seconds())
}

func IncSearch(outcome string) { searchTotal.WithLabelValues(outcome).Inc() }

func IncFavoritesPersistFailure() { favoritesPersistFailures.Inc() }

// ObserveHTTP 记录一次本地 API 请求。
func ObserveHTTP(method, route, status string, d time.Duration) {
	httpRequestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}
