package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peekdir_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "peekdir_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	sandboxViolations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "peekdir_sandbox_violations_total",
			Help: "Request paths rejected for resolving outside the root",
		},
	)

	chunkReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peekdir_chunk_reads_total",
			Help: "Preview chunk reads by result",
		},
		[]string{"result"},
	)

	chunkBytesServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "peekdir_chunk_bytes_served_total",
			Help: "File bytes returned in preview chunks",
		},
	)

	markdownRenderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "peekdir_markdown_render_duration_seconds",
			Help:    "Time spent in the markdown transform pipeline",
			Buckets: prometheus.DefBuckets,
		},
	)

	watchStreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "peekdir_watch_streams_active",
			Help: "Number of open file watch streams",
		},
	)
)

func metricsHandler() http.Handler {
	return promhttp.Handler()
}

func recordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// recordChunkRead records the outcome of one chunk read and the bytes it served
func recordChunkRead(result string, bytes int64) {
	chunkReadsTotal.WithLabelValues(result).Inc()
	if bytes > 0 {
		chunkBytesServed.Add(float64(bytes))
	}
}
