package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts handled requests by route pattern, method and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radiowalk_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"route", "method", "status"})

	// HTTPLatency records request latency by route pattern.
	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "radiowalk_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	// NearbyQueries counts proximity queries by mode and outcome.
	NearbyQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radiowalk_nearby_queries_total",
		Help: "Total number of nearby station queries",
	}, []string{"mode", "outcome"})

	// NearbyResults observes how many stations a proximity query returned.
	NearbyResults = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "radiowalk_nearby_results",
		Help:    "Number of stations returned per nearby query",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
	})

	// NearbyCandidatesDropped counts bounding box candidates removed by the exact distance cut.
	NearbyCandidatesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radiowalk_nearby_candidates_dropped_total",
		Help: "Bounding box candidates discarded by the exact distance filter",
	})

	// CacheLookups counts station cache lookups by result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radiowalk_station_cache_lookups_total",
		Help: "Station cache lookups by result",
	}, []string{"result"})

	// WebSocketConnections is the gauge of open nearby feed connections.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "radiowalk_websocket_connections",
		Help: "Number of open nearby feed WebSocket connections",
	})
)

// ObserveHTTP records one finished request.
func ObserveHTTP(route, method string, status int, start time.Time) {
	HTTPRequests.WithLabelValues(route, method, statusClass(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
