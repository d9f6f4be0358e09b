// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP gateway
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "station_http_requests_total",
			Help: "Total number of HTTP requests handled by the gateway",
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "station_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"method", "route"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "station_http_active_requests",
			Help: "Current number of in-flight HTTP requests",
		},
	)

	// WebSocket sessions
	WSConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "station_ws_connections_active",
			Help: "Current number of live WebSocket sessions",
		},
	)

	WSConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "station_ws_connections_total",
			Help: "Total WebSocket sessions opened, by connection class",
		},
		[]string{"class"}, // local, internet, unknown
	)

	WSConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "station_ws_connections_rejected_total",
			Help: "WebSocket upgrades refused before a session was created",
		},
		[]string{"reason"},
	)

	WSDisconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "station_ws_disconnects_total",
			Help: "Sessions removed, by reason",
		},
		[]string{"reason"},
	)

	WSMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "station_ws_messages_received_total",
			Help: "Inbound WebSocket frames by decoded type",
		},
		[]string{"type"},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "station_ws_messages_sent_total",
			Help: "Outbound WebSocket frames queued",
		},
	)

	WSSendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "station_ws_send_failures_total",
			Help: "Outbound frames dropped because the session buffer was full or closed",
		},
	)

	HandshakesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "station_handshakes_total",
			Help: "Hello handshakes by result",
		},
		[]string{"result"}, // ok, missing_npub, callsign_npub_mismatch
	)

	ReconnectsRestored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "station_reconnects_restored_total",
			Help: "Reconnections within the grace window that kept the original connect time",
		},
	)

	// Device HTTP proxy
	ProxyRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "station_proxy_requests_total",
			Help: "Proxied device HTTP requests by result",
		},
		[]string{"result"}, // ok, timeout, stopping, no_device
	)

	ProxyPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "station_proxy_pending",
			Help: "Proxy correlations awaiting a device response",
		},
	)

	// Tile cache
	TileRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "station_tile_requests_total",
			Help: "Tile lookups by the source that satisfied them",
		},
		[]string{"source"}, // memory, disk, origin, miss, rejected
	)

	TileCacheBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "station_tile_cache_bytes",
			Help: "Bytes held by the in-memory tile cache",
		},
	)

	TileCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "station_tile_cache_entries",
			Help: "Tiles held by the in-memory tile cache",
		},
	)

	TileCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "station_tile_cache_evictions_total",
			Help: "Tiles evicted from the in-memory cache",
		},
	)

	TileInvalidPayloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "station_tile_invalid_payloads_total",
			Help: "Tile payloads rejected by integrity validation",
		},
		[]string{"source"}, // disk, origin
	)

	TileOriginDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "station_tile_origin_fetch_seconds",
			Help:    "Origin tile fetch duration",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"result"},
	)

	// Update mirror
	UpdatePolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "station_update_polls_total",
			Help: "Release feed polls by result",
		},
		[]string{"result"}, // ok, http_error, invalid, network
	)

	UpdateAssetsMirrored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "station_update_assets_total",
			Help: "Release assets processed by the mirror",
		},
		[]string{"result"}, // downloaded, skipped, failed
	)

	// Blob store
	BlossomUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "station_blossom_uploads_total",
			Help: "Blob uploads by result",
		},
		[]string{"result"}, // stored, duplicate, too_large, quota
	)

	BlossomStoredBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "station_blossom_stored_bytes",
			Help: "Total bytes held by the blob store",
		},
	)

	// Registry maintenance
	JanitorPurged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "station_janitor_purged_total",
			Help: "Stale bookkeeping entries removed by the janitor",
		},
		[]string{"kind"}, // disconnect, provider
	)

	// Circuit breakers
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "station_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "station_circuit_breaker_requests_total",
			Help: "Requests through circuit breaker",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "station_circuit_breaker_state_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Lifecycle
	ServerUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "station_server_up",
			Help: "1 while the station listener is serving",
		},
	)

	ServerRestarts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "station_server_restarts_total",
			Help: "Listener restarts triggered by Restart or a port change",
		},
	)
)

// RecordHTTPRequest records one completed gateway request.
func RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		HTTPActiveRequests.Inc()
	} else {
		HTTPActiveRequests.Dec()
	}
}

// RecordTileCache publishes the cache size gauges.
func RecordTileCache(entries int, bytes int64) {
	TileCacheEntries.Set(float64(entries))
	TileCacheBytes.Set(float64(bytes))
}

// RecordOriginFetch records an origin fetch outcome and its latency.
func RecordOriginFetch(result string, duration time.Duration) {
	TileOriginDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordSessionOpened counts a new session.
func RecordSessionOpened(class string) {
	WSConnectionsActive.Inc()
	WSConnectionsTotal.WithLabelValues(class).Inc()
}

// RecordSessionClosed counts a removed session.
func RecordSessionClosed(reason string) {
	WSConnectionsActive.Dec()
	WSDisconnects.WithLabelValues(reason).Inc()
}
