// Package metrics provides Prometheus metrics for insight.
// Counters, gauges and histograms for dispatch, the router and ledger
// paths, the result cache, and health checks.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Dispatch ───────────────────────────────────────────────────────────────

// DispatchTotal counts research requests by requested mode, the path that
// produced the answer, and outcome (success, degraded, demo).
var DispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "insight",
	Name:      "dispatch_total",
	Help:      "Total research requests dispatched.",
}, []string{"requested", "method", "outcome"})

// DispatchLatency tracks end-to-end dispatch duration by attempted path.
var DispatchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "insight",
	Name:      "dispatch_latency_seconds",
	Help:      "Research dispatch duration in seconds.",
	Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 15, 30, 60, 90},
}, []string{"mode"})

// ─── Router ─────────────────────────────────────────────────────────────────

// RouterRequests counts router completions by result (HTTP status code,
// "timeout" or "transport").
var RouterRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "insight",
	Name:      "router_requests_total",
	Help:      "Total router completion requests.",
}, []string{"status"})

// RouterLatency tracks router round-trip time.
var RouterLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "insight",
	Name:      "router_latency_seconds",
	Help:      "Router completion round-trip in seconds.",
	Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 15},
})

// ─── Ledger ─────────────────────────────────────────────────────────────────

// LedgerSubmissions counts task submissions (ok, no_event, error).
var LedgerSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "insight",
	Name:      "ledger_submissions_total",
	Help:      "Total task submissions to the session queue.",
}, []string{"status"})

// LedgerPolls counts result polls (empty, found, error).
var LedgerPolls = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "insight",
	Name:      "ledger_polls_total",
	Help:      "Total task result polls.",
}, []string{"result"})

// LedgerWaitLatency tracks how long a task took to produce a result.
var LedgerWaitLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "insight",
	Name:      "ledger_wait_seconds",
	Help:      "Time from submission to first observed task result.",
	Buckets:   []float64{1, 3, 6, 10, 20, 30, 45, 60, 90},
})

// ─── Cache ──────────────────────────────────────────────────────────────────

// CacheLookups counts result-cache lookups (hit, miss, error).
var CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "insight",
	Name:      "cache_lookups_total",
	Help:      "Total result cache lookups.",
}, []string{"result"})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "insight",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})

// HealthRecoveries tracks recovery attempts after a failed check.
var HealthRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "insight",
	Name:      "health_recoveries_total",
	Help:      "Total recovery attempts per check.",
}, []string{"check"})
