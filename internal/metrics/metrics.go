package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ── HTTP request metrics (RED method) ──────────────────────────────────

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kpi_dashboard",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status_code"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kpi_dashboard",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "kpi_dashboard",
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests currently being processed.",
	})
)

// ── Upstream calls (Blockfrost, KPI store) ─────────────────────────────

var (
	UpstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kpi_dashboard",
		Subsystem: "upstream",
		Name:      "requests_total",
		Help:      "Total upstream calls per source and operation.",
	}, []string{"source", "op", "status"})

	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kpi_dashboard",
		Subsystem: "upstream",
		Name:      "duration_seconds",
		Help:      "Upstream call latency in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"source", "op"})
)

// ObserveUpstream records one finished upstream call.
func ObserveUpstream(source, op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	UpstreamRequestsTotal.WithLabelValues(source, op, status).Inc()
	UpstreamDuration.WithLabelValues(source, op).Observe(time.Since(start).Seconds())
}

// ── Alerts ─────────────────────────────────────────────────────────────

var (
	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kpi_dashboard",
		Subsystem: "alerts",
		Name:      "sent_total",
		Help:      "Total threshold alerts successfully delivered.",
	}, []string{"kpi"})

	AlertsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kpi_dashboard",
		Subsystem: "alerts",
		Name:      "failed_total",
		Help:      "Total threshold alert delivery failures.",
	}, []string{"kpi"})

	AlertsDeduplicatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kpi_dashboard",
		Subsystem: "alerts",
		Name:      "deduplicated_total",
		Help:      "Total threshold alerts suppressed by deduplication.",
	}, []string{"kpi"})
)

// ── Business metrics ───────────────────────────────────────────────────

var (
	KPIValue = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "kpi_dashboard",
		Subsystem: "business",
		Name:      "kpi_value",
		Help:      "Last parsed value of a thresholded KPI.",
	}, []string{"kpi"})

	KPIsStored = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "kpi_dashboard",
		Subsystem: "business",
		Name:      "kpis_stored",
		Help:      "Number of KPIs returned by the last store listing.",
	})
)
