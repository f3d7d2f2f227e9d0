package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the analytics API.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
	storeQueries    *prometheus.CounterVec
	storeErrors     *prometheus.CounterVec
	exportsTotal    *prometheus.CounterVec
}

// MetricsSnapshot is the JSON view of the counters, served by
// GET /v1/metrics/analytics.
type MetricsSnapshot struct {
	TotalRequests int64   `json:"total_requests"`
	ErrorRate     float64 `json:"error_rate"`
	StoreQueries  int64   `json:"store_queries"`
	StoreErrors   int64   `json:"store_errors"`
	CSVExports    int64   `json:"csv_exports"`
	XLSXExports   int64   `json:"xlsx_exports"`
	Period        string  `json:"period"`
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fintrack_request_duration_seconds",
				Help:    "Duration of analytics operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_requests_total",
				Help: "Total analytics requests processed.",
			},
			[]string{"status"},
		),
		storeQueries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_store_queries_total",
				Help: "Total queries issued to the ledger store.",
			},
			[]string{"query"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_store_errors_total",
				Help: "Total ledger store failures.",
			},
			[]string{"query"},
		),
		exportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_exports_total",
				Help: "Total export downloads by format.",
			},
			[]string{"format"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrRequest increments the request counter with a status label.
func (m *Metrics) IncrRequest(status string) {
	m.requestsTotal.WithLabelValues(status).Inc()
}

// IncrStoreQuery increments the store query counter.
func (m *Metrics) IncrStoreQuery(query string) {
	m.storeQueries.WithLabelValues(query).Inc()
}

// IncrStoreError increments the store error counter.
func (m *Metrics) IncrStoreError(query string) {
	m.storeErrors.WithLabelValues(query).Inc()
}

// IncrExport increments the export counter for a format ("csv" or "xlsx").
func (m *Metrics) IncrExport(format string) {
	m.exportsTotal.WithLabelValues(format).Inc()
}

// GetSnapshot returns the current counter values suitable for the
// GET /v1/metrics/analytics endpoint.
// Note: Prometheus counters expose cumulative values.
func (m *Metrics) GetSnapshot() *MetricsSnapshot {
	success := getCounterValue(m.requestsTotal, "success")
	failure := getCounterValue(m.requestsTotal, "error")
	total := success + failure

	errorRate := float64(0)
	if total > 0 {
		errorRate = failure / total
	}

	queries := float64(0)
	storeErrs := float64(0)
	for _, q := range []string{
		"category_rollups", "top_expenses", "heatmap", "period_totals",
		"daily_flows", "lifetime_balance", "summary", "export_rows",
	} {
		queries += getCounterValue(m.storeQueries, q)
		storeErrs += getCounterValue(m.storeErrors, q)
	}

	return &MetricsSnapshot{
		TotalRequests: int64(total),
		ErrorRate:     errorRate,
		StoreQueries:  int64(queries),
		StoreErrors:   int64(storeErrs),
		CSVExports:    int64(getCounterValue(m.exportsTotal, "csv")),
		XLSXExports:   int64(getCounterValue(m.exportsTotal, "xlsx")),
		Period:        "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
