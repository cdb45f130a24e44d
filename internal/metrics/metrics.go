package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sakashimaa/inventory-audit/internal/domain"
)

// Metrics methods are no-ops on a nil receiver, so components can be built
// without a registry.
type Metrics struct {
	stockChanges  prometheus.Counter
	importRecords *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		stockChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "inventory",
			Name:      "stock_changes_total",
			Help:      "Stock changes recorded in the audit ledger.",
		}),
		importRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inventory",
			Name:      "import_records_total",
			Help:      "Imported records by outcome.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inventory",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "inventory",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(m.stockChanges, m.importRecords, m.httpRequests, m.httpDuration)

	return m
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

func (m *Metrics) StockChanged() {
	if m == nil {
		return
	}
	m.stockChanges.Inc()
}

func (m *Metrics) ImportFinished(summary *domain.ImportSummary) {
	if m == nil || summary == nil {
		return
	}

	m.importRecords.WithLabelValues("added").Add(float64(summary.Added))
	m.importRecords.WithLabelValues("skipped").Add(float64(summary.Skipped))
	m.importRecords.WithLabelValues("duplicate").Add(float64(len(summary.Duplicates) - summary.Merged))
	m.importRecords.WithLabelValues("merged").Add(float64(summary.Merged))
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
