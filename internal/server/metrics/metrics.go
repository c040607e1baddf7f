// Package metrics records API and dependency timings for Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependency kinds reported by ObserveDependency.
const (
	KindDB  = "db"
	KindS3  = "s3"
	KindSNS = "sns"
)

var histogramBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

// Recorder receives timings from the router and from the dependency wrappers.
type Recorder interface {
	ObserveRequest(method, route string, status int, d time.Duration)
	ObserveDependency(kind, operation string, d time.Duration, err error)
}

// Prometheus is a Recorder backed by its own registry so the exposition
// endpoint only carries accountkeeper series plus the runtime collectors.
type Prometheus struct {
	registry *prometheus.Registry

	requestTotal   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	depLatency     *prometheus.HistogramVec
	depErrors      *prometheus.CounterVec
}

func NewPrometheus() *Prometheus {
	p := &Prometheus{registry: prometheus.NewRegistry()}

	p.requestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accountkeeper",
		Subsystem: "api",
		Name:      "http_requests_total",
		Help:      "Count of processed HTTP requests",
	}, []string{"method", "route", "status"})

	p.requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "accountkeeper",
		Subsystem: "api",
		Name:      "http_request_duration_seconds",
		Help:      "Latency distribution of HTTP handlers",
		Buckets:   histogramBuckets,
	}, []string{"method", "route", "status"})

	p.depLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "accountkeeper",
		Subsystem: "dependency",
		Name:      "call_duration_seconds",
		Help:      "Latency distribution of database, object storage and notification calls",
		Buckets:   histogramBuckets,
	}, []string{"kind", "operation"})

	p.depErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accountkeeper",
		Subsystem: "dependency",
		Name:      "call_errors_total",
		Help:      "Count of failed dependency calls",
	}, []string{"kind", "operation"})

	p.registry.MustRegister(
		p.requestTotal, p.requestLatency, p.depLatency, p.depErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Prometheus) ObserveRequest(method, route string, status int, d time.Duration) {
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	p.requestTotal.With(labels).Inc()
	p.requestLatency.With(labels).Observe(d.Seconds())
}

func (p *Prometheus) ObserveDependency(kind, operation string, d time.Duration, err error) {
	labels := prometheus.Labels{"kind": kind, "operation": operation}
	p.depLatency.With(labels).Observe(d.Seconds())
	if err != nil {
		p.depErrors.With(labels).Inc()
	}
}

// Handler exposes the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Nop discards everything.
type Nop struct{}

func (Nop) ObserveRequest(string, string, int, time.Duration)      {}
func (Nop) ObserveDependency(string, string, time.Duration, error) {}
