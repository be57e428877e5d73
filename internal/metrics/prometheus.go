package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "linkbio"

// PrometheusRecorder exports metrics on its own registry.
type PrometheusRecorder struct {
	registry         *prometheus.Registry
	redirects        *prometheus.CounterVec
	redirectDuration prometheus.Histogram
	directoryLoads   *prometheus.CounterVec
	clickSteps       *prometheus.CounterVec
	documentWrites   *prometheus.CounterVec
}

// NewPrometheus creates a recorder with Go runtime and process collectors registered.
func NewPrometheus() *PrometheusRecorder {
	p := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),
		redirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redirects_total",
			Help:      "Redirect requests by result.",
		}, []string{"result"}),
		redirectDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "redirect_duration_seconds",
			Help:      "Time spent resolving a redirect.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		directoryLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "directory_loads_total",
			Help:      "Directory loads by the source that served them.",
		}, []string{"source"}),
		clickSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "click_logging_steps_total",
			Help:      "Background click logging steps by outcome.",
		}, []string{"step", "status"}),
		documentWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_writes_total",
			Help:      "Owner document writes by kind and outcome.",
		}, []string{"kind", "status"}),
	}

	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.redirects,
		p.redirectDuration,
		p.directoryLoads,
		p.clickSteps,
		p.documentWrites,
	)
	return p
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry returns the underlying registry.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

// IncRedirect increments the redirect counter for result.
func (p *PrometheusRecorder) IncRedirect(result string) {
	p.redirects.WithLabelValues(result).Inc()
}

// ObserveRedirectDuration records redirect duration.
func (p *PrometheusRecorder) ObserveRedirectDuration(duration time.Duration) {
	p.redirectDuration.Observe(duration.Seconds())
}

// IncDirectoryLoad increments the directory load counter for source.
func (p *PrometheusRecorder) IncDirectoryLoad(source string) {
	p.directoryLoads.WithLabelValues(source).Inc()
}

// IncClickStep increments the click step counter.
func (p *PrometheusRecorder) IncClickStep(step, status string) {
	p.clickSteps.WithLabelValues(step, status).Inc()
}

// IncDocumentWrite increments the document write counter.
func (p *PrometheusRecorder) IncDocumentWrite(kind, status string) {
	p.documentWrites.WithLabelValues(kind, status).Inc()
}
