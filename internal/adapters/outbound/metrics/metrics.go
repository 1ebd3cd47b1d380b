package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openkraft/issuegate/internal/domain"
)

// Recorder implements domain.PipelineMetrics with Prometheus collectors. It
// also counts agent requests.
type Recorder struct {
	registry *prometheus.Registry

	resolution    *prometheus.CounterVec
	copies        *prometheus.CounterVec
	results       *prometheus.CounterVec
	duration      prometheus.Histogram
	agentRequests *prometheus.CounterVec
}

// New creates a recorder on its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		resolution: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "issuegate",
				Name:      "resolution_outcomes_total",
				Help:      "Resolved file references by outcome",
			},
			[]string{"outcome"},
		),
		copies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "issuegate",
				Name:      "copy_outcomes_total",
				Help:      "Affected file copies by outcome",
			},
			[]string{"outcome"},
		),
		results: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "issuegate",
				Name:      "quality_gate_results_total",
				Help:      "Analysed builds by overall result",
			},
			[]string{"result"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "issuegate",
				Name:      "pipeline_duration_seconds",
				Help:      "Duration of a build's analysis pipeline",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
		agentRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "issuegate",
				Name:      "agent_requests_total",
				Help:      "Workspace agent requests by operation and status code",
			},
			[]string{"op", "code"},
		),
	}
	r.registry.MustRegister(
		r.resolution,
		r.copies,
		r.results,
		r.duration,
		r.agentRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) ObserveResolution(kind domain.OutcomeKind) {
	r.resolution.WithLabelValues(string(kind)).Inc()
}

func (r *Recorder) ObserveCopy(kind domain.OutcomeKind) {
	r.copies.WithLabelValues(string(kind)).Inc()
}

func (r *Recorder) ObserveResult(result domain.OverallResult) {
	r.results.WithLabelValues(string(result)).Inc()
}

func (r *Recorder) ObserveDuration(d time.Duration) {
	r.duration.Observe(d.Seconds())
}

// ObserveAgentRequest counts one request served by the workspace agent.
func (r *Recorder) ObserveAgentRequest(op string, code int) {
	r.agentRequests.WithLabelValues(op, strconv.Itoa(code)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}
