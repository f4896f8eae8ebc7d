// Package metrics exposes Prometheus metrics for submissions, the HTTP API
// and the queue worker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/felixgeelhaar/coach/internal/domain"
)

const namespace = "coach"

// Recorder owns a registry and the collectors registered on it.
type Recorder struct {
	registry *prometheus.Registry

	submissions        *prometheus.CounterVec
	submissionDuration prometheus.Histogram
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	jobs               *prometheus.CounterVec
}

// NewRecorder creates a recorder with Go runtime and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "submissions_total",
			Help:      "Evaluated submissions by feedback category",
		}, []string{"category"}),
		submissionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "submission_duration_seconds",
			Help:      "Time to evaluate a submission end to end",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		jobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "jobs_total",
			Help:      "Submission jobs processed by the worker by outcome",
		}, []string{"outcome"}),
	}
}

// ObserveSubmission records an evaluated submission.
func (r *Recorder) ObserveSubmission(category domain.FeedbackCategory, duration time.Duration) {
	r.submissions.WithLabelValues(string(category)).Inc()
	r.submissionDuration.Observe(duration.Seconds())
}

// ObserveRequest records a served HTTP request.
func (r *Recorder) ObserveRequest(route string, status int, duration time.Duration) {
	r.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// ObserveJob records a processed queue job.
func (r *Recorder) ObserveJob(outcome string) {
	r.jobs.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
