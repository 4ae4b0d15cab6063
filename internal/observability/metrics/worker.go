package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	jobTotal      *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	jobInFlight   prometheus.Gauge
	questionTotal *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	jobTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "examqa",
			Subsystem: "worker",
			Name:      "generation_jobs_total",
			Help:      "Total processed question generation jobs by status.",
		},
		[]string{"service", "status"},
	)
	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "examqa",
			Subsystem: "worker",
			Name:      "generation_job_duration_seconds",
			Help:      "Question generation job duration in seconds by status.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "status"},
	)
	jobInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "examqa",
			Subsystem: "worker",
			Name:      "generation_jobs_in_flight",
			Help:      "Number of in-flight question generation jobs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	questionTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "examqa",
			Subsystem: "worker",
			Name:      "questions_total",
			Help:      "Total generated questions by verification outcome.",
		},
		[]string{"service", "outcome"},
	)

	registry.MustRegister(jobTotal, jobDuration, jobInFlight, questionTotal)

	return &WorkerMetrics{
		registry:      registry,
		jobTotal:      jobTotal,
		jobDuration:   jobDuration,
		jobInFlight:   jobInFlight,
		questionTotal: questionTotal,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartJob() {
	m.jobInFlight.Inc()
}

func (m *WorkerMetrics) FinishJob(service string, duration time.Duration, err error) {
	m.jobInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.jobTotal.WithLabelValues(service, status).Inc()
	m.jobDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQuestions(service string, verified, rejected int) {
	if verified > 0 {
		m.questionTotal.WithLabelValues(service, "verified").Add(float64(verified))
	}
	if rejected > 0 {
		m.questionTotal.WithLabelValues(service, "rejected").Add(float64(rejected))
	}
}
