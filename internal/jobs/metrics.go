package jobmetrics

import (
	"errors"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
)

// Task outcomes recorded by Tracker.End.
const (
	OutcomeDone    = "done"
	OutcomeRetry   = "retry"
	OutcomeDropped = "dropped"
)

// Metrics exposes Prometheus collectors for worker tasks.
type Metrics struct {
	tasks    *prometheus.CounterVec
	emails   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the worker metrics against registerer, or the default
// Prometheus registerer when nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker instruments a single task run.
type Tracker struct {
	metrics  *Metrics
	task     string
	template string
	start    time.Time
}

// Track starts a tracker for the given task type.
func (m *Metrics) Track(task string) *Tracker {
	return &Tracker{metrics: m, task: task, start: time.Now()}
}

// Template tags the run with the email template once the payload is decoded.
func (t *Tracker) Template(name string) *Tracker {
	if t != nil {
		t.template = name
	}
	return t
}

// Outcome classifies a handler result the way asynq will treat it.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeDone
	case errors.Is(err, asynq.SkipRetry):
		return OutcomeDropped
	default:
		return OutcomeRetry
	}
}

// End records the outcome and duration and returns err untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.task == "" {
		return err
	}
	outcome := Outcome(err)
	t.metrics.tasks.WithLabelValues(t.task, outcome).Inc()
	t.metrics.duration.WithLabelValues(t.task).Observe(time.Since(t.start).Seconds())
	if t.template != "" {
		t.metrics.emails.WithLabelValues(t.template, outcome).Inc()
	}
	return err
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	tasks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gol_worker_tasks_total",
		Help: "Worker task runs partitioned by task type and outcome.",
	}, []string{"task", "outcome"})
	emails := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gol_emails_total",
		Help: "Transactional email deliveries partitioned by template and outcome.",
	}, []string{"template", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gol_worker_task_duration_seconds",
		Help:    "Duration in seconds of worker task runs.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"task"})
	registerer.MustRegister(tasks, emails, duration)
	return &Metrics{tasks: tasks, emails: emails, duration: duration}
}
