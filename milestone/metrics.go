package milestone

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer captures telemetry for redistribution runs.
type Observer interface {
	RecordRun(strategy string, duration time.Duration, updatedGoals int, err error)
	RecordSweep(duration time.Duration, ran int, err error)
}

// PrometheusObserver exports balancer metrics to Prometheus.
type PrometheusObserver struct {
	runDuration   *prometheus.HistogramVec
	runErrors     *prometheus.CounterVec
	goalsUpdated  prometheus.Counter
	sweepDuration prometheus.Histogram
	sweepRuns     prometheus.Counter
}

// NewPrometheusObserver registers run and sweep metrics on reg.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "milestone_balancer"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	runDuration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Latency of redistribution runs.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"strategy"}))
	if err != nil {
		return nil, err
	}
	runErrors, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "run_errors_total",
		Help:      "Count of failed redistribution runs.",
	}, []string{"strategy"}))
	if err != nil {
		return nil, err
	}
	goalsUpdated, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "goals_updated_total",
		Help:      "Linked goals re-targeted by redistribution runs.",
	}))
	if err != nil {
		return nil, err
	}
	sweepDuration, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sweep_duration_seconds",
		Help:      "Latency of scheduled sweeps over active milestones.",
		Buckets:   prometheus.DefBuckets,
	}))
	if err != nil {
		return nil, err
	}
	sweepRuns, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweep_runs_total",
		Help:      "Milestones redistributed by scheduled sweeps.",
	}))
	if err != nil {
		return nil, err
	}

	return &PrometheusObserver{
		runDuration:   runDuration,
		runErrors:     runErrors,
		goalsUpdated:  goalsUpdated,
		sweepDuration: sweepDuration,
		sweepRuns:     sweepRuns,
	}, nil
}

// register returns the already registered collector when one exists.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, fmt.Errorf("register balancer metric: %w", err)
	}
	return c, nil
}

// RecordRun tracks run latency, failures and re-targeted goals.
func (o *PrometheusObserver) RecordRun(strategy string, duration time.Duration, updatedGoals int, err error) {
	if o == nil {
		return
	}
	o.runDuration.WithLabelValues(strategy).Observe(duration.Seconds())
	if err != nil {
		o.runErrors.WithLabelValues(strategy).Inc()
		return
	}
	o.goalsUpdated.Add(float64(updatedGoals))
}

func (o *PrometheusObserver) RecordSweep(duration time.Duration, ran int, _ error) {
	if o == nil {
		return
	}
	o.sweepDuration.Observe(duration.Seconds())
	o.sweepRuns.Add(float64(ran))
}

type nopObserver struct{}

func (nopObserver) RecordRun(string, time.Duration, int, error) {}

func (nopObserver) RecordSweep(time.Duration, int, error) {}
