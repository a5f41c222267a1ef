// Package metrics exposes supervisor state as Prometheus metrics.
//
// The Recorder consumes the orchestrator's state-change subscription; it
// never queries the core loop.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"warden/internal/api"
	"warden/pkg/logging"
)

const namespace = "warden"

// Recorder owns a registry with the warden metrics.
type Recorder struct {
	registry *prometheus.Registry

	serviceState     *prometheus.GaugeVec
	transitionsTotal *prometheus.CounterVec
	restartsTotal    *prometheus.CounterVec
}

// QueueLengther reports pending core events.
type QueueLengther interface {
	Len() int
}

// NewRecorder creates a recorder. queue may be nil.
func NewRecorder(queue QueueLengther) *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	r := &Recorder{
		registry: reg,
		serviceState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "service",
				Name:      "state",
				Help:      "Current lifecycle state of a service (1 for the current state, 0 otherwise)",
			},
			[]string{"service", "state"},
		),
		transitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "service",
				Name:      "transitions_total",
				Help:      "Total number of lifecycle transitions",
			},
			[]string{"service", "from", "to"},
		),
		restartsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "service",
				Name:      "restarts_total",
				Help:      "Total number of automatic restarts scheduled",
			},
			[]string{"service"},
		),
	}

	if queue != nil {
		factory.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "event_queue_length",
				Help:      "Events waiting for the core loop",
			},
			func() float64 { return float64(queue.Len()) },
		)
	}
	return r
}

// Observe records one state change. A change without a target state
// announces a removed service.
func (r *Recorder) Observe(c api.StateChange) {
	if c.To == "" {
		r.Forget(c.Name)
		return
	}
	for _, s := range api.AllStates {
		v := 0.0
		if s == c.To {
			v = 1
		}
		r.serviceState.WithLabelValues(c.Name, string(s)).Set(v)
	}
	r.transitionsTotal.WithLabelValues(c.Name, string(c.From), string(c.To)).Inc()
	if c.To == api.StateRestarting {
		r.restartsTotal.WithLabelValues(c.Name).Inc()
	}
}

// Forget drops the series of a removed service.
func (r *Recorder) Forget(name string) {
	r.serviceState.DeletePartialMatch(prometheus.Labels{"service": name})
	r.transitionsTotal.DeletePartialMatch(prometheus.Labels{"service": name})
	r.restartsTotal.DeletePartialMatch(prometheus.Labels{"service": name})
}

// Run consumes changes until the channel closes or ctx is done.
func (r *Recorder) Run(ctx context.Context, changes <-chan api.StateChange) {
	logging.Debug("Metrics", "Recording state changes")
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			r.Observe(c)
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
