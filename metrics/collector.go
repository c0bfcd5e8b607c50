// Package metrics exposes Prometheus collectors for reasoning loops, action
// calls, model calls, delegations and task outcomes.
//
// A nil *Collector is valid and records nothing, so components can take an
// optional collector without nil checks at every call site.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "agentlite"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Collector records agentlite activity.
type Collector struct {
	loopIterations *prometheus.CounterVec
	actions        *prometheus.CounterVec
	modelCalls     *prometheus.CounterVec
	modelDuration  *prometheus.HistogramVec
	delegations    *prometheus.CounterVec
	tasks          *prometheus.CounterVec
}

// NewCollector creates a collector and registers it with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Collector{
		loopIterations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "loop_iterations_total",
				Help:      "Total number of reasoning loop iterations",
			},
			[]string{"agent"},
		),
		actions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "actions_total",
				Help:      "Total number of action executions",
			},
			[]string{"agent", "action", "outcome"},
		),
		modelCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "model_calls_total",
				Help:      "Total number of model completion attempts",
			},
			[]string{"agent", "outcome"},
		),
		modelDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "model_call_duration_seconds",
				Help:      "Model completion latency in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"agent"},
		),
		delegations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "delegations_total",
				Help:      "Total number of delegated task packages",
			},
			[]string{"manager", "member", "outcome"},
		),
		tasks: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "tasks_total",
				Help:      "Total number of task packages that reached a terminal status",
			},
			[]string{"agent", "status"},
		),
	}
}

// IncLoopIteration counts one reasoning cycle of agent.
func (c *Collector) IncLoopIteration(agent string) {
	if c == nil {
		return
	}
	c.loopIterations.WithLabelValues(agent).Inc()
}

// ObserveAction counts an action execution. outcome is OutcomeSuccess or the
// error kind of the failed observation.
func (c *Collector) ObserveAction(agent, action, outcome string) {
	if c == nil {
		return
	}
	c.actions.WithLabelValues(agent, action, outcome).Inc()
}

// ObserveModelCall counts a completion attempt and records its latency.
func (c *Collector) ObserveModelCall(agent, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.modelCalls.WithLabelValues(agent, outcome).Inc()
	c.modelDuration.WithLabelValues(agent).Observe(d.Seconds())
}

// ObserveDelegation counts a delegation from manager to member.
func (c *Collector) ObserveDelegation(manager, member, outcome string) {
	if c == nil {
		return
	}
	c.delegations.WithLabelValues(manager, member, outcome).Inc()
}

// ObserveTask counts a task package that reached a terminal status.
func (c *Collector) ObserveTask(agent, status string) {
	if c == nil {
		return
	}
	c.tasks.WithLabelValues(agent, status).Inc()
}
