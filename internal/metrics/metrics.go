// Package metrics holds the Prometheus collectors for the agent runtime.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics is a private registry plus the collectors the runtime records into.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	turns          *prometheus.CounterVec
	toolExecutions *prometheus.CounterVec
	modelCalls     *prometheus.CounterVec
	modelDuration  *prometheus.HistogramVec
	modelTokens    *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studyhall_turns_total",
			Help: "Chat turns handled, by agent and outcome.",
		}, []string{"agent", "outcome"}),
		toolExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studyhall_tool_executions_total",
			Help: "Tool executions, by tool and outcome.",
		}, []string{"tool", "outcome"}),
		modelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studyhall_model_calls_total",
			Help: "Chat-completion calls, by provider and outcome.",
		}, []string{"provider", "outcome"}),
		modelDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "studyhall_model_call_duration_seconds",
			Help:    "Chat-completion call latency.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		}, []string{"provider"}),
		modelTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studyhall_model_tokens_total",
			Help: "Tokens reported by the model provider, by direction.",
		}, []string{"direction"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.turns, m.toolExecutions, m.modelCalls, m.modelDuration, m.modelTokens,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Turn(agent string, err error) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(agent, outcome(err)).Inc()
}

func (m *Metrics) ToolExecution(tool string, err error) {
	if m == nil {
		return
	}
	m.toolExecutions.WithLabelValues(tool, outcome(err)).Inc()
}

// ModelCall records one provider round-trip and the tokens it reported.
func (m *Metrics) ModelCall(provider string, elapsed time.Duration, inputTokens, outputTokens int64, err error) {
	if m == nil {
		return
	}
	m.modelCalls.WithLabelValues(provider, outcome(err)).Inc()
	m.modelDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
	if inputTokens > 0 {
		m.modelTokens.WithLabelValues("input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.modelTokens.WithLabelValues("output").Add(float64(outputTokens))
	}
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}
