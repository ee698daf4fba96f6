/*
Package observability provides Prometheus metrics for the conversation
engine, exposed through the engine's lifecycle hooks.
*/
package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cadenzahq/cadenza/pkg/domain"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	nodeVisits    *prometheus.CounterVec
	toolCalls     *prometheus.CounterVec
	toolFailures  *prometheus.CounterVec
	toolRetries   prometheus.Counter
	approvals     *prometheus.CounterVec
	compactions   prometheus.Counter
	droppedByComp prometheus.Counter
}

// NewMetrics creates and registers the collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		nodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cadenza",
			Name:      "node_visits_total",
			Help:      "Engine node entries, by node.",
		}, []string{"node"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cadenza",
			Name:      "tool_calls_total",
			Help:      "Tool execution attempts, by tool.",
		}, []string{"tool"}),
		toolFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cadenza",
			Name:      "tool_failures_total",
			Help:      "Failed tool execution attempts, by tool.",
		}, []string{"tool"}),
		toolRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cadenza",
			Name:      "tool_retries_total",
			Help:      "Tool attempts beyond the first, across all tools.",
		}),
		approvals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cadenza",
			Name:      "approvals_total",
			Help:      "Approval gate resolutions, by outcome.",
		}, []string{"outcome"}),
		compactions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cadenza",
			Name:      "compactions_total",
			Help:      "History compaction cycles.",
		}),
		droppedByComp: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cadenza",
			Name:      "compacted_messages_total",
			Help:      "Messages folded into the rolling summary.",
		}),
	}

	reg.MustRegister(
		m.nodeVisits,
		m.toolCalls,
		m.toolFailures,
		m.toolRetries,
		m.approvals,
		m.compactions,
		m.droppedByComp,
	)
	return m
}

// Hooks returns lifecycle hooks that feed these collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, ev *domain.NodeEvent) {
			m.nodeVisits.WithLabelValues(ev.Node).Inc()
		},
		OnToolCall: func(_ context.Context, ev *domain.ToolEvent) {
			m.toolCalls.WithLabelValues(ev.Tool).Inc()
			if ev.Attempt > 1 {
				m.toolRetries.Inc()
			}
		},
		OnToolReturn: func(_ context.Context, ev *domain.ToolEvent) {
			if ev.IsError {
				m.toolFailures.WithLabelValues(ev.Tool).Inc()
			}
		},
		OnApproval: func(_ context.Context, ev *domain.ApprovalEvent) {
			m.approvals.WithLabelValues(ev.Outcome).Inc()
		},
		OnCompaction: func(_ context.Context, ev *domain.CompactionEvent) {
			m.compactions.Inc()
			m.droppedByComp.Add(float64(ev.Dropped))
		},
	}
}
