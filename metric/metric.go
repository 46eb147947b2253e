// Package metric provides Prometheus-based metrics for the bot runtime and
// an HTTP server exposing them. A Registry isolates the process's collectors
// so tests can run side by side without global-registry collisions.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry wraps a dedicated Prometheus registry.
type Registry struct {
	reg *prometheus.Registry
}

// NewRegistry creates an empty metrics registry.
func NewRegistry() *Registry {
	return &Registry{reg: prometheus.NewRegistry()}
}

// MustRegister registers collectors, panicking on duplicates. Registration
// happens once at startup, so a duplicate is a programming error.
func (r *Registry) MustRegister(collectors ...prometheus.Collector) {
	r.reg.MustRegister(collectors...)
}

// Prometheus exposes the underlying registry for the HTTP handler.
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.reg
}

// BotMetrics holds the runtime's core metrics.
type BotMetrics struct {
	Connected        prometheus.Gauge
	Reconnects       prometheus.Counter
	EventsReceived   prometheus.Counter
	EventsDropped    prometheus.Counter
	RulesTriggered   *prometheus.CounterVec
	RuleFailures     *prometheus.CounterVec
	ActionsSubmitted *prometheus.CounterVec
	DispatchDuration prometheus.Histogram
}

// NewBotMetrics creates and registers the runtime metrics. A nil registry
// returns nil; callers treat a nil BotMetrics as metrics disabled.
func NewBotMetrics(registry *Registry) *BotMetrics {
	if registry == nil {
		return nil
	}

	m := &BotMetrics{
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "slackreact",
			Subsystem: "connection",
			Name:      "connected",
			Help:      "Gateway connection status (0=disconnected, 1=connected)",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slackreact",
			Subsystem: "connection",
			Name:      "reconnects_total",
			Help:      "Total reconnect cycles since process start",
		}),
		EventsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slackreact",
			Subsystem: "events",
			Name:      "received_total",
			Help:      "Total events decoded from the socket",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slackreact",
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Total events dropped because the dispatch queue was full",
		}),
		RulesTriggered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slackreact",
			Subsystem: "rules",
			Name:      "triggered_total",
			Help:      "Total reactions that produced at least one action",
		}, []string{"rule"}),
		RuleFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slackreact",
			Subsystem: "rules",
			Name:      "failures_total",
			Help:      "Total isolated rule failures by kind",
		}, []string{"rule", "kind"}),
		ActionsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slackreact",
			Subsystem: "actions",
			Name:      "submitted_total",
			Help:      "Total outbound actions submitted to the API",
		}, []string{"method"}),
		DispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "slackreact",
			Subsystem: "dispatch",
			Name:      "duration_seconds",
			Help:      "Wall time of one dispatch batch",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(
		m.Connected, m.Reconnects,
		m.EventsReceived, m.EventsDropped,
		m.RulesTriggered, m.RuleFailures,
		m.ActionsSubmitted, m.DispatchDuration,
	)
	return m
}
