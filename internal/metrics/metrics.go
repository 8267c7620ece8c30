package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentrywall_requests_total",
		Help: "Total number of requests reaching the pipeline orchestrator, by terminal state",
	}, []string{"state"})
	outcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentrywall_rule_outcomes_total",
		Help: "Total number of rule evaluation outcomes, by tenant context and action",
	}, []string{"context", "action"})
	originDispatchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "sentrywall_origin_dispatch_seconds",
		Help: "Time spent forwarding an admitted request to its origin",
	}, []string{"origin_type"})
	eventSinkDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sentrywall_event_sink_dropped_total",
		Help: "Total number of event records dropped due to a full per-worker buffer",
	})
)

// Register registers Prometheus collectors. Call once at startup.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(requestsTotal, outcomesTotal, originDispatchDuration, eventSinkDroppedTotal)
}

// IncRequestState records one request reaching a terminal pipeline state
// (e.g. "block_response", "origin_dispatch", "final_deny").
func IncRequestState(state string) { requestsTotal.WithLabelValues(state).Inc() }

// IncRuleOutcome records one rule-set evaluation outcome for a tenant
// context ("global" or a route id) and action.
func IncRuleOutcome(context, action string) { outcomesTotal.WithLabelValues(context, action).Inc() }

// ObserveOriginDispatch records the latency of a single origin round trip.
func ObserveOriginDispatch(originType string, seconds float64) {
	originDispatchDuration.WithLabelValues(originType).Observe(seconds)
}

// IncEventSinkDropped increments the dropped-event counter surfaced per
// spec.md §4.9's back-pressure policy.
func IncEventSinkDropped() { eventSinkDroppedTotal.Inc() }
