package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Policy engine metrics
	PolicyDecisions   *prometheus.CounterVec
	PolicyEvalLatency prometheus.Histogram
	ProviderFailures  *prometheus.CounterVec

	// Cross-jurisdiction routing metrics
	RoutingDecisions *prometheus.CounterVec
	RoutingLatency   prometheus.Histogram
	GrantsIssued     prometheus.Counter
	GrantsRevoked    prometheus.Counter
	ExportChecks     *prometheus.CounterVec

	// Case management metrics
	CasesCreated    prometheus.Counter
	EvidenceAdded   prometheus.Counter
	UsersRegistered prometheus.Counter

	// HTTP metrics
	EndpointLatency *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		PolicyDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_policy_decisions_total",
			Help: "Policy engine decisions by outcome",
		}, []string{"outcome"}),
		PolicyEvalLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "custodia_policy_eval_duration_seconds",
			Help:    "Policy evaluation latency",
			Buckets: prometheus.DefBuckets,
		}),
		ProviderFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_attribute_provider_failures_total",
			Help: "Attribute provider failures by provider name",
		}, []string{"provider"}),
		RoutingDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_routing_decisions_total",
			Help: "Cross-jurisdiction routing decisions by terminal state",
		}, []string{"decision"}),
		RoutingLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "custodia_routing_duration_seconds",
			Help:    "Cross-jurisdiction routing latency",
			Buckets: prometheus.DefBuckets,
		}),
		GrantsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_grants_issued_total",
			Help: "Cross-jurisdiction access grants issued",
		}),
		GrantsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_grants_revoked_total",
			Help: "Cross-jurisdiction access grants revoked",
		}),
		ExportChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_export_compliance_checks_total",
			Help: "Evidence export compliance checks by result",
		}, []string{"allowed"}),
		CasesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_cases_created_total",
			Help: "Cases created",
		}),
		EvidenceAdded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_evidence_added_total",
			Help: "Evidence items added",
		}),
		UsersRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_users_registered_total",
			Help: "Users registered",
		}),
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "custodia_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// ObservePolicyEval records a policy evaluation outcome and its latency.
func (m *Metrics) ObservePolicyEval(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.PolicyDecisions.WithLabelValues(outcome).Inc()
	m.PolicyEvalLatency.Observe(d.Seconds())
}

// ObserveRouting records a routing decision and its latency.
func (m *Metrics) ObserveRouting(decision string, d time.Duration) {
	if m == nil {
		return
	}
	m.RoutingDecisions.WithLabelValues(decision).Inc()
	m.RoutingLatency.Observe(d.Seconds())
}

// IncProviderFailure records an attribute provider failure.
func (m *Metrics) IncProviderFailure(provider string) {
	if m == nil {
		return
	}
	m.ProviderFailures.WithLabelValues(provider).Inc()
}
