package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the payment metrics.
const (
	OutcomeSuccess    = "success"
	OutcomeNetwork    = "network_error"
	OutcomeRejected   = "rejected"
	OutcomeApplied    = "applied"
	OutcomeNoop       = "noop"
	OutcomePending    = "pending"
	OutcomeFailed     = "failed"
	OutcomeReusedLink = "reused_link"
	OutcomeRecovered  = "recovered_link"
)

// PaymentMetrics records gateway traffic, payment initiation and reconciliation outcomes.
type PaymentMetrics struct {
	gatewayRequests *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
	initiations     *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	gatewayRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_requests_total",
		Help: "Payment gateway calls by operation and outcome.",
	}, []string{"op", "outcome"})
	gatewayDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_duration_seconds",
		Help:    "Latency of payment gateway calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	initiations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_initiations_total",
		Help: "Payment link initiations by purchase kind and outcome.",
	}, []string{"kind", "outcome"})
	reconciliations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliations_total",
		Help: "Payment status reconciliations by purchase kind and outcome.",
	}, []string{"kind", "outcome"})
	reg.MustRegister(gatewayRequests, gatewayDuration, initiations, reconciliations)
	return &PaymentMetrics{
		gatewayRequests: gatewayRequests,
		gatewayDuration: gatewayDuration,
		initiations:     initiations,
		reconciliations: reconciliations,
	}
}

// ObserveGatewayCall records one gateway round trip.
func (m *PaymentMetrics) ObserveGatewayCall(op, outcome string, duration time.Duration) {
	if m == nil || m.gatewayRequests == nil {
		return
	}
	m.gatewayRequests.WithLabelValues(normalizeLabel(op), normalizeLabel(outcome)).Inc()
	m.gatewayDuration.WithLabelValues(normalizeLabel(op)).Observe(duration.Seconds())
}

// IncInitiation counts a payment link initiation attempt.
func (m *PaymentMetrics) IncInitiation(kind, outcome string) {
	if m == nil || m.initiations == nil {
		return
	}
	m.initiations.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
}

// IncReconciliation counts a reconciliation pass.
func (m *PaymentMetrics) IncReconciliation(kind, outcome string) {
	if m == nil || m.reconciliations == nil {
		return
	}
	m.reconciliations.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
