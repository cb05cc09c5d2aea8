package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sxpoptimizer/sxpauth/internal/audit"
)

// Metrics holds Prometheus collectors for authentication activity.
type Metrics struct {
	registry prometheus.Gatherer

	AuthEvents          *prometheus.CounterVec
	AccountLockouts     prometheus.Counter
	SuspiciousActivity  *prometheus.CounterVec
	FlowDuration        *prometheus.HistogramVec
	EmailDeliveryErrors *prometheus.CounterVec
	AuditDropped        prometheus.CounterFunc
}

// New registers collectors on reg. A nil reg gets a private registry so tests
// and multiple engines in one process never collide.
func New(reg *prometheus.Registry, auditDropped func() uint64) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	if auditDropped == nil {
		auditDropped = func() uint64 { return 0 }
	}

	return &Metrics{
		registry: reg,
		AuthEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sxpauth_events_total",
			Help: "Authentication events recorded, by action and outcome",
		}, []string{"action", "success"}),
		AccountLockouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "sxpauth_account_lockouts_total",
			Help: "Login attempts rejected because the account was locked",
		}),
		SuspiciousActivity: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sxpauth_suspicious_activity_total",
			Help: "Suspicious activity events derived by heuristics, by reason",
		}, []string{"reason"}),
		FlowDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sxpauth_flow_duration_ms",
			Help:    "Duration of authentication flows in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}, []string{"flow"}),
		EmailDeliveryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sxpauth_email_delivery_errors_total",
			Help: "Emails that could not be handed to the provider, by kind",
		}, []string{"kind"}),
		AuditDropped: factory.NewCounterFunc(prometheus.CounterOpts{
			Name: "sxpauth_audit_dropped_total",
			Help: "Audit events dropped due to dispatcher backpressure",
		}, func() float64 { return float64(auditDropped()) }),
	}
}

// ObserveEvent counts one recorded event. It is safe on a nil receiver.
func (m *Metrics) ObserveEvent(event audit.Event) {
	if m == nil {
		return
	}
	m.AuthEvents.WithLabelValues(string(event.Action), strconv.FormatBool(event.Success)).Inc()

	switch event.Action {
	case audit.ActionAccountLocked:
		m.AccountLockouts.Inc()
	case audit.ActionSuspiciousActivity:
		m.SuspiciousActivity.WithLabelValues(event.ErrorReason).Inc()
	}
}

// ObserveFlow records how long flow took since start.
func (m *Metrics) ObserveFlow(flow string, start time.Time) {
	if m == nil {
		return
	}
	m.FlowDuration.WithLabelValues(flow).Observe(float64(time.Since(start).Milliseconds()))
}

func (m *Metrics) EmailFailed(kind string) {
	if m == nil {
		return
	}
	m.EmailDeliveryErrors.WithLabelValues(kind).Inc()
}

// Handler serves the collectors in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
