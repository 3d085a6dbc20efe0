package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	PurposeEscrow       = "escrow"
	PurposeSubscription = "subscription"

	OutcomeOK    = "ok"
	OutcomeError = "error"

	DecisionAllow = "allow"
	DecisionDeny  = "deny"
)

// Metrics holds the payment and quota instruments. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	checkouts     *prometheus.CounterVec
	webhookEvents *prometheus.CounterVec
	quota         *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// New creates the instruments and registers them with registerer, falling
// back to the default registry when registerer is nil.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusgigs_checkout_initiations_total",
			Help: "Hosted checkout initiations by purpose and outcome.",
		}, []string{"purpose", "outcome"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusgigs_webhook_events_total",
			Help: "Payment provider callbacks by kind and outcome.",
		}, []string{"kind", "outcome"}),
		quota: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusgigs_quota_decisions_total",
			Help: "Gig posting quota decisions.",
		}, []string{"decision"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "campusgigs_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	registerer.MustRegister(m.checkouts, m.webhookEvents, m.quota, m.httpDuration)
	return m
}

func (m *Metrics) CheckoutInitiated(purpose string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.checkouts.WithLabelValues(purpose, outcome).Inc()
}

func (m *Metrics) WebhookEvent(kind, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) QuotaDecision(allowed bool) {
	if m == nil {
		return
	}
	decision := DecisionAllow
	if !allowed {
		decision = DecisionDeny
	}
	m.quota.WithLabelValues(decision).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
