package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "courier"

// Route outcome label values.
const (
	OutcomeDelivered = "delivered"
	OutcomeMailboxed = "mailboxed"
	OutcomeRejected  = "rejected"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	routed       *prometheus.CounterVec
	flushed      prometheus.Counter
	requeued     prometheus.Counter
	mailboxDepth prometheus.Gauge
	online       prometheus.Gauge
	connections  prometheus.Gauge
	authFailures prometheus.Counter
	rateLimited  prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		routed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_routed_total",
			Help:      "Messages handled by the router, by outcome.",
		}, []string{"outcome"}),
		flushed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_flushed_total",
			Help:      "Mailboxed messages delivered on authenticate.",
		}),
		requeued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_requeued_total",
			Help:      "Messages put back into a mailbox after a failed push.",
		}),
		mailboxDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mailbox_depth",
			Help:      "Messages currently waiting in mailboxes.",
		}),
		online: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "identities_online",
			Help:      "Identities currently bound to a connection.",
		}),
		connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_open",
			Help:      "Open realtime connections, authenticated or not.",
		}),
		authFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Authenticate events for unknown identities.",
		}),
		rateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_rate_limited_total",
			Help:      "Send events rejected by the rate limiter.",
		}),
	}
}

func (m *Metrics) Routed(outcome string) {
	if m == nil {
		return
	}
	m.routed.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Flushed(n int) {
	if m == nil {
		return
	}
	m.flushed.Add(float64(n))
}

func (m *Metrics) Requeued(n int) {
	if m == nil {
		return
	}
	m.requeued.Add(float64(n))
}

func (m *Metrics) SetMailboxDepth(n int) {
	if m == nil {
		return
	}
	m.mailboxDepth.Set(float64(n))
}

func (m *Metrics) SetOnline(n int) {
	if m == nil {
		return
	}
	m.online.Set(float64(n))
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

func (m *Metrics) AuthFailed() {
	if m == nil {
		return
	}
	m.authFailures.Inc()
}

func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}
