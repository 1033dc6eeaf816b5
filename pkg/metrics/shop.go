package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "chatshop"

// Checkout outcomes.
const (
	OutcomeCommitted        = "committed"
	OutcomeEmptyCart        = "empty_cart"
	OutcomeInconsistent     = "inconsistent"
	OutcomeGatewayError     = "gateway_error"
	OutcomePartial          = "partial"
	OutcomeGroupUnconfirmed = "group_unconfirmed"
)

// ShopMetrics tracks the conversational storefront.
type ShopMetrics struct {
	checkouts      *prometheus.CounterVec
	events         *prometheus.CounterVec
	activeSessions prometheus.Gauge
	orphanedGroups prometheus.Gauge
}

// NewShopMetrics registers storefront metrics on reg. A nil registerer yields a no-op recorder.
func NewShopMetrics(reg prometheus.Registerer) *ShopMetrics {
	if reg == nil {
		return &ShopMetrics{}
	}
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkouts_total",
		Help:      "Checkout commit attempts by outcome.",
	}, []string{"outcome"})
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Inbound chat events by kind.",
	}, []string{"kind"})
	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Session records currently held in memory.",
	})
	orphanedGroups := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "orphaned_order_groups",
		Help:      "Unresolved order groups left by partial checkouts.",
	})
	reg.MustRegister(checkouts, events, activeSessions, orphanedGroups)
	return &ShopMetrics{
		checkouts:      checkouts,
		events:         events,
		activeSessions: activeSessions,
		orphanedGroups: orphanedGroups,
	}
}

func (m *ShopMetrics) IncCheckout(outcome string) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *ShopMetrics) IncEvent(kind string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *ShopMetrics) SetActiveSessions(n int) {
	if m == nil || m.activeSessions == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

func (m *ShopMetrics) SetOrphanedGroups(n int64) {
	if m == nil || m.orphanedGroups == nil {
		return
	}
	m.orphanedGroups.Set(float64(n))
}
