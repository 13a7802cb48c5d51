package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the storefront collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	checkouts     *prometheus.CounterVec
	cartMutations *prometheus.CounterVec
	aiFallbacks   *prometheus.CounterVec
	events        *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "checkouts_total",
			Help:      "Checkout attempts by terminal state and reason.",
		}, []string{"state", "reason"}),
		cartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "cart_mutations_total",
			Help:      "Persisted cart mutations by operation and result.",
		}, []string{"op", "result"}),
		aiFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "ai_fallbacks_total",
			Help:      "Assistant calls answered with the fixed fallback.",
		}, []string{"operation"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "events_published_total",
			Help:      "Domain events handed to the broker by type.",
		}, []string{"type"}),
	}
	reg.MustRegister(m.checkouts, m.cartMutations, m.aiFallbacks, m.events)
	return m
}

func (m *Metrics) Checkout(state, reason string) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(state, reason).Inc()
}

func (m *Metrics) CartMutation(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.cartMutations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) AIFallback(operation string) {
	if m == nil {
		return
	}
	m.aiFallbacks.WithLabelValues(operation).Inc()
}

func (m *Metrics) EventPublished(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
}
