package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StorefrontMetrics records order and inventory activity.
type StorefrontMetrics struct {
	ordersCreated     *prometheus.CounterVec
	orderTransitions  *prometheus.CounterVec
	checkoutDuration  prometheus.Histogram
	stockDebitFailed  prometheus.Counter
	stockCreditFailed prometheus.Counter
	outboxPublished   *prometheus.CounterVec
}

// NewStorefrontMetrics registers the storefront metrics on the provided
// registerer. A nil registerer yields a no-op recorder.
func NewStorefrontMetrics(reg prometheus.Registerer) *StorefrontMetrics {
	if reg == nil {
		return &StorefrontMetrics{}
	}
	ordersCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders created, labelled by payment method.",
	}, []string{"payment_method"})
	orderTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Order status transitions.",
	}, []string{"from", "to"})
	checkoutDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of order creation in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	stockDebitFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stock_debit_failures_total",
		Help: "Stock debits that failed after the order was persisted.",
	})
	stockCreditFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stock_credit_failures_total",
		Help: "Stock credits that failed during cancellation or returns.",
	})
	outboxPublished := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_published_total",
		Help: "Outbox events published, labelled by result.",
	}, []string{"result"})
	reg.MustRegister(ordersCreated, orderTransitions, checkoutDuration, stockDebitFailed, stockCreditFailed, outboxPublished)
	return &StorefrontMetrics{
		ordersCreated:     ordersCreated,
		orderTransitions:  orderTransitions,
		checkoutDuration:  checkoutDuration,
		stockDebitFailed:  stockDebitFailed,
		stockCreditFailed: stockCreditFailed,
		outboxPublished:   outboxPublished,
	}
}

// IncOrderCreated counts a created order for the given payment method.
func (m *StorefrontMetrics) IncOrderCreated(paymentMethod string) {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.WithLabelValues(normalizeLabel(paymentMethod)).Inc()
}

// IncOrderTransition counts a status transition.
func (m *StorefrontMetrics) IncOrderTransition(from, to string) {
	if m == nil || m.orderTransitions == nil {
		return
	}
	m.orderTransitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// ObserveCheckoutDuration records how long order creation took.
func (m *StorefrontMetrics) ObserveCheckoutDuration(duration time.Duration) {
	if m == nil || m.checkoutDuration == nil {
		return
	}
	m.checkoutDuration.Observe(duration.Seconds())
}

// IncStockDebitFailure counts a post-persistence stock debit failure.
func (m *StorefrontMetrics) IncStockDebitFailure() {
	if m == nil || m.stockDebitFailed == nil {
		return
	}
	m.stockDebitFailed.Inc()
}

// IncStockCreditFailure counts a failed restock.
func (m *StorefrontMetrics) IncStockCreditFailure() {
	if m == nil || m.stockCreditFailed == nil {
		return
	}
	m.stockCreditFailed.Inc()
}

// IncOutboxPublished counts a publish attempt outcome ("ok" or "error").
func (m *StorefrontMetrics) IncOutboxPublished(result string) {
	if m == nil || m.outboxPublished == nil {
		return
	}
	m.outboxPublished.WithLabelValues(normalizeLabel(result)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
