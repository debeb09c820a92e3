// Package metrics holds the Prometheus collectors of the credit service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LedgerEntries counts committed ledger entries by reason.
var LedgerEntries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "credits",
	Subsystem: "ledger",
	Name:      "entries_total",
	Help:      "Committed ledger entries by reason.",
}, []string{"reason"})

// LedgerCredits sums committed deltas by reason and sign.
var LedgerCredits = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "credits",
	Subsystem: "ledger",
	Name:      "credits_total",
	Help:      "Absolute credits moved through the ledger by reason and direction.",
}, []string{"reason", "direction"})

// Consumptions counts consume-credit calls by outcome.
var Consumptions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "credits",
	Subsystem: "consumption",
	Name:      "attempts_total",
	Help:      "Credit consumption attempts by outcome.",
}, []string{"outcome"})

// Redemptions counts promo redemption attempts by outcome.
var Redemptions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "credits",
	Subsystem: "promo",
	Name:      "redemptions_total",
	Help:      "Promo redemption attempts by outcome.",
}, []string{"outcome"})

// PaymentNotifications counts payment-completed notifications by outcome.
var PaymentNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "credits",
	Subsystem: "billing",
	Name:      "payment_notifications_total",
	Help:      "Payment completion notifications by outcome.",
}, []string{"outcome"})

// Conflicts counts write conflicts that were re-evaluated.
var Conflicts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "credits",
	Subsystem: "store",
	Name:      "conflicts_total",
	Help:      "Unique-constraint or serialization conflicts resolved by re-evaluation.",
}, []string{"operation"})

// HTTPDuration observes request latency by route pattern.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "credits",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "route", "status"})

// ObserveDelta records a committed ledger delta.
func ObserveDelta(reason string, delta int) {
	LedgerEntries.WithLabelValues(reason).Inc()
	direction := "credit"
	if delta < 0 {
		direction = "debit"
		delta = -delta
	}
	LedgerCredits.WithLabelValues(reason, direction).Add(float64(delta))
}
