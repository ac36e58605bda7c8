package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type gatewayMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	gatewayMetricsOnce sync.Once
	gatewayRegistry    *gatewayMetrics

	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics
)

// GatewayMetrics returns the lazily-initialised registry recording HTTP
// gateway activity.
func GatewayMetrics() *gatewayMetrics {
	gatewayMetricsOnce.Do(func() {
		gatewayRegistry = &gatewayMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rewardcenter",
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Total gateway requests segmented by route and outcome.",
			}, []string{"route", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rewardcenter",
				Subsystem: "gateway",
				Name:      "errors_total",
				Help:      "Total gateway errors segmented by route and status code.",
			}, []string{"route", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "rewardcenter",
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for gateway handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rewardcenter",
				Subsystem: "gateway",
				Name:      "throttles_total",
				Help:      "Count of gateway requests rejected by the rate limiter.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			gatewayRegistry.requests,
			gatewayRegistry.errors,
			gatewayRegistry.latency,
			gatewayRegistry.throttles,
		)
	})
	return gatewayRegistry
}

// Observe records the outcome of a gateway request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *gatewayMetrics) Observe(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
		m.errors.WithLabelValues(route, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.requests.WithLabelValues(route, method, outcome).Inc()
	m.latency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit".
func (m *gatewayMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}

// LedgerMetrics observes transaction execution, settlements and reward
// payouts. It satisfies the executor's metrics sink.
type LedgerMetrics struct {
	transactions *prometheus.CounterVec
	txLatency    *prometheus.HistogramVec
	settlements  *prometheus.CounterVec
	volume       *prometheus.CounterVec
	payouts      *prometheus.CounterVec
	rewards      *prometheus.CounterVec
}

// Ledger returns the singleton ledger metrics registry.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rewardcenter",
				Subsystem: "ledger",
				Name:      "transactions_total",
				Help:      "Submitted transactions segmented by outcome (committed, failed, rejected).",
			}, []string{"outcome"}),
			txLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "rewardcenter",
				Subsystem: "ledger",
				Name:      "transaction_duration_seconds",
				Help:      "Time spent verifying and applying a transaction.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"outcome"}),
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rewardcenter",
				Subsystem: "settlement",
				Name:      "total",
				Help:      "Executed sales segmented by path (buy_listing, accept_offer).",
			}, []string{"kind"}),
			volume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rewardcenter",
				Subsystem: "settlement",
				Name:      "volume_total",
				Help:      "Sum of settled sale prices in base units of the treasury mint.",
			}, []string{"kind"}),
			payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rewardcenter",
				Subsystem: "rewards",
				Name:      "payouts_total",
				Help:      "Reward payouts segmented by outcome (paid, reduced, skipped).",
			}, []string{"outcome"}),
			rewards: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rewardcenter",
				Subsystem: "rewards",
				Name:      "paid_total",
				Help:      "Reward tokens paid from treasuries segmented by recipient role.",
			}, []string{"role"}),
		}
		prometheus.MustRegister(
			ledgerRegistry.transactions,
			ledgerRegistry.txLatency,
			ledgerRegistry.settlements,
			ledgerRegistry.volume,
			ledgerRegistry.payouts,
			ledgerRegistry.rewards,
		)
	})
	return ledgerRegistry
}

// ObserveTransaction records a submitted transaction.
func (m *LedgerMetrics) ObserveTransaction(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(outcome).Inc()
	m.txLatency.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveSettlement records an executed sale.
func (m *LedgerMetrics) ObserveSettlement(kind string, price uint64) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(kind).Inc()
	m.volume.WithLabelValues(kind).Add(float64(price))
}

// ObserveRewardPayout records the outcome of a reward payout.
func (m *LedgerMetrics) ObserveRewardPayout(outcome string, buyer, seller uint64) {
	if m == nil {
		return
	}
	m.payouts.WithLabelValues(outcome).Inc()
	if buyer > 0 {
		m.rewards.WithLabelValues("buyer").Add(float64(buyer))
	}
	if seller > 0 {
		m.rewards.WithLabelValues("seller").Add(float64(seller))
	}
}

// SettlementCounter exposes the settlement counter for the supplied kind.
func (m *LedgerMetrics) SettlementCounter(kind string) prometheus.Counter {
	return m.settlements.WithLabelValues(kind)
}

// PayoutCounter exposes the payout counter for the supplied outcome.
func (m *LedgerMetrics) PayoutCounter(outcome string) prometheus.Counter {
	return m.payouts.WithLabelValues(outcome)
}

// RewardCounter exposes the paid reward counter for a recipient role.
func (m *LedgerMetrics) RewardCounter(role string) prometheus.Counter {
	return m.rewards.WithLabelValues(role)
}

// TransactionCounter exposes the transaction counter for an outcome.
func (m *LedgerMetrics) TransactionCounter(outcome string) prometheus.Counter {
	return m.transactions.WithLabelValues(outcome)
}
