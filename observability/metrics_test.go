package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLedgerMetricsCountPayouts(t *testing.T) {
	m := Ledger()
	if Ledger() != m {
		t.Fatalf("ledger metrics should be a singleton")
	}
	beforePaid := testutil.ToFloat64(m.PayoutCounter("paid"))
	beforeSkipped := testutil.ToFloat64(m.PayoutCounter("skipped"))
	beforeBuyer := testutil.ToFloat64(m.RewardCounter("buyer"))
	beforeSeller := testutil.ToFloat64(m.RewardCounter("seller"))
	beforeSales := testutil.ToFloat64(m.SettlementCounter("buy_listing"))
	beforeTx := testutil.ToFloat64(m.TransactionCounter("committed"))

	m.ObserveSettlement("buy_listing", 1000)
	m.ObserveRewardPayout("paid", 180, 20)
	m.ObserveRewardPayout("skipped", 0, 0)
	m.ObserveTransaction("committed", 3*time.Millisecond)

	if got := testutil.ToFloat64(m.PayoutCounter("paid")) - beforePaid; got != 1 {
		t.Fatalf("paid payouts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PayoutCounter("skipped")) - beforeSkipped; got != 1 {
		t.Fatalf("skipped payouts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RewardCounter("buyer")) - beforeBuyer; got != 180 {
		t.Fatalf("buyer rewards = %v, want 180", got)
	}
	if got := testutil.ToFloat64(m.RewardCounter("seller")) - beforeSeller; got != 20 {
		t.Fatalf("seller rewards = %v, want 20", got)
	}
	if got := testutil.ToFloat64(m.SettlementCounter("buy_listing")) - beforeSales; got != 1 {
		t.Fatalf("settlements = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.TransactionCounter("committed")) - beforeTx; got != 1 {
		t.Fatalf("transactions = %v, want 1", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var ledger *LedgerMetrics
	ledger.ObserveTransaction("failed", time.Second)
	ledger.ObserveSettlement("accept_offer", 1)
	ledger.ObserveRewardPayout("paid", 1, 1)
	var gateway *gatewayMetrics
	gateway.Observe("/v1/accounts", "GET", 200, time.Millisecond)
	gateway.RecordThrottle("rate_limit")
	var evts *eventMetrics
	evts.RecordCommitted("x")
	evts.RecordIndexed("x")
	evts.RecordStreamDrop()
}

func TestEventMetricsNormaliseType(t *testing.T) {
	m := Events()
	before := testutil.ToFloat64(m.IndexedCounter("rewardcenter.reward.paid"))
	m.RecordIndexed(" RewardCenter.Reward.Paid ")
	if got := testutil.ToFloat64(m.IndexedCounter("rewardcenter.reward.paid")) - before; got != 1 {
		t.Fatalf("indexed = %v, want 1", got)
	}
}
