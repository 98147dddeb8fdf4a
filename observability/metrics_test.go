package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"tdcchain/core/events"
)

func TestLedgerMetricsSplitOutcomes(t *testing.T) {
	m := Ledger()
	committed := m.transactions.WithLabelValues("metrics.test", "committed")
	aborted := m.transactions.WithLabelValues("metrics.test", "aborted")
	baseCommitted := testutil.ToFloat64(committed)
	baseAborted := testutil.ToFloat64(aborted)

	m.ObserveTransaction("metrics.test", nil, time.Millisecond)
	m.ObserveTransaction("metrics.test", errors.New("boom"), time.Millisecond)
	m.ObserveTransaction("metrics.test", errors.New("boom"), time.Millisecond)

	if got := testutil.ToFloat64(committed) - baseCommitted; got != 1 {
		t.Fatalf("expected one committed transaction, got %v", got)
	}
	if got := testutil.ToFloat64(aborted) - baseAborted; got != 2 {
		t.Fatalf("expected two aborted transactions, got %v", got)
	}
}

func TestGatewayMetricsBucketStatuses(t *testing.T) {
	m := Gateway()
	counter := m.requests.WithLabelValues("metrics.route", "4xx")
	base := testutil.ToFloat64(counter)
	m.Observe("metrics.route", 403, time.Millisecond)
	m.Observe("metrics.route", 409, time.Millisecond)
	if got := testutil.ToFloat64(counter) - base; got != 2 {
		t.Fatalf("expected two 4xx requests, got %v", got)
	}

	streams := testutil.ToFloat64(m.streams)
	m.StreamOpened()
	m.StreamClosed()
	if got := testutil.ToFloat64(m.streams); got != streams {
		t.Fatalf("stream gauge drifted: %v != %v", got, streams)
	}
}

func TestEventMetricsCountByType(t *testing.T) {
	m := Events()
	counter := m.published.WithLabelValues(events.TypeBadgeRedeemed)
	base := testutil.ToFloat64(counter)
	m.Emit(events.BadgeRedeemed{})
	if got := testutil.ToFloat64(counter) - base; got != 1 {
		t.Fatalf("expected one redeemed event, got %v", got)
	}
}
