package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/efreitasn/lobsim/internal/domain"
)

// newTestMatcher creates a Matcher with a reference price of 100 ticks and
// a fixed clock. Every event it emits is appended to the returned slice.
func newTestMatcher() (*Matcher, *[]domain.Event) {
	var events []domain.Event
	m := NewMatcher("TEST", 100, EventSinkFunc(func(ev domain.Event) {
		events = append(events, ev)
	}))
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }
	return m, &events
}

func limit(id uint64, side domain.Side, price, qty int64) domain.Order {
	return domain.Order{ID: id, Side: side, Kind: domain.KindLimit, Price: price, Quantity: qty}
}

func market(id uint64, side domain.Side, qty int64) domain.Order {
	return domain.Order{ID: id, Side: side, Kind: domain.KindMarket, Quantity: qty}
}

func stop(id uint64, side domain.Side, trigger, qty int64) domain.Order {
	return domain.Order{ID: id, Side: side, Kind: domain.KindStop, Price: trigger, Quantity: qty}
}

// mustSubmit submits an order and fails the test on a validation error.
func mustSubmit(t *testing.T, m *Matcher, o domain.Order) *domain.Outcome {
	t.Helper()
	out, err := m.Submit(o)
	if err != nil {
		t.Fatalf("submit %d: unexpected error: %v", o.ID, err)
	}
	if err := m.CheckInvariants(); err != nil {
		t.Fatalf("submit %d: invariants: %v", o.ID, err)
	}
	return out
}

func assertTrades(t *testing.T, trades []domain.Trade, want [][2]int64) {
	t.Helper()
	if len(trades) != len(want) {
		t.Fatalf("expected %d trades, got %d: %+v", len(want), len(trades), trades)
	}
	for i, w := range want {
		if trades[i].Price != w[0] || trades[i].Quantity != w[1] {
			t.Errorf("trade %d: expected (%d, %d), got (%d, %d)", i, w[0], w[1], trades[i].Price, trades[i].Quantity)
		}
	}
}

func TestMatcher_ThreeStepScenario(t *testing.T) {
	m, _ := newTestMatcher()

	// Limit buy 99×10 rests.
	out := mustSubmit(t, m, limit(1, domain.SideBuy, 99, 10))
	if out.Status != domain.StatusResting {
		t.Errorf("step 1: expected resting, got %s", out.Status)
	}
	if len(out.Trades) != 0 {
		t.Errorf("step 1: expected no trades, got %d", len(out.Trades))
	}

	// Limit sell 98×4 executes at the resting bid's price.
	out = mustSubmit(t, m, limit(2, domain.SideSell, 98, 4))
	assertTrades(t, out.Trades, [][2]int64{{99, 4}})
	if out.Status != domain.StatusFullyFilled {
		t.Errorf("step 2: expected fully_filled, got %s", out.Status)
	}
	bids := m.TopOfBook(domain.SideBuy, 5)
	if len(bids) != 1 || bids[0].Price != 99 || bids[0].Quantity != 6 {
		t.Fatalf("step 2: expected bids [(99, 6)], got %+v", bids)
	}
	if m.LastTradePrice() != 99 {
		t.Errorf("step 2: expected last trade price 99, got %d", m.LastTradePrice())
	}

	// Stop sell with trigger 99 fires immediately and sweeps the bid.
	out = mustSubmit(t, m, stop(3, domain.SideSell, 99, 10))
	assertTrades(t, out.Trades, [][2]int64{{99, 6}})
	if out.Status != domain.StatusPartiallyFilled {
		t.Errorf("step 3: expected partially_filled, got %s", out.Status)
	}
	if out.Remaining != 4 {
		t.Errorf("step 3: expected remaining 4, got %d", out.Remaining)
	}
	if got := m.TopOfBook(domain.SideBuy, 5); len(got) != 0 {
		t.Errorf("step 3: expected empty bids, got %+v", got)
	}
	if m.PendingStops() != 0 {
		t.Errorf("step 3: expected no pending stops, got %d", m.PendingStops())
	}
}

func TestMatcher_LimitSellEmitsTradeThenBookUpdateThenFilled(t *testing.T) {
	m, events := newTestMatcher()
	mustSubmit(t, m, limit(1, domain.SideBuy, 99, 10))
	*events = nil

	mustSubmit(t, m, limit(2, domain.SideSell, 98, 4))

	want := []domain.EventType{domain.EventTrade, domain.EventBookUpdate, domain.EventOrderFilled}
	if len(*events) != len(want) {
		t.Fatalf("expected %d events, got %d: %+v", len(want), len(*events), *events)
	}
	for i, typ := range want {
		if (*events)[i].Type != typ {
			t.Errorf("event %d: expected %s, got %s", i, typ, (*events)[i].Type)
		}
	}
	trade := (*events)[0].Trade
	if trade == nil || trade.MakerOrderID != 1 || trade.TakerOrderID != 2 || trade.TakerSide != domain.SideSell {
		t.Errorf("unexpected trade attribution: %+v", trade)
	}
	if upd := (*events)[1]; upd.Side != domain.SideBuy || upd.Price != 99 || upd.Quantity != 6 {
		t.Errorf("unexpected book update: %+v", upd)
	}
}

func TestMatcher_EventSeqStrictlyIncreasing(t *testing.T) {
	m, events := newTestMatcher()
	mustSubmit(t, m, limit(1, domain.SideBuy, 99, 10))
	mustSubmit(t, m, limit(2, domain.SideSell, 98, 4))
	mustSubmit(t, m, stop(3, domain.SideSell, 99, 10))

	var last uint64
	for i, ev := range *events {
		if ev.Seq <= last {
			t.Fatalf("event %d: seq %d not greater than %d", i, ev.Seq, last)
		}
		if ev.Instrument != "TEST" {
			t.Errorf("event %d: expected instrument TEST, got %q", i, ev.Instrument)
		}
		last = ev.Seq
	}
}

func TestMatcher_LimitTimePriority(t *testing.T) {
	m, _ := newTestMatcher()
	mustSubmit(t, m, limit(1, domain.SideSell, 100, 2))
	mustSubmit(t, m, limit(2, domain.SideSell, 100, 2))

	out := mustSubmit(t, m, limit(3, domain.SideBuy, 100, 3))
	if len(out.Trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(out.Trades))
	}
	if out.Trades[0].MakerOrderID != 1 || out.Trades[1].MakerOrderID != 2 {
		t.Errorf("expected makers [1 2], got [%d %d]", out.Trades[0].MakerOrderID, out.Trades[1].MakerOrderID)
	}
	assertTrades(t, out.Trades, [][2]int64{{100, 2}, {100, 1}})

	asks := m.TopOfBook(domain.SideSell, 5)
	if len(asks) != 1 || asks[0].Quantity != 1 || asks[0].OrderCount != 1 {
		t.Errorf("expected asks [(100, 1) × 1 order], got %+v", asks)
	}
}

func TestMatcher_LimitStopsAtLimitAndRestsRemainder(t *testing.T) {
	m, _ := newTestMatcher()
	mustSubmit(t, m, limit(1, domain.SideSell, 100, 2))
	mustSubmit(t, m, limit(2, domain.SideSell, 101, 2))
	mustSubmit(t, m, limit(3, domain.SideSell, 103, 5))

	out := mustSubmit(t, m, limit(4, domain.SideBuy, 101, 10))
	assertTrades(t, out.Trades, [][2]int64{{100, 2}, {101, 2}})
	if out.Status != domain.StatusResting {
		t.Errorf("expected resting, got %s", out.Status)
	}
	if out.Remaining != 6 {
		t.Errorf("expected remaining 6, got %d", out.Remaining)
	}

	bid, err := m.BestPrice(domain.SideBuy)
	if err != nil || bid != 101 {
		t.Errorf("expected best bid 101, got %d (%v)", bid, err)
	}
	ask, err := m.BestPrice(domain.SideSell)
	if err != nil || ask != 103 {
		t.Errorf("expected best ask 103, got %d (%v)", ask, err)
	}
}

func TestMatcher_LimitNoCrossRests(t *testing.T) {
	m, _ := newTestMatcher()
	mustSubmit(t, m, limit(1, domain.SideSell, 105, 2))

	out := mustSubmit(t, m, limit(2, domain.SideBuy, 104, 3))
	if len(out.Trades) != 0 || out.Status != domain.StatusResting {
		t.Errorf("expected resting with no trades, got %s with %d trades", out.Status, len(out.Trades))
	}
}

func TestMatcher_MarketPartialFillDiscardsRemainder(t *testing.T) {
	m, events := newTestMatcher()
	mustSubmit(t, m, limit(1, domain.SideSell, 100, 3))

	out := mustSubmit(t, m, market(2, domain.SideBuy, 5))
	assertTrades(t, out.Trades, [][2]int64{{100, 3}})
	if out.Status != domain.StatusPartiallyFilled || out.Remaining != 2 {
		t.Errorf("expected partially_filled with 2 remaining, got %s with %d", out.Status, out.Remaining)
	}
	if _, ok := m.book.Order(2); ok {
		t.Error("market order must never rest")
	}
	if got := m.TopOfBook(domain.SideBuy, 5); len(got) != 0 {
		t.Errorf("expected empty bids, got %+v", got)
	}

	last := (*events)[len(*events)-1]
	if last.Type != domain.EventPartialFill || last.Remaining != 2 || last.Quantity != 3 {
		t.Errorf("expected partial_fill event (filled 3, remaining 2), got %+v", last)
	}
}

func TestMatcher_MarketNoLiquidityRejected(t *testing.T) {
	m, events := newTestMatcher()

	out := mustSubmit(t, m, market(1, domain.SideSell, 7))
	if out.Status != domain.StatusRejected {
		t.Errorf("expected rejected, got %s", out.Status)
	}
	if out.Reason != domain.ReasonNoLiquidity {
		t.Errorf("expected reason %q, got %q", domain.ReasonNoLiquidity, out.Reason)
	}
	if out.Remaining != 7 {
		t.Errorf("expected remaining 7, got %d", out.Remaining)
	}
	if len(*events) != 1 || (*events)[0].Type != domain.EventOrderRejected {
		t.Errorf("expected a single order_rejected event, got %+v", *events)
	}
}

func TestMatcher_MarketSweepsMultipleLevels(t *testing.T) {
	m, _ := newTestMatcher()
	mustSubmit(t, m, limit(1, domain.SideBuy, 99, 2))
	mustSubmit(t, m, limit(2, domain.SideBuy, 97, 2))
	mustSubmit(t, m, limit(3, domain.SideBuy, 98, 2))

	out := mustSubmit(t, m, market(4, domain.SideSell, 5))
	assertTrades(t, out.Trades, [][2]int64{{99, 2}, {98, 2}, {97, 1}})
	if out.Status != domain.StatusFullyFilled {
		t.Errorf("expected fully_filled, got %s", out.Status)
	}
	if avg, _ := out.AveragePrice(); avg != 98 {
		t.Errorf("expected average price 98, got %d", avg)
	}
	if m.LastTradePrice() != 97 {
		t.Errorf("expected last trade price 97, got %d", m.LastTradePrice())
	}
}

func TestMatcher_StopPendingThenTriggered(t *testing.T) {
	m, events := newTestMatcher()
	mustSubmit(t, m, limit(1, domain.SideSell, 101, 5))
	mustSubmit(t, m, limit(2, domain.SideSell, 102, 5))

	out := mustSubmit(t, m, stop(3, domain.SideBuy, 101, 4))
	if out.Status != domain.StatusPending {
		t.Fatalf("expected pending stop, got %s", out.Status)
	}
	if m.PendingStops() != 1 {
		t.Fatalf("expected 1 pending stop, got %d", m.PendingStops())
	}

	out = mustSubmit(t, m, market(4, domain.SideBuy, 2))
	assertTrades(t, out.Trades, [][2]int64{{101, 2}})
	if len(out.Triggered) != 1 {
		t.Fatalf("expected 1 triggered stop, got %d", len(out.Triggered))
	}
	stopOut := out.Triggered[0]
	if stopOut.OrderID != 3 || stopOut.Status != domain.StatusFullyFilled {
		t.Errorf("expected stop 3 fully_filled, got %d %s", stopOut.OrderID, stopOut.Status)
	}
	// The stop runs right after the trade that moved the price.
	assertTrades(t, stopOut.Trades, [][2]int64{{101, 3}, {102, 1}})
	if m.PendingStops() != 0 {
		t.Errorf("expected no pending stops, got %d", m.PendingStops())
	}

	var triggered int
	for _, ev := range *events {
		if ev.Type == domain.EventStopTriggered {
			triggered++
			if ev.OrderID != 3 {
				t.Errorf("expected stop_triggered for order 3, got %d", ev.OrderID)
			}
		}
	}
	if triggered != 1 {
		t.Errorf("expected 1 stop_triggered event, got %d", triggered)
	}
}

func TestMatcher_StopExecutesBeforeTakerResumes(t *testing.T) {
	m, events := newTestMatcher()
	mustSubmit(t, m, limit(1, domain.SideSell, 101, 5))
	mustSubmit(t, m, limit(2, domain.SideSell, 102, 5))
	mustSubmit(t, m, stop(3, domain.SideBuy, 101, 5))
	*events = nil

	// The first fill moves the price to 101 and the stop takes the 102
	// level before the market order gets to it.
	out := mustSubmit(t, m, market(4, domain.SideBuy, 10))
	assertTrades(t, out.Trades, [][2]int64{{101, 5}})
	if out.Status != domain.StatusPartiallyFilled || out.Remaining != 5 {
		t.Errorf("expected partially_filled with 5 remaining, got %s with %d", out.Status, out.Remaining)
	}
	if len(out.Triggered) != 1 {
		t.Fatalf("expected 1 triggered outcome, got %d", len(out.Triggered))
	}
	stopOut := out.Triggered[0]
	if stopOut.OrderID != 3 || stopOut.Status != domain.StatusFullyFilled {
		t.Errorf("expected stop 3 fully_filled, got %d %s", stopOut.OrderID, stopOut.Status)
	}
	assertTrades(t, stopOut.Trades, [][2]int64{{102, 5}})
	if got := m.TopOfBook(domain.SideSell, 5); len(got) != 0 {
		t.Errorf("expected empty asks, got %+v", got)
	}

	var takers []uint64
	for _, ev := range *events {
		if ev.Type == domain.EventTrade {
			takers = append(takers, ev.Trade.TakerOrderID)
		}
	}
	if len(takers) != 2 || takers[0] != 4 || takers[1] != 3 {
		t.Errorf("expected trade takers [4 3], got %v", takers)
	}
}

func TestMatcher_StopChainCascade(t *testing.T) {
	m, _ := newTestMatcher()
	mustSubmit(t, m, limit(1, domain.SideSell, 101, 5))
	mustSubmit(t, m, limit(2, domain.SideSell, 102, 5))
	mustSubmit(t, m, stop(3, domain.SideBuy, 101, 5))
	mustSubmit(t, m, stop(4, domain.SideBuy, 102, 3))

	out := mustSubmit(t, m, market(5, domain.SideBuy, 5))
	assertTrades(t, out.Trades, [][2]int64{{101, 5}})
	if out.Status != domain.StatusFullyFilled {
		t.Errorf("expected fully_filled, got %s", out.Status)
	}
	if len(out.Triggered) != 2 {
		t.Fatalf("expected 2 triggered outcomes, got %d", len(out.Triggered))
	}

	first, second := out.Triggered[0], out.Triggered[1]
	if first.OrderID != 3 || first.Status != domain.StatusFullyFilled {
		t.Errorf("expected stop 3 fully_filled, got %d %s", first.OrderID, first.Status)
	}
	assertTrades(t, first.Trades, [][2]int64{{102, 5}})
	if second.OrderID != 4 || second.Status != domain.StatusRejected || second.Reason != domain.ReasonNoLiquidity {
		t.Errorf("expected stop 4 rejected for no liquidity, got %d %s %q", second.OrderID, second.Status, second.Reason)
	}

	if got := len(out.AllTrades()); got != 2 {
		t.Errorf("expected 2 trades across the cascade, got %d", got)
	}
	if m.LastTradePrice() != 102 {
		t.Errorf("expected last trade price 102, got %d", m.LastTradePrice())
	}
}

func TestMatcher_SimultaneousStopsActivateFIFO(t *testing.T) {
	m, _ := newTestMatcher()
	mustSubmit(t, m, limit(1, domain.SideBuy, 99, 1))
	mustSubmit(t, m, limit(2, domain.SideBuy, 98, 10))
	mustSubmit(t, m, stop(3, domain.SideSell, 99, 2))
	mustSubmit(t, m, stop(4, domain.SideSell, 99, 3))

	out := mustSubmit(t, m, market(5, domain.SideSell, 1))
	if len(out.Triggered) != 2 {
		t.Fatalf("expected 2 triggered outcomes, got %d", len(out.Triggered))
	}
	if out.Triggered[0].OrderID != 3 || out.Triggered[1].OrderID != 4 {
		t.Errorf("expected activation order [3 4], got [%d %d]", out.Triggered[0].OrderID, out.Triggered[1].OrderID)
	}

	bids := m.TopOfBook(domain.SideBuy, 5)
	if len(bids) != 1 || bids[0].Price != 98 || bids[0].Quantity != 5 {
		t.Errorf("expected bids [(98, 5)], got %+v", bids)
	}
}

func TestMatcher_Cancel(t *testing.T) {
	m, events := newTestMatcher()
	mustSubmit(t, m, limit(1, domain.SideBuy, 99, 10))
	mustSubmit(t, m, stop(2, domain.SideSell, 90, 4))

	out, err := m.Cancel(1)
	if err != nil {
		t.Fatalf("cancel resting: %v", err)
	}
	if out.Status != domain.StatusCancelled || out.Remaining != 10 {
		t.Errorf("expected cancelled with 10 remaining, got %s with %d", out.Status, out.Remaining)
	}
	if got := m.TopOfBook(domain.SideBuy, 5); len(got) != 0 {
		t.Errorf("expected empty bids after cancel, got %+v", got)
	}

	out, err = m.Cancel(2)
	if err != nil {
		t.Fatalf("cancel pending stop: %v", err)
	}
	if out.Status != domain.StatusCancelled || out.Remaining != 4 {
		t.Errorf("expected cancelled with 4 remaining, got %s with %d", out.Status, out.Remaining)
	}
	if m.PendingStops() != 0 {
		t.Errorf("expected no pending stops, got %d", m.PendingStops())
	}

	if _, err := m.Cancel(99); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}

	if last := (*events)[len(*events)-1]; last.Type != domain.EventOrderCancelled || last.OrderID != 2 {
		t.Errorf("expected order_cancelled for order 2, got %+v", last)
	}
}

func TestMatcher_ValidationRejectsBeforeAdmission(t *testing.T) {
	tests := []struct {
		name  string
		order domain.Order
	}{
		{"zero quantity", limit(1, domain.SideBuy, 99, 0)},
		{"negative quantity", market(1, domain.SideBuy, -3)},
		{"market with price", domain.Order{ID: 1, Side: domain.SideBuy, Kind: domain.KindMarket, Price: 99, Quantity: 1}},
		{"limit without price", limit(1, domain.SideSell, 0, 1)},
		{"stop with negative trigger", stop(1, domain.SideSell, -1, 1)},
		{"unknown side", domain.Order{ID: 1, Kind: domain.KindLimit, Price: 99, Quantity: 1}},
		{"unknown kind", domain.Order{ID: 1, Side: domain.SideBuy, Price: 99, Quantity: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, events := newTestMatcher()
			out, err := m.Submit(tt.order)
			if out != nil {
				t.Errorf("expected nil outcome, got %+v", out)
			}
			var invalid *domain.InvalidOrderError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected InvalidOrderError, got %v", err)
			}
			if m.book.OrderCount() != 0 || m.PendingStops() != 0 {
				t.Error("rejected order must not touch the book")
			}
			if len(*events) != 1 || (*events)[0].Type != domain.EventOrderRejected {
				t.Errorf("expected a single order_rejected event, got %+v", *events)
			}
		})
	}
}

func TestMatcher_IDsMustIncrease(t *testing.T) {
	m, _ := newTestMatcher()
	mustSubmit(t, m, limit(5, domain.SideBuy, 99, 1))

	var invalid *domain.InvalidOrderError
	if _, err := m.Submit(limit(5, domain.SideBuy, 98, 1)); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidOrderError for a live id, got %v", err)
	}
	if _, err := m.Submit(limit(3, domain.SideBuy, 98, 1)); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidOrderError for an id below the last one, got %v", err)
	}

	// Neither a fill nor a cancel frees an id for reuse.
	mustSubmit(t, m, limit(6, domain.SideSell, 100, 2))
	mustSubmit(t, m, market(7, domain.SideBuy, 2))
	if _, err := m.Submit(limit(6, domain.SideSell, 100, 1)); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidOrderError for the id of a filled order, got %v", err)
	}
	if _, err := m.Cancel(5); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := m.Submit(limit(5, domain.SideBuy, 99, 1)); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidOrderError for the id of a cancelled order, got %v", err)
	}

	// Rejected ids do not move the counter.
	out := mustSubmit(t, m, limit(0, domain.SideBuy, 90, 1))
	if out.OrderID != 8 {
		t.Errorf("expected assigned id 8, got %d", out.OrderID)
	}
}

func TestMatcher_AssignsIDs(t *testing.T) {
	m, _ := newTestMatcher()

	out := mustSubmit(t, m, limit(0, domain.SideBuy, 90, 1))
	if out.OrderID != 1 {
		t.Errorf("expected assigned id 1, got %d", out.OrderID)
	}
	mustSubmit(t, m, limit(10, domain.SideBuy, 90, 1))
	out = mustSubmit(t, m, limit(0, domain.SideBuy, 90, 1))
	if out.OrderID != 11 {
		t.Errorf("expected assigned id 11, got %d", out.OrderID)
	}
}

func TestMatcher_TradeIDsDeterministic(t *testing.T) {
	run := func() []domain.Trade {
		m, _ := newTestMatcher()
		mustSubmit(t, m, limit(1, domain.SideSell, 100, 1))
		mustSubmit(t, m, limit(2, domain.SideSell, 101, 1))
		return mustSubmit(t, m, market(3, domain.SideBuy, 2)).Trades
	}
	a, b := run(), run()
	if len(a) != 2 || len(b) != 2 {
		t.Fatalf("expected 2 trades per run, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i].TradeID == "" || a[i].TradeID != b[i].TradeID {
			t.Errorf("trade %d: ids differ across runs: %q vs %q", i, a[i].TradeID, b[i].TradeID)
		}
	}
	if a[0].TradeID == a[1].TradeID {
		t.Error("trade ids within a run must be unique")
	}
	if a[0].Seq != 1 || a[1].Seq != 2 {
		t.Errorf("expected trade seqs [1 2], got [%d %d]", a[0].Seq, a[1].Seq)
	}
}

func TestMatcher_Snapshot(t *testing.T) {
	m, _ := newTestMatcher()
	mustSubmit(t, m, limit(1, domain.SideBuy, 99, 3))
	mustSubmit(t, m, limit(2, domain.SideBuy, 98, 4))
	mustSubmit(t, m, limit(3, domain.SideSell, 101, 5))
	mustSubmit(t, m, stop(4, domain.SideBuy, 150, 1))

	snap := m.Snapshot(1)
	if len(snap.Bids) != 1 || snap.Bids[0].Price != 99 {
		t.Errorf("expected top bid 99, got %+v", snap.Bids)
	}
	if len(snap.Asks) != 1 || snap.Asks[0].Price != 101 {
		t.Errorf("expected top ask 101, got %+v", snap.Asks)
	}
	if snap.LastTradePrice != 100 {
		t.Errorf("expected reference last trade price 100, got %d", snap.LastTradePrice)
	}
	if snap.PendingStops != 1 || snap.RestingOrders != 3 {
		t.Errorf("expected 1 pending stop and 3 resting orders, got %d and %d", snap.PendingStops, snap.RestingOrders)
	}
}

func TestMatcher_BestPriceEmptyBook(t *testing.T) {
	m, _ := newTestMatcher()
	if _, err := m.BestPrice(domain.SideSell); !errors.Is(err, domain.ErrEmptyBook) {
		t.Errorf("expected ErrEmptyBook, got %v", err)
	}
}

func TestSimulateMarketOrder(t *testing.T) {
	m, _ := newTestMatcher()
	mustSubmit(t, m, limit(1, domain.SideSell, 100, 3))
	mustSubmit(t, m, limit(2, domain.SideSell, 101, 5))

	q := m.SimulateMarketOrder(domain.SideBuy, 5)
	if !q.FullyFillable || q.QuantityAvailable != 5 {
		t.Errorf("expected fully fillable 5, got %v %d", q.FullyFillable, q.QuantityAvailable)
	}
	if len(q.PriceLevels) != 2 || q.PriceLevels[1].Quantity != 2 {
		t.Errorf("unexpected levels: %+v", q.PriceLevels)
	}
	if q.EstimatedTotal == nil || *q.EstimatedTotal != 502 {
		t.Errorf("expected total 502, got %v", q.EstimatedTotal)
	}
	if q.EstimatedAvgPrice == nil || *q.EstimatedAvgPrice != 100 {
		t.Errorf("expected avg 100, got %v", q.EstimatedAvgPrice)
	}

	q = m.SimulateMarketOrder(domain.SideBuy, 10)
	if q.FullyFillable || q.QuantityAvailable != 8 {
		t.Errorf("expected 8 available and not fillable, got %d %v", q.QuantityAvailable, q.FullyFillable)
	}

	q = m.SimulateMarketOrder(domain.SideSell, 1)
	if q.QuantityAvailable != 0 || q.EstimatedAvgPrice != nil {
		t.Errorf("expected no liquidity on bids, got %+v", q)
	}

	// Quotes never touch the book.
	if asks := m.TopOfBook(domain.SideSell, 5); len(asks) != 2 || asks[0].Quantity != 3 {
		t.Errorf("book changed by quote: %+v", asks)
	}
}
