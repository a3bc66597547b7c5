package engine

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/lobsim/internal/domain"
)

// EventSink receives the engine's output events. Publish is called from the
// matching goroutine and must not block.
type EventSink interface {
	Publish(ev domain.Event)
}

// EventSinkFunc adapts a plain function to EventSink.
type EventSinkFunc func(ev domain.Event)

// Publish calls f(ev).
func (f EventSinkFunc) Publish(ev domain.Event) {
	f(ev)
}

// QuotePriceLevel represents a single price level in a quote simulation.
type QuotePriceLevel struct {
	Price    int64
	Quantity int64
}

// QuoteResult holds the result of a market order simulation.
type QuoteResult struct {
	QuantityAvailable int64
	FullyFillable     bool
	EstimatedAvgPrice *int64 // nil when no liquidity
	EstimatedTotal    *int64 // nil when no liquidity
	PriceLevels       []QuotePriceLevel
}

// Snapshot is a point-in-time copy of the book state.
type Snapshot struct {
	Bids           []Level
	Asks           []Level
	LastTradePrice int64
	PendingStops   int
	RestingOrders  int
}

// Matcher is the matching state machine for a single instrument. It owns
// the order book, the pending stop orders and the last trade price.
//
// A Matcher is not safe for concurrent use: Engine gives it a single
// owning goroutine.
type Matcher struct {
	instrument     string
	book           *OrderBook
	stops          *StopOrderSet
	lastTradePrice int64

	lastID   uint64
	orderSeq uint64
	tradeSeq uint64
	eventSeq uint64

	sink    EventSink
	tradeNS uuid.UUID
	now     func() time.Time
}

// NewMatcher creates a Matcher whose last trade price starts at
// referencePrice (in ticks). sink may be nil.
func NewMatcher(instrument string, referencePrice int64, sink EventSink) *Matcher {
	m := &Matcher{
		instrument:     instrument,
		book:           NewOrderBook(),
		stops:          NewStopOrderSet(),
		lastTradePrice: referencePrice,
		sink:           sink,
		tradeNS:        uuid.NewSHA1(uuid.NameSpaceOID, []byte("lobsim/"+instrument)),
		now:            time.Now,
	}
	m.book.onLevelChange = m.levelChanged
	return m
}

// Submit validates and processes one order. A stop triggered by one of its
// trades executes right away, before the order takes its next fill, and
// the whole cascade is drained before Submit returns.
//
// An order with ID 0 is assigned the id after the last one admitted. An
// explicit id must be above every id admitted so far. Validation failures
// return an *domain.InvalidOrderError and leave the engine untouched.
func (m *Matcher) Submit(in domain.Order) (*domain.Outcome, error) {
	order := in
	if order.ID == 0 {
		order.ID = m.lastID + 1
	}
	if err := m.admit(&order); err != nil {
		m.emit(domain.Event{
			Type:     domain.EventOrderRejected,
			OrderID:  order.ID,
			Side:     order.Side,
			Price:    order.Price,
			Quantity: order.Quantity,
			Reason:   err.Error(),
		})
		return nil, err
	}

	var triggered []*domain.Outcome
	out := m.process(&order, &triggered)
	out.Triggered = triggered

	m.assertUncrossed()
	return out, nil
}

// admit validates the order and stamps its admission fields.
func (m *Matcher) admit(order *domain.Order) error {
	if err := order.Validate(); err != nil {
		return err
	}
	if order.ID <= m.lastID {
		return &domain.InvalidOrderError{
			OrderID: order.ID,
			Message: fmt.Sprintf("order id must be above the last admitted id %d", m.lastID),
		}
	}
	m.lastID = order.ID
	m.orderSeq++
	order.Seq = m.orderSeq
	order.OriginalQuantity = order.Quantity
	order.Triggered = false
	return nil
}

// process classifies an admitted order and runs it to a final status.
func (m *Matcher) process(order *domain.Order, triggered *[]*domain.Outcome) *domain.Outcome {
	switch order.Kind {
	case domain.KindMarket:
		return m.executeMarket(order, triggered)
	case domain.KindLimit:
		return m.executeLimit(order, triggered)
	case domain.KindStop:
		if order.StopTriggered(m.lastTradePrice) {
			m.activate(order)
			return m.executeMarket(order, triggered)
		}
		m.stops.Add(order)
		m.emit(domain.Event{
			Type:     domain.EventStopPending,
			OrderID:  order.ID,
			Side:     order.Side,
			Price:    order.Price,
			Quantity: order.Quantity,
		})
		return &domain.Outcome{
			OrderID:   order.ID,
			Status:    domain.StatusPending,
			Remaining: order.Quantity,
		}
	}
	panic(fmt.Sprintf("engine: unhandled order kind %s", order.Kind))
}

// executeMarket matches against the opposite side without a price bound.
// Whatever is left afterwards is discarded, never rested.
func (m *Matcher) executeMarket(order *domain.Order, triggered *[]*domain.Outcome) *domain.Outcome {
	out := &domain.Outcome{OrderID: order.ID}
	out.Trades = m.match(order, false, triggered)
	out.Remaining = order.Quantity

	switch {
	case order.Quantity == 0:
		out.Status = domain.StatusFullyFilled
		m.emit(domain.Event{
			Type:     domain.EventOrderFilled,
			OrderID:  order.ID,
			Side:     order.Side,
			Quantity: order.OriginalQuantity,
		})
	case len(out.Trades) == 0:
		out.Status = domain.StatusRejected
		out.Reason = domain.ReasonNoLiquidity
		m.emit(domain.Event{
			Type:      domain.EventOrderRejected,
			OrderID:   order.ID,
			Side:      order.Side,
			Quantity:  order.OriginalQuantity,
			Remaining: order.Quantity,
			Reason:    domain.ReasonNoLiquidity,
		})
	default:
		out.Status = domain.StatusPartiallyFilled
		m.emit(domain.Event{
			Type:      domain.EventPartialFill,
			OrderID:   order.ID,
			Side:      order.Side,
			Quantity:  order.FilledQuantity(),
			Remaining: order.Quantity,
		})
	}
	return out
}

// executeLimit matches while the opposite side's best price is within the
// order's limit, then rests any remainder on the order's own side.
func (m *Matcher) executeLimit(order *domain.Order, triggered *[]*domain.Outcome) *domain.Outcome {
	out := &domain.Outcome{OrderID: order.ID}
	out.Trades = m.match(order, true, triggered)
	out.Remaining = order.Quantity

	if order.Quantity == 0 {
		out.Status = domain.StatusFullyFilled
		m.emit(domain.Event{
			Type:     domain.EventOrderFilled,
			OrderID:  order.ID,
			Side:     order.Side,
			Price:    order.Price,
			Quantity: order.OriginalQuantity,
		})
		return out
	}

	m.book.AddOrder(order)
	out.Status = domain.StatusResting
	m.emit(domain.Event{
		Type:     domain.EventOrderRested,
		OrderID:  order.ID,
		Side:     order.Side,
		Price:    order.Price,
		Quantity: order.Quantity,
	})
	return out
}

// match walks the opposite side best price first, filling the oldest order
// of each level. When bounded is set it stops at the first level outside
// the order's limit price. After every trade the last trade price moves and
// the stops that now trigger run before the walk resumes.
func (m *Matcher) match(order *domain.Order, bounded bool, triggered *[]*domain.Outcome) []domain.Trade {
	opposite := m.book.Side(order.Side.Opposite())
	var trades []domain.Trade

	for order.Quantity > 0 {
		lvl, ok := opposite.Best()
		if !ok {
			break
		}
		if bounded && !withinLimit(order.Side, order.Price, lvl.Price) {
			break
		}

		maker := m.book.head(lvl)
		price := lvl.Price
		qty := min(order.Quantity, maker.Quantity)

		order.Quantity -= qty
		trade := m.newTrade(order, maker, price, qty)
		trades = append(trades, trade)
		m.emit(domain.Event{
			Type:     domain.EventTrade,
			OrderID:  order.ID,
			Side:     order.Side,
			Price:    price,
			Quantity: qty,
			Trade:    &trade,
		})
		m.book.fill(maker, qty)

		m.lastTradePrice = price
		m.evaluateStops(triggered)
	}
	return trades
}

// evaluateStops executes every pending stop that triggers at the current
// last trade price, oldest first. Each activated stop runs to completion,
// including the stops its own trades trigger, before the next one is
// pulled. Outcomes are appended to triggered in activation order.
func (m *Matcher) evaluateStops(triggered *[]*domain.Outcome) {
	for {
		stop, ok := m.stops.Next(m.lastTradePrice)
		if !ok {
			return
		}
		m.activate(stop)
		idx := len(*triggered)
		*triggered = append(*triggered, nil)
		(*triggered)[idx] = m.executeMarket(stop, triggered)
	}
}

// withinLimit reports whether a resting level price is acceptable for an
// incoming order with the given limit.
func withinLimit(side domain.Side, limit, levelPrice int64) bool {
	if side == domain.SideBuy {
		return levelPrice <= limit
	}
	return levelPrice >= limit
}

// activate converts a stop order into a market order.
func (m *Matcher) activate(order *domain.Order) {
	order.Triggered = true
	m.emit(domain.Event{
		Type:     domain.EventStopTriggered,
		OrderID:  order.ID,
		Side:     order.Side,
		Price:    m.lastTradePrice,
		Quantity: order.Quantity,
	})
}

func (m *Matcher) newTrade(taker, maker *domain.Order, price, qty int64) domain.Trade {
	m.tradeSeq++
	return domain.Trade{
		TradeID:      uuid.NewSHA1(m.tradeNS, []byte(strconv.FormatUint(m.tradeSeq, 10))).String(),
		Seq:          m.tradeSeq,
		Price:        price,
		Quantity:     qty,
		TakerOrderID: taker.ID,
		MakerOrderID: maker.ID,
		TakerSide:    taker.Side,
		ExecutedAt:   m.now(),
	}
}

func (m *Matcher) levelChanged(side domain.Side, price, quantity int64) {
	m.emit(domain.Event{
		Type:     domain.EventBookUpdate,
		Side:     side,
		Price:    price,
		Quantity: quantity,
	})
}

func (m *Matcher) emit(ev domain.Event) {
	m.eventSeq++
	ev.Seq = m.eventSeq
	ev.Instrument = m.instrument
	ev.At = m.now()
	if m.sink != nil {
		m.sink.Publish(ev)
	}
}

func (m *Matcher) assertUncrossed() {
	if m.book.Crossed() {
		bid, _ := m.book.BestPrice(domain.SideBuy)
		ask, _ := m.book.BestPrice(domain.SideSell)
		panic(fmt.Sprintf("engine: %s book crossed: best bid %d >= best ask %d", m.instrument, bid, ask))
	}
}

// Cancel removes a resting limit order or a pending stop order by id.
// Returns an error wrapping domain.ErrOrderNotFound when the id is neither.
func (m *Matcher) Cancel(id uint64) (*domain.Outcome, error) {
	order, err := m.book.RemoveOrder(id)
	if err != nil {
		var ok bool
		if order, ok = m.stops.Remove(id); !ok {
			return nil, fmt.Errorf("cancel order %d: %w", id, domain.ErrOrderNotFound)
		}
	}

	m.emit(domain.Event{
		Type:      domain.EventOrderCancelled,
		OrderID:   order.ID,
		Side:      order.Side,
		Price:     order.Price,
		Remaining: order.Quantity,
	})
	m.assertUncrossed()
	return &domain.Outcome{
		OrderID:   order.ID,
		Status:    domain.StatusCancelled,
		Remaining: order.Quantity,
	}, nil
}

// TopOfBook returns up to levels aggregated levels of a side, best first.
func (m *Matcher) TopOfBook(side domain.Side, levels int) []Level {
	return m.book.TopOfBook(side, levels)
}

// BestPrice returns the best price of a side or an error wrapping
// domain.ErrEmptyBook.
func (m *Matcher) BestPrice(side domain.Side) (int64, error) {
	return m.book.BestPrice(side)
}

// LastTradePrice returns the most recent execution price, or the reference
// price before the first trade.
func (m *Matcher) LastTradePrice() int64 {
	return m.lastTradePrice
}

// PendingStops returns the number of dormant stop orders.
func (m *Matcher) PendingStops() int {
	return m.stops.Len()
}

// Snapshot copies the top levels of both sides and the matcher state.
func (m *Matcher) Snapshot(levels int) Snapshot {
	return Snapshot{
		Bids:           m.book.TopOfBook(domain.SideBuy, levels),
		Asks:           m.book.TopOfBook(domain.SideSell, levels),
		LastTradePrice: m.lastTradePrice,
		PendingStops:   m.stops.Len(),
		RestingOrders:  m.book.OrderCount(),
	}
}

// SimulateMarketOrder performs a read-only walk of the opposite side of the
// book to estimate the result of a market order without placing it. Stop
// orders the fills would trigger are not simulated.
func (m *Matcher) SimulateMarketOrder(side domain.Side, quantity int64) *QuoteResult {
	result := &QuoteResult{
		PriceLevels: make([]QuotePriceLevel, 0),
	}

	remaining := quantity
	var totalCost int64

	m.book.Side(side.Opposite()).Walk(func(lvl *PriceLevel) bool {
		if remaining <= 0 {
			return false
		}
		fillQty := min(lvl.Quantity, remaining)
		totalCost += lvl.Price * fillQty
		result.QuantityAvailable += fillQty
		remaining -= fillQty
		result.PriceLevels = append(result.PriceLevels, QuotePriceLevel{
			Price:    lvl.Price,
			Quantity: fillQty,
		})
		return remaining > 0
	})

	if result.QuantityAvailable > 0 {
		avgPrice := totalCost / result.QuantityAvailable
		result.EstimatedAvgPrice = &avgPrice
		result.EstimatedTotal = &totalCost
	}
	result.FullyFillable = result.QuantityAvailable >= quantity

	return result
}

// CheckInvariants verifies the book and that no pending stop is also
// resting.
func (m *Matcher) CheckInvariants() error {
	if err := m.book.CheckInvariants(); err != nil {
		return err
	}
	for _, stop := range m.stops.Pending() {
		if _, ok := m.book.Order(stop.ID); ok {
			return fmt.Errorf("order %d is both pending and resting", stop.ID)
		}
	}
	return nil
}
