package engine

import (
	"fmt"

	"github.com/efreitasn/lobsim/internal/domain"
	"github.com/google/btree"
)

// Level is an aggregated, read-only view of one price level.
type Level struct {
	Price      int64
	Quantity   int64
	OrderCount int
}

// PriceLevel holds every resting order at one price. The queue stores
// order ids (indices into the book's order arena), oldest first.
type PriceLevel struct {
	Price    int64
	Quantity int64
	queue    []uint64
}

// OrderCount returns the number of orders queued at the level.
func (l *PriceLevel) OrderCount() int {
	return len(l.queue)
}

// bidLess orders bid levels by price descending, so Min() returns the
// best bid.
func bidLess(a, b *PriceLevel) bool {
	return a.Price > b.Price
}

// askLess orders ask levels by price ascending, so Min() returns the
// best ask.
func askLess(a, b *PriceLevel) bool {
	return a.Price < b.Price
}

// PriceLevelBook is one side of the order book: price levels kept in a
// B-tree, best price first.
type PriceLevelBook struct {
	side   domain.Side
	levels *btree.BTreeG[*PriceLevel]
}

// NewPriceLevelBook creates an empty side. Bids iterate in descending
// price order, asks in ascending order.
func NewPriceLevelBook(side domain.Side) *PriceLevelBook {
	const degree = 32
	less := askLess
	if side == domain.SideBuy {
		less = bidLess
	}
	return &PriceLevelBook{
		side:   side,
		levels: btree.NewG[*PriceLevel](degree, less),
	}
}

// Side returns the side this book holds.
func (b *PriceLevelBook) Side() domain.Side {
	return b.side
}

// Len returns the number of price levels.
func (b *PriceLevelBook) Len() int {
	return b.levels.Len()
}

// Best returns the best-priced level.
func (b *PriceLevelBook) Best() (*PriceLevel, bool) {
	return b.levels.Min()
}

// Level looks up the level at price.
func (b *PriceLevelBook) Level(price int64) (*PriceLevel, bool) {
	return b.levels.Get(&PriceLevel{Price: price})
}

// Walk iterates levels best first. The callback returns false to stop.
func (b *PriceLevelBook) Walk(fn func(*PriceLevel) bool) {
	b.levels.Ascend(fn)
}

// Top returns up to n aggregated levels, best first.
func (b *PriceLevelBook) Top(n int) []Level {
	if n <= 0 {
		return []Level{}
	}
	levels := make([]Level, 0, min(n, b.levels.Len()))
	b.levels.Ascend(func(lvl *PriceLevel) bool {
		levels = append(levels, Level{
			Price:      lvl.Price,
			Quantity:   lvl.Quantity,
			OrderCount: len(lvl.queue),
		})
		return len(levels) < n
	})
	return levels
}

// enqueue appends an order id to the level at price, creating the level
// when it doesn't exist yet.
func (b *PriceLevelBook) enqueue(price int64, id uint64, qty int64) *PriceLevel {
	lvl, ok := b.Level(price)
	if !ok {
		lvl = &PriceLevel{Price: price}
		b.levels.ReplaceOrInsert(lvl)
	}
	lvl.queue = append(lvl.queue, id)
	lvl.Quantity += qty
	return lvl
}

// dequeue removes id from the level at price and subtracts qty from the
// level's aggregate. Returns the level's remaining quantity, 0 when the
// level was deleted.
func (b *PriceLevelBook) dequeue(price int64, id uint64, qty int64) int64 {
	lvl, ok := b.Level(price)
	if !ok {
		panic(fmt.Sprintf("engine: %s level %d missing for order %d", b.side, price, id))
	}
	idx := -1
	for i, queued := range lvl.queue {
		if queued == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		panic(fmt.Sprintf("engine: order %d not queued at %s level %d", id, b.side, price))
	}
	if idx == 0 {
		lvl.queue = lvl.queue[1:]
	} else {
		lvl.queue = append(lvl.queue[:idx], lvl.queue[idx+1:]...)
	}
	lvl.Quantity -= qty
	return b.settle(lvl)
}

// reduce subtracts a partial fill from the level's aggregate.
func (b *PriceLevelBook) reduce(price int64, qty int64) int64 {
	lvl, ok := b.Level(price)
	if !ok {
		panic(fmt.Sprintf("engine: %s level %d missing on partial fill", b.side, price))
	}
	lvl.Quantity -= qty
	return b.settle(lvl)
}

// settle deletes a drained level and enforces that a level with queued
// orders always has positive quantity.
func (b *PriceLevelBook) settle(lvl *PriceLevel) int64 {
	if len(lvl.queue) == 0 {
		if lvl.Quantity != 0 {
			panic(fmt.Sprintf("engine: drained %s level %d left quantity %d", b.side, lvl.Price, lvl.Quantity))
		}
		b.levels.Delete(lvl)
		return 0
	}
	if lvl.Quantity <= 0 {
		panic(fmt.Sprintf("engine: %s level %d has %d orders but quantity %d", b.side, lvl.Price, len(lvl.queue), lvl.Quantity))
	}
	return lvl.Quantity
}

// OrderBook owns the bid and ask sides of one instrument plus the arena
// of resting orders the level queues point into.
type OrderBook struct {
	bids   *PriceLevelBook
	asks   *PriceLevelBook
	orders map[uint64]*domain.Order // order_id → resting order

	// onLevelChange, when set, observes every level mutation with the
	// level's new aggregate quantity (0 when deleted).
	onLevelChange func(side domain.Side, price, quantity int64)
}

// NewOrderBook creates an empty order book.
func NewOrderBook() *OrderBook {
	return &OrderBook{
		bids:   NewPriceLevelBook(domain.SideBuy),
		asks:   NewPriceLevelBook(domain.SideSell),
		orders: make(map[uint64]*domain.Order),
	}
}

// Side returns the PriceLevelBook for the given side.
func (ob *OrderBook) Side(side domain.Side) *PriceLevelBook {
	if side == domain.SideBuy {
		return ob.bids
	}
	return ob.asks
}

// AddOrder rests order.Quantity at order.Price on the order's side.
// Resting a non-positive order or an id that is already resting is a
// programming error and panics.
func (ob *OrderBook) AddOrder(order *domain.Order) {
	if order.Price <= 0 || order.Quantity <= 0 {
		panic(fmt.Sprintf("engine: cannot rest order %d with price %d quantity %d", order.ID, order.Price, order.Quantity))
	}
	if _, exists := ob.orders[order.ID]; exists {
		panic(fmt.Sprintf("engine: order %d is already resting", order.ID))
	}
	ob.orders[order.ID] = order
	lvl := ob.Side(order.Side).enqueue(order.Price, order.ID, order.Quantity)
	ob.notify(order.Side, lvl.Price, lvl.Quantity)
}

// RemoveOrder takes a resting order off the book by id, walking its
// level's queue. Returns domain.ErrOrderNotFound when the id isn't resting.
func (ob *OrderBook) RemoveOrder(id uint64) (*domain.Order, error) {
	order, ok := ob.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	delete(ob.orders, id)
	remaining := ob.Side(order.Side).dequeue(order.Price, id, order.Quantity)
	ob.notify(order.Side, order.Price, remaining)
	return order, nil
}

// Order returns the resting order with the given id.
func (ob *OrderBook) Order(id uint64) (*domain.Order, bool) {
	o, ok := ob.orders[id]
	return o, ok
}

// head returns the oldest order at a level.
func (ob *OrderBook) head(lvl *PriceLevel) *domain.Order {
	order, ok := ob.orders[lvl.queue[0]]
	if !ok {
		panic(fmt.Sprintf("engine: level %d references unknown order %d", lvl.Price, lvl.queue[0]))
	}
	return order
}

// fill executes qty against a resting order, removing it from the book
// once it is exhausted.
func (ob *OrderBook) fill(order *domain.Order, qty int64) {
	if qty <= 0 || qty > order.Quantity {
		panic(fmt.Sprintf("engine: invalid fill of %d against order %d with %d remaining", qty, order.ID, order.Quantity))
	}
	order.Quantity -= qty
	side := ob.Side(order.Side)

	var remaining int64
	if order.Quantity == 0 {
		delete(ob.orders, order.ID)
		remaining = side.dequeue(order.Price, order.ID, qty)
	} else {
		remaining = side.reduce(order.Price, qty)
	}
	ob.notify(order.Side, order.Price, remaining)
}

func (ob *OrderBook) notify(side domain.Side, price, quantity int64) {
	if ob.onLevelChange != nil {
		ob.onLevelChange(side, price, quantity)
	}
}

// BestPrice returns the best price on a side, or an error wrapping
// domain.ErrEmptyBook when the side has no levels.
func (ob *OrderBook) BestPrice(side domain.Side) (int64, error) {
	lvl, ok := ob.Side(side).Best()
	if !ok {
		return 0, fmt.Errorf("%s side: %w", side, domain.ErrEmptyBook)
	}
	return lvl.Price, nil
}

// TopOfBook returns up to levels aggregated price levels for a side,
// best price first. The result is a copy.
func (ob *OrderBook) TopOfBook(side domain.Side, levels int) []Level {
	return ob.Side(side).Top(levels)
}

// RestingQuantity sums all resting quantity on a side.
func (ob *OrderBook) RestingQuantity(side domain.Side) int64 {
	var total int64
	ob.Side(side).Walk(func(lvl *PriceLevel) bool {
		total += lvl.Quantity
		return true
	})
	return total
}

// OrderCount returns the number of resting orders on both sides.
func (ob *OrderBook) OrderCount() int {
	return len(ob.orders)
}

// Crossed reports whether the best bid is at or above the best ask.
func (ob *OrderBook) Crossed() bool {
	bid, okBid := ob.bids.Best()
	ask, okAsk := ob.asks.Best()
	return okBid && okAsk && bid.Price >= ask.Price
}

// CheckInvariants walks the whole book and verifies price ordering,
// positive level quantities, agreement between level aggregates and the
// order arena, and that the book is not crossed.
func (ob *OrderBook) CheckInvariants() error {
	seen := 0
	for _, side := range []*PriceLevelBook{ob.bids, ob.asks} {
		var prev *PriceLevel
		var err error
		side.Walk(func(lvl *PriceLevel) bool {
			if prev != nil {
				if side.side == domain.SideBuy && lvl.Price >= prev.Price {
					err = fmt.Errorf("bid levels not strictly decreasing: %d after %d", lvl.Price, prev.Price)
					return false
				}
				if side.side == domain.SideSell && lvl.Price <= prev.Price {
					err = fmt.Errorf("ask levels not strictly increasing: %d after %d", lvl.Price, prev.Price)
					return false
				}
			}
			if lvl.Quantity <= 0 || len(lvl.queue) == 0 {
				err = fmt.Errorf("%s level %d has quantity %d and %d orders", side.side, lvl.Price, lvl.Quantity, len(lvl.queue))
				return false
			}
			var sum int64
			for _, id := range lvl.queue {
				o, ok := ob.orders[id]
				if !ok {
					err = fmt.Errorf("%s level %d references unknown order %d", side.side, lvl.Price, id)
					return false
				}
				if o.Side != side.side || o.Price != lvl.Price || o.Quantity <= 0 {
					err = fmt.Errorf("order %d (%s %d×%d) misplaced at %s level %d", id, o.Side, o.Price, o.Quantity, side.side, lvl.Price)
					return false
				}
				sum += o.Quantity
			}
			if sum != lvl.Quantity {
				err = fmt.Errorf("%s level %d aggregate %d != order sum %d", side.side, lvl.Price, lvl.Quantity, sum)
				return false
			}
			seen += len(lvl.queue)
			prev = lvl
			return true
		})
		if err != nil {
			return err
		}
	}
	if seen != len(ob.orders) {
		return fmt.Errorf("arena holds %d orders but levels queue %d", len(ob.orders), seen)
	}
	if ob.Crossed() {
		return fmt.Errorf("book is crossed")
	}
	return nil
}
