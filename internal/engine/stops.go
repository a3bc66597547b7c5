package engine

import (
	"container/list"
	"fmt"

	"github.com/efreitasn/lobsim/internal/domain"
)

// StopOrderSet holds dormant stop orders in insertion order, indexed by
// order id for O(1) removal.
type StopOrderSet struct {
	order *list.List               // *domain.Order, oldest first
	index map[uint64]*list.Element // order_id → element
}

// NewStopOrderSet creates an empty set.
func NewStopOrderSet() *StopOrderSet {
	return &StopOrderSet{
		order: list.New(),
		index: make(map[uint64]*list.Element),
	}
}

// Add inserts a dormant stop order. Adding an id twice panics.
func (s *StopOrderSet) Add(order *domain.Order) {
	if _, exists := s.index[order.ID]; exists {
		panic(fmt.Sprintf("engine: stop order %d is already pending", order.ID))
	}
	s.index[order.ID] = s.order.PushBack(order)
}

// Remove deletes a pending stop by id.
func (s *StopOrderSet) Remove(id uint64) (*domain.Order, bool) {
	el, ok := s.index[id]
	if !ok {
		return nil, false
	}
	delete(s.index, id)
	return s.order.Remove(el).(*domain.Order), true
}

// Contains reports whether id is pending.
func (s *StopOrderSet) Contains(id uint64) bool {
	_, ok := s.index[id]
	return ok
}

// Len returns the number of pending stops.
func (s *StopOrderSet) Len() int {
	return s.order.Len()
}

// Next removes and returns the oldest stop whose trigger condition holds
// at lastTradePrice.
func (s *StopOrderSet) Next(lastTradePrice int64) (*domain.Order, bool) {
	for el := s.order.Front(); el != nil; el = el.Next() {
		order := el.Value.(*domain.Order)
		if order.StopTriggered(lastTradePrice) {
			s.order.Remove(el)
			delete(s.index, order.ID)
			return order, true
		}
	}
	return nil, false
}

// Pending returns the pending stops in insertion order. The slice is a
// copy; the orders are not.
func (s *StopOrderSet) Pending() []*domain.Order {
	pending := make([]*domain.Order, 0, s.order.Len())
	for el := s.order.Front(); el != nil; el = el.Next() {
		pending = append(pending, el.Value.(*domain.Order))
	}
	return pending
}
