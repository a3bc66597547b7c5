package domain

import "time"

// EventType identifies the kind of engine output event.
type EventType string

const (
	EventTrade          EventType = "trade"
	EventPartialFill    EventType = "partial_fill"
	EventOrderFilled    EventType = "order_filled"
	EventOrderRested    EventType = "order_rested"
	EventOrderRejected  EventType = "order_rejected"
	EventOrderCancelled EventType = "order_cancelled"
	EventStopPending    EventType = "stop_pending"
	EventStopTriggered  EventType = "stop_triggered"
	EventBookUpdate     EventType = "book_update"
)

// Event is one entry of the engine's output stream. Seq is strictly
// increasing per engine instance.
//
// Field usage by type:
//   - trade: Trade is set; Price and Quantity mirror it.
//   - partial_fill: Remaining is the discarded market quantity.
//   - order_rested: Price and Quantity describe the resting remainder.
//   - book_update: Side and Price identify the level, Quantity is the new
//     aggregate resting quantity (0 when the level was removed).
//   - order_rejected: Reason explains the rejection.
type Event struct {
	Seq        uint64
	Type       EventType
	Instrument string
	OrderID    uint64
	Side       Side
	Price      int64
	Quantity   int64
	Remaining  int64
	Reason     string
	Trade      *Trade
	At         time.Time
}
