package domain

import "fmt"

// Side indicates whether an order buys (bid) or sells (ask).
type Side uint8

const (
	SideBuy Side = iota + 1
	SideSell
)

// String returns the lowercase name of the side.
func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	}
	return fmt.Sprintf("side(%d)", uint8(s))
}

// Opposite returns the side an order of this side matches against.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Valid reports whether s is one of the defined sides.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// ParseSide converts "buy"/"bid" or "sell"/"ask" into a Side.
func ParseSide(s string) (Side, error) {
	switch s {
	case "buy", "bid":
		return SideBuy, nil
	case "sell", "ask":
		return SideSell, nil
	}
	return 0, &ValidationError{Message: "side must be 'buy' or 'sell'"}
}

// Kind is the closed set of order types the engine understands.
type Kind uint8

const (
	KindMarket Kind = iota + 1
	KindLimit
	KindStop
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindMarket:
		return "market"
	case KindLimit:
		return "limit"
	case KindStop:
		return "stop"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Order is an instruction submitted to the matching engine.
//
// Price is expressed in ticks. It is the limit price for limit orders, the
// trigger price for stop orders and zero for market orders. Quantity is the
// remaining unfilled quantity and shrinks as fills occur; OriginalQuantity
// is fixed at admission.
type Order struct {
	ID               uint64
	Side             Side
	Kind             Kind
	Price            int64
	Quantity         int64
	OriginalQuantity int64
	Seq              uint64 // admission sequence, assigned by the matcher
	Triggered        bool   // stop order converted to market
}

// Validate checks the order before admission. It returns an
// *InvalidOrderError describing the first problem found.
func (o *Order) Validate() error {
	if !o.Side.Valid() {
		return &InvalidOrderError{OrderID: o.ID, Message: "side must be buy or sell"}
	}
	if o.Quantity <= 0 {
		return &InvalidOrderError{OrderID: o.ID, Message: "quantity must be positive"}
	}
	switch o.Kind {
	case KindMarket:
		if o.Price != 0 {
			return &InvalidOrderError{OrderID: o.ID, Message: "market orders must not carry a price"}
		}
	case KindLimit:
		if o.Price <= 0 {
			return &InvalidOrderError{OrderID: o.ID, Message: "limit price must be positive"}
		}
	case KindStop:
		if o.Price <= 0 {
			return &InvalidOrderError{OrderID: o.ID, Message: "stop trigger price must be positive"}
		}
	default:
		return &InvalidOrderError{OrderID: o.ID, Message: "kind must be market, limit or stop"}
	}
	return nil
}

// FilledQuantity returns how much of the order has executed so far.
func (o *Order) FilledQuantity() int64 {
	return o.OriginalQuantity - o.Quantity
}

// StopTriggered reports whether a stop order fires at the given last
// trade price: buy stops at or above the trigger, sell stops at or below.
func (o *Order) StopTriggered(lastTradePrice int64) bool {
	if o.Side == SideBuy {
		return lastTradePrice >= o.Price
	}
	return lastTradePrice <= o.Price
}
