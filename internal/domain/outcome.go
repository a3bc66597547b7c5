package domain

// Status is the final state of a submitted order once the engine has
// finished processing it.
type Status string

const (
	StatusFullyFilled     Status = "fully_filled"
	StatusPartiallyFilled Status = "partially_filled"
	StatusResting         Status = "resting"
	StatusPending         Status = "pending" // dormant stop order
	StatusRejected        Status = "rejected"
	StatusCancelled       Status = "cancelled"
)

// Rejection reasons reported in Outcome.Reason.
const (
	ReasonNoLiquidity = "no_liquidity"
)

// Outcome is the result of processing one order: the trades it took part
// in as the incoming side, plus its final status.
//
// Triggered holds the outcomes of stop orders activated while this order
// was processed, in activation order. Their trades are not included in
// Trades.
type Outcome struct {
	OrderID   uint64
	Status    Status
	Trades    []Trade
	Remaining int64
	Reason    string
	Triggered []*Outcome
}

// FilledQuantity sums the quantity of the outcome's trades.
func (o *Outcome) FilledQuantity() int64 {
	var filled int64
	for _, t := range o.Trades {
		filled += t.Quantity
	}
	return filled
}

// AveragePrice computes the volume-weighted average execution price in
// ticks as sum(trade.price × trade.quantity) / filled quantity using
// integer arithmetic. Returns (price, true) when trades exist, or
// (0, false) when nothing executed.
func (o *Outcome) AveragePrice() (int64, bool) {
	filled := o.FilledQuantity()
	if filled == 0 {
		return 0, false
	}
	var total int64
	for _, t := range o.Trades {
		total += t.Price * t.Quantity
	}
	return total / filled, true
}

// AllTrades returns the outcome's trades followed by the trades of every
// triggered stop, depth first, in execution order.
func (o *Outcome) AllTrades() []Trade {
	trades := append([]Trade(nil), o.Trades...)
	for _, t := range o.Triggered {
		trades = append(trades, t.AllTrades()...)
	}
	return trades
}
