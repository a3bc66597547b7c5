package domain

import "time"

// Trade represents a single execution between an incoming (taker) order
// and a resting (maker) order. Price is the maker's level price in ticks.
type Trade struct {
	TradeID      string
	Seq          uint64
	Price        int64
	Quantity     int64
	TakerOrderID uint64
	MakerOrderID uint64
	TakerSide    Side
	ExecutedAt   time.Time
}
