package events

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/lobsim/internal/domain"
)

// Payload is the JSON form of an event published downstream. Prices are
// decimal strings on the instrument's tick grid.
type Payload struct {
	Seq        uint64        `json:"seq"`
	Type       string        `json:"type"`
	Instrument string        `json:"instrument"`
	OrderID    uint64        `json:"order_id,omitempty"`
	Side       string        `json:"side,omitempty"`
	Price      string        `json:"price,omitempty"`
	Quantity   int64         `json:"quantity"`
	Remaining  int64         `json:"remaining,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	Trade      *TradePayload `json:"trade,omitempty"`
	Timestamp  string        `json:"timestamp"`
}

// TradePayload is the JSON form of an execution.
type TradePayload struct {
	TradeID      string `json:"trade_id"`
	Seq          uint64 `json:"seq"`
	Price        string `json:"price"`
	Quantity     int64  `json:"quantity"`
	TakerOrderID uint64 `json:"taker_order_id"`
	MakerOrderID uint64 `json:"maker_order_id"`
	TakerSide    string `json:"taker_side"`
	ExecutedAt   string `json:"executed_at"`
}

// NewPayload converts ev using tick to render prices.
func NewPayload(ev domain.Event, tick decimal.Decimal) Payload {
	p := Payload{
		Seq:        ev.Seq,
		Type:       string(ev.Type),
		Instrument: ev.Instrument,
		OrderID:    ev.OrderID,
		Quantity:   ev.Quantity,
		Remaining:  ev.Remaining,
		Reason:     ev.Reason,
		Timestamp:  ev.At.UTC().Format(time.RFC3339Nano),
	}
	if ev.Side.Valid() {
		p.Side = ev.Side.String()
	}
	if ev.Price != 0 {
		p.Price = domain.FormatTicks(ev.Price, tick)
	}
	if ev.Trade != nil {
		p.Trade = &TradePayload{
			TradeID:      ev.Trade.TradeID,
			Seq:          ev.Trade.Seq,
			Price:        domain.FormatTicks(ev.Trade.Price, tick),
			Quantity:     ev.Trade.Quantity,
			TakerOrderID: ev.Trade.TakerOrderID,
			MakerOrderID: ev.Trade.MakerOrderID,
			TakerSide:    ev.Trade.TakerSide.String(),
			ExecutedAt:   ev.Trade.ExecutedAt.UTC().Format(time.RFC3339Nano),
		}
	}
	return p
}
