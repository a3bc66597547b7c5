package events

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/lobsim/internal/domain"
)

// LogHandler renders executions and order outcomes to a structured logger.
type LogHandler struct {
	logger *slog.Logger
	tick   decimal.Decimal
}

// NewLogHandler creates a LogHandler.
func NewLogHandler(logger *slog.Logger, tick decimal.Decimal) *LogHandler {
	return &LogHandler{logger: logger, tick: tick}
}

// Handle logs ev. Book updates are skipped.
func (h *LogHandler) Handle(ctx context.Context, ev domain.Event) error {
	switch ev.Type {
	case domain.EventTrade:
		h.logger.DebugContext(ctx, "trade executed",
			slog.String("trade_id", ev.Trade.TradeID),
			slog.String("price", domain.FormatTicks(ev.Trade.Price, h.tick)),
			slog.Int64("quantity", ev.Trade.Quantity),
			slog.Uint64("taker_order_id", ev.Trade.TakerOrderID),
			slog.Uint64("maker_order_id", ev.Trade.MakerOrderID),
			slog.String("taker_side", ev.Trade.TakerSide.String()),
		)
	case domain.EventStopTriggered:
		h.logger.DebugContext(ctx, "stop triggered",
			slog.Uint64("order_id", ev.OrderID),
			slog.String("last_trade_price", domain.FormatTicks(ev.Price, h.tick)),
		)
	case domain.EventOrderRejected:
		h.logger.DebugContext(ctx, "order rejected",
			slog.Uint64("order_id", ev.OrderID),
			slog.String("reason", ev.Reason),
		)
	case domain.EventPartialFill:
		h.logger.DebugContext(ctx, "market order partially filled",
			slog.Uint64("order_id", ev.OrderID),
			slog.Int64("filled", ev.Quantity),
			slog.Int64("discarded", ev.Remaining),
		)
	}
	return nil
}
