package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/lobsim/internal/domain"
	"github.com/efreitasn/lobsim/internal/engine"
	"github.com/efreitasn/lobsim/internal/service"
)

const timestampLayout = "2006-01-02T15:04:05Z"

// MarketHandler handles the read-only market data endpoints. Prices are
// rendered as decimal strings on the instrument's tick grid.
type MarketHandler struct {
	svc  *service.MarketService
	tick decimal.Decimal
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(svc *service.MarketService, tick decimal.Decimal) *MarketHandler {
	return &MarketHandler{svc: svc, tick: tick}
}

// priceResponse is the JSON response for GET /instruments/{instrument}/price.
type priceResponse struct {
	Instrument     string  `json:"instrument"`
	CurrentPrice   *string `json:"current_price"`
	LastTradePrice string  `json:"last_trade_price"`
	Window         string  `json:"window"`
	TradesInWin    int     `json:"trades_in_window"`
	LastTradeAt    *string `json:"last_trade_at"`
}

// bookLevelResponse is a single price level in the book response.
type bookLevelResponse struct {
	Price         string `json:"price"`
	TotalQuantity int64  `json:"total_quantity"`
	OrderCount    int    `json:"order_count"`
}

// bookResponse is the JSON response for GET /instruments/{instrument}/book.
type bookResponse struct {
	Instrument     string              `json:"instrument"`
	Bids           []bookLevelResponse `json:"bids"`
	Asks           []bookLevelResponse `json:"asks"`
	Spread         *string             `json:"spread"`
	LastTradePrice string              `json:"last_trade_price"`
	PendingStops   int                 `json:"pending_stops"`
	RestingOrders  int                 `json:"resting_orders"`
	SnapshotAt     string              `json:"snapshot_at"`
}

// quoteLevelResponse is a single price level in the quote response.
type quoteLevelResponse struct {
	Price    string `json:"price"`
	Quantity int64  `json:"quantity"`
}

// quoteResponse is the JSON response for GET /instruments/{instrument}/quote.
type quoteResponse struct {
	Instrument        string               `json:"instrument"`
	Side              string               `json:"side"`
	QuantityRequested int64                `json:"quantity_requested"`
	QuantityAvailable int64                `json:"quantity_available"`
	FullyFillable     bool                 `json:"fully_fillable"`
	EstimatedAvgPrice *string              `json:"estimated_average_price"`
	EstimatedTotal    *string              `json:"estimated_total"`
	PriceLevels       []quoteLevelResponse `json:"price_levels"`
	QuotedAt          string               `json:"quoted_at"`
}

// tradeResponse is one entry of GET /instruments/{instrument}/trades.
type tradeResponse struct {
	TradeID      string `json:"trade_id"`
	Seq          uint64 `json:"seq"`
	Price        string `json:"price"`
	Quantity     int64  `json:"quantity"`
	TakerOrderID uint64 `json:"taker_order_id"`
	MakerOrderID uint64 `json:"maker_order_id"`
	TakerSide    string `json:"taker_side"`
	ExecutedAt   string `json:"executed_at"`
}

type tradesResponse struct {
	Instrument string          `json:"instrument"`
	Trades     []tradeResponse `json:"trades"`
}

func (h *MarketHandler) price(ticks int64) string {
	return domain.FormatTicks(ticks, h.tick)
}

func (h *MarketHandler) optionalPrice(ticks *int64) *string {
	if ticks == nil {
		return nil
	}
	s := h.price(*ticks)
	return &s
}

func (h *MarketHandler) levels(in []engine.Level) []bookLevelResponse {
	out := make([]bookLevelResponse, len(in))
	for i, l := range in {
		out[i] = bookLevelResponse{
			Price:         h.price(l.Price),
			TotalQuantity: l.Quantity,
			OrderCount:    l.OrderCount,
		}
	}
	return out
}

// ListInstruments handles GET /instruments.
func (h *MarketHandler) ListInstruments(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string][]string{"instruments": h.svc.Instruments()})
}

// GetPrice handles GET /instruments/{instrument}/price.
func (h *MarketHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	instrument := chi.URLParam(r, "instrument")

	price, err := h.svc.GetPrice(r.Context(), instrument)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := priceResponse{
		Instrument:     price.Instrument,
		CurrentPrice:   h.optionalPrice(price.CurrentPrice),
		LastTradePrice: h.price(price.LastTradePrice),
		Window:         price.Window,
		TradesInWin:    price.TradesInWindow,
	}
	if price.LastTradeAt != nil {
		s := price.LastTradeAt.UTC().Format(timestampLayout)
		resp.LastTradeAt = &s
	}

	WriteJSON(w, http.StatusOK, resp)
}

// GetBook handles GET /instruments/{instrument}/book.
func (h *MarketHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	instrument := chi.URLParam(r, "instrument")

	// 0 selects the engine's default depth.
	depth := 0
	if d := r.URL.Query().Get("depth"); d != "" {
		var err error
		depth, err = strconv.Atoi(d)
		if err != nil || depth == 0 {
			WriteError(w, http.StatusBadRequest, "validation_error", "depth must be a positive integer")
			return
		}
	}

	book, err := h.svc.GetBook(r.Context(), instrument, depth)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, bookResponse{
		Instrument:     book.Instrument,
		Bids:           h.levels(book.Bids),
		Asks:           h.levels(book.Asks),
		Spread:         h.optionalPrice(book.Spread),
		LastTradePrice: h.price(book.LastTradePrice),
		PendingStops:   book.PendingStops,
		RestingOrders:  book.RestingOrders,
		SnapshotAt:     book.SnapshotAt.UTC().Format(timestampLayout),
	})
}

// GetQuote handles GET /instruments/{instrument}/quote.
func (h *MarketHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	instrument := chi.URLParam(r, "instrument")

	side, err := domain.ParseSide(r.URL.Query().Get("side"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	quantity, err := strconv.ParseInt(r.URL.Query().Get("quantity"), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "quantity must be a positive integer")
		return
	}

	quote, err := h.svc.GetQuote(r.Context(), instrument, side, quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	priceLevels := make([]quoteLevelResponse, len(quote.PriceLevels))
	for i, pl := range quote.PriceLevels {
		priceLevels[i] = quoteLevelResponse{
			Price:    h.price(pl.Price),
			Quantity: pl.Quantity,
		}
	}

	WriteJSON(w, http.StatusOK, quoteResponse{
		Instrument:        quote.Instrument,
		Side:              quote.Side.String(),
		QuantityRequested: quote.QuantityRequested,
		QuantityAvailable: quote.QuantityAvailable,
		FullyFillable:     quote.FullyFillable,
		EstimatedAvgPrice: h.optionalPrice(quote.EstimatedAvgPrice),
		EstimatedTotal:    h.optionalPrice(quote.EstimatedTotal),
		PriceLevels:       priceLevels,
		QuotedAt:          quote.QuotedAt.UTC().Format(timestampLayout),
	})
}

// ListTrades handles GET /instruments/{instrument}/trades.
func (h *MarketHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	instrument := chi.URLParam(r, "instrument")

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		var err error
		limit, err = strconv.Atoi(l)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "limit must be a valid integer")
			return
		}
	}

	trades, err := h.svc.ListTrades(instrument, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := tradesResponse{
		Instrument: instrument,
		Trades:     make([]tradeResponse, len(trades)),
	}
	for i, t := range trades {
		resp.Trades[i] = tradeResponse{
			TradeID:      t.TradeID,
			Seq:          t.Seq,
			Price:        h.price(t.Price),
			Quantity:     t.Quantity,
			TakerOrderID: t.TakerOrderID,
			MakerOrderID: t.MakerOrderID,
			TakerSide:    t.TakerSide.String(),
			ExecutedAt:   t.ExecutedAt.UTC().Format(time.RFC3339Nano),
		}
	}

	WriteJSON(w, http.StatusOK, resp)
}
