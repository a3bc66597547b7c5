package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/efreitasn/lobsim/internal/domain"
	"github.com/efreitasn/lobsim/internal/engine"
	"github.com/efreitasn/lobsim/internal/store"
)

const (
	maxBookDepth   = 50
	maxTradesLimit = 500
)

// PriceResponse is the reference price of an instrument.
type PriceResponse struct {
	Instrument     string
	CurrentPrice   *int64 // nil when no trades ever
	LastTradePrice int64  // engine's last trade price, the reference price before any trade
	Window         string // e.g. "5m"
	TradesInWindow int
	LastTradeAt    *time.Time // nil when no trades ever
}

// BookResponse is a snapshot of the top of an instrument's book.
type BookResponse struct {
	Instrument     string
	Bids           []engine.Level
	Asks           []engine.Level
	Spread         *int64 // nil if either side empty
	LastTradePrice int64
	PendingStops   int
	RestingOrders  int
	SnapshotAt     time.Time
}

// QuoteResponse is the estimated result of a market order.
type QuoteResponse struct {
	Instrument        string
	Side              domain.Side
	QuantityRequested int64
	QuantityAvailable int64
	FullyFillable     bool
	EstimatedAvgPrice *int64 // nil when no liquidity
	EstimatedTotal    *int64 // nil when no liquidity
	PriceLevels       []engine.QuotePriceLevel
	QuotedAt          time.Time
}

// MarketService answers read-only queries about the instruments it serves.
// Each instrument is matched by its own engine.
type MarketService struct {
	mu      sync.RWMutex
	engines map[string]*engine.Engine

	trades     *store.TradeStore
	vwapWindow time.Duration
	now        func() time.Time
}

// NewMarketService creates a MarketService over the given engines.
func NewMarketService(trades *store.TradeStore, vwapWindow time.Duration, engines ...*engine.Engine) *MarketService {
	s := &MarketService{
		engines:    make(map[string]*engine.Engine, len(engines)),
		trades:     trades,
		vwapWindow: vwapWindow,
		now:        time.Now,
	}
	for _, e := range engines {
		s.Register(e)
	}
	return s
}

// Register adds an engine under its instrument name.
func (s *MarketService) Register(e *engine.Engine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engines[e.Instrument()] = e
}

// Instruments lists the served instruments in lexical order.
func (s *MarketService) Instruments() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.engines))
	for name := range s.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *MarketService) engine(instrument string) (*engine.Engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.engines[instrument]
	if !ok {
		return nil, domain.ErrInstrumentNotFound
	}
	return e, nil
}

// GetPrice returns the current reference price for an instrument, computed
// as VWAP over the configured time window. Falls back to the last trade's
// price if no trades exist in the window. Returns a nil price if no trades
// have ever occurred.
func (s *MarketService) GetPrice(ctx context.Context, instrument string) (*PriceResponse, error) {
	e, err := s.engine(instrument)
	if err != nil {
		return nil, err
	}
	lastPrice, err := e.LastTradePrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("last trade price: %w", err)
	}

	resp := &PriceResponse{
		Instrument:     instrument,
		LastTradePrice: lastPrice,
		Window:         formatDuration(s.vwapWindow),
	}

	lastTrade, ok := s.trades.Last(instrument)
	if !ok {
		return resp, nil
	}
	resp.LastTradeAt = &lastTrade.ExecutedAt

	windowTrades := s.trades.Since(instrument, s.now().Add(-s.vwapWindow))
	resp.TradesInWindow = len(windowTrades)

	var sumPriceQty, sumQty int64
	for _, t := range windowTrades {
		sumPriceQty += t.Price * t.Quantity
		sumQty += t.Quantity
	}

	if sumQty > 0 {
		// VWAP = sum(price * quantity) / sum(quantity)
		vwap := sumPriceQty / sumQty
		resp.CurrentPrice = &vwap
	} else {
		resp.CurrentPrice = &lastTrade.Price
	}

	return resp, nil
}

// GetBook returns the top depth price levels of both sides. depth 0 uses
// the engine's default depth.
func (s *MarketService) GetBook(ctx context.Context, instrument string, depth int) (*BookResponse, error) {
	e, err := s.engine(instrument)
	if err != nil {
		return nil, err
	}
	if depth == 0 {
		depth = e.DefaultLevels()
	}
	if depth < 1 || depth > maxBookDepth {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("depth must be between 1 and %d", maxBookDepth),
		}
	}

	snap, err := e.Snapshot(ctx, depth)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	resp := &BookResponse{
		Instrument:     instrument,
		Bids:           snap.Bids,
		Asks:           snap.Asks,
		LastTradePrice: snap.LastTradePrice,
		PendingStops:   snap.PendingStops,
		RestingOrders:  snap.RestingOrders,
		SnapshotAt:     s.now(),
	}

	// Compute spread = best_ask - best_bid (nil if either side empty).
	if len(snap.Bids) > 0 && len(snap.Asks) > 0 {
		spread := snap.Asks[0].Price - snap.Bids[0].Price
		resp.Spread = &spread
	}

	return resp, nil
}

// GetQuote simulates a market order against the current book and returns
// the estimated result without placing an order.
func (s *MarketService) GetQuote(ctx context.Context, instrument string, side domain.Side, quantity int64) (*QuoteResponse, error) {
	e, err := s.engine(instrument)
	if err != nil {
		return nil, err
	}

	result, err := e.Quote(ctx, side, quantity)
	if err != nil {
		return nil, err
	}

	return &QuoteResponse{
		Instrument:        instrument,
		Side:              side,
		QuantityRequested: quantity,
		QuantityAvailable: result.QuantityAvailable,
		FullyFillable:     result.FullyFillable,
		EstimatedAvgPrice: result.EstimatedAvgPrice,
		EstimatedTotal:    result.EstimatedTotal,
		PriceLevels:       result.PriceLevels,
		QuotedAt:          s.now(),
	}, nil
}

// ListTrades returns up to limit of the most recent trades, newest first.
func (s *MarketService) ListTrades(instrument string, limit int) ([]domain.Trade, error) {
	if _, err := s.engine(instrument); err != nil {
		return nil, err
	}
	if limit < 1 || limit > maxTradesLimit {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("limit must be between 1 and %d", maxTradesLimit),
		}
	}
	return s.trades.Recent(instrument, limit), nil
}

// formatDuration converts a time.Duration to a human-readable string
// like "5m" for the window field.
func formatDuration(d time.Duration) string {
	if d == 0 {
		return "0s"
	}
	minutes := int(d.Minutes())
	if d == time.Duration(minutes)*time.Minute && minutes > 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return d.String()
}
