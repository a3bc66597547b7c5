package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/efreitasn/lobsim/internal/domain"
)

// TradeStore is a thread-safe in-memory ledger of executions, keyed by
// instrument. Trades are append-only and kept in execution order.
type TradeStore struct {
	mu     sync.RWMutex
	trades map[string][]domain.Trade // instrument → trades (chronological)
}

// NewTradeStore creates an empty TradeStore.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		trades: make(map[string][]domain.Trade),
	}
}

// Append adds a trade to the instrument's chronological list.
func (s *TradeStore) Append(instrument string, t domain.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades[instrument] = append(s.trades[instrument], t)
}

// Handle records the trade carried by a trade event and ignores every
// other event type.
func (s *TradeStore) Handle(_ context.Context, ev domain.Event) error {
	if ev.Type != domain.EventTrade || ev.Trade == nil {
		return nil
	}
	s.Append(ev.Instrument, *ev.Trade)
	return nil
}

// GetByInstrument returns all trades for an instrument in chronological
// order. Returns an empty slice if no trades exist.
func (s *TradeStore) GetByInstrument(instrument string) []domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := s.trades[instrument]
	result := make([]domain.Trade, len(trades))
	copy(result, trades)
	return result
}

// Recent returns up to n of the most recent trades, newest first.
func (s *TradeStore) Recent(instrument string, n int) []domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := s.trades[instrument]
	if n > len(trades) {
		n = len(trades)
	}
	if n < 0 {
		n = 0
	}
	result := make([]domain.Trade, 0, n)
	for i := len(trades) - 1; i >= len(trades)-n; i-- {
		result = append(result, trades[i])
	}
	return result
}

// Since returns the trades executed at or after cutoff, oldest first.
func (s *TradeStore) Since(instrument string, cutoff time.Time) []domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := s.trades[instrument]
	// Trades are appended in execution order, so ExecutedAt is sorted.
	idx := sort.Search(len(trades), func(i int) bool {
		return !trades[i].ExecutedAt.Before(cutoff)
	})
	result := make([]domain.Trade, len(trades)-idx)
	copy(result, trades[idx:])
	return result
}

// Last returns the most recent trade.
func (s *TradeStore) Last(instrument string) (domain.Trade, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := s.trades[instrument]
	if len(trades) == 0 {
		return domain.Trade{}, false
	}
	return trades[len(trades)-1], true
}

// Count returns the number of trades recorded for an instrument.
func (s *TradeStore) Count(instrument string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trades[instrument])
}
