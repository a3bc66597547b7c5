// Package generator produces pseudo-random order flow for simulations.
package generator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/efreitasn/lobsim/internal/domain"
)

// Config shapes the generated order flow. Prices are in ticks.
type Config struct {
	ReferencePrice int64
	PriceBand      int64 // ticks spanned around ReferencePrice
	MaxQuantity    int64
	MarketPct      int // share of market orders, 0..100
	StopPct        int // share of stop orders, 0..100; the rest are limits
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.ReferencePrice <= 0:
		return &domain.ValidationError{Message: "reference price must be positive"}
	case c.PriceBand < 0:
		return &domain.ValidationError{Message: "price band must not be negative"}
	case c.MaxQuantity <= 0:
		return &domain.ValidationError{Message: "max quantity must be positive"}
	case c.MarketPct < 0 || c.StopPct < 0 || c.MarketPct+c.StopPct > 100:
		return &domain.ValidationError{Message: fmt.Sprintf("market and stop shares must be non-negative and sum to at most 100, got %d+%d", c.MarketPct, c.StopPct)}
	}
	return nil
}

// Generator draws orders from an explicit random source. It is not safe
// for concurrent use; give each producer its own Generator.
type Generator struct {
	cfg Config
	rng *rand.Rand
}

// New creates a Generator. The same config and seed always yield the same
// sequence.
func New(cfg Config, seed int64) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(seed))}, nil
}

// Next returns a fresh order with ID 0.
func (g *Generator) Next() domain.Order {
	o := domain.Order{
		Side:     domain.SideBuy,
		Quantity: g.rng.Int63n(g.cfg.MaxQuantity) + 1,
	}
	if g.rng.Intn(2) == 1 {
		o.Side = domain.SideSell
	}

	roll := g.rng.Intn(100)
	switch {
	case roll < g.cfg.MarketPct:
		o.Kind = domain.KindMarket
	case roll < g.cfg.MarketPct+g.cfg.StopPct:
		o.Kind = domain.KindStop
		o.Price = g.price()
	default:
		o.Kind = domain.KindLimit
		o.Price = g.price()
	}
	return o
}

// price draws a price within the band around the reference, never below
// one tick.
func (g *Generator) price() int64 {
	low := g.cfg.ReferencePrice - g.cfg.PriceBand/2
	p := low + g.rng.Int63n(g.cfg.PriceBand+1)
	if p < 1 {
		return 1
	}
	return p
}

// EnqueueFunc hands one order to the engine.
type EnqueueFunc func(ctx context.Context, o domain.Order) error

// Stats summarizes a Run.
type Stats struct {
	Generated int
	Enqueued  int
	QueueFull int
}

// Run generates n orders and passes each to enqueue. Orders refused with
// domain.ErrQueueFull are counted and skipped; any other error stops the
// run.
func (g *Generator) Run(ctx context.Context, n int, enqueue EnqueueFunc) (Stats, error) {
	var st Stats
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		o := g.Next()
		st.Generated++
		err := enqueue(ctx, o)
		switch {
		case err == nil:
			st.Enqueued++
		case errors.Is(err, domain.ErrQueueFull):
			st.QueueFull++
		default:
			return st, fmt.Errorf("enqueue order %d of %d: %w", i+1, n, err)
		}
	}
	return st, nil
}
