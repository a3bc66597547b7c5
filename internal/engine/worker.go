package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/efreitasn/lobsim/internal/domain"
)

// Backpressure selects what producers experience when the request queue
// is full.
type Backpressure string

const (
	// BackpressureBlock waits for queue space or context cancellation.
	BackpressureBlock Backpressure = "block"
	// BackpressureReject fails immediately with domain.ErrQueueFull.
	BackpressureReject Backpressure = "reject"
)

// ParseBackpressure validates a backpressure policy name.
func ParseBackpressure(s string) (Backpressure, error) {
	switch Backpressure(s) {
	case BackpressureBlock, BackpressureReject:
		return Backpressure(s), nil
	}
	return "", &domain.ValidationError{Message: fmt.Sprintf("backpressure must be %q or %q, got %q", BackpressureBlock, BackpressureReject, s)}
}

// Config configures an Engine.
type Config struct {
	Instrument     string
	ReferencePrice int64 // ticks
	DefaultDepth   int
	QueueCapacity  int
	Backpressure   Backpressure
}

// DefaultDepth is the number of levels TopOfBook returns when the caller
// asks for levels <= 0 and Config.DefaultDepth is unset.
const DefaultDepth = 5

type request struct {
	order *domain.Order // stamped with an id in queue order, when set
	run   func(m *Matcher)
}

// Engine serializes every operation on one Matcher through a bounded
// request queue drained by a single worker goroutine. Processing order is
// enqueue order. Engine methods are safe for concurrent use.
type Engine struct {
	cfg     Config
	logger  *slog.Logger
	matcher *Matcher

	requests chan request
	done     chan struct{}

	mu     sync.RWMutex // guards closed against sends on requests
	closed bool

	// sendLock serializes id assignment with the send, so ids reach the
	// worker in increasing order. A channel so waiters can give up on ctx.
	sendLock chan struct{}
	lastID   uint64 // guarded by sendLock

	startOnce sync.Once
	closeOnce sync.Once

	processed atomic.Uint64
}

// NewEngine creates an engine. Events go to sink, which may be nil. Call
// Start before submitting.
func NewEngine(cfg Config, sink EventSink, logger *slog.Logger) *Engine {
	if cfg.DefaultDepth <= 0 {
		cfg.DefaultDepth = DefaultDepth
	}
	if cfg.QueueCapacity < 0 {
		cfg.QueueCapacity = 0
	}
	if cfg.Backpressure == "" {
		cfg.Backpressure = BackpressureBlock
	}
	return &Engine{
		cfg:      cfg,
		logger:   logger,
		matcher:  NewMatcher(cfg.Instrument, cfg.ReferencePrice, sink),
		requests: make(chan request, cfg.QueueCapacity),
		done:     make(chan struct{}),
		sendLock: make(chan struct{}, 1),
	}
}

// Start launches the worker goroutine. When ctx is cancelled the engine
// stops accepting requests and the worker drains what is already queued.
func (e *Engine) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		go e.run()
		go func() {
			select {
			case <-ctx.Done():
				e.Close()
			case <-e.done:
			}
		}()
	})
}

func (e *Engine) run() {
	defer close(e.done)
	e.logger.Info("matching engine started",
		slog.String("instrument", e.cfg.Instrument),
		slog.Int("queue_capacity", e.cfg.QueueCapacity),
		slog.String("backpressure", string(e.cfg.Backpressure)),
	)
	for req := range e.requests {
		req.run(e.matcher)
		e.processed.Add(1)
	}
	e.logger.Info("matching engine drained",
		slog.Uint64("processed", e.processed.Load()),
	)
}

// enqueue hands a request to the worker according to the backpressure
// policy. A request carrying an order gets its id here: ID 0 takes the id
// after the last one queued, and the counter only moves on a successful
// send.
func (e *Engine) enqueue(ctx context.Context, req request) error {
	select {
	case e.sendLock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-e.sendLock }()

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return domain.ErrEngineClosed
	}

	if req.order != nil && req.order.ID == 0 {
		req.order.ID = e.lastID + 1
	}

	if e.cfg.Backpressure == BackpressureReject {
		select {
		case e.requests <- req:
		default:
			return domain.ErrQueueFull
		}
	} else {
		select {
		case e.requests <- req:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if req.order != nil && req.order.ID > e.lastID {
		e.lastID = req.order.ID
	}
	return nil
}

// call enqueues fn and waits for its result. If ctx ends after the request
// was queued, the request still runs; only the wait is abandoned.
func call[T any](ctx context.Context, e *Engine, fn func(m *Matcher) T) (T, error) {
	var zero T
	resp := make(chan T, 1)
	if err := e.enqueue(ctx, request{run: func(m *Matcher) { resp <- fn(m) }}); err != nil {
		return zero, err
	}
	select {
	case v := <-resp:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

type submitResult struct {
	outcome *domain.Outcome
	err     error
}

// Submit processes an order and waits for its outcome, including the
// outcomes of any stop orders it triggered. An order with ID 0 is assigned
// one.
func (e *Engine) Submit(ctx context.Context, order domain.Order) (*domain.Outcome, error) {
	resp := make(chan submitResult, 1)
	err := e.enqueue(ctx, request{order: &order, run: func(m *Matcher) {
		out, err := m.Submit(order)
		resp <- submitResult{outcome: out, err: err}
	}})
	if err != nil {
		return nil, err
	}
	select {
	case res := <-resp:
		return res.outcome, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Enqueue queues an order without waiting for it to be processed and
// returns the id it will be processed under. Rejections are reported
// through the event stream.
func (e *Engine) Enqueue(ctx context.Context, order domain.Order) (uint64, error) {
	err := e.enqueue(ctx, request{order: &order, run: func(m *Matcher) {
		if _, err := m.Submit(order); err != nil {
			e.logger.Debug("order rejected",
				slog.Uint64("order_id", order.ID),
				slog.String("error", err.Error()),
			)
		}
	}})
	if err != nil {
		return 0, err
	}
	return order.ID, nil
}

// Cancel removes a resting limit order or a pending stop order.
func (e *Engine) Cancel(ctx context.Context, id uint64) (*domain.Outcome, error) {
	res, err := call(ctx, e, func(m *Matcher) submitResult {
		out, err := m.Cancel(id)
		return submitResult{outcome: out, err: err}
	})
	if err != nil {
		return nil, err
	}
	return res.outcome, res.err
}

// TopOfBook returns up to levels aggregated levels of a side, best first.
// levels <= 0 uses the configured default depth.
func (e *Engine) TopOfBook(ctx context.Context, side domain.Side, levels int) ([]Level, error) {
	if levels <= 0 {
		levels = e.cfg.DefaultDepth
	}
	return call(ctx, e, func(m *Matcher) []Level {
		return m.TopOfBook(side, levels)
	})
}

// BestPrice returns the best price of a side. An empty side yields an
// error wrapping domain.ErrEmptyBook.
func (e *Engine) BestPrice(ctx context.Context, side domain.Side) (int64, error) {
	type result struct {
		price int64
		err   error
	}
	res, err := call(ctx, e, func(m *Matcher) result {
		p, err := m.BestPrice(side)
		return result{price: p, err: err}
	})
	if err != nil {
		return 0, err
	}
	return res.price, res.err
}

// LastTradePrice returns the most recent execution price.
func (e *Engine) LastTradePrice(ctx context.Context) (int64, error) {
	return call(ctx, e, (*Matcher).LastTradePrice)
}

// Snapshot returns a consistent copy of both sides' top levels and the
// matcher state. levels <= 0 uses the configured default depth.
func (e *Engine) Snapshot(ctx context.Context, levels int) (Snapshot, error) {
	if levels <= 0 {
		levels = e.cfg.DefaultDepth
	}
	return call(ctx, e, func(m *Matcher) Snapshot {
		return m.Snapshot(levels)
	})
}

// Quote simulates a market order against the current book.
func (e *Engine) Quote(ctx context.Context, side domain.Side, quantity int64) (*QuoteResult, error) {
	if !side.Valid() {
		return nil, &domain.ValidationError{Message: "side must be buy or sell"}
	}
	if quantity <= 0 {
		return nil, &domain.ValidationError{Message: "quantity must be positive"}
	}
	return call(ctx, e, func(m *Matcher) *QuoteResult {
		return m.SimulateMarketOrder(side, quantity)
	})
}

// CheckInvariants runs the full book consistency check on the worker.
func (e *Engine) CheckInvariants(ctx context.Context) error {
	res, err := call(ctx, e, (*Matcher).CheckInvariants)
	if err != nil {
		return err
	}
	return res
}

// QueueDepth returns the number of requests waiting for the worker.
func (e *Engine) QueueDepth() int {
	return len(e.requests)
}

// Processed returns the number of requests the worker has completed.
func (e *Engine) Processed() uint64 {
	return e.processed.Load()
}

// DefaultLevels returns the configured default depth.
func (e *Engine) DefaultLevels() int {
	return e.cfg.DefaultDepth
}

// Instrument returns the instrument the engine matches.
func (e *Engine) Instrument() string {
	return e.cfg.Instrument
}

// Close stops intake. Requests already queued are still processed;
// later calls fail with domain.ErrEngineClosed. Close is idempotent.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		close(e.requests)
		e.mu.Unlock()
	})
}

// Done is closed once the worker has drained the queue and exited.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Shutdown closes the engine and waits for the worker to drain, or for
// ctx to end.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.Close()
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("engine drain: %w", ctx.Err())
	}
}

// IsRecoverable reports whether err is one of the engine errors a
// producer can react to without treating it as fatal.
func IsRecoverable(err error) bool {
	var invalid *domain.InvalidOrderError
	return errors.Is(err, domain.ErrQueueFull) ||
		errors.Is(err, domain.ErrOrderNotFound) ||
		errors.Is(err, domain.ErrEmptyBook) ||
		errors.As(err, &invalid)
}
