package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrEmptyBook     = errors.New("empty_book")
	ErrOrderNotFound = errors.New("order_not_found")
	ErrQueueFull     = errors.New("queue_full")
	ErrEngineClosed  = errors.New("engine_closed")

	ErrInstrumentNotFound = errors.New("instrument_not_found")
)

// InvalidOrderError reports an order rejected before admission. No engine
// state is mutated when it is returned.
type InvalidOrderError struct {
	OrderID uint64
	Message string
}

func (e *InvalidOrderError) Error() string {
	return fmt.Sprintf("invalid order %d: %s", e.OrderID, e.Message)
}

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
