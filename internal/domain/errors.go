package domain

import "errors"

var (
	// ErrInvalidInput marks a request that cannot be forecast at all, such as
	// a missing or non-positive current price. It is the only terminal error.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDataInsufficient marks history shorter than a stage's window.
	ErrDataInsufficient = errors.New("insufficient data")
	// ErrModelUnavailable marks a ticker with no artifact and no default.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrComputation marks a numeric failure such as a NaN or Inf result.
	ErrComputation = errors.New("computation error")
	// ErrUnknownSymbol is returned when a provider has no data for a symbol.
	ErrUnknownSymbol = errors.New("unknown symbol")
)
