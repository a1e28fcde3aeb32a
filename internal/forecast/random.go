package forecast

import "math/rand/v2"

// RandomSource yields floats in [0, 1). Implementations used by a shared
// Engine must be safe for concurrent use.
type RandomSource interface {
	Float64() float64
}

type globalRandom struct{}

func (globalRandom) Float64() float64 { return rand.Float64() }

// DefaultRandom draws from the runtime's concurrency-safe generator.
func DefaultRandom() RandomSource { return globalRandom{} }

// FixedRandom always returns v. Handy for reproducible forecasts.
type FixedRandom float64

func (f FixedRandom) Float64() float64 { return float64(f) }
