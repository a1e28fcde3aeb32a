package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// PriceSeries is an ascending, duplicate-free sequence of candles for one
// symbol. Build it with NewPriceSeries; the zero value is an empty series.
type PriceSeries struct {
	Symbol  string
	candles []Candle
}

// NewPriceSeries copies, sorts and validates candles. Nil entries are
// skipped. Duplicate open times and non-finite or negative values are
// rejected with ErrInvalidInput.
func NewPriceSeries(symbol string, candles []*Candle) (PriceSeries, error) {
	out := make([]Candle, 0, len(candles))
	for _, c := range candles {
		if c == nil {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].OpenTime.Before(out[j].OpenTime)
	})
	for i := range out {
		if err := validateCandle(out[i]); err != nil {
			return PriceSeries{}, fmt.Errorf("bar %s: %w", out[i].OpenTime.Format(time.RFC3339), err)
		}
		if i > 0 && out[i].OpenTime.Equal(out[i-1].OpenTime) {
			return PriceSeries{}, fmt.Errorf("duplicate bar at %s: %w", out[i].OpenTime.Format(time.RFC3339), ErrInvalidInput)
		}
	}
	return PriceSeries{Symbol: symbol, candles: out}, nil
}

func validateCandle(c Candle) error {
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return ErrInvalidInput
		}
	}
	return nil
}

// Len returns the number of bars.
func (s PriceSeries) Len() int { return len(s.candles) }

// Candles returns a copy of the bars in ascending order.
func (s PriceSeries) Candles() []Candle {
	out := make([]Candle, len(s.candles))
	copy(out, s.candles)
	return out
}

// At returns the bar at index i.
func (s PriceSeries) At(i int) Candle { return s.candles[i] }

// Last returns the most recent bar and false when the series is empty.
func (s PriceSeries) Last() (Candle, bool) {
	if len(s.candles) == 0 {
		return Candle{}, false
	}
	return s.candles[len(s.candles)-1], true
}

func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.candles))
	for i := range s.candles {
		out[i] = s.candles[i].Close
	}
	return out
}

func (s PriceSeries) Volumes() []float64 {
	out := make([]float64, len(s.candles))
	for i := range s.candles {
		out[i] = s.candles[i].Volume
	}
	return out
}

func (s PriceSeries) Times() []time.Time {
	out := make([]time.Time, len(s.candles))
	for i := range s.candles {
		out[i] = s.candles[i].OpenTime
	}
	return out
}

// Tail returns a series holding at most the last n bars.
func (s PriceSeries) Tail(n int) PriceSeries {
	if n <= 0 {
		return PriceSeries{Symbol: s.Symbol}
	}
	if n >= len(s.candles) {
		return s
	}
	return PriceSeries{Symbol: s.Symbol, candles: s.candles[len(s.candles)-n:]}
}

// ChangePct returns the percent change between the last two closes, or 0
// when fewer than two bars exist.
func (s PriceSeries) ChangePct() float64 {
	n := len(s.candles)
	if n < 2 || s.candles[n-2].Close == 0 {
		return 0
	}
	prev := s.candles[n-2].Close
	return (s.candles[n-1].Close - prev) / prev * 100
}
