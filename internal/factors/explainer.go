package factors

import (
	"fmt"

	"trendcast/internal/domain"
	"trendcast/internal/ta"
)

// DefaultCap is the number of factors returned when no cap is configured.
const DefaultCap = 4

const (
	capLarge       = 1e12
	capMediumLarge = 1e10
	capMedium      = 1e9

	macdStrong   = 0.1
	bbNearUpper  = 0.85
	bbNearLower  = 0.15
	volumeRecent = 5
	volumeHigh   = 1.2
	volumeLow    = 0.8
)

// Input is everything the explainer may describe. Optional parts are nil or
// zero when unknown.
type Input struct {
	Price      float64
	Open       float64
	Profile    *domain.CompanyProfile
	Indicators *ta.Snapshot
	Volumes    []float64
	Direction  domain.Direction
}

// Explainer turns prediction inputs into a short, ordered list of reasons.
// It is deterministic: identical inputs always give identical output.
type Explainer struct {
	limit int
}

func NewExplainer(limit int) *Explainer {
	if limit <= 0 {
		limit = DefaultCap
	}
	return &Explainer{limit: limit}
}

func (e *Explainer) Cap() int { return e.limit }

// Explain collects candidate factors in priority order, drops duplicates and
// truncates to the cap. The direction restatement comes last and always
// qualifies, so the result is never empty.
func (e *Explainer) Explain(in Input) []string {
	candidates := make([]string, 0, 6)
	candidates = append(candidates,
		openingNote(in.Price, in.Open),
		capNote(in.Profile),
	)
	if in.Indicators != nil {
		candidates = append(candidates,
			rsiNote(*in.Indicators),
			macdNote(*in.Indicators),
			bollingerNote(*in.Indicators),
		)
	}
	candidates = append(candidates, volumeNote(in.Volumes))

	out := make([]string, 0, e.limit)
	seen := make(map[string]struct{}, len(candidates)+1)
	add := func(s string) {
		if s == "" || len(out) >= e.limit {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, c := range candidates {
		add(c)
	}
	add(directionNote(in.Direction))
	return out
}

func openingNote(price, open float64) string {
	if open <= 0 || price <= 0 {
		return ""
	}
	switch {
	case price > open:
		return "Price is above opening level"
	case price < open:
		return "Price is below opening level"
	}
	return ""
}

func capNote(p *domain.CompanyProfile) string {
	if p == nil || p.MarketCap <= 0 {
		return ""
	}
	switch {
	case p.MarketCap >= capLarge:
		return "Large market cap indicates stability"
	case p.MarketCap > capMediumLarge:
		return "Medium-large market cap suggests moderate volatility"
	case p.MarketCap >= capMedium:
		return "Medium market cap may lead to higher volatility"
	}
	return "Smaller capitalization suggests higher volatility"
}

func rsiNote(s ta.Snapshot) string {
	if !s.RSIAvailable {
		return ""
	}
	switch {
	case s.RSI > 70:
		return fmt.Sprintf("RSI indicates overbought at %.1f", s.RSI)
	case s.RSI < 30:
		return fmt.Sprintf("RSI indicates oversold at %.1f", s.RSI)
	}
	return fmt.Sprintf("RSI is neutral at %.1f", s.RSI)
}

func macdNote(s ta.Snapshot) string {
	switch {
	case s.MACDHist > macdStrong:
		return "MACD shows strong bullish momentum"
	case s.MACDHist < -macdStrong:
		return "MACD shows strong bearish momentum"
	}
	return "MACD indicates sideways momentum"
}

func bollingerNote(s ta.Snapshot) string {
	if !s.BBAvailable {
		return ""
	}
	switch {
	case s.BBPos > bbNearUpper:
		return "Price near upper Bollinger Band (potential resistance)"
	case s.BBPos < bbNearLower:
		return "Price near lower Bollinger Band (potential support)"
	}
	return "Price within normal Bollinger Band range"
}

func volumeNote(volumes []float64) string {
	if len(volumes) < volumeRecent {
		return ""
	}
	avg := ta.Mean(volumes)
	if avg <= 0 {
		return ""
	}
	recent := ta.Mean(volumes[len(volumes)-volumeRecent:])
	switch {
	case recent > avg*volumeHigh:
		return "Above average trading volume"
	case recent < avg*volumeLow:
		return "Below average trading volume"
	}
	return ""
}

func directionNote(d domain.Direction) string {
	switch d {
	case domain.DirectionUp:
		return "Technical indicators suggest positive momentum"
	case domain.DirectionDown:
		return "Technical indicators suggest negative pressure"
	}
	return "Technical indicators provide mixed signals"
}
