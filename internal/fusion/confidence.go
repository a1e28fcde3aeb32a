package fusion

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	indicatorConfidenceBase = 50.0
	indicatorConfidenceMax  = 90.0

	priceDiffConfidenceBase  = 0.85
	priceDiffConfidenceSlope = 0.01
	priceDiffConfidenceMin   = 0.55
	priceDiffConfidenceMax   = 0.95
)

// IndicatorConfidence is 50+|score|*50 capped at 90, on a 0-100 scale.
func IndicatorConfidence(score float64) float64 {
	return math.Min(indicatorConfidenceBase+math.Abs(score)*50, indicatorConfidenceMax)
}

// PriceDiffConfidence is 0.85-|pct|*0.01 clamped to [0.55, 0.95], on a 0-1
// scale.
func PriceDiffConfidence(pct float64) float64 {
	c := priceDiffConfidenceBase - math.Abs(pct)*priceDiffConfidenceSlope
	return math.Max(priceDiffConfidenceMin, math.Min(c, priceDiffConfidenceMax))
}

// PredictedPrice returns price*(1+pct/100) rounded half away from zero to
// two decimals.
func PredictedPrice(price, pct float64) float64 {
	return Round2(price * (1 + pct/100))
}

func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	out, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return out
}
