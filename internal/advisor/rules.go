package advisor

import (
	"fmt"

	"trendcast/internal/domain"
)

const (
	ActionBuy     = "BUY"
	ActionSell    = "SELL"
	ActionHold    = "HOLD"
	ActionHoldBuy = "HOLD/BUY"
)

// RuleRecommendation classifies a quote by its daily change and where the
// price sits inside the day's range. Rules are checked in order.
func RuleRecommendation(q domain.Quote) (action, reason string) {
	dayRange := q.DayHigh - q.DayLow
	if dayRange <= 0 {
		return ActionHold, "Insufficient price data for analysis"
	}
	pos := (q.Price - q.DayLow) / dayRange
	pct := q.ChangePct()
	change := q.Change()

	switch {
	case pct > 5 && pos > 0.8:
		return ActionSell, "Strong gains suggest potential profit-taking opportunity"
	case pct < -5 && pos < 0.3:
		return ActionBuy, "Significant dip presents potential buying opportunity"
	case pct > 2 && pos > 0.6:
		return ActionHoldBuy, "Positive momentum with room for growth"
	case pct < -2 && pos < 0.4:
		return ActionHoldBuy, "Minor decline, potential value opportunity"
	case change > 0 && pos > 0.5:
		return ActionHold, "Stable upward trend"
	case change < 0 && pos < 0.5:
		return ActionHold, "Monitor for further developments"
	}
	return ActionHold, "Neutral market conditions"
}

// FormatRecommendation renders an action and reason the way clients show it.
func FormatRecommendation(action, reason string) string {
	return fmt.Sprintf("%s - %s", action, reason)
}
