package advisor

import (
	"fmt"
	"strings"
	"time"

	"trendcast/internal/domain"
)

const (
	recommendationSystem    = "You are a financial advisor providing stock recommendations based on market data."
	recommendationMaxTokens = 150
)

const tradingPhilosophy = `You are a stock market assistant. Your role is to interpret quotes and short-term trend forecasts, NOT to invent them.

Reading forecasts:
- Direction is UP, DOWN or NEUTRAL for the next bar.
- Confidence on a "percent" scale is 0-100 and comes from indicator fusion (RSI, MACD, Bollinger Bands).
- Confidence on a "unit" scale is 0-1 and comes from a trained model or the momentum fallback.
- Stage tells you which method produced the forecast: model, indicator or rule. Treat rule forecasts as weak.

Rules:
- Always reference the specific figures you were given.
- Never fabricate data. If data is unavailable, say so.
- Express uncertainty when the forecast and the daily move disagree.
- Keep responses concise. You are talking via chat.
- Do not add financial advice disclaimers to every message. The user understands this is informational.
- When asked about a stock, summarize: current price, daily change, the forecast and your interpretation.`

// BuildSystemPrompt prefixes the live market context with the assistant's
// operating rules.
func BuildSystemPrompt(marketContext string, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(tradingPhilosophy)
	sb.WriteString("\n\n--- LIVE MARKET DATA (as of ")
	sb.WriteString(now.UTC().Format(time.RFC822))
	sb.WriteString(") ---\n")
	sb.WriteString(marketContext)
	return sb.String()
}

// maxContextHeadlines bounds the headlines listed per ticker.
const maxContextHeadlines = 3

func FormatMarketContext(quotes []*domain.Quote, forecasts []domain.Forecast, headlines []domain.Headline) string {
	var sb strings.Builder

	if len(quotes) > 0 {
		sb.WriteString("\nCurrent Quotes:\n")
		for _, q := range quotes {
			sb.WriteString(fmt.Sprintf("  %s: $%.2f (day: %+.2f%%, vol: %s)\n",
				q.Symbol, q.Price, q.ChangePct(), FormatVolume(q.Volume)))
		}
	}

	if len(forecasts) > 0 {
		sb.WriteString("\nForecasts:\n")
		for _, f := range forecasts {
			sb.WriteString(fmt.Sprintf("  %s %s confidence=%.2f (%s) stage=%s predicted=$%.2f (%+.2f%%)\n",
				f.Symbol, f.Direction, f.Confidence, f.ConfidenceScale, f.Stage,
				f.PredictedPrice, f.PredictedChangePct))
			if len(f.Factors) > 0 {
				sb.WriteString("    factors: " + strings.Join(f.Factors, "; ") + "\n")
			}
		}
	}

	if len(headlines) > 0 {
		sb.WriteString("\nRecent Headlines:\n")
		perSymbol := map[string]int{}
		for _, h := range headlines {
			if perSymbol[h.Symbol] >= maxContextHeadlines {
				continue
			}
			perSymbol[h.Symbol]++
			sb.WriteString(fmt.Sprintf("  %s [%s %+.2f] %s\n", h.Symbol, h.Label, h.Sentiment, h.Title))
		}
	}

	if sb.Len() == 0 {
		return "No market data currently available."
	}
	return sb.String()
}

// BuildRecommendationPrompt describes one quote for a BUY/SELL/HOLD call.
func BuildRecommendationPrompt(q domain.Quote) string {
	name := q.Name
	if name == "" {
		name = q.Symbol
	}
	var sb strings.Builder
	sb.WriteString("Analyze this stock and provide a recommendation (BUY, SELL, or HOLD) with a brief explanation:\n\n")
	fmt.Fprintf(&sb, "Stock: %s (%s)\n", name, q.Symbol)
	fmt.Fprintf(&sb, "Current Price: $%.2f\n", q.Price)
	fmt.Fprintf(&sb, "Daily Change: $%.2f (%.2f%%)\n", q.Change(), q.ChangePct())
	fmt.Fprintf(&sb, "Open: $%.2f\n", q.Open)
	fmt.Fprintf(&sb, "High: $%.2f\n", q.DayHigh)
	fmt.Fprintf(&sb, "Low: $%.2f\n", q.DayLow)
	fmt.Fprintf(&sb, "Volume: %s\n", FormatVolume(q.Volume))
	fmt.Fprintf(&sb, "Market Cap: %s\n\n", FormatMarketCap(q.MarketCap))
	sb.WriteString("Please provide a concise recommendation with reasoning based on the data provided.")
	return sb.String()
}

func FormatMarketCap(v float64) string {
	switch {
	case v <= 0:
		return "N/A"
	case v >= 1e12:
		return fmt.Sprintf("$%.2fT", v/1e12)
	case v >= 1e9:
		return fmt.Sprintf("$%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("$%.2fM", v/1e6)
	}
	return fmt.Sprintf("$%.0f", v)
}

func FormatVolume(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.2fK", v/1e3)
	}
	return fmt.Sprintf("%.0f", v)
}
