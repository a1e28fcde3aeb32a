// Package sentiment scores short financial text with a keyword table.
package sentiment

import (
	"fmt"
	"strings"

	"trendcast/internal/domain"
)

var (
	bullish = []string{"beat", "beats", "surge", "rally", "record high", "upgrade", "outperform", "growth", "buyback", "raises guidance", "soar", "jump", "strong demand"}
	bearish = []string{"miss", "misses", "plunge", "slump", "downgrade", "underperform", "lawsuit", "probe", "recall", "layoff", "cuts guidance", "sell-off", "tumble", "bankruptcy"}
)

// Score is the outcome of scoring one piece of text.
type Score struct {
	Value      float64
	Confidence float64
	Label      string
	Reason     string
}

// Heuristic counts bullish and bearish keywords in the title and summary.
// Empty text is neutral with low confidence.
func Heuristic(title, summary string) Score {
	text := strings.ToLower(strings.TrimSpace(title + " " + summary))
	if text == "" {
		return Score{Confidence: 0.25, Label: domain.SentimentNeutral, Reason: "empty-text"}
	}

	bull := countMatches(text, bullish)
	bear := countMatches(text, bearish)

	value := clamp(float64(bull-bear)/float64(bull+bear+1), -1, 1)
	confidence := clamp(0.35+0.1*float64(absInt(bull-bear)), 0.25, 0.70)

	label := domain.SentimentNeutral
	if value > 0.2 {
		label = domain.SentimentBullish
	} else if value < -0.2 {
		label = domain.SentimentBearish
	}
	return Score{
		Value:      value,
		Confidence: confidence,
		Label:      label,
		Reason:     fmt.Sprintf("heuristic keywords bull=%d bear=%d", bull, bear),
	}
}

// Mean averages headline sentiment, returning 0 for none.
func Mean(headlines []domain.Headline) float64 {
	if len(headlines) == 0 {
		return 0
	}
	var sum float64
	for _, h := range headlines {
		sum += h.Sentiment
	}
	return sum / float64(len(headlines))
}

func countMatches(text string, tokens []string) int {
	count := 0
	for _, token := range tokens {
		if strings.Contains(text, token) {
			count++
		}
	}
	return count
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
