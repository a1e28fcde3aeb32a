package sentiment

import (
	"testing"

	"trendcast/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestHeuristic(t *testing.T) {
	tests := []struct {
		name       string
		title      string
		summary    string
		label      string
		value      float64
		confidence float64
	}{
		{"bullish", "Apple beats estimates", "Board approves buyback", domain.SentimentBullish, 0.75, 0.65},
		{"bearish", "Tesla shares plunge", "after a recall of 2m cars", domain.SentimentBearish, -2.0 / 3.0, 0.55},
		{"neutral", "Microsoft to hold annual meeting", "", domain.SentimentNeutral, 0, 0.35},
		{"mixed", "Upgrade despite lawsuit", "", domain.SentimentNeutral, 0, 0.35},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Heuristic(tt.title, tt.summary)
			assert.Equal(t, tt.label, s.Label)
			assert.InDelta(t, tt.value, s.Value, 1e-9)
			assert.InDelta(t, tt.confidence, s.Confidence, 1e-9)
			assert.NotEmpty(t, s.Reason)
		})
	}
}

func TestHeuristicEmptyText(t *testing.T) {
	s := Heuristic("  ", "")
	assert.Equal(t, domain.SentimentNeutral, s.Label)
	assert.Equal(t, 0.25, s.Confidence)
	assert.Equal(t, "empty-text", s.Reason)
}

func TestMean(t *testing.T) {
	assert.Zero(t, Mean(nil))
	assert.InDelta(t, 0.25, Mean([]domain.Headline{{Sentiment: 0.75}, {Sentiment: -0.25}}), 1e-9)
}
