// Package tui is the terminal interface served over SSH.
package tui

import (
	"context"

	"trendcast/internal/advisor"
	"trendcast/internal/domain"
)

type QuoteReader interface {
	GetQuote(ctx context.Context, symbol string) (*domain.Quote, error)
}

type ForecastReader interface {
	Forecast(ctx context.Context, symbol string) (domain.Forecast, error)
}

type AdvisorQuerier interface {
	Available() bool
	Ask(ctx context.Context, chatID int64, message string) (string, error)
	Recommend(ctx context.Context, symbol string) (advisor.Recommendation, error)
}

// Services is what one session can reach. Advisor may be nil. SessionID
// keys the advisor's conversation history.
type Services struct {
	Quotes    QuoteReader
	Forecasts ForecastReader
	Advisor   AdvisorQuerier
	SessionID int64
	Username  string
}
