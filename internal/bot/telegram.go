package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"trendcast/internal/advisor"
	"trendcast/internal/domain"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v3"
)

const replyTimeout = 30 * time.Second

type QuoteReader interface {
	GetQuote(ctx context.Context, symbol string) (*domain.Quote, error)
}

type ForecastReader interface {
	Forecast(ctx context.Context, symbol string) (domain.Forecast, error)
}

type NewsReader interface {
	Headlines(ctx context.Context, symbol string, limit int) ([]domain.Headline, error)
}

type Advisor interface {
	Available() bool
	Ask(ctx context.Context, chatID int64, message string) (string, error)
	Recommend(ctx context.Context, symbol string) (advisor.Recommendation, error)
}

// Commands renders replies for the chat commands. It has no dependency on
// Telegram so the texts can be exercised directly.
type Commands struct {
	quotes    QuoteReader
	forecasts ForecastReader
	advisor   Advisor
	news      NewsReader
}

func NewCommands(quotes QuoteReader, forecasts ForecastReader, adv Advisor) *Commands {
	return &Commands{quotes: quotes, forecasts: forecasts, advisor: adv}
}

// SetNews enables /news.
func (c *Commands) SetNews(news NewsReader) { c.news = news }

const newsLimit = 5

const helpText = `Commands:
/price AAPL - latest quote
/forecast AAPL - next-bar trend forecast
/recommend AAPL - BUY/SELL/HOLD call
/news AAPL - recent headlines
/ask <question> - ask about the market
Company names work too, e.g. /forecast microsoft`

func (c *Commands) Help() string { return helpText }

func (c *Commands) Price(ctx context.Context, args []string) string {
	symbol, usage := symbolArg(args, "/price AAPL")
	if usage != "" {
		return usage
	}
	q, err := c.quotes.GetQuote(ctx, symbol)
	if err != nil {
		return errorReply(symbol, "price", err)
	}
	name := q.Name
	if name == "" {
		name = q.Symbol
	}
	return fmt.Sprintf(
		"%s (%s)\nPrice: $%.2f\nChange: %+.2f (%+.2f%%)\nDay range: $%.2f - $%.2f\nVolume: %s\nMarket cap: %s",
		name, q.Symbol, q.Price, q.Change(), q.ChangePct(), q.DayLow, q.DayHigh,
		advisor.FormatVolume(q.Volume), advisor.FormatMarketCap(q.MarketCap),
	)
}

func (c *Commands) Forecast(ctx context.Context, args []string) string {
	symbol, usage := symbolArg(args, "/forecast AAPL")
	if usage != "" {
		return usage
	}
	f, err := c.forecasts.Forecast(ctx, symbol)
	if err != nil {
		return errorReply(symbol, "forecast", err)
	}
	if f.IsError() {
		return fmt.Sprintf("No forecast for %s: %s", symbol, f.Error)
	}
	return FormatForecast(f)
}

func (c *Commands) Recommend(ctx context.Context, args []string) string {
	symbol, usage := symbolArg(args, "/recommend AAPL")
	if usage != "" {
		return usage
	}
	rec, err := c.advisor.Recommend(ctx, symbol)
	if err != nil {
		return errorReply(symbol, "recommendation", err)
	}
	return fmt.Sprintf("%s @ $%.2f\n%s", rec.Symbol, rec.Price, rec.Text)
}

func (c *Commands) News(ctx context.Context, args []string) string {
	symbol, usage := symbolArg(args, "/news AAPL")
	if usage != "" {
		return usage
	}
	if c.news == nil {
		return "News is not configured."
	}
	items, err := c.news.Headlines(ctx, symbol, newsLimit)
	if err != nil {
		return errorReply(symbol, "news", err)
	}
	if len(items) == 0 {
		return fmt.Sprintf("No recent headlines for %s", symbol)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s headlines\n", symbol)
	for _, h := range items {
		fmt.Fprintf(&sb, "- [%s] %s\n", h.Label, h.Title)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (c *Commands) Ask(ctx context.Context, chatID int64, question string) string {
	question = strings.TrimSpace(question)
	if question == "" {
		return "Usage: /ask what do you think about AAPL?"
	}
	if !c.advisor.Available() {
		return "The advisor is not configured. Try /forecast or /recommend instead."
	}
	reply, err := c.advisor.Ask(ctx, chatID, question)
	if err != nil {
		return "The advisor is unavailable right now, please try again later."
	}
	return reply
}

// FormatForecast renders a forecast for chat.
func FormatForecast(f domain.Forecast) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s forecast (%s stage)\n", f.Symbol, f.Stage)
	fmt.Fprintf(&sb, "Direction: %s\n", f.Direction)
	if f.ConfidenceScale == domain.ScalePercent {
		fmt.Fprintf(&sb, "Confidence: %.1f%%\n", f.Confidence)
	} else {
		fmt.Fprintf(&sb, "Confidence: %.0f%%\n", f.Confidence*100)
	}
	fmt.Fprintf(&sb, "Price: $%.2f -> $%.2f (%+.2f%%)\n", f.CurrentPrice, f.PredictedPrice, f.PredictedChangePct)
	for _, factor := range f.Factors {
		sb.WriteString("- " + factor + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func symbolArg(args []string, example string) (string, string) {
	if len(args) == 0 {
		return "", "Usage: " + example
	}
	symbol := advisor.ResolveTicker(strings.Join(args, " "))
	if !domain.IsValidTicker(symbol) {
		return "", fmt.Sprintf("Not a ticker: %s\nUsage: %s", strings.Join(args, " "), example)
	}
	return symbol, ""
}

func errorReply(symbol, what string, err error) string {
	switch {
	case errors.Is(err, domain.ErrUnknownSymbol):
		return fmt.Sprintf("Unknown symbol: %s", symbol)
	case errors.Is(err, domain.ErrInvalidInput):
		return fmt.Sprintf("Invalid symbol: %s", symbol)
	}
	return fmt.Sprintf("Error fetching %s for %s, please try again later.", what, symbol)
}

// StartTelegramBot registers the command handlers and starts long polling.
// An empty token disables the bot. The bot stops when ctx is done.
func StartTelegramBot(ctx context.Context, logger zerolog.Logger, token string, cmds *Commands) error {
	if token == "" {
		logger.Info().Msg("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			logger.Warn().Err(err).Msg("telegram handler failed")
		},
	})
	if err != nil {
		return fmt.Errorf("create telegram bot: %w", err)
	}
	Register(b, cmds)

	go func() {
		<-ctx.Done()
		b.Stop()
	}()
	logger.Info().Msg("Telegram bot started")
	go b.Start()
	return nil
}

// Router is the subset of *tele.Bot used to register handlers.
type Router interface {
	Handle(endpoint interface{}, h tele.HandlerFunc, m ...tele.MiddlewareFunc)
}

func Register(b Router, cmds *Commands) {
	b.Handle("/start", func(c tele.Context) error { return c.Send(cmds.Help()) })
	b.Handle("/help", func(c tele.Context) error { return c.Send(cmds.Help()) })
	b.Handle("/ping", func(c tele.Context) error { return c.Send("pong") })

	b.Handle("/price", withTimeout(func(ctx context.Context, c tele.Context) string {
		return cmds.Price(ctx, c.Args())
	}))
	b.Handle("/forecast", withTimeout(func(ctx context.Context, c tele.Context) string {
		return cmds.Forecast(ctx, c.Args())
	}))
	b.Handle("/recommend", withTimeout(func(ctx context.Context, c tele.Context) string {
		return cmds.Recommend(ctx, c.Args())
	}))
	b.Handle("/news", withTimeout(func(ctx context.Context, c tele.Context) string {
		return cmds.News(ctx, c.Args())
	}))
	b.Handle("/ask", withTimeout(func(ctx context.Context, c tele.Context) string {
		return cmds.Ask(ctx, c.Chat().ID, c.Message().Payload)
	}))
	b.Handle(tele.OnText, withTimeout(func(ctx context.Context, c tele.Context) string {
		return cmds.Ask(ctx, c.Chat().ID, c.Text())
	}))
}

func withTimeout(reply func(ctx context.Context, c tele.Context) string) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
		defer cancel()
		return c.Send(reply(ctx, c))
	}
}
