package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"trendcast/internal/domain"
	"trendcast/internal/repository"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// LLMClient abstracts the OpenAI chat completions API for testability.
type LLMClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// QuoteSource provides the latest quote for a ticker.
type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string) (*domain.Quote, error)
}

// ForecastSource provides the next-bar forecast for a ticker.
type ForecastSource interface {
	Forecast(ctx context.Context, symbol string) (domain.Forecast, error)
}

// ConversationStore persists and retrieves conversation messages.
type ConversationStore interface {
	AppendMessage(ctx context.Context, chatID int64, role, content string) error
	RecentMessages(ctx context.Context, chatID int64, limit int) ([]domain.ConversationMessage, error)
}

// NewsSource provides scored headlines for a ticker.
type NewsSource interface {
	Headlines(ctx context.Context, symbol string, limit int) ([]domain.Headline, error)
}

const (
	SourceLLM   = "llm"
	SourceRules = "rules"

	// maxContextSymbols bounds how many tickers from one message get looked up.
	maxContextSymbols = 3
)

// Recommendation is a BUY/SELL/HOLD call for one ticker.
type Recommendation struct {
	Symbol string  `json:"symbol"`
	Name   string  `json:"name,omitempty"`
	Price  float64 `json:"price"`
	Action string  `json:"action"`
	Text   string  `json:"recommendation"`
	Source string  `json:"source"`
}

type AdvisorService struct {
	tracer     trace.Tracer
	log        zerolog.Logger
	llm        LLMClient
	quotes     QuoteSource
	forecasts  ForecastSource
	convStore  ConversationStore
	news       NewsSource
	model      string
	maxHistory int
	watchlist  []string
	now        func() time.Time
}

// NewAdvisorService wires the advisor. llm and convStore may be nil: without
// an LLM, Ask is unavailable and Recommend uses the rule table; without a
// store, conversations are stateless.
func NewAdvisorService(
	tracer trace.Tracer,
	log zerolog.Logger,
	llm LLMClient,
	quotes QuoteSource,
	forecasts ForecastSource,
	convStore ConversationStore,
	model string,
	maxHistory int,
	watchlist []string,
) *AdvisorService {
	if maxHistory <= 0 {
		maxHistory = 20
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &AdvisorService{
		tracer:     tracer,
		log:        log,
		llm:        llm,
		quotes:     quotes,
		forecasts:  forecasts,
		convStore:  convStore,
		model:      model,
		maxHistory: maxHistory,
		watchlist:  watchlist,
		now:        time.Now,
	}
}

// SetNewsSource adds recent headlines to the chat context.
func (s *AdvisorService) SetNewsSource(news NewsSource) { s.news = news }

// ErrNoLLM is returned by Ask when no OpenAI key is configured.
var ErrNoLLM = errors.New("advisor: no language model configured")

// Available reports whether free-form questions can be answered.
func (s *AdvisorService) Available() bool { return s.llm != nil }

func (s *AdvisorService) Ask(ctx context.Context, chatID int64, userMessage string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "advisor.ask")
	defer span.End()
	span.SetAttributes(attribute.Int64("chat_id", chatID))

	if s.llm == nil {
		return "", ErrNoLLM
	}

	s.remember(ctx, chatID, repository.RoleUser, userMessage)

	symbols := ExtractTickers(userMessage)
	if len(symbols) > maxContextSymbols {
		symbols = symbols[:maxContextSymbols]
	}
	if len(symbols) == 0 {
		symbols = s.watchlist
	}
	marketContext := s.gatherContext(ctx, symbols)
	systemPrompt := BuildSystemPrompt(marketContext, s.now())

	var history []domain.ConversationMessage
	if s.convStore != nil {
		var err error
		history, err = s.convStore.RecentMessages(ctx, chatID, s.maxHistory)
		if err != nil {
			s.log.Warn().Err(err).Int64("chat_id", chatID).Msg("failed to load conversation history")
			history = nil
		}
	}
	if len(history) == 0 {
		history = []domain.ConversationMessage{{Role: repository.RoleUser, Content: userMessage}}
	}

	reply, err := s.callLLM(ctx, buildMessages(systemPrompt, history), 0)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("advisor unavailable: %w", err)
	}

	s.remember(ctx, chatID, repository.RoleAssistant, reply)
	return reply, nil
}

// Recommend produces a BUY/SELL/HOLD call. The LLM is asked first when
// configured; any failure there falls back to the rule table.
func (s *AdvisorService) Recommend(ctx context.Context, symbol string) (Recommendation, error) {
	ctx, span := s.tracer.Start(ctx, "advisor.recommend")
	defer span.End()

	symbol = ResolveTicker(symbol)
	span.SetAttributes(attribute.String("symbol", symbol))
	if !domain.IsValidTicker(symbol) {
		return Recommendation{}, fmt.Errorf("symbol %q: %w", symbol, domain.ErrInvalidInput)
	}

	q, err := s.quotes.GetQuote(ctx, symbol)
	if err != nil {
		return Recommendation{}, err
	}
	rec := Recommendation{Symbol: q.Symbol, Name: q.Name, Price: q.Price}

	if s.llm != nil {
		messages := []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(recommendationSystem),
			openai.UserMessage(BuildRecommendationPrompt(*q)),
		}
		text, err := s.callLLM(ctx, messages, recommendationMaxTokens)
		if err == nil && strings.TrimSpace(text) != "" {
			rec.Text = strings.TrimSpace(text)
			rec.Action = ParseAction(rec.Text)
			rec.Source = SourceLLM
			return rec, nil
		}
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("llm recommendation failed, using rules")
	}

	action, reason := RuleRecommendation(*q)
	rec.Action = action
	rec.Text = FormatRecommendation(action, reason)
	rec.Source = SourceRules
	span.SetAttributes(attribute.String("source", rec.Source))
	return rec, nil
}

// ParseAction finds the earliest action keyword in free text. HOLD is
// assumed when none is present.
func ParseAction(text string) string {
	upper := strings.ToUpper(text)
	best, bestIdx := ActionHold, -1
	for _, a := range []string{ActionHoldBuy, ActionBuy, ActionSell, ActionHold} {
		idx := strings.Index(upper, a)
		if idx >= 0 && (bestIdx < 0 || idx < bestIdx) {
			best, bestIdx = a, idx
		}
	}
	return best
}

func (s *AdvisorService) remember(ctx context.Context, chatID int64, role, content string) {
	if s.convStore == nil {
		return
	}
	if err := s.convStore.AppendMessage(ctx, chatID, role, content); err != nil {
		s.log.Warn().Err(err).Int64("chat_id", chatID).Str("role", role).Msg("failed to store message")
	}
}

func (s *AdvisorService) gatherContext(ctx context.Context, symbols []string) string {
	ctx, span := s.tracer.Start(ctx, "advisor.gather-context")
	defer span.End()
	span.SetAttributes(attribute.StringSlice("symbols", symbols))

	var quotes []*domain.Quote
	var forecasts []domain.Forecast
	var headlines []domain.Headline
	for _, sym := range symbols {
		if q, err := s.quotes.GetQuote(ctx, sym); err == nil {
			quotes = append(quotes, q)
		} else {
			s.log.Debug().Err(err).Str("symbol", sym).Msg("quote unavailable for advisor context")
		}
		if s.news != nil {
			if items, err := s.news.Headlines(ctx, sym, maxContextHeadlines); err == nil {
				headlines = append(headlines, items...)
			} else {
				s.log.Debug().Err(err).Str("symbol", sym).Msg("headlines unavailable for advisor context")
			}
		}
		if s.forecasts == nil {
			continue
		}
		if f, err := s.forecasts.Forecast(ctx, sym); err == nil && !f.IsError() {
			forecasts = append(forecasts, f)
		}
	}
	return FormatMarketContext(quotes, forecasts, headlines)
}

func buildMessages(systemPrompt string, history []domain.ConversationMessage) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	messages = append(messages, openai.SystemMessage(systemPrompt))
	for _, msg := range history {
		switch msg.Role {
		case repository.RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		case repository.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		}
	}
	return messages
}

func (s *AdvisorService) callLLM(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, maxTokens int64) (string, error) {
	ctx, span := s.tracer.Start(ctx, "advisor.llm-call")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", s.model),
		attribute.Int("llm.message_count", len(messages)),
	)

	params := openai.ChatCompletionNewParams{
		Model:    s.model,
		Messages: messages,
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(maxTokens)
	}
	completion, err := s.llm.CreateChatCompletion(ctx, params)
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no choices in LLM response")
	}

	reply := completion.Choices[0].Message.Content
	span.SetAttributes(attribute.Int("llm.reply_length", len(reply)))
	return reply, nil
}

// openaiClient wraps the official SDK's chat completions service.
type openaiClient struct {
	client openai.Client
}

func NewOpenAIClient(apiKey string) LLMClient {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &openaiClient{client: client}
}

func (c *openaiClient) CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}
