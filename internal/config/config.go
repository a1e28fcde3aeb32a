package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"trendcast/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("ticker", func(fl validator.FieldLevel) bool {
		return domain.IsValidTicker(fl.Field().String())
	})
	return v
}

type Config struct {
	Port            int      `validate:"min=1,max=65535"`
	APIKey          string
	RateLimitPerMin int      `validate:"min=1"`
	DatabaseURL     string
	RedisURL        string   `validate:"required"`
	CacheTTLSecs    int      `validate:"min=1"`
	HistoryInterval string   `validate:"oneof=1h 1d 1wk"`
	HistoryLimit    int      `validate:"min=30,max=5000"`
	HistoryPollSecs int      `validate:"min=60"`
	Watchlist       []string `validate:"dive,ticker"`

	YahooBaseURL       string  `validate:"url"`
	ProviderRatePerSec float64 `validate:"gt=0"`
	NewsFeedURL        string  `validate:"required"`

	ModelDir       string
	ModelKey       string  `validate:"required"`
	ModelFormat    string  `validate:"oneof=json/linreg-v1 json/logreg-v1 json/boo-xgboost-v1"`
	ModelThreshold float64 `validate:"gt=0"`
	FactorCap      int     `validate:"min=1,max=7"`
	TrainHourUTC   int     `validate:"min=0,max=23"`

	TelegramBotToken string

	MCPTransport          string `validate:"oneof=stdio http"`
	MCPHTTPBind           string
	MCPHTTPPort           int `validate:"min=1,max=65535"`
	MCPAuthToken          string
	MCPRequestTimeoutSecs int `validate:"min=1"`

	OpenAIAPIKey      string
	OpenAIModel       string
	AdvisorMaxHistory int `validate:"min=1,max=200"`

	SSHPort                   int `validate:"min=1,max=65535"`
	SSHHostKeyPath            string
	SSHAuthorizedFingerprints []string

	LogLevel       string `validate:"oneof=debug info warn error"`
	LogFormat      string `validate:"oneof=json console"`
	TracingEnabled bool
}

func Load() *Config {
	cfg := &Config{
		APIKey:           os.Getenv("API_KEY"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		MCPAuthToken:     os.Getenv("MCP_AUTH_TOKEN"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
	}

	if cfg.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Warn().Msg("REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}
	if cfg.APIKey == "" {
		log.Warn().Msg("API_KEY not set, /api routes are unauthenticated")
	}
	if cfg.OpenAIAPIKey == "" {
		log.Info().Msg("OPENAI_API_KEY not set, advisor uses the rule table")
	}

	cfg.Port = envInt("PORT", 8080)
	cfg.RateLimitPerMin = envInt("RATE_LIMIT_PER_MIN", 60)
	cfg.CacheTTLSecs = envInt("FORECAST_CACHE_TTL_SECS", 120)

	cfg.HistoryInterval = envString("HISTORY_INTERVAL", domain.DefaultInterval)
	cfg.HistoryLimit = envInt("HISTORY_LIMIT", 365)
	cfg.HistoryPollSecs = envInt("HISTORY_POLL_SECS", 3600)
	cfg.Watchlist = envList("WATCHLIST", []string{"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA"})
	for i := range cfg.Watchlist {
		cfg.Watchlist[i] = domain.NormalizeTicker(cfg.Watchlist[i])
	}

	cfg.YahooBaseURL = envString("YAHOO_BASE_URL", "https://query1.finance.yahoo.com")
	cfg.ProviderRatePerSec = envFloat("PROVIDER_RATE_PER_SEC", 2)
	cfg.NewsFeedURL = envString("NEWS_FEED_URL", "https://feeds.finance.yahoo.com/rss/2.0/headline?s=%s&region=US&lang=en-US")

	cfg.ModelDir = envString("MODEL_DIR", "models")
	cfg.ModelKey = strings.ToUpper(envString("MODEL_DEFAULT_KEY", domain.DefaultModelKey))
	cfg.ModelFormat = envString("MODEL_FORMAT", "json/linreg-v1")
	cfg.ModelThreshold = envFloat("MODEL_DIRECTION_THRESHOLD", 1.0)
	cfg.FactorCap = envInt("FACTOR_CAP", 4)
	cfg.TrainHourUTC = envHour("TRAIN_HOUR_UTC", 2)

	cfg.MCPTransport = strings.ToLower(envString("MCP_TRANSPORT", "stdio"))
	if cfg.MCPTransport != "stdio" && cfg.MCPTransport != "http" {
		log.Warn().Str("transport", cfg.MCPTransport).Msg("unsupported MCP_TRANSPORT, defaulting to stdio")
		cfg.MCPTransport = "stdio"
	}
	cfg.MCPHTTPBind = envString("MCP_HTTP_BIND", "127.0.0.1")
	cfg.MCPHTTPPort = envInt("MCP_HTTP_PORT", 8090)
	cfg.MCPRequestTimeoutSecs = envInt("MCP_REQUEST_TIMEOUT_SECS", 10)

	cfg.OpenAIModel = envString("OPENAI_MODEL", "gpt-4o-mini")
	cfg.AdvisorMaxHistory = envInt("ADVISOR_MAX_HISTORY", 20)

	cfg.SSHPort = envInt("SSH_PORT", 2222)
	cfg.SSHHostKeyPath = envString("SSH_HOST_KEY_PATH", ".ssh/id_ed25519")
	cfg.SSHAuthorizedFingerprints = envList("SSH_AUTHORIZED_FINGERPRINTS", nil)

	cfg.LogLevel = strings.ToLower(envString("LOG_LEVEL", "info"))
	cfg.LogFormat = strings.ToLower(envString("LOG_FORMAT", "json"))
	cfg.TracingEnabled = strings.EqualFold(strings.TrimSpace(os.Getenv("TRACING_ENABLED")), "true")

	return cfg
}

// Validate checks ranges and enumerations. Load never fails on its own so
// callers decide whether a bad value is fatal.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// envHour accepts 0, which envInt treats as unset.
func envHour(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 23 {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// envList splits a comma-separated value, dropping empty parts.
func envList(key string, def []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
