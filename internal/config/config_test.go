package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "API_KEY", "DATABASE_URL", "REDIS_URL", "WATCHLIST", "HISTORY_INTERVAL",
		"HISTORY_LIMIT", "FACTOR_CAP", "MODEL_FORMAT", "MODEL_DIRECTION_THRESHOLD",
		"MCP_TRANSPORT", "LOG_LEVEL", "SSH_AUTHORIZED_FINGERPRINTS", "TRAIN_HOUR_UTC",
		"NEWS_FEED_URL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "localhost:6379", cfg.RedisURL)
	assert.Equal(t, "1d", cfg.HistoryInterval)
	assert.Equal(t, 4, cfg.FactorCap)
	assert.Equal(t, 1.0, cfg.ModelThreshold)
	assert.Equal(t, "DEFAULT", cfg.ModelKey)
	assert.Equal(t, 2, cfg.TrainHourUTC)
	assert.Equal(t, 20, cfg.AdvisorMaxHistory)
	assert.Equal(t, "stdio", cfg.MCPTransport)
	assert.Equal(t, []string{"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA"}, cfg.Watchlist)
	assert.Empty(t, cfg.SSHAuthorizedFingerprints)
	assert.Contains(t, cfg.NewsFeedURL, "s=%s")
	require.NoError(t, cfg.Validate())
}

func TestLoadWithEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("WATCHLIST", " tsla, brk-b ,,^gspc")
	t.Setenv("FACTOR_CAP", "3")
	t.Setenv("MODEL_DIRECTION_THRESHOLD", "0.5")
	t.Setenv("SSH_AUTHORIZED_FINGERPRINTS", "SHA256:abc,SHA256:def")
	t.Setenv("TRAIN_HOUR_UTC", "0")

	cfg := Load()
	assert.Equal(t, 0, cfg.TrainHourUTC)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "postgres://example", cfg.DatabaseURL)
	assert.Equal(t, []string{"TSLA", "BRK-B", "^GSPC"}, cfg.Watchlist)
	assert.Equal(t, 3, cfg.FactorCap)
	assert.Equal(t, 0.5, cfg.ModelThreshold)
	assert.Equal(t, []string{"SHA256:abc", "SHA256:def"}, cfg.SSHAuthorizedFingerprints)
	require.NoError(t, cfg.Validate())

	t.Setenv("PORT", "bad")
	assert.Equal(t, 8080, Load().Port)
}

func TestValidateRejectsBadValues(t *testing.T) {
	clearEnv(t)

	t.Setenv("HISTORY_INTERVAL", "5m")
	assert.Error(t, Load().Validate())

	t.Setenv("HISTORY_INTERVAL", "")
	t.Setenv("FACTOR_CAP", "12")
	assert.Error(t, Load().Validate())

	t.Setenv("FACTOR_CAP", "")
	t.Setenv("WATCHLIST", "AAPL,not a ticker")
	assert.Error(t, Load().Validate())

	t.Setenv("WATCHLIST", "")
	t.Setenv("MODEL_FORMAT", "onnx")
	assert.Error(t, Load().Validate())
}

func TestUnsupportedTransportFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("MCP_TRANSPORT", "grpc")
	assert.Equal(t, "stdio", Load().MCPTransport)
}
