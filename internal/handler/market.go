package handler

import (
	"net/http"

	"trendcast/internal/advisor"
	"trendcast/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

type candlesQuery struct {
	Interval string `form:"interval,default=1d" binding:"oneof=1h 1d 1wk"`
	Limit    int    `form:"limit,default=100" binding:"min=1,max=1000"`
}

// GetCandles godoc
// @Summary      Get historical OHLCV candles
// @Description  Returns stored candles for a ticker, refreshing from the market data provider when fewer than limit are stored
// @Tags         market
// @Produce      json
// @Param        symbol    path   string  true   "Ticker (e.g., AAPL)"
// @Param        interval  query  string  false  "Candle interval (1h, 1d, 1wk)"  default(1d)
// @Param        limit     query  int     false  "Number of candles (max 1000)"  default(100)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/candles/{symbol} [get]
func (h *Handler) GetCandles(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-candles")
	defer span.End()

	symbol := advisor.ResolveTicker(c.Param("symbol"))
	span.SetAttributes(attribute.String("symbol", symbol))

	if !domain.IsValidTicker(symbol) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid symbol: " + symbol})
		return
	}

	var q candlesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":               err.Error(),
			"supported_intervals": domain.SupportedIntervals,
		})
		return
	}

	series, err := h.market.GetHistory(ctx, symbol, q.Interval, q.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":   symbol,
		"interval": q.Interval,
		"candles":  series.Candles(),
	})
}

// GetQuote godoc
// @Summary      Get the latest quote for a stock
// @Description  Returns price, open, previous close, day range, volume and market cap
// @Tags         market
// @Produce      json
// @Param        symbol  path  string  true  "Ticker or company name"
// @Success      200  {object}  domain.Quote
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/quote/{symbol} [get]
func (h *Handler) GetQuote(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-quote")
	defer span.End()

	symbol := advisor.ResolveTicker(c.Param("symbol"))
	span.SetAttributes(attribute.String("symbol", symbol))

	if !domain.IsValidTicker(symbol) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid symbol: " + symbol})
		return
	}

	q, err := h.market.GetQuote(ctx, symbol)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}
