package handler

import (
	"net/http"

	"trendcast/internal/advisor"
	"trendcast/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

type newsQuery struct {
	Limit int `form:"limit,default=10" binding:"min=1,max=20"`
}

// GetNews godoc
// @Summary      Recent headlines with sentiment
// @Description  Returns the latest headlines for a ticker, newest first, each scored from -1 (bearish) to 1 (bullish)
// @Tags         market
// @Produce      json
// @Param        symbol  path   string  true   "Ticker (e.g., AAPL)"
// @Param        limit   query  int     false  "Number of headlines (max 20)"  default(10)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/news/{symbol} [get]
func (h *Handler) GetNews(c *gin.Context) {
	if h.news == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "news unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-news")
	defer span.End()

	symbol := advisor.ResolveTicker(c.Param("symbol"))
	span.SetAttributes(attribute.String("symbol", symbol))
	if !domain.IsValidTicker(symbol) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid symbol: " + symbol})
		return
	}

	var q newsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items, err := h.news.Headlines(ctx, symbol, q.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "headlines": items})
}
