package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetRecommendation godoc
// @Summary      Get a BUY/SELL/HOLD recommendation
// @Description  Asks the language model when configured and falls back to the daily change and range rules
// @Tags         advisor
// @Produce      json
// @Param        symbol  path  string  true  "Ticker or company name"
// @Success      200  {object}  advisor.Recommendation
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/recommendation/{symbol} [get]
func (h *Handler) GetRecommendation(c *gin.Context) {
	if h.recommender == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "advisor unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-recommendation")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", c.Param("symbol")))

	rec, err := h.recommender.Recommend(ctx, c.Param("symbol"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}
