package handler

import (
	"net/http"

	"trendcast/internal/advisor"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetForecast godoc
// @Summary      Forecast the next bar for a stock
// @Description  Runs the model, indicator and rule stages in order and returns the first result. An invalid quote yields an error-only body with status 422.
// @Tags         forecast
// @Produce      json
// @Param        symbol  path  string  true  "Ticker or company name (e.g., AAPL, microsoft)"
// @Success      200  {object}  domain.Forecast
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/forecast/{symbol} [get]
func (h *Handler) GetForecast(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-forecast")
	defer span.End()

	symbol := advisor.ResolveTicker(c.Param("symbol"))
	span.SetAttributes(attribute.String("symbol", symbol))

	f, err := h.forecasts.Forecast(ctx, symbol)
	if err != nil {
		writeError(c, err)
		return
	}
	if f.IsError() {
		c.JSON(http.StatusUnprocessableEntity, f)
		return
	}
	c.JSON(http.StatusOK, f)
}
