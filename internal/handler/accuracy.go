package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

type accuracyQuery struct {
	Days int `form:"days,default=30" binding:"min=1,max=365"`
}

// GetAccuracy godoc
// @Summary      Forecast hit rate by stage
// @Description  Scores logged forecasts against the close of their target bar and groups the resolved ones by the stage that produced them
// @Tags         forecast
// @Produce      json
// @Param        days  query  int  false  "Look-back window in days (max 365)"  default(30)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/accuracy [get]
func (h *Handler) GetAccuracy(c *gin.Context) {
	if h.accuracy == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "forecast log unavailable"})
		return
	}
	var q accuracyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-accuracy")
	defer span.End()
	span.SetAttributes(attribute.Int("days", q.Days))

	stages, err := h.accuracy.Accuracy(ctx, time.Now().AddDate(0, 0, -q.Days))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": q.Days, "stages": stages})
}
