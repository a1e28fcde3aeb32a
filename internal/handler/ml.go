package handler

import (
	"errors"
	"net/http"

	"trendcast/internal/job"

	"github.com/gin-gonic/gin"
)

type trainResponse struct {
	ModelKey          string  `json:"model_key"`
	Version           int     `json:"version"`
	Format            string  `json:"format"`
	SampleCount       int     `json:"sample_count"`
	TestCount         int     `json:"test_count"`
	MAE               float64 `json:"mae"`
	DirectionAccuracy float64 `json:"direction_accuracy"`
	Promoted          bool    `json:"promoted"`
	PromoteError      string  `json:"promote_error,omitempty"`
}

// TriggerTraining godoc
// @Summary      Retrain the forecast model now
// @Description  Runs an immediate training cycle over the watchlist and reports validation metrics and whether the new version was activated
// @Tags         models
// @Produce      json
// @Success      200  {object}  handler.trainResponse
// @Failure      409  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/models/train [post]
func (h *Handler) TriggerTraining(c *gin.Context) {
	if h.trainer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model training unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.trigger-training")
	defer span.End()

	r, err := h.trainer.RunOnce(ctx)
	if errors.Is(err, job.ErrTrainingInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := trainResponse{
		ModelKey:          r.ModelKey,
		Version:           r.Version,
		Format:            r.Format,
		SampleCount:       r.SampleCount,
		TestCount:         r.TestCount,
		MAE:               r.MAE,
		DirectionAccuracy: r.DirectionAccuracy,
		Promoted:          r.Promoted,
	}
	if r.PromoteError != nil {
		resp.PromoteError = r.PromoteError.Error()
	}
	c.JSON(http.StatusOK, resp)
}
