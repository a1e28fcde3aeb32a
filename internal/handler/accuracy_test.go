package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"trendcast/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAccuracy struct {
	since time.Time
	out   []domain.StageAccuracy
	err   error
}

func (s *stubAccuracy) Accuracy(_ context.Context, since time.Time) ([]domain.StageAccuracy, error) {
	s.since = since
	return s.out, s.err
}

func TestGetAccuracy(t *testing.T) {
	h := newTestHandler(&stubForecasts{}, &stubMarket{}, nil)
	r := newTestRouter(h)

	assert.Equal(t, http.StatusServiceUnavailable, serve(r, http.MethodGet, "/api/accuracy").Code)

	acc := &stubAccuracy{out: []domain.StageAccuracy{{Stage: domain.StageIndicator, Resolved: 4, Correct: 3, HitRate: 0.75}}}
	h.SetAccuracyReader(acc)

	w := serve(r, http.MethodGet, "/api/accuracy?days=7")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Days   int                    `json:"days"`
		Stages []domain.StageAccuracy `json:"stages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 7, body.Days)
	require.Len(t, body.Stages, 1)
	assert.Equal(t, 0.75, body.Stages[0].HitRate)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, -7), acc.since, time.Minute)

	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodGet, "/api/accuracy?days=0").Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodGet, "/api/accuracy?days=400").Code)

	acc.err = errors.New("db down")
	assert.Equal(t, http.StatusInternalServerError, serve(r, http.MethodGet, "/api/accuracy").Code)
}
