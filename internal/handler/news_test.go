package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"trendcast/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubNews struct {
	symbol string
	limit  int
	err    error
}

func (s *stubNews) Headlines(_ context.Context, symbol string, limit int) ([]domain.Headline, error) {
	s.symbol, s.limit = symbol, limit
	if s.err != nil {
		return nil, s.err
	}
	return []domain.Headline{{Symbol: symbol, Title: "Apple beats estimates", Label: domain.SentimentBullish, Sentiment: 0.75}}, nil
}

func TestGetNews(t *testing.T) {
	h := newTestHandler(&stubForecasts{}, &stubMarket{}, nil)
	r := newTestRouter(h)

	assert.Equal(t, http.StatusServiceUnavailable, serve(r, http.MethodGet, "/api/news/AAPL").Code)

	news := &stubNews{}
	h.SetNewsReader(news)

	w := serve(r, http.MethodGet, "/api/news/apple?limit=3")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "AAPL", news.symbol)
	assert.Equal(t, 3, news.limit)

	var body struct {
		Symbol    string            `json:"symbol"`
		Headlines []domain.Headline `json:"headlines"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "AAPL", body.Symbol)
	require.Len(t, body.Headlines, 1)
	assert.Equal(t, domain.SentimentBullish, body.Headlines[0].Label)

	serve(r, http.MethodGet, "/api/news/AAPL")
	assert.Equal(t, 10, news.limit)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodGet, "/api/news/AAPL?limit=50").Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodGet, "/api/news/$$$").Code)

	news.err = errors.New("feed down")
	assert.Equal(t, http.StatusInternalServerError, serve(r, http.MethodGet, "/api/news/AAPL").Code)
}
