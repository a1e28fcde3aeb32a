package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"trendcast/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resolvedOutcome struct {
	id       int64
	price    float64
	realized float64
	correct  bool
}

type stubOutcomeStore struct {
	due      []domain.ForecastOutcome
	listErr  error
	resolved []resolvedOutcome
}

func (s *stubOutcomeStore) ListUnresolvedDue(context.Context, time.Time, int) ([]domain.ForecastOutcome, error) {
	return s.due, s.listErr
}

func (s *stubOutcomeStore) Resolve(_ context.Context, id int64, price, realized float64, correct bool) error {
	s.resolved = append(s.resolved, resolvedOutcome{id, price, realized, correct})
	return nil
}

type stubHistory struct {
	series map[string]domain.PriceSeries
	calls  int
}

func (h *stubHistory) GetHistory(_ context.Context, symbol, _ string, _ int) (domain.PriceSeries, error) {
	h.calls++
	s, ok := h.series[symbol]
	if !ok {
		return domain.PriceSeries{}, domain.ErrUnknownSymbol
	}
	return s, nil
}

func dayBars(t *testing.T, symbol string, start time.Time, closes ...float64) domain.PriceSeries {
	t.Helper()
	bars := make([]*domain.Candle, len(closes))
	for i, c := range closes {
		open := start.AddDate(0, 0, i).Add(13*time.Hour + 30*time.Minute)
		bars[i] = &domain.Candle{Symbol: symbol, Interval: "1d", OpenTime: open, Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	s, err := domain.NewPriceSeries(symbol, bars)
	require.NoError(t, err)
	return s
}

func TestOutcomeResolverScoresDueOutcomes(t *testing.T) {
	day := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	store := &stubOutcomeStore{due: []domain.ForecastOutcome{
		{ID: 1, Symbol: "AAPL", Interval: "1d", Direction: domain.DirectionUp, BasePrice: 100, TargetTime: day.AddDate(0, 0, 1)},
		{ID: 2, Symbol: "AAPL", Interval: "1d", Direction: domain.DirectionDown, BasePrice: 100, TargetTime: day.AddDate(0, 0, 2)},
		// Target bar not complete yet.
		{ID: 3, Symbol: "AAPL", Interval: "1d", Direction: domain.DirectionUp, BasePrice: 100, TargetTime: day.AddDate(0, 0, 4)},
		{ID: 4, Symbol: "ZZZZ", Interval: "1d", Direction: domain.DirectionNeutral, BasePrice: 10, TargetTime: day.AddDate(0, 0, 1)},
	}}
	history := &stubHistory{series: map[string]domain.PriceSeries{
		"AAPL": dayBars(t, "AAPL", day, 100, 102, 103),
	}}

	r := NewOutcomeResolver(testTracer, zerolog.Nop(), store, history, 1, time.Hour)
	r.now = func() time.Time { return day.AddDate(0, 0, 4).Add(12 * time.Hour) }

	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, store.resolved, 2)

	assert.Equal(t, int64(1), store.resolved[0].id)
	assert.Equal(t, 102.0, store.resolved[0].price)
	assert.InDelta(t, 2.0, store.resolved[0].realized, 1e-9)
	assert.True(t, store.resolved[0].correct)

	assert.Equal(t, int64(2), store.resolved[1].id)
	assert.False(t, store.resolved[1].correct)

	// One history fetch per symbol.
	assert.Equal(t, 2, history.calls)
}

func TestOutcomeResolverListError(t *testing.T) {
	store := &stubOutcomeStore{listErr: errors.New("db down")}
	r := NewOutcomeResolver(testTracer, zerolog.Nop(), store, &stubHistory{}, 1, 0)
	_, err := r.RunOnce(context.Background())
	assert.EqualError(t, err, "db down")
	assert.Equal(t, time.Hour, r.every)
}

func TestOutcomeResolverStopsOnCancel(t *testing.T) {
	r := NewOutcomeResolver(testTracer, zerolog.Nop(), &stubOutcomeStore{}, &stubHistory{}, 1, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("resolver did not stop")
	}
}
