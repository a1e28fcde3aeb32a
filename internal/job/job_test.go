package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"trendcast/internal/domain"
	"trendcast/internal/ml/training"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

type stubRefresher struct {
	mu      sync.Mutex
	symbols []string
	fail    map[string]bool
}

func (s *stubRefresher) RefreshHistory(ctx context.Context, symbol, interval string, limit int) ([]*domain.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbols = append(s.symbols, symbol)
	if s.fail[symbol] {
		return nil, errors.New("upstream 503")
	}
	return []*domain.Candle{{Symbol: symbol}}, nil
}

func (s *stubRefresher) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.symbols...)
}

func TestNewHistoryPollerInterval(t *testing.T) {
	poller := NewHistoryPoller(testTracer, zerolog.Nop(), &stubRefresher{}, []string{"AAPL"}, "1d", 365, 2)
	assert.Equal(t, 2*time.Second, poller.pollInterval)
}

func TestHistoryPollerStartRefreshesWholeWatchlist(t *testing.T) {
	t.Parallel()

	stub := &stubRefresher{fail: map[string]bool{"MSFT": true}}
	poller := NewHistoryPoller(testTracer, zerolog.Nop(), stub, []string{"AAPL", "MSFT", "NVDA"}, "1d", 365, 3600)
	poller.startDelay = 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Start(ctx)
		close(done)
	}()

	eventually(t, func() bool { return len(stub.seen()) >= 3 })
	cancel()
	<-done
	assert.Equal(t, []string{"AAPL", "MSFT", "NVDA"}, stub.seen()[:3])
}

func TestFetchBatchRoundRobin(t *testing.T) {
	stub := &stubRefresher{}
	poller := NewHistoryPoller(testTracer, zerolog.Nop(), stub, []string{"AAPL", "MSFT", "NVDA"}, "1d", 365, 60)

	idx := 0
	poller.fetchBatch(context.Background(), &idx)
	poller.fetchBatch(context.Background(), &idx)
	assert.Equal(t, []string{"AAPL", "MSFT", "NVDA", "AAPL"}, stub.seen())
}

func TestHistoryPollerEmptyWatchlist(t *testing.T) {
	poller := NewHistoryPoller(testTracer, zerolog.Nop(), &stubRefresher{}, nil, "1d", 365, 60)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	poller.Start(ctx)
}

type stubTrainer struct {
	result training.ModelTrainResult
	err    error
	calls  int
}

func (s *stubTrainer) Train(ctx context.Context, modelKey string, symbols []string, now time.Time) (training.ModelTrainResult, error) {
	s.calls++
	return s.result, s.err
}

type stubCache struct{ invalidated []string }

func (c *stubCache) Invalidate(key string) { c.invalidated = append(c.invalidated, key) }

func TestTrainingRunOnceInvalidatesOnPromotion(t *testing.T) {
	trainer := &stubTrainer{result: training.ModelTrainResult{ModelKey: "DEFAULT", Version: 4, Promoted: true}}
	cache := &stubCache{}
	j := NewTrainingJob(testTracer, zerolog.Nop(), trainer, cache, "DEFAULT", []string{"AAPL"}, 2)

	r, err := j.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, r.Version)
	assert.Equal(t, 1, trainer.calls)
	assert.Equal(t, []string{""}, cache.invalidated)

	trainer.result.Promoted = false
	_, err = j.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, cache.invalidated, 1)

	trainer.err = errors.New("not enough samples")
	_, err = j.RunOnce(context.Background())
	assert.Error(t, err)
	assert.Len(t, cache.invalidated, 1)
}

func TestTrainingRunOnceRejectsOverlap(t *testing.T) {
	j := NewTrainingJob(testTracer, zerolog.Nop(), &stubTrainer{}, nil, "DEFAULT", []string{"AAPL"}, 2)
	j.running.Lock()
	defer j.running.Unlock()

	_, err := j.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrTrainingInProgress)
}

func TestTrainingRunOnceWithoutSymbols(t *testing.T) {
	j := NewTrainingJob(testTracer, zerolog.Nop(), &stubTrainer{}, nil, "DEFAULT", nil, 2)
	_, err := j.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestNewTrainingJobClampsHour(t *testing.T) {
	j := NewTrainingJob(testTracer, zerolog.Nop(), &stubTrainer{}, nil, "DEFAULT", nil, 42)
	assert.Equal(t, 0, j.trainHour)
}

func TestNextRunUTC(t *testing.T) {
	now := time.Date(2026, 5, 4, 3, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 5, 4, 4, 0, 0, 0, time.UTC), nextRunUTC(now, 4))
	assert.Equal(t, time.Date(2026, 5, 5, 2, 0, 0, 0, time.UTC), nextRunUTC(now, 2))
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met")
}
