package modelcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"trendcast/internal/domain"
	"trendcast/internal/ml/artifact"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	calls   atomic.Int32
	delay   time.Duration
	bundles map[string]*artifact.Artifact
	err     error
}

func (p *countingProvider) Lookup(ctx context.Context, key string) (*artifact.Artifact, bool, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.err != nil {
		return nil, false, p.err
	}
	a, ok := p.bundles[key]
	return a, ok, nil
}

func TestConcurrentMissesLoadOnce(t *testing.T) {
	p := &countingProvider{
		delay:   20 * time.Millisecond,
		bundles: map[string]*artifact.Artifact{"AAPL": {Key: "AAPL", Version: 1}},
	}
	c := New(p, "")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, ok, err := c.Get(context.Background(), "aapl")
			assert.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "AAPL", a.Key)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), p.calls.Load())
	assert.Equal(t, 1, c.Len())

	_, _, _ = c.Get(context.Background(), "AAPL")
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestAbsentIsNotCached(t *testing.T) {
	p := &countingProvider{bundles: map[string]*artifact.Artifact{}}
	c := New(p, "")

	_, ok, err := c.Get(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.False(t, ok)

	p.bundles["MSFT"] = &artifact.Artifact{Key: "MSFT"}
	_, ok, err = c.Get(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestResolveFallsBackToDefault(t *testing.T) {
	p := &countingProvider{bundles: map[string]*artifact.Artifact{
		domain.DefaultModelKey: {Key: domain.DefaultModelKey},
	}}
	c := New(p, "")

	a, err := c.Resolve(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultModelKey, a.Key)
}

func TestResolveUnavailable(t *testing.T) {
	c := New(&countingProvider{bundles: map[string]*artifact.Artifact{}}, "")
	_, err := c.Resolve(context.Background(), "TSLA")
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)

	boom := errors.New("registry offline")
	c = New(&countingProvider{err: boom}, "")
	_, err = c.Resolve(context.Background(), "TSLA")
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
	assert.ErrorIs(t, err, boom)
}

func TestInvalidate(t *testing.T) {
	p := &countingProvider{bundles: map[string]*artifact.Artifact{"AAPL": {Key: "AAPL"}}}
	c := New(p, "")
	_, _, _ = c.Get(context.Background(), "AAPL")
	require.Equal(t, 1, c.Len())

	c.Invalidate("aapl")
	assert.Equal(t, 0, c.Len())

	_, _, _ = c.Get(context.Background(), "AAPL")
	c.Invalidate("")
	assert.Equal(t, 0, c.Len())
}

type gatedProvider struct {
	started chan struct{}
	release chan struct{}
	bundle  *artifact.Artifact
	ctxErr  error
}

func (p *gatedProvider) Lookup(ctx context.Context, key string) (*artifact.Artifact, bool, error) {
	close(p.started)
	<-p.release
	if err := ctx.Err(); err != nil {
		p.ctxErr = err
		return nil, false, err
	}
	return p.bundle, true, nil
}

func TestCancelledCallerDoesNotFailSharedLoad(t *testing.T) {
	p := &gatedProvider{
		started: make(chan struct{}),
		release: make(chan struct{}),
		bundle:  &artifact.Artifact{Key: "AAPL", Version: 2},
	}
	c := New(p, "")

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := c.Get(ctx, "AAPL")
		firstErr <- err
	}()
	<-p.started

	second := make(chan *artifact.Artifact, 1)
	go func() {
		a, _, err := c.Get(context.Background(), "AAPL")
		assert.NoError(t, err)
		second <- a
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	close(p.release)

	a := <-second
	require.NotNil(t, a)
	assert.Equal(t, 2, a.Version)
	assert.NoError(t, p.ctxErr)
	assert.Equal(t, 1, c.Len())
}
