package modelcache

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"trendcast/internal/domain"
	"trendcast/internal/ml/artifact"

	"golang.org/x/sync/singleflight"
)

// Cache keeps decoded model bundles in memory, keyed by upper-cased ticker.
// Concurrent misses on one key trigger a single provider lookup. Absent
// bundles are not remembered, so a model trained later is picked up on the
// next request.
type Cache struct {
	provider   artifact.Provider
	defaultKey string

	mu      sync.RWMutex
	entries map[string]*artifact.Artifact
	group   singleflight.Group
}

func New(provider artifact.Provider, defaultKey string) *Cache {
	if defaultKey == "" {
		defaultKey = domain.DefaultModelKey
	}
	return &Cache{
		provider:   provider,
		defaultKey: strings.ToUpper(defaultKey),
		entries:    make(map[string]*artifact.Artifact),
	}
}

type lookupResult struct {
	artifact *artifact.Artifact
	found    bool
}

// Get returns the bundle for key, loading it on first use.
func (c *Cache) Get(ctx context.Context, key string) (*artifact.Artifact, bool, error) {
	key = strings.ToUpper(strings.TrimSpace(key))
	if key == "" {
		return nil, false, nil
	}

	c.mu.RLock()
	a, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return a, true, nil
	}
	if c.provider == nil {
		return nil, false, nil
	}

	// The shared load outlives any one caller; each caller still stops
	// waiting when its own context ends.
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		a, found, err := c.provider.Lookup(loadCtx, key)
		if err != nil || !found {
			return lookupResult{}, err
		}
		c.mu.Lock()
		c.entries[key] = a
		c.mu.Unlock()
		return lookupResult{artifact: a, found: true}, nil
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, false, r.Err
		}
		res := r.Val.(lookupResult)
		return res.artifact, res.found, nil
	}
}

// Resolve picks the ticker's own bundle, falling back to the default key.
// A provider error on the ticker key does not block the fallback.
func (c *Cache) Resolve(ctx context.Context, symbol string) (*artifact.Artifact, error) {
	a, ok, err := c.Get(ctx, symbol)
	if ok {
		return a, nil
	}
	d, dok, derr := c.Get(ctx, c.defaultKey)
	if dok {
		return d, nil
	}
	if derr == nil {
		derr = err
	}
	if derr != nil {
		return nil, fmt.Errorf("no model for %s: %w: %w", symbol, domain.ErrModelUnavailable, derr)
	}
	return nil, fmt.Errorf("no model for %s: %w", symbol, domain.ErrModelUnavailable)
}

// Invalidate drops key so the next Get reloads it. An empty key clears all.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if key == "" {
		c.entries = make(map[string]*artifact.Artifact)
		return
	}
	delete(c.entries, strings.ToUpper(key))
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
