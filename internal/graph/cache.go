package graph

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultLoadTimeout bounds a shared snapshot load.
const DefaultLoadTimeout = 30 * time.Second

// CachingSource holds a loaded snapshot for a fixed TTL and refreshes it on
// the first Load after expiry. Concurrent refreshes collapse into one read of
// the inner source. Failed loads are never cached.
//
// The shared read is detached from the cancellation of whichever caller
// started it; each caller only stops waiting when its own context ends.
type CachingSource struct {
	inner       Source
	ttl         time.Duration
	loadTimeout time.Duration
	now         func() time.Time

	mu       sync.RWMutex
	snapshot *MemoryStore
	loadedAt time.Time
	gen      uint64

	group singleflight.Group
}

// NewCachingSource wraps inner. A non-positive ttl disables caching.
func NewCachingSource(inner Source, ttl time.Duration) *CachingSource {
	return &CachingSource{inner: inner, ttl: ttl, loadTimeout: DefaultLoadTimeout, now: time.Now}
}

// Load implements Source.
func (c *CachingSource) Load(ctx context.Context) (*MemoryStore, error) {
	if c.ttl <= 0 {
		return c.inner.Load(ctx)
	}

	c.mu.RLock()
	snap, loadedAt, gen := c.snapshot, c.loadedAt, c.gen
	c.mu.RUnlock()
	if snap != nil && c.now().Sub(loadedAt) < c.ttl {
		return snap, nil
	}

	ch := c.group.DoChan("snapshot", func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()

		fresh, err := c.inner.Load(loadCtx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		// An Invalidate that raced with this load wins; keep the result for
		// this caller but do not publish it.
		if c.gen == gen {
			c.snapshot = fresh
			c.loadedAt = c.now()
		}
		c.mu.Unlock()
		return fresh, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*MemoryStore), nil
	}
}

// Invalidate drops the cached snapshot so the next Load reads the source.
func (c *CachingSource) Invalidate() {
	c.mu.Lock()
	c.snapshot = nil
	c.gen++
	c.mu.Unlock()
}

// Ping implements Source.
func (c *CachingSource) Ping(ctx context.Context) error {
	return c.inner.Ping(ctx)
}

// Close implements Source.
func (c *CachingSource) Close(ctx context.Context) error {
	return c.inner.Close(ctx)
}

var _ Source = (*CachingSource)(nil)
