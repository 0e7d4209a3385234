package dataset

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/KaramelBytes/rfm-dashboard/internal/metrics"
)

// CachedLoader memoizes successful loads per Sources for ttl. A zero ttl
// disables caching but still collapses concurrent identical loads.
// Failures are never cached. The wrapped Source must bound its own loads
// (the Loader's fetch timeout does), since a shared load ignores caller
// cancellation.
type CachedLoader struct {
	next    Source
	ttl     time.Duration
	metrics *metrics.Metrics
	now     func() time.Time

	group   singleflight.Group
	mu      sync.Mutex
	entries map[Sources]cacheEntry
}

type cacheEntry struct {
	ds      *Dataset
	expires time.Time
}

// NewCachedLoader wraps next. m may be nil.
func NewCachedLoader(next Source, ttl time.Duration, m *metrics.Metrics) *CachedLoader {
	return &CachedLoader{
		next:    next,
		ttl:     ttl,
		metrics: m,
		now:     time.Now,
		entries: make(map[Sources]cacheEntry),
	}
}

// Load returns a cached Dataset when fresh, otherwise delegates to next.
func (c *CachedLoader) Load(ctx context.Context, src Sources) (*Dataset, error) {
	if ds, ok := c.lookup(src); ok {
		if c.metrics != nil {
			c.metrics.CacheHits.Inc()
		}
		return ds, nil
	}
	// The shared load outlives any single caller; each caller waits only as
	// long as its own context allows.
	key := src.Donors + "\x00" + src.Subsegments
	ch := c.group.DoChan(key, func() (interface{}, error) {
		ds, err := c.next.Load(context.WithoutCancel(ctx), src)
		if err != nil {
			return nil, err
		}
		if c.ttl > 0 {
			c.mu.Lock()
			c.entries[src] = cacheEntry{ds: ds, expires: c.now().Add(c.ttl)}
			c.mu.Unlock()
		}
		return ds, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Dataset), nil
	}
}

// Invalidate drops every cached entry.
func (c *CachedLoader) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[Sources]cacheEntry)
	c.mu.Unlock()
}

func (c *CachedLoader) lookup(src Sources) (*Dataset, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[src]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, src)
		return nil, false
	}
	return e.ds, true
}
