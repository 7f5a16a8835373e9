package executor

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/itsneelabh/insights-agent/internal/cache"
	"github.com/itsneelabh/insights-agent/internal/catalog"
	"github.com/itsneelabh/insights-agent/internal/logging"
	"github.com/itsneelabh/insights-agent/internal/schema"
)

// CachedExecutor wraps an Executor with the result cache and
// singleflight stampede suppression: concurrent requests for the same
// (query-id, params) key share one database round trip.
type CachedExecutor struct {
	inner   Executor
	catalog *catalog.Catalog
	cache   *cache.ResultCache
	group   singleflight.Group
	logger  logging.Logger
}

type execResult struct {
	fragment *schema.Fragment
	meta     *Meta
}

// NewCachedExecutor wraps inner with cache lookups keyed by canonical
// params.
func NewCachedExecutor(inner Executor, cat *catalog.Catalog, resultCache *cache.ResultCache, logger logging.Logger) *CachedExecutor {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &CachedExecutor{inner: inner, catalog: cat, cache: resultCache, logger: logger}
}

// Execute consults the cache first; on miss the underlying executor
// runs and successful fragments are stored. Failed executions are
// never cached.
func (c *CachedExecutor) Execute(ctx context.Context, id string, params map[string]interface{}) (*schema.Fragment, *Meta, error) {
	entry, ok := c.catalog.Lookup(id)
	if !ok {
		return c.inner.Execute(ctx, id, params)
	}
	canonical, _, err := catalog.BuildParams(entry, params)
	if err != nil {
		return nil, nil, err
	}
	key := catalog.CacheKey(id, canonical)

	if frag, hit := c.cache.Get(key); hit {
		c.logger.Debug("Result cache hit", map[string]interface{}{"query_id": id})
		return frag, &Meta{QueryID: id, RowCount: frag.RowCount(), Cached: true}, nil
	}

	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		frag, meta, err := c.inner.Execute(ctx, id, canonical)
		if err != nil {
			return execResult{meta: meta}, err
		}
		c.cache.Set(key, frag)
		return execResult{fragment: frag, meta: meta}, nil
	})
	res := v.(execResult)
	if err != nil {
		return nil, res.meta, err
	}
	if shared {
		c.logger.Debug("Result shared via singleflight", map[string]interface{}{"query_id": id})
	}
	return res.fragment, res.meta, nil
}

// Invalidate flushes the whole result cache and returns the number of
// dropped entries.
func (c *CachedExecutor) Invalidate() int {
	return c.cache.Invalidate()
}

// CacheStats exposes the cache counters for the health endpoint.
func (c *CachedExecutor) CacheStats() cache.Stats {
	return c.cache.Stats()
}
