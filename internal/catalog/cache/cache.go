// Package cache implements the read-through search cache in front of the
// upstream movie provider. Keys are the normalised search term; values are
// the JSON-serialised result list with a fixed TTL. Empty result sets are
// never cached, so a miss-then-empty upstream response is retried on every
// subsequent request.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cinesync/cinesync/internal/catalog"
	"github.com/cinesync/cinesync/pkg/logger"
	"github.com/cinesync/cinesync/pkg/metrics"
	pkgredis "github.com/cinesync/cinesync/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "movie_search:"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// SearchCache caches search results by normalised term.
type SearchCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	logger  *slog.Logger
	metrics *metrics.Metrics
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a SearchCache with the given backing store and TTL. A nil
// metrics disables the Prometheus counters.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *SearchCache {
	return &SearchCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  logger.WithComponent("search-cache"),
	}
}

// Get returns the cached result list for a term, if present. Store errors
// are treated as misses: the cache shields the upstream, it never blocks a
// request.
func (c *SearchCache) Get(ctx context.Context, term string) ([]catalog.Movie, bool) {
	key := Key(term)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var movies []catalog.Movie
	if err := json.Unmarshal([]byte(data), &movies); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "term", term, "key", key)
	return movies, true
}

func (c *SearchCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// Set writes a non-empty result list under the term's key. Empty lists are
// skipped so that "nothing found yet" is never cached.
func (c *SearchCache) Set(ctx context.Context, term string, movies []catalog.Movie) {
	if len(movies) == 0 {
		return
	}
	key := Key(term)
	data, err := json.Marshal(movies)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrFetch returns the cached list or fetches it from upstream, caching
// the result. Concurrent misses for the same key are collapsed into a
// single upstream call. The second return reports whether the value came
// from cache.
func (c *SearchCache) GetOrFetch(
	ctx context.Context,
	term string,
	fetch func() ([]catalog.Movie, error),
) ([]catalog.Movie, bool, error) {
	if movies, ok := c.Get(ctx, term); ok {
		return movies, true, nil
	}
	val, err, _ := c.group.Do(Key(term), func() (interface{}, error) {
		if movies, ok := c.Get(ctx, term); ok {
			return movies, nil
		}
		movies, err := fetch()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, term, movies)
		return movies, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]catalog.Movie), false, nil
}

// Stats returns the hit and miss counters.
func (c *SearchCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Key builds the cache key for a search term: case-folded, trimmed, under a
// fixed prefix.
func Key(term string) string {
	return keyPrefix + strings.ToLower(strings.TrimSpace(term))
}
