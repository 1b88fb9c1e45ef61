// Package gateway wires the search cache and the upstream provider into the
// catalog service's two operations: search by title and lookup by id.
package gateway

import (
	"context"
	"log/slog"

	"github.com/cinesync/cinesync/internal/catalog"
	"github.com/cinesync/cinesync/internal/catalog/cache"
	"github.com/cinesync/cinesync/pkg/logger"
)

// Provider is the upstream movie catalog. The tmdb package implements it;
// tests substitute a stub.
type Provider interface {
	SearchMovies(ctx context.Context, term string) ([]catalog.Movie, error)
	GetMovie(ctx context.Context, id int64) (*catalog.Movie, error)
}

// Gateway shields the rate-limited upstream behind a read-through cache.
type Gateway struct {
	provider Provider
	cache    *cache.SearchCache
	logger   *slog.Logger
}

// New creates a Gateway. A nil cache disables caching; every search then
// goes straight to the provider.
func New(provider Provider, searchCache *cache.SearchCache) *Gateway {
	return &Gateway{
		provider: provider,
		cache:    searchCache,
		logger:   logger.WithComponent("catalog-gateway"),
	}
}

// Search returns the movies matching the term, serving from cache when a
// fresh entry exists. A possibly-empty list is a valid result; upstream
// failure surfaces as ErrUpstreamUnavailable from the provider. The gateway
// does not retry: callers map the failure to a 502.
func (g *Gateway) Search(ctx context.Context, term string) ([]catalog.Movie, error) {
	if g.cache == nil {
		return g.provider.SearchMovies(ctx, term)
	}
	movies, cached, err := g.cache.GetOrFetch(ctx, term, func() ([]catalog.Movie, error) {
		g.logger.Info("cache miss, querying provider", "term", term)
		return g.provider.SearchMovies(ctx, term)
	})
	if err != nil {
		return nil, err
	}
	if cached {
		g.logger.Debug("served from cache", "term", term)
	}
	return movies, nil
}

// GetByID looks the movie up directly at the provider. This path is not
// cached: lookups are cheap for the provider and favorites validation wants
// current data.
func (g *Gateway) GetByID(ctx context.Context, id int64) (*catalog.Movie, error) {
	return g.provider.GetMovie(ctx, id)
}
