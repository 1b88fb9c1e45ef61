// Package favorites orchestrates favorite writes: a synchronous existence
// check against the catalog service, then a denormalised insert. Write-time
// consistency is preferred over eventual cleanup: a favorite referencing a
// nonexistent movie is invalid data, at the cost of coupling adds to
// catalog availability.
package favorites

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cinesync/cinesync/internal/catalog"
	"github.com/cinesync/cinesync/internal/identity"
	apperrors "github.com/cinesync/cinesync/pkg/errors"
	"github.com/cinesync/cinesync/pkg/logger"
)

// CatalogClient validates movie existence against the catalog service.
type CatalogClient interface {
	GetMovie(ctx context.Context, id int64) (*catalog.Movie, error)
}

// Store persists favorite records.
type Store interface {
	InsertFavorite(ctx context.Context, fav *identity.Favorite) error
	ListFavorites(ctx context.Context, userID int64) ([]identity.Favorite, error)
	DeleteFavorite(ctx context.Context, userID, movieID int64) (bool, error)
}

// Coordinator implements the favorites operations.
type Coordinator struct {
	store   Store
	catalog CatalogClient
	logger  *slog.Logger
}

// New creates a Coordinator.
func New(store Store, catalogClient CatalogClient) *Coordinator {
	return &Coordinator{
		store:   store,
		catalog: catalogClient,
		logger:  logger.WithComponent("favorites"),
	}
}

// Add validates the movie against the catalog service, then inserts a
// favorite snapshotting title and poster path from the fetched entry. A
// duplicate pair fails with ErrAlreadyExists from the store; the uniqueness
// constraint is the only guard, there is no pre-check.
func (c *Coordinator) Add(ctx context.Context, userID, movieID int64) (*identity.Favorite, error) {
	movie, err := c.catalog.GetMovie(ctx, movieID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			return nil, apperrors.Newf(apperrors.ErrNotFound, 404, "movie %d not found", movieID)
		case errors.Is(err, apperrors.ErrDependencyUnavailable), errors.Is(err, apperrors.ErrUpstreamUnavailable):
			return nil, apperrors.New(apperrors.ErrDependencyUnavailable, 502, "catalog service unavailable")
		default:
			return nil, err
		}
	}

	fav := &identity.Favorite{
		UserID:     userID,
		MovieID:    movie.ID,
		Title:      movie.Title,
		PosterPath: movie.PosterPath,
	}
	if err := c.store.InsertFavorite(ctx, fav); err != nil {
		return nil, err
	}
	c.logger.Info("favorite added", "user_id", userID, "movie_id", movieID)
	return fav, nil
}

// List returns the user's favorites, newest first. An empty list is a valid
// result.
func (c *Coordinator) List(ctx context.Context, userID int64) ([]identity.Favorite, error) {
	return c.store.ListFavorites(ctx, userID)
}

// Remove deletes a favorite and reports whether it existed. Removing an
// absent pair is not an error here; the handler decides whether to surface
// a 404.
func (c *Coordinator) Remove(ctx context.Context, userID, movieID int64) (bool, error) {
	removed, err := c.store.DeleteFavorite(ctx, userID, movieID)
	if err != nil {
		return false, err
	}
	if removed {
		c.logger.Info("favorite removed", "user_id", userID, "movie_id", movieID)
	}
	return removed, nil
}
