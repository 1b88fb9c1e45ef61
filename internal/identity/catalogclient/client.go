// Package catalogclient is the identity service's HTTP client for the
// catalog service. Catalog errors are translated into the identity
// service's vocabulary at this boundary: a catalog 404 becomes ErrNotFound,
// anything else becomes ErrDependencyUnavailable.
package catalogclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cinesync/cinesync/internal/catalog"
	"github.com/cinesync/cinesync/pkg/config"
	apperrors "github.com/cinesync/cinesync/pkg/errors"
	"github.com/cinesync/cinesync/pkg/logger"
)

// Client calls the catalog service over HTTP.
type Client struct {
	baseURL *url.URL
	client  *http.Client
	logger  *slog.Logger
}

// New creates a Client for the configured catalog base URL.
func New(cfg config.PeersConfig) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(cfg.CatalogURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing catalog url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: parsed,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.WithComponent("catalog-client"),
	}, nil
}

// GetMovie fetches a movie by id from the catalog service.
func (c *Client) GetMovie(ctx context.Context, id int64) (*catalog.Movie, error) {
	rel := &url.URL{Path: "/movies/" + strconv.FormatInt(id, 10)}
	endpoint := c.baseURL.ResolveReference(rel).String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("catalog transport error", "movie_id", id, "error", err)
		return nil, apperrors.New(apperrors.ErrDependencyUnavailable, http.StatusBadGateway,
			"catalog service unavailable")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var movie catalog.Movie
		if err := json.NewDecoder(resp.Body).Decode(&movie); err != nil {
			return nil, fmt.Errorf("decoding catalog response: %w", err)
		}
		return &movie, nil
	case http.StatusNotFound:
		return nil, apperrors.Newf(apperrors.ErrNotFound, http.StatusNotFound, "movie %d not found", id)
	default:
		c.logger.Error("catalog returned unexpected status", "movie_id", id, "status", resp.StatusCode)
		return nil, apperrors.New(apperrors.ErrDependencyUnavailable, http.StatusBadGateway,
			"catalog service unavailable")
	}
}
