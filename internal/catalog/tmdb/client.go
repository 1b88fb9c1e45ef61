// Package tmdb implements the HTTP client for the upstream movie catalog
// provider. Upstream failures are translated into the service's own error
// vocabulary at this boundary; transport errors never leak to callers.
package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
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

// Client queries the TMDB HTTP API.
type Client struct {
	baseURL  *url.URL
	apiKey   string
	language string
	client   *http.Client
	logger   *slog.Logger
}

// New creates a Client from configuration. The transport timeout is the only
// cancellation guard on upstream calls, so it is always set.
func New(cfg config.TMDBConfig) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing tmdb base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:  parsed,
		apiKey:   cfg.APIKey,
		language: cfg.Language,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
			},
		},
		logger: logger.WithComponent("tmdb-client"),
	}, nil
}

// SearchMovies calls the provider's search endpoint with the raw term and the
// configured locale. An empty result list is a valid response, not an error.
func (c *Client) SearchMovies(ctx context.Context, term string) ([]catalog.Movie, error) {
	endpoint := c.endpoint("/search/movie", url.Values{
		"query":    {term},
		"api_key":  {c.apiKey},
		"language": {c.language},
	})

	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("upstream search failed", "status", resp.StatusCode, "term", term)
		return nil, apperrors.Newf(apperrors.ErrUpstreamUnavailable, http.StatusBadGateway,
			"movie provider returned %d", resp.StatusCode)
	}

	var payload struct {
		Results []catalog.Movie `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	return payload.Results, nil
}

// GetMovie looks up a single movie by its provider id.
func (c *Client) GetMovie(ctx context.Context, id int64) (*catalog.Movie, error) {
	endpoint := c.endpoint("/movie/"+strconv.FormatInt(id, 10), url.Values{
		"api_key":  {c.apiKey},
		"language": {c.language},
	})

	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var movie catalog.Movie
		if err := json.NewDecoder(resp.Body).Decode(&movie); err != nil {
			return nil, fmt.Errorf("decoding movie response: %w", err)
		}
		return &movie, nil
	case http.StatusNotFound:
		return nil, apperrors.Newf(apperrors.ErrNotFound, http.StatusNotFound, "movie %d not found", id)
	default:
		c.logger.Error("upstream lookup failed", "status", resp.StatusCode, "movie_id", id)
		return nil, apperrors.Newf(apperrors.ErrUpstreamUnavailable, http.StatusBadGateway,
			"movie provider returned %d", resp.StatusCode)
	}
}

func (c *Client) endpoint(path string, query url.Values) string {
	rel := &url.URL{Path: path, RawQuery: query.Encode()}
	return c.baseURL.ResolveReference(rel).String()
}

func (c *Client) get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building upstream request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("upstream transport error", "error", err)
		return nil, apperrors.New(apperrors.ErrUpstreamUnavailable, http.StatusBadGateway,
			"movie provider unavailable")
	}
	return resp, nil
}
