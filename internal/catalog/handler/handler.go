package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cinesync/cinesync/internal/catalog"
	"github.com/cinesync/cinesync/internal/catalog/gateway"
	apperrors "github.com/cinesync/cinesync/pkg/errors"
	"github.com/cinesync/cinesync/pkg/logger"
)

// Handler implements the catalog service's HTTP endpoints.
type Handler struct {
	gateway *gateway.Gateway
	logger  *slog.Logger
}

func New(gw *gateway.Gateway) *Handler {
	return &Handler{
		gateway: gw,
		logger:  logger.WithComponent("catalog-handler"),
	}
}

// Search handles GET /search?query=<term>.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	term := r.URL.Query().Get("query")
	if term == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'query' is required")
		return
	}

	movies, err := h.gateway.Search(ctx, term)
	if err != nil {
		log.Error("search failed", "term", term, "error", err)
		status := apperrors.HTTPStatusCode(err)
		if status == http.StatusBadGateway {
			h.writeError(w, status, "movie provider unavailable")
			return
		}
		h.writeError(w, status, "internal error")
		return
	}
	if movies == nil {
		movies = []catalog.Movie{}
	}

	log.Info("search completed", "term", term, "results", len(movies))
	h.writeJSON(w, http.StatusOK, catalog.SearchResponse{Results: movies})
}

// GetMovie handles GET /movies/{id}.
func (h *Handler) GetMovie(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "movie id must be an integer")
		return
	}

	movie, err := h.gateway.GetByID(ctx, id)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			log.Error("movie lookup failed", "movie_id", id, "error", err)
			h.writeError(w, status, "movie provider unavailable")
			return
		}
		h.writeError(w, status, "movie not found")
		return
	}

	h.writeJSON(w, http.StatusOK, movie)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
