package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cinesync/cinesync/internal/identity"
	"github.com/cinesync/cinesync/internal/identity/auth"
	"github.com/cinesync/cinesync/internal/identity/favorites"
	"github.com/cinesync/cinesync/internal/identity/users"
	apperrors "github.com/cinesync/cinesync/pkg/errors"
	"github.com/cinesync/cinesync/pkg/logger"
)

// Handler implements the identity service's HTTP endpoints.
type Handler struct {
	users     *users.Service
	favorites *favorites.Coordinator
	logger    *slog.Logger
}

func New(userService *users.Service, coordinator *favorites.Coordinator) *Handler {
	return &Handler{
		users:     userService,
		favorites: coordinator,
		logger:    logger.WithComponent("identity-handler"),
	}
}

// Routes registers all endpoints on the mux, wrapping the favorites routes
// with the bearer-auth middleware.
func (h *Handler) Routes(mux *http.ServeMux, tm *auth.TokenManager) {
	mux.HandleFunc("POST /register", h.Register)
	mux.HandleFunc("POST /token", h.Token)

	authed := auth.Middleware(tm)
	mux.Handle("POST /users/me/favorites", authed(http.HandlerFunc(h.AddFavorite)))
	mux.Handle("GET /users/me/favorites", authed(http.HandlerFunc(h.ListFavorites)))
	mux.Handle("DELETE /users/me/favorites/{movie_id}", authed(http.HandlerFunc(h.RemoveFavorite)))
}

// Register handles POST /register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req identity.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := h.users.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

// Token handles POST /token. The OAuth2 password form is used: username
// carries the email.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	email := r.PostFormValue("username")
	password := r.PostFormValue("password")

	token, err := h.users.Authenticate(r.Context(), email, password)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			w.Header().Set("WWW-Authenticate", "Bearer")
		}
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, identity.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
	})
}

// AddFavorite handles POST /users/me/favorites.
func (h *Handler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.CurrentUser(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "could not validate credentials")
		return
	}
	var req identity.FavoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	fav, err := h.favorites.Add(r.Context(), claims.UserID, req.MovieID)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, fav)
}

// ListFavorites handles GET /users/me/favorites.
func (h *Handler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.CurrentUser(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "could not validate credentials")
		return
	}

	favs, err := h.favorites.List(r.Context(), claims.UserID)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, favs)
}

// RemoveFavorite handles DELETE /users/me/favorites/{movie_id}.
func (h *Handler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.CurrentUser(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "could not validate credentials")
		return
	}
	movieID, err := strconv.ParseInt(r.PathValue("movie_id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "movie id must be an integer")
		return
	}

	removed, err := h.favorites.Remove(r.Context(), claims.UserID, movieID)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	if !removed {
		h.writeError(w, http.StatusNotFound, "favorite not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeAppError maps a service error to its status code and a short
// message; internal detail never crosses the boundary.
func (h *Handler) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := "internal error"
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	h.writeError(w, status, message)
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
