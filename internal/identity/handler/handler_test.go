package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cinesync/cinesync/internal/catalog"
	"github.com/cinesync/cinesync/internal/identity"
	"github.com/cinesync/cinesync/internal/identity/auth"
	"github.com/cinesync/cinesync/internal/identity/favorites"
	"github.com/cinesync/cinesync/internal/identity/users"
	"github.com/cinesync/cinesync/pkg/config"
	apperrors "github.com/cinesync/cinesync/pkg/errors"
)

// fakeUserStore backs the users service in memory.
type fakeUserStore struct {
	mu     sync.Mutex
	users  map[string]*identity.User
	nextID int64
}

func (s *fakeUserStore) CreateUser(ctx context.Context, email, hashedPassword string) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[email]; exists {
		return nil, apperrors.New(apperrors.ErrAlreadyExists, 400, "email already registered")
	}
	s.nextID++
	user := &identity.User{
		ID:             s.nextID,
		Email:          email,
		HashedPassword: hashedPassword,
		IsActive:       true,
		CreatedAt:      time.Now(),
	}
	s.users[email] = user
	return user, nil
}

func (s *fakeUserStore) GetUserByEmail(ctx context.Context, email string) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[email]
	if !ok {
		return nil, apperrors.New(apperrors.ErrNotFound, 404, "user not found")
	}
	return user, nil
}

type favPair struct{ userID, movieID int64 }

// fakeFavStore backs the favorites coordinator in memory with a unique
// (user, movie) pair.
type fakeFavStore struct {
	mu   sync.Mutex
	rows map[favPair]identity.Favorite
}

func (s *fakeFavStore) InsertFavorite(ctx context.Context, fav *identity.Favorite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := favPair{fav.UserID, fav.MovieID}
	if _, exists := s.rows[key]; exists {
		return apperrors.New(apperrors.ErrAlreadyExists, 400, "movie already in favorites")
	}
	fav.AddedAt = time.Now()
	s.rows[key] = *fav
	return nil
}

func (s *fakeFavStore) ListFavorites(ctx context.Context, userID int64) ([]identity.Favorite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]identity.Favorite, 0)
	for key, fav := range s.rows {
		if key.userID == userID {
			out = append(out, fav)
		}
	}
	return out, nil
}

func (s *fakeFavStore) DeleteFavorite(ctx context.Context, userID, movieID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := favPair{userID, movieID}
	if _, exists := s.rows[key]; !exists {
		return false, nil
	}
	delete(s.rows, key)
	return true, nil
}

// stubCatalog answers movie lookups with canned responses.
type stubCatalog struct {
	movie *catalog.Movie
	err   error
}

func (s *stubCatalog) GetMovie(ctx context.Context, id int64) (*catalog.Movie, error) {
	return s.movie, s.err
}

// testServer wires the full identity HTTP surface over in-memory stores.
func testServer(t *testing.T, cat favorites.CatalogClient) *httptest.Server {
	t.Helper()

	tm, err := auth.NewTokenManager(config.AuthConfig{Secret: "test-secret", ExpiryMinutes: 30})
	if err != nil {
		t.Fatalf("creating token manager: %v", err)
	}

	userService := users.New(&fakeUserStore{users: make(map[string]*identity.User)}, tm, nil)
	coordinator := favorites.New(&fakeFavStore{rows: make(map[favPair]identity.Favorite)}, cat)

	mux := http.NewServeMux()
	New(userService, coordinator).Routes(mux, tm)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func register(t *testing.T, srv *httptest.Server, email, password string) identity.User {
	t.Helper()
	body, _ := json.Marshal(identity.RegisterRequest{Email: email, Password: password})
	resp, err := http.Post(srv.URL+"/register", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("register request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register: expected 200, got %d", resp.StatusCode)
	}
	var user identity.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		t.Fatalf("decoding register response: %v", err)
	}
	return user
}

func obtainToken(t *testing.T, srv *httptest.Server, email, password string) string {
	t.Helper()
	form := url.Values{"username": {email}, "password": {password}}
	resp, err := http.Post(srv.URL+"/token", "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("token request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("token: expected 200, got %d", resp.StatusCode)
	}
	var tr identity.TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		t.Fatalf("decoding token response: %v", err)
	}
	if tr.TokenType != "bearer" {
		t.Errorf("expected token_type bearer, got %q", tr.TokenType)
	}
	return tr.AccessToken
}

func authedRequest(t *testing.T, method, target, token string, body []byte) *http.Request {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, target, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// TestRegisterAndToken verifies the full register-then-login flow, that the
// password never appears in the response, and that the OAuth2 form field
// "username" carries the email.
func TestRegisterAndToken(t *testing.T) {
	srv := testServer(t, &stubCatalog{})

	user := register(t, srv, "ripley@example.com", "s3cret")
	if user.ID == 0 || user.Email != "ripley@example.com" {
		t.Errorf("unexpected user: %+v", user)
	}

	token := obtainToken(t, srv, "ripley@example.com", "s3cret")
	if token == "" {
		t.Error("expected a non-empty access token")
	}
}

// TestRegisterRejectsBadInput verifies body validation.
func TestRegisterRejectsBadInput(t *testing.T) {
	srv := testServer(t, &stubCatalog{})

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", "{not json"},
		{"missing email", `{"password":"s3cret"}`},
		{"missing password", `{"email":"ripley@example.com"}`},
	}
	for _, tc := range cases {
		resp, err := http.Post(srv.URL+"/register", "application/json", strings.NewReader(tc.body))
		if err != nil {
			t.Fatalf("%s: request failed: %v", tc.name, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.name, resp.StatusCode)
		}
	}
}

// TestRegisterDuplicateEmail verifies a second registration with the same
// email answers 400.
func TestRegisterDuplicateEmail(t *testing.T) {
	srv := testServer(t, &stubCatalog{})
	register(t, srv, "ripley@example.com", "s3cret")

	body, _ := json.Marshal(identity.RegisterRequest{Email: "ripley@example.com", Password: "other"})
	resp, err := http.Post(srv.URL+"/register", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

// TestTokenBadCredentials verifies wrong credentials answer 401 with the
// WWW-Authenticate challenge.
func TestTokenBadCredentials(t *testing.T) {
	srv := testServer(t, &stubCatalog{})
	register(t, srv, "ripley@example.com", "s3cret")

	form := url.Values{"username": {"ripley@example.com"}, "password": {"wrong"}}
	resp, err := http.Post(srv.URL+"/token", "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
	if resp.Header.Get("WWW-Authenticate") != "Bearer" {
		t.Error("expected WWW-Authenticate: Bearer header")
	}
}

// TestFavoritesRequireAuth verifies the favorites surface rejects requests
// without a bearer token.
func TestFavoritesRequireAuth(t *testing.T) {
	srv := testServer(t, &stubCatalog{})

	cases := []struct {
		method string
		path   string
	}{
		{"POST", "/users/me/favorites"},
		{"GET", "/users/me/favorites"},
		{"DELETE", "/users/me/favorites/603"},
	}
	for _, tc := range cases {
		req, _ := http.NewRequest(tc.method, srv.URL+tc.path, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: request failed: %v", tc.method, tc.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", tc.method, tc.path, resp.StatusCode)
		}
	}
}

// TestFavoriteLifecycle walks add, list, and remove through the HTTP
// surface.
func TestFavoriteLifecycle(t *testing.T) {
	srv := testServer(t, &stubCatalog{
		movie: &catalog.Movie{ID: 603, Title: "The Matrix", PosterPath: "/matrix.jpg"},
	})
	register(t, srv, "ripley@example.com", "s3cret")
	token := obtainToken(t, srv, "ripley@example.com", "s3cret")

	// Add.
	body, _ := json.Marshal(identity.FavoriteRequest{MovieID: 603})
	resp, err := http.DefaultClient.Do(authedRequest(t, "POST", srv.URL+"/users/me/favorites", token, body))
	if err != nil {
		t.Fatalf("add request failed: %v", err)
	}
	var fav identity.Favorite
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add: expected 200, got %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&fav); err != nil {
		t.Fatalf("decoding add response: %v", err)
	}
	resp.Body.Close()
	if fav.MovieID != 603 || fav.Title != "The Matrix" {
		t.Errorf("unexpected favorite: %+v", fav)
	}

	// List.
	resp, err = http.DefaultClient.Do(authedRequest(t, "GET", srv.URL+"/users/me/favorites", token, nil))
	if err != nil {
		t.Fatalf("list request failed: %v", err)
	}
	var favs []identity.Favorite
	if err := json.NewDecoder(resp.Body).Decode(&favs); err != nil {
		t.Fatalf("decoding list response: %v", err)
	}
	resp.Body.Close()
	if len(favs) != 1 {
		t.Fatalf("expected 1 favorite, got %d", len(favs))
	}

	// Remove.
	resp, err = http.DefaultClient.Do(authedRequest(t, "DELETE", srv.URL+"/users/me/favorites/603", token, nil))
	if err != nil {
		t.Fatalf("delete request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete: expected 204, got %d", resp.StatusCode)
	}

	// Remove again: gone now.
	resp, err = http.DefaultClient.Do(authedRequest(t, "DELETE", srv.URL+"/users/me/favorites/603", token, nil))
	if err != nil {
		t.Fatalf("second delete request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", resp.StatusCode)
	}
}

// TestAddFavoriteUnknownMovie verifies the catalog existence check gates
// the write with a 404.
func TestAddFavoriteUnknownMovie(t *testing.T) {
	srv := testServer(t, &stubCatalog{
		err: apperrors.Newf(apperrors.ErrNotFound, 404, "movie %d not found", 999),
	})
	register(t, srv, "ripley@example.com", "s3cret")
	token := obtainToken(t, srv, "ripley@example.com", "s3cret")

	body, _ := json.Marshal(identity.FavoriteRequest{MovieID: 999})
	resp, err := http.DefaultClient.Do(authedRequest(t, "POST", srv.URL+"/users/me/favorites", token, body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

// TestAddFavoriteCatalogDown verifies a catalog outage answers 502 with a
// stable message.
func TestAddFavoriteCatalogDown(t *testing.T) {
	srv := testServer(t, &stubCatalog{
		err: apperrors.New(apperrors.ErrDependencyUnavailable, 502, "catalog service unavailable"),
	})
	register(t, srv, "ripley@example.com", "s3cret")
	token := obtainToken(t, srv, "ripley@example.com", "s3cret")

	body, _ := json.Marshal(identity.FavoriteRequest{MovieID: 603})
	resp, err := http.DefaultClient.Do(authedRequest(t, "POST", srv.URL+"/users/me/favorites", token, body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	var errBody map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&errBody); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if errBody["error"] != "catalog service unavailable" {
		t.Errorf("unexpected error message: %q", errBody["error"])
	}
}

// TestAddFavoriteDuplicate verifies a repeated add answers 400.
func TestAddFavoriteDuplicate(t *testing.T) {
	srv := testServer(t, &stubCatalog{
		movie: &catalog.Movie{ID: 603, Title: "The Matrix"},
	})
	register(t, srv, "ripley@example.com", "s3cret")
	token := obtainToken(t, srv, "ripley@example.com", "s3cret")

	body, _ := json.Marshal(identity.FavoriteRequest{MovieID: 603})
	for i, want := range []int{http.StatusOK, http.StatusBadRequest} {
		resp, err := http.DefaultClient.Do(authedRequest(t, "POST", srv.URL+"/users/me/favorites", token, body))
		if err != nil {
			t.Fatalf("add %d failed: %v", i, err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Errorf("add %d: expected %d, got %d", i, want, resp.StatusCode)
		}
	}
}

// TestRemoveFavoriteBadID verifies a non-numeric movie id answers 400.
func TestRemoveFavoriteBadID(t *testing.T) {
	srv := testServer(t, &stubCatalog{})
	register(t, srv, "ripley@example.com", "s3cret")
	token := obtainToken(t, srv, "ripley@example.com", "s3cret")

	resp, err := http.DefaultClient.Do(authedRequest(t, "DELETE", srv.URL+"/users/me/favorites/abc", token, nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}
