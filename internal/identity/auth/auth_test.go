package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cinesync/cinesync/pkg/config"
	"github.com/golang-jwt/jwt/v5"
)

func testTokenManager(t *testing.T) *TokenManager {
	t.Helper()
	tm, err := NewTokenManager(config.AuthConfig{
		Secret:        "test-secret",
		ExpiryMinutes: 30,
	})
	if err != nil {
		t.Fatalf("creating token manager: %v", err)
	}
	return tm
}

// TestHashAndVerifyPassword verifies the bcrypt round trip and that a wrong
// password is rejected.
func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hashing: %v", err)
	}
	if hash == "s3cret" {
		t.Fatal("hash must not equal the plaintext")
	}
	if !VerifyPassword("s3cret", hash) {
		t.Error("correct password rejected")
	}
	if VerifyPassword("wrong", hash) {
		t.Error("wrong password accepted")
	}
}

// TestHashIsSalted verifies two hashes of the same password differ.
func TestHashIsSalted(t *testing.T) {
	h1, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hashing: %v", err)
	}
	h2, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hashing: %v", err)
	}
	if h1 == h2 {
		t.Error("expected salted hashes to differ")
	}
}

// TestTokenRoundTrip verifies a generated token validates back to the same
// claims.
func TestTokenRoundTrip(t *testing.T) {
	tm := testTokenManager(t)

	token, err := tm.Generate(42, "ripley@example.com")
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}

	claims, err := tm.Validate(token)
	if err != nil {
		t.Fatalf("validating token: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("expected user id 42, got %d", claims.UserID)
	}
	if claims.Subject != "ripley@example.com" {
		t.Errorf("expected subject to carry the email, got %q", claims.Subject)
	}
}

// TestEmptySecretRefused verifies the manager cannot be built without a
// signing secret.
func TestEmptySecretRefused(t *testing.T) {
	if _, err := NewTokenManager(config.AuthConfig{}); err == nil {
		t.Error("expected an error for an empty secret")
	}
}

// TestConfiguredAlgorithm verifies the signing method follows the config:
// the HMAC family round-trips, anything else is refused at construction.
func TestConfiguredAlgorithm(t *testing.T) {
	for _, alg := range []string{"", "HS256", "HS384", "HS512"} {
		tm, err := NewTokenManager(config.AuthConfig{Secret: "test-secret", Algorithm: alg})
		if err != nil {
			t.Fatalf("algorithm %q: %v", alg, err)
		}
		token, err := tm.Generate(42, "ripley@example.com")
		if err != nil {
			t.Fatalf("algorithm %q: generating token: %v", alg, err)
		}
		if _, err := tm.Validate(token); err != nil {
			t.Errorf("algorithm %q: token does not validate: %v", alg, err)
		}
	}

	for _, alg := range []string{"RS256", "ES256", "none"} {
		if _, err := NewTokenManager(config.AuthConfig{Secret: "test-secret", Algorithm: alg}); err == nil {
			t.Errorf("expected algorithm %q to be refused", alg)
		}
	}
}

// TestTokenWrongSecretRejected verifies tokens signed with a different key
// fail validation.
func TestTokenWrongSecretRejected(t *testing.T) {
	tm := testTokenManager(t)
	other, err := NewTokenManager(config.AuthConfig{Secret: "other-secret"})
	if err != nil {
		t.Fatalf("creating second manager: %v", err)
	}

	token, err := other.Generate(42, "ripley@example.com")
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}
	if _, err := tm.Validate(token); err == nil {
		t.Error("expected validation to fail for a foreign signature")
	}
}

// TestExpiredTokenRejected verifies expiry is enforced.
func TestExpiredTokenRejected(t *testing.T) {
	tm := &TokenManager{
		secret: []byte("test-secret"),
		expiry: -time.Minute,
		method: jwt.SigningMethodHS256,
	}

	token, err := tm.Generate(42, "ripley@example.com")
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}
	if _, err := tm.Validate(token); err == nil {
		t.Error("expected validation to fail for an expired token")
	}
}

// TestGarbageTokenRejected verifies non-JWT input fails validation.
func TestGarbageTokenRejected(t *testing.T) {
	tm := testTokenManager(t)
	if _, err := tm.Validate("not-a-token"); err == nil {
		t.Error("expected validation to fail for garbage input")
	}
}

// TestMiddleware verifies the bearer extraction, context propagation, and
// the 401 path.
func TestMiddleware(t *testing.T) {
	tm := testTokenManager(t)

	var gotClaims *Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := CurrentUser(r.Context())
		if !ok {
			t.Error("expected claims in context")
		}
		gotClaims = claims
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(Middleware(tm)(next))
	defer srv.Close()

	token, err := tm.Generate(7, "deckard@example.com")
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}

	cases := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"valid bearer", "Bearer " + token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"invalid token", "Bearer garbage", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
		if tc.authHeader != "" {
			req.Header.Set("Authorization", tc.authHeader)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s: request failed: %v", tc.name, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tc.wantStatus {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.wantStatus, resp.StatusCode)
		}
		if tc.wantStatus == http.StatusUnauthorized && resp.Header.Get("WWW-Authenticate") != "Bearer" {
			t.Errorf("%s: expected WWW-Authenticate header", tc.name)
		}
	}

	if gotClaims == nil || gotClaims.UserID != 7 {
		t.Errorf("expected claims for user 7, got %+v", gotClaims)
	}
}
