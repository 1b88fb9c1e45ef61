package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/cinesync/cinesync/pkg/config"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the JWT claims carried by an access token. Subject holds the
// user's email.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates HMAC-signed access tokens.
type TokenManager struct {
	secret []byte
	expiry time.Duration
	method jwt.SigningMethod
}

// NewTokenManager creates a TokenManager from configuration. An empty
// secret or a non-HMAC algorithm is refused.
func NewTokenManager(cfg config.AuthConfig) (*TokenManager, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth secret is required but was empty")
	}
	var method jwt.SigningMethod
	switch cfg.Algorithm {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}
	expiry := time.Duration(cfg.ExpiryMinutes) * time.Minute
	if expiry <= 0 {
		expiry = 30 * time.Minute
	}
	return &TokenManager{
		secret: []byte(cfg.Secret),
		expiry: expiry,
		method: method,
	}, nil
}

// Generate signs a token for the given user.
func (m *TokenManager) Generate(userID int64, email string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(m.method, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a token, enforcing an HMAC signing method,
// and returns its claims.
func (m *TokenManager) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	if !token.Valid || claims.UserID == 0 || claims.Subject == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
