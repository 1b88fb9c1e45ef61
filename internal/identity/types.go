// Package identity defines the user and favorite types owned by the
// identity service.
package identity

import "time"

// User is a registered account.
type User struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// Favorite is a denormalised favorite record. Title and poster path are
// snapshotted from the catalog at insert time and not kept in sync with the
// upstream afterwards. Identity is the (UserID, MovieID) pair, enforced by a
// uniqueness constraint at the storage layer.
type Favorite struct {
	UserID     int64     `json:"-"`
	MovieID    int64     `json:"movie_id"`
	Title      string    `json:"title"`
	PosterPath string    `json:"poster_path,omitempty"`
	AddedAt    time.Time `json:"added_at"`
}

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is the body returned by POST /token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// FavoriteRequest is the body of POST /users/me/favorites.
type FavoriteRequest struct {
	MovieID int64 `json:"movie_id"`
}
