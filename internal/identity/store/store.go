// Package store persists users and favorites in PostgreSQL. Storage errors
// are translated into the service error vocabulary here: unique-constraint
// violations become ErrAlreadyExists, missing rows become ErrNotFound. The
// (user_id, movie_id) uniqueness constraint is the sole concurrency guard
// against duplicate favorites; there is deliberately no pre-check, which
// would race under concurrent requests.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/cinesync/cinesync/internal/identity"
	apperrors "github.com/cinesync/cinesync/pkg/errors"
	"github.com/cinesync/cinesync/pkg/logger"
	"github.com/cinesync/cinesync/pkg/postgres"
)

// Store provides user and favorite persistence.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

// New creates a Store backed by the given PostgreSQL client.
func New(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: logger.WithComponent("identity-store"),
	}
}

// EnsureSchema creates the tables if they do not exist, atomically so a
// half-created schema never survives a failed bootstrap. Kept idempotent so
// startup and integration tests can call it unconditionally.
func (s *Store) EnsureSchema(ctx context.Context) error {
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS users (
				id              BIGSERIAL PRIMARY KEY,
				email           VARCHAR(255) NOT NULL UNIQUE,
				hashed_password TEXT NOT NULL,
				is_active       BOOLEAN NOT NULL DEFAULT TRUE,
				created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS favorites (
				user_id     BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				movie_id    BIGINT NOT NULL,
				title       TEXT NOT NULL,
				poster_path TEXT NOT NULL DEFAULT '',
				added_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (user_id, movie_id)
			)`)
		return err
	})
	if err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}

// CreateUser inserts a new user. A duplicate email fails with
// ErrAlreadyExists.
func (s *Store) CreateUser(ctx context.Context, email, hashedPassword string) (*identity.User, error) {
	user := &identity.User{
		Email:          email,
		HashedPassword: hashedPassword,
		IsActive:       true,
	}
	err := s.db.DB.QueryRowContext(ctx,
		`INSERT INTO users (email, hashed_password) VALUES ($1, $2)
		 RETURNING id, created_at`,
		email, hashedPassword,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, apperrors.New(apperrors.ErrAlreadyExists, 400, "email already registered")
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}
	s.logger.Info("user created", "user_id", user.ID)
	return user, nil
}

// GetUserByEmail returns the user with the given email, or ErrNotFound.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*identity.User, error) {
	var user identity.User
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT id, email, hashed_password, is_active, created_at
		 FROM users WHERE email = $1`,
		email,
	).Scan(&user.ID, &user.Email, &user.HashedPassword, &user.IsActive, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.New(apperrors.ErrNotFound, 404, "user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by email: %w", err)
	}
	return &user, nil
}

// InsertFavorite stores a favorite. A duplicate (user, movie) pair fails
// with ErrAlreadyExists; the constraint violation is the expected path for
// duplicate requests, not a bug.
func (s *Store) InsertFavorite(ctx context.Context, fav *identity.Favorite) error {
	err := s.db.DB.QueryRowContext(ctx,
		`INSERT INTO favorites (user_id, movie_id, title, poster_path)
		 VALUES ($1, $2, $3, $4)
		 RETURNING added_at`,
		fav.UserID, fav.MovieID, fav.Title, fav.PosterPath,
	).Scan(&fav.AddedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperrors.New(apperrors.ErrAlreadyExists, 400, "movie already in favorites")
		}
		return fmt.Errorf("inserting favorite: %w", err)
	}
	return nil
}

// ListFavorites returns the user's favorites, most recently added first.
func (s *Store) ListFavorites(ctx context.Context, userID int64) ([]identity.Favorite, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT user_id, movie_id, title, poster_path, added_at
		 FROM favorites WHERE user_id = $1 ORDER BY added_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing favorites: %w", err)
	}
	defer rows.Close()

	favorites := make([]identity.Favorite, 0)
	for rows.Next() {
		var fav identity.Favorite
		if err := rows.Scan(&fav.UserID, &fav.MovieID, &fav.Title, &fav.PosterPath, &fav.AddedAt); err != nil {
			return nil, fmt.Errorf("scanning favorite row: %w", err)
		}
		favorites = append(favorites, fav)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating favorites: %w", err)
	}
	return favorites, nil
}

// DeleteFavorite removes a favorite and reports whether a row existed.
// Absence is not an error at this layer.
func (s *Store) DeleteFavorite(ctx context.Context, userID, movieID int64) (bool, error) {
	result, err := s.db.DB.ExecContext(ctx,
		`DELETE FROM favorites WHERE user_id = $1 AND movie_id = $2`,
		userID, movieID,
	)
	if err != nil {
		return false, fmt.Errorf("deleting favorite: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading delete result: %w", err)
	}
	return affected > 0, nil
}

// touchTimeout bounds schema setup at startup.
const touchTimeout = 10 * time.Second

// Setup ensures the schema with a bounded timeout, for use from main.
func (s *Store) Setup() error {
	ctx, cancel := context.WithTimeout(context.Background(), touchTimeout)
	defer cancel()
	return s.EnsureSchema(ctx)
}
