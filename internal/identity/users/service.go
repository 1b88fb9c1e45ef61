// Package users implements registration and authentication for the
// identity service.
package users

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/cinesync/cinesync/internal/identity"
	"github.com/cinesync/cinesync/internal/identity/auth"
	apperrors "github.com/cinesync/cinesync/pkg/errors"
	"github.com/cinesync/cinesync/pkg/logger"
)

// Store persists user accounts.
type Store interface {
	CreateUser(ctx context.Context, email, hashedPassword string) (*identity.User, error)
	GetUserByEmail(ctx context.Context, email string) (*identity.User, error)
}

// EventSink receives domain events from the service. Publishing is
// fire-and-forget: the sink never fails the calling operation.
type EventSink interface {
	UserRegistered(ctx context.Context, userID int64, email string)
}

// Service implements user registration and token issuance.
type Service struct {
	store  Store
	tokens *auth.TokenManager
	events EventSink
	logger *slog.Logger
}

// New creates a Service. events may be nil when no publisher is wired
// (tests, offline tooling).
func New(store Store, tokens *auth.TokenManager, events EventSink) *Service {
	return &Service{
		store:  store,
		tokens: tokens,
		events: events,
		logger: logger.WithComponent("users"),
	}
}

// Register creates an account and emits a UserRegistered event. The event
// is best-effort: registration succeeds even if it is lost.
func (s *Service) Register(ctx context.Context, email, password string) (*identity.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperrors.New(apperrors.ErrInvalidInput, 400, "a valid email is required")
	}
	if password == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, 400, "a password is required")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user, err := s.store.CreateUser(ctx, email, hash)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "user_id", user.ID)

	if s.events != nil {
		s.events.UserRegistered(ctx, user.ID, user.Email)
	}
	return user, nil
}

// Authenticate verifies credentials and issues an access token. Invalid
// email and wrong password are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (string, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", apperrors.New(apperrors.ErrUnauthorized, 401, "incorrect email or password")
		}
		return "", err
	}
	if !user.IsActive || !auth.VerifyPassword(password, user.HashedPassword) {
		return "", apperrors.New(apperrors.ErrUnauthorized, 401, "incorrect email or password")
	}
	return s.tokens.Generate(user.ID, user.Email)
}
