package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/panaderia/internal/shared"
	"github.com/odyssey-erp/panaderia/internal/users"
)

// UserStore looks up accounts for login.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (users.User, error)
	TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// TokenIssuer issues and revokes bearer tokens.
type TokenIssuer interface {
	Issue(actor shared.Actor) (string, time.Time, error)
	Revoke(ctx context.Context, claims *shared.Claims) error
}

// Session is the result of a successful login.
type Session struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      users.User `json:"user"`
}

// Service wraps authentication business rules.
type Service struct {
	users  UserStore
	tokens TokenIssuer
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a new Service.
func NewService(store UserStore, tokens TokenIssuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: store, tokens: tokens, logger: logger, now: time.Now}
}

// Login validates username/password credentials and issues a token.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	user, err := s.users.GetByUsername(ctx, strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		return Session{}, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return Session{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Session{}, shared.ErrInvalidCredentials
	}
	token, expiresAt, err := s.tokens.Issue(user.Actor())
	if err != nil {
		return Session{}, err
	}
	if err := s.users.TouchLogin(ctx, user.ID, s.now().UTC()); err != nil {
		s.logger.Warn("record login", slog.String("user_id", user.ID.String()), slog.Any("error", err))
	}
	return Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Logout revokes the presented token until it would have expired.
func (s *Service) Logout(ctx context.Context, claims *shared.Claims) error {
	if claims == nil {
		return shared.ErrUnauthorized
	}
	return s.tokens.Revoke(ctx, claims)
}
