package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ariefcatur/go-modular-shop/internal/apperr"
	"github.com/ariefcatur/go-modular-shop/internal/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 8

type Service struct {
	repo     Repository
	sessions SessionStore
	clock    clock.Clock
	log      *zap.Logger
	ttl      time.Duration
	cost     int
}

type Option func(*Service)

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

func NewService(repo Repository, sessions SessionStore, clk clock.Clock, log *zap.Logger, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		sessions: sessions,
		clock:    clk,
		log:      log,
		ttl:      ttl,
		cost:     bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type RegisterInput struct {
	Email    string
	FullName string
	Password string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	email := normalizeEmail(in.Email)
	if !strings.Contains(email, "@") {
		return User{}, apperr.Validation("email", "email is invalid")
	}
	name := strings.TrimSpace(in.FullName)
	if name == "" {
		return User{}, apperr.Validation("full_name", "full_name is required")
	}
	if len(in.Password) < minPasswordLen {
		return User{}, apperr.Validation("password", "password must have at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return User{}, apperr.Infrastructure("", "hash password", err)
	}
	u, err := s.repo.Create(ctx, User{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     name,
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedAt:    s.clock.Now(),
	})
	if err != nil {
		return User{}, err
	}
	s.log.Info("user registered", zap.String("user_id", u.ID))
	return u, nil
}

// Login checks the credentials and opens a session, returning its token.
func (s *Service) Login(ctx context.Context, email, password string) (string, User, error) {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if apperr.IsNotFound(err) {
			return "", User{}, invalidCredentials()
		}
		return "", User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return "", User{}, invalidCredentials()
		}
		return "", User{}, apperr.Infrastructure("", "verify password", err)
	}
	if !u.IsActive {
		return "", User{}, apperr.Unauthorized(CodeInactiveUser, "user is inactive")
	}

	token := uuid.NewString()
	if err := s.sessions.Put(ctx, token, u.ID, s.ttl); err != nil {
		return "", User{}, err
	}
	return token, u, nil
}

func (s *Service) Authenticate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, apperr.Unauthorized(CodeInvalidSession, "missing session token")
	}
	userID, err := s.sessions.Lookup(ctx, token)
	if err != nil {
		if apperr.IsNotFound(err) {
			return Identity{}, apperr.Unauthorized(CodeInvalidSession, "session expired or unknown")
		}
		return Identity{}, err
	}
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return Identity{}, apperr.Unauthorized(CodeInvalidSession, "session user no longer exists")
		}
		return Identity{}, err
	}
	if !u.IsActive {
		return Identity{}, apperr.Unauthorized(CodeInactiveUser, "user is inactive")
	}
	return Identity{UserID: u.ID, Email: u.Email}, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	return s.repo.GetByID(ctx, id)
}

func invalidCredentials() error {
	return apperr.Unauthorized(CodeInvalidCredentials, "email or password is incorrect")
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
