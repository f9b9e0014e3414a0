package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ariefcatur/go-modular-shop/internal/apperr"
	"github.com/ariefcatur/go-modular-shop/internal/users"
)

type UserStore struct {
	mu      sync.RWMutex
	byID    map[string]users.User
	byEmail map[string]string
}

var _ users.Repository = (*UserStore)(nil)

func NewUserStore() *UserStore {
	return &UserStore{byID: map[string]users.User{}, byEmail: map[string]string{}}
}

func (s *UserStore) Create(_ context.Context, u users.User) (users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[u.Email]; taken {
		return users.User{}, apperr.BusinessRule(users.CodeDuplicateEmail, "email is already registered")
	}
	s.byID[u.ID] = u
	s.byEmail[u.Email] = u.ID
	return u, nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (users.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return users.User{}, apperr.NotFound("User", email)
	}
	return s.byID[id], nil
}

func (s *UserStore) GetByID(_ context.Context, id string) (users.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return users.User{}, apperr.NotFound("User", id)
	}
	return u, nil
}

type session struct {
	userID  string
	expires time.Time
}

// SessionStore is an in-process users.SessionStore with lazy expiry.
type SessionStore struct {
	mu       sync.Mutex
	now      func() time.Time
	sessions map[string]session
}

var _ users.SessionStore = (*SessionStore)(nil)

func NewSessionStore() *SessionStore {
	return &SessionStore{now: time.Now, sessions: map[string]session{}}
}

func (s *SessionStore) Put(_ context.Context, token, userID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = session{userID: userID, expires: s.now().Add(ttl)}
	return nil
}

func (s *SessionStore) Lookup(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ss, ok := s.sessions[token]
	if !ok {
		return "", apperr.NotFound("Session", "")
	}
	if s.now().After(ss.expires) {
		delete(s.sessions, token)
		return "", apperr.NotFound("Session", "")
	}
	return ss.userID, nil
}

func (s *SessionStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}
