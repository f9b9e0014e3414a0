package redisx

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-modular-shop/internal/apperr"
	"github.com/ariefcatur/go-modular-shop/internal/users"
	"github.com/redis/go-redis/v9"
)

type SessionStore struct {
	rdb *redis.Client
}

var _ users.SessionStore = (*SessionStore)(nil)

func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb}
}

func (s *SessionStore) Put(ctx context.Context, token, userID string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, sessionKey(token), userID, ttl).Err(); err != nil {
		return apperr.Infrastructure("", "store session", err)
	}
	return nil
}

func (s *SessionStore) Lookup(ctx context.Context, token string) (string, error) {
	id, err := s.rdb.Get(ctx, sessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", apperr.NotFound("Session", "")
	}
	if err != nil {
		return "", apperr.Infrastructure("", "lookup session", err)
	}
	return id, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if err := s.rdb.Del(ctx, sessionKey(token)).Err(); err != nil {
		return apperr.Infrastructure("", "delete session", err)
	}
	return nil
}
