package users

import (
	"context"
	"time"
)

const (
	CodeDuplicateEmail     = "DUPLICATE_EMAIL"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInvalidSession     = "INVALID_SESSION"
	CodeInactiveUser       = "INACTIVE_USER"
)

type User struct {
	ID           string    `json:"user_id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID string
	Email  string
}

type Repository interface {
	// Create fails with a DUPLICATE_EMAIL business-rule error when the email is taken.
	Create(ctx context.Context, u User) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
}

type SessionStore interface {
	Put(ctx context.Context, token, userID string, ttl time.Duration) error
	// Lookup returns the user id bound to token, or a NotFound error.
	Lookup(ctx context.Context, token string) (string, error)
	Delete(ctx context.Context, token string) error
}
