package postgres

import (
	"context"

	"github.com/ariefcatur/go-modular-shop/internal/apperr"
	"github.com/ariefcatur/go-modular-shop/internal/users"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, full_name, password_hash, is_active, created_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

var _ users.Repository = (*UserRepository)(nil)

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, u users.User) (users.User, error) {
	_, err := db(ctx, r.pool).Exec(ctx, `
INSERT INTO users (id, email, full_name, password_hash, is_active, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Email, u.FullName, u.PasswordHash, u.IsActive, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return users.User{}, apperr.BusinessRule(users.CodeDuplicateEmail, "email is already registered")
		}
		return users.User{}, dbErr("create user", err)
	}
	return u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (users.User, error) {
	u, err := scanUser(db(ctx, r.pool).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return users.User{}, notFoundOr(err, "User", email, "get user by email")
	}
	return u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (users.User, error) {
	u, err := scanUser(db(ctx, r.pool).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return users.User{}, notFoundOr(err, "User", id, "get user")
	}
	return u, nil
}

func scanUser(row pgx.Row) (users.User, error) {
	var u users.User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.IsActive, &u.CreatedAt)
	return u, err
}
