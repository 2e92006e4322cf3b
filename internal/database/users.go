package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/agrorecords/internal/core"
)

// User is an account that can own records.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Role      core.Role `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateUser inserts an account.
func (s *Store) CreateUser(ctx context.Context, username string, role core.Role) (User, error) {
	if !role.Valid() {
		return User{}, fmt.Errorf("create user: invalid role %q", role)
	}
	var u User
	var r string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, role) VALUES ($1, $2) RETURNING id, username, role, created_at`,
		username, string(role),
	).Scan(&u.ID, &u.Username, &r, &u.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	u.Role = core.Role(r)
	return u, nil
}

// GetUser returns the account with id.
func (s *Store) GetUser(ctx context.Context, id int64) (User, error) {
	var u User
	var r string
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, role, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &r, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, fmt.Errorf("user %d not found", id)
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	u.Role = core.Role(r)
	return u, nil
}
