package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lu-zhengda/mailsession/internal/domain"
	"github.com/lu-zhengda/mailsession/internal/store"
)

// CreateUser registers a new user. It fails if the id is already taken.
func (s *DB) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, avatar_url, provider) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.AvatarURL, providerOrDefault(u.Provider),
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// UpsertUser inserts a user or refreshes its profile fields.
func (s *DB) UpsertUser(ctx context.Context, u *domain.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, avatar_url, provider)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email      = excluded.email,
			name       = excluded.name,
			avatar_url = excluded.avatar_url`,
		u.ID, u.Email, u.Name, u.AvatarURL, providerOrDefault(u.Provider),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", u.ID, err)
	}
	return nil
}

func (s *DB) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	var name, avatar sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, avatar_url, provider, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Email, &name, &avatar, &u.Provider, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	u.Name = name.String
	u.AvatarURL = avatar.String
	return &u, nil
}

func (s *DB) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, name, avatar_url, provider, created_at FROM users ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		var u domain.User
		var name, avatar sql.NullString
		if err := rows.Scan(&u.ID, &u.Email, &name, &avatar, &u.Provider, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.Name = name.String
		u.AvatarURL = avatar.String
		users = append(users, u)
	}
	return users, rows.Err()
}

// DeleteUser removes a user and everything mirrored for it.
func (s *DB) DeleteUser(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user %s: %w", id, err)
	}
	return nil
}

func providerOrDefault(p string) string {
	if p == "" {
		return "graphql"
	}
	return p
}
