package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/recipebook/internal/apperror"
	"github.com/sakif/recipebook/internal/model"
)

// CreateUser inserts a new user, filling in ID and CreatedAt.
// A taken name is reported as a validation failure.
func (s *queries) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.CreatedAt = time.Now().UTC()
	user.Recipes = []string{}
	user.FavouriteRecipes = []string{}

	result, err := s.q.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO NOTHING`,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating user %q: %w", user.Name, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.ValidationFailed("name", "a user with this name already exists")
	}

	return nil
}

// GetUserByID returns the user with both reference lists loaded.
func (s *queries) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.getUser(ctx, `WHERE id = ?`, id, id)
}

// GetUserByName looks a user up by their unique name.
func (s *queries) GetUserByName(ctx context.Context, name string) (*model.User, error) {
	return s.getUser(ctx, `WHERE name = ?`, name, name)
}

func (s *queries) getUser(ctx context.Context, where string, arg any, label string) (*model.User, error) {
	var u model.User

	err := s.q.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, created_at FROM users `+where,
		arg,
	).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", label)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", label, err)
	}

	if u.Recipes, err = s.idList(ctx,
		`SELECT recipe_id FROM user_recipes WHERE user_id = ? ORDER BY rowid`, u.ID); err != nil {
		return nil, fmt.Errorf("sqlite: loading recipes of user %s: %w", u.ID, err)
	}
	if u.FavouriteRecipes, err = s.idList(ctx,
		`SELECT recipe_id FROM user_favourites WHERE user_id = ? ORDER BY rowid`, u.ID); err != nil {
		return nil, fmt.Errorf("sqlite: loading favourites of user %s: %w", u.ID, err)
	}

	return &u, nil
}

// idList runs a single-column query and collects the IDs in order.
// It never returns a nil slice so lists encode as [] rather than null.
func (s *queries) idList(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
