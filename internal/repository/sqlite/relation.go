package sqlite

import (
	"context"
	"fmt"
)

// Writers for the ordered reference lists. Appends are idempotent: adding
// an ID that is already in a list leaves the list unchanged.

func (s *queries) AppendUserRecipe(ctx context.Context, userID, recipeID string) error {
	return s.appendRef(ctx, "user_recipes", "user_id", "recipe_id", userID, recipeID)
}

func (s *queries) RemoveUserRecipe(ctx context.Context, userID, recipeID string) error {
	return s.removeRef(ctx, "user_recipes", "user_id", "recipe_id", userID, recipeID)
}

func (s *queries) AppendFavourite(ctx context.Context, userID, recipeID string) error {
	return s.appendRef(ctx, "user_favourites", "user_id", "recipe_id", userID, recipeID)
}

func (s *queries) RemoveFavourite(ctx context.Context, userID, recipeID string) error {
	return s.removeRef(ctx, "user_favourites", "user_id", "recipe_id", userID, recipeID)
}

func (s *queries) RemoveFavouriteEverywhere(ctx context.Context, recipeID string) error {
	if _, err := s.q.ExecContext(ctx,
		`DELETE FROM user_favourites WHERE recipe_id = ?`, recipeID); err != nil {
		return fmt.Errorf("sqlite: removing recipe %s from favourites: %w", recipeID, err)
	}
	return nil
}

func (s *queries) AppendFan(ctx context.Context, recipeID, userID string) error {
	return s.appendRef(ctx, "recipe_fans", "recipe_id", "user_id", recipeID, userID)
}

func (s *queries) RemoveFan(ctx context.Context, recipeID, userID string) error {
	return s.removeRef(ctx, "recipe_fans", "recipe_id", "user_id", recipeID, userID)
}

// appendRef and removeRef only ever receive the table and column names
// above, never request input.
func (s *queries) appendRef(ctx context.Context, table, ownerCol, refCol, owner, ref string) error {
	_, err := s.q.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (%s, %s) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		table, ownerCol, refCol,
	), owner, ref)
	if err != nil {
		return fmt.Errorf("sqlite: appending %s to %s of %s: %w", ref, table, owner, err)
	}
	return nil
}

func (s *queries) removeRef(ctx context.Context, table, ownerCol, refCol, owner, ref string) error {
	_, err := s.q.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE %s = ? AND %s = ?`,
		table, ownerCol, refCol,
	), owner, ref)
	if err != nil {
		return fmt.Errorf("sqlite: removing %s from %s of %s: %w", ref, table, owner, err)
	}
	return nil
}
