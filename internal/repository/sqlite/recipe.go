package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/xid"

	"github.com/sakif/recipebook/internal/apperror"
	"github.com/sakif/recipebook/internal/model"
	"github.com/sakif/recipebook/internal/repository"
)

const recipeColumns = `r.id, r.title, r.description, r.steps, r.ingredients,
	r.author_id, COALESCE(u.name, ''), r.image, r.category, r.created_at, r.updated_at`

const recipeFrom = ` FROM recipes r LEFT JOIN users u ON u.id = r.author_id `

// ListRecipes returns recipes in insertion order. The title predicate uses
// substr rather than LIKE because LIKE ignores ASCII case.
func (s *queries) ListRecipes(ctx context.Context, filter repository.RecipeFilter) ([]model.Recipe, error) {
	query := `SELECT ` + recipeColumns + recipeFrom
	var args []any
	if !filter.IsEmpty() {
		query += `WHERE (? = '' OR substr(r.title, 1, length(?)) = ?)
		            AND (? = '' OR r.category = ?) `
		args = append(args,
			filter.TitlePrefix, filter.TitlePrefix, filter.TitlePrefix,
			filter.Category, filter.Category,
		)
	}
	query += `ORDER BY r.rowid`

	recipes, err := s.queryRecipes(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing recipes: %w", err)
	}
	return recipes, nil
}

// GetRecipeByID returns the recipe with its author's name and all
// sub-collections loaded.
func (s *queries) GetRecipeByID(ctx context.Context, id string) (*model.Recipe, error) {
	recipes, err := s.queryRecipes(ctx,
		`SELECT `+recipeColumns+recipeFrom+`WHERE r.id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting recipe %s: %w", id, err)
	}
	if len(recipes) == 0 {
		return nil, apperror.NotFound("recipe", id)
	}
	return &recipes[0], nil
}

// ListRecipesByAuthor returns the recipes whose author is userID. An empty
// result is not an error at this layer.
func (s *queries) ListRecipesByAuthor(ctx context.Context, userID string) ([]model.Recipe, error) {
	recipes, err := s.queryRecipes(ctx,
		`SELECT `+recipeColumns+recipeFrom+`WHERE r.author_id = ? ORDER BY r.rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing recipes of user %s: %w", userID, err)
	}
	return recipes, nil
}

// ListFavouriteRecipes resolves the user's favourites in list order.
// References to recipes that no longer exist are skipped.
func (s *queries) ListFavouriteRecipes(ctx context.Context, userID string) ([]model.Recipe, error) {
	recipes, err := s.queryRecipes(ctx,
		`SELECT `+recipeColumns+recipeFrom+`
		 JOIN user_favourites f ON f.recipe_id = r.id
		 WHERE f.user_id = ?
		 ORDER BY f.rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing favourites of user %s: %w", userID, err)
	}
	return recipes, nil
}

// InsertRecipe stores a new recipe document, filling in ID and timestamps.
// It does not touch the author's recipe list; see AppendUserRecipe.
func (s *queries) InsertRecipe(ctx context.Context, recipe *model.Recipe) error {
	recipe.ID = xid.New().String()
	now := time.Now().UTC()
	recipe.CreatedAt = now
	recipe.UpdatedAt = now
	normaliseLists(recipe)

	steps, ingredients, err := encodeLists(recipe)
	if err != nil {
		return err
	}

	_, err = s.q.ExecContext(ctx,
		`INSERT INTO recipes (id, title, description, steps, ingredients, author_id, image, category, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		recipe.ID,
		recipe.Title,
		recipe.Description,
		steps,
		ingredients,
		recipe.Author,
		recipe.Image,
		recipe.Category,
		recipe.CreatedAt,
		recipe.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting recipe: %w", err)
	}
	return nil
}

// UpdateRecipe replaces the editable text fields. Author, image, fans,
// comments and ratings are left alone.
func (s *queries) UpdateRecipe(ctx context.Context, recipe *model.Recipe) error {
	recipe.UpdatedAt = time.Now().UTC()
	normaliseLists(recipe)

	steps, ingredients, err := encodeLists(recipe)
	if err != nil {
		return err
	}

	result, err := s.q.ExecContext(ctx,
		`UPDATE recipes
		 SET title = ?, description = ?, steps = ?, ingredients = ?, updated_at = ?
		 WHERE id = ?`,
		recipe.Title,
		recipe.Description,
		steps,
		ingredients,
		recipe.UpdatedAt,
		recipe.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating recipe %s: %w", recipe.ID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("recipe", recipe.ID)
	}
	return nil
}

// DeleteRecipe removes the recipe document. Fans, comments and ratings
// cascade; user-side references must be removed by the caller in the same
// transaction.
func (s *queries) DeleteRecipe(ctx context.Context, id string) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM recipes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting recipe %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("recipe", id)
	}
	return nil
}

// AppendComment adds a comment to the end of the recipe's comment list.
func (s *queries) AppendComment(ctx context.Context, recipeID string, comment model.Comment) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO recipe_comments (recipe_id, author_name, text, created_at)
		 VALUES (?, ?, ?, ?)`,
		recipeID,
		comment.Author,
		comment.Text,
		comment.Date,
	)
	if err != nil {
		return fmt.Errorf("sqlite: appending comment to recipe %s: %w", recipeID, err)
	}
	return nil
}

// AppendRating adds a rating. The primary key on (recipe_id, author_id)
// turns a second rating by the same user into a no-op, reported as Conflict.
func (s *queries) AppendRating(ctx context.Context, recipeID string, rating model.Rating) error {
	result, err := s.q.ExecContext(ctx,
		`INSERT INTO recipe_ratings (recipe_id, author_id, rate)
		 VALUES (?, ?, ?)
		 ON CONFLICT(recipe_id, author_id) DO NOTHING`,
		recipeID,
		rating.Author,
		rating.Rate,
	)
	if err != nil {
		return fmt.Errorf("sqlite: appending rating to recipe %s: %w", recipeID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.Conflict("you have already rated this recipe")
	}
	return nil
}

// queryRecipes scans every row first and only then loads sub-collections:
// the pool has one connection, so a nested query while rows are open
// would wait on itself.
func (s *queries) queryRecipes(ctx context.Context, query string, args ...any) ([]model.Recipe, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	recipes := []model.Recipe{}
	for rows.Next() {
		var (
			r                  model.Recipe
			steps, ingredients string
		)
		if err := rows.Scan(
			&r.ID, &r.Title, &r.Description, &steps, &ingredients,
			&r.Author, &r.AuthorName, &r.Image, &r.Category,
			&r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning recipe row: %w", err)
		}
		if err := json.Unmarshal([]byte(steps), &r.Steps); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decoding steps of recipe %s: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(ingredients), &r.Ingredients); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decoding ingredients of recipe %s: %w", r.ID, err)
		}
		recipes = append(recipes, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating recipes: %w", err)
	}
	rows.Close()

	for i := range recipes {
		if err := s.loadRecipeRelations(ctx, &recipes[i]); err != nil {
			return nil, err
		}
	}
	return recipes, nil
}

func (s *queries) loadRecipeRelations(ctx context.Context, r *model.Recipe) error {
	var err error
	if r.Fans, err = s.idList(ctx,
		`SELECT user_id FROM recipe_fans WHERE recipe_id = ? ORDER BY rowid`, r.ID); err != nil {
		return fmt.Errorf("loading fans of recipe %s: %w", r.ID, err)
	}

	r.Comments, err = s.comments(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("loading comments of recipe %s: %w", r.ID, err)
	}

	r.Ratings, err = s.ratings(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("loading ratings of recipe %s: %w", r.ID, err)
	}
	return nil
}

func (s *queries) comments(ctx context.Context, recipeID string) ([]model.Comment, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT author_name, text, created_at FROM recipe_comments
		 WHERE recipe_id = ? ORDER BY id`, recipeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := []model.Comment{}
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.Author, &c.Text, &c.Date); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (s *queries) ratings(ctx context.Context, recipeID string) ([]model.Rating, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT author_id, rate FROM recipe_ratings
		 WHERE recipe_id = ? ORDER BY rowid`, recipeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ratings := []model.Rating{}
	for rows.Next() {
		var rt model.Rating
		if err := rows.Scan(&rt.Author, &rt.Rate); err != nil {
			return nil, err
		}
		ratings = append(ratings, rt)
	}
	return ratings, rows.Err()
}

func normaliseLists(r *model.Recipe) {
	if r.Steps == nil {
		r.Steps = []string{}
	}
	if r.Ingredients == nil {
		r.Ingredients = []string{}
	}
	if r.Fans == nil {
		r.Fans = []string{}
	}
	if r.Comments == nil {
		r.Comments = []model.Comment{}
	}
	if r.Ratings == nil {
		r.Ratings = []model.Rating{}
	}
}

func encodeLists(r *model.Recipe) (steps, ingredients string, err error) {
	b, err := json.Marshal(r.Steps)
	if err != nil {
		return "", "", fmt.Errorf("sqlite: encoding steps: %w", err)
	}
	steps = string(b)

	b, err = json.Marshal(r.Ingredients)
	if err != nil {
		return "", "", fmt.Errorf("sqlite: encoding ingredients: %w", err)
	}
	return steps, string(b), nil
}
