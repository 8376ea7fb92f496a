package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/recipebook/internal/apperror"
	"github.com/sakif/recipebook/internal/metrics"
	"github.com/sakif/recipebook/internal/model"
	"github.com/sakif/recipebook/internal/repository"
	"github.com/sakif/recipebook/internal/storage"
)

// RecipeService manages recipe documents and their authors' recipe lists.
type RecipeService struct {
	store  repository.Store
	images storage.ImageStore
	logger *slog.Logger
}

func NewRecipeService(store repository.Store, images storage.ImageStore, logger *slog.Logger) *RecipeService {
	return &RecipeService{
		store:  store,
		images: images,
		logger: logger,
	}
}

// List returns every recipe matching filter, in insertion order.
func (s *RecipeService) List(ctx context.Context, filter repository.RecipeFilter) ([]model.Recipe, error) {
	recipes, err := s.store.ListRecipes(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing recipes: %w", err)
	}
	return recipes, nil
}

func (s *RecipeService) GetByID(ctx context.Context, id string) (*model.Recipe, error) {
	return s.store.GetRecipeByID(ctx, id)
}

// ListByAuthor returns the user's recipes. A user without recipes (or an
// unknown user) is reported as NotFound, which existing clients rely on.
func (s *RecipeService) ListByAuthor(ctx context.Context, userID string) ([]model.Recipe, error) {
	recipes, err := s.store.ListRecipesByAuthor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing recipes of user %s: %w", userID, err)
	}
	if len(recipes) == 0 {
		return nil, apperror.NotFound("recipes for user", userID)
	}
	return recipes, nil
}

// Create stores a new recipe by authorID and appends it to the author's
// recipe list in the same transaction. imagePath is the value returned by
// the image store, or "" for a recipe without an image. If Create fails,
// that image is removed again.
func (s *RecipeService) Create(ctx context.Context, authorID string, fields model.RecipeFields, imagePath string) (*model.Recipe, error) {
	recipe := &model.Recipe{
		Title:       fields.Title,
		Description: fields.Description,
		Steps:       fields.Steps,
		Ingredients: fields.Ingredients,
		Category:    fields.Category,
		Author:      authorID,
		Image:       imagePath,
	}

	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		author, err := tx.GetUserByID(ctx, authorID)
		if err != nil {
			return err
		}
		if err := tx.InsertRecipe(ctx, recipe); err != nil {
			return err
		}
		recipe.AuthorName = author.Name
		return tx.AppendUserRecipe(ctx, author.ID, recipe.ID)
	})
	if err != nil {
		s.removeImage(ctx, imagePath)
		return nil, fmt.Errorf("creating recipe: %w", err)
	}

	metrics.RecipesCreatedTotal.Inc()
	s.logger.Info("recipe created",
		slog.String("id", recipe.ID),
		slog.String("author", authorID),
		slog.String("title", recipe.Title),
	)
	return recipe, nil
}

// Update replaces the title, description, steps and ingredients of a recipe
// owned by actorID. Author, image, category, fans, comments and ratings are
// left as they are.
func (s *RecipeService) Update(ctx context.Context, id, actorID string, fields model.RecipeFields) (*model.Recipe, error) {
	recipe, err := s.store.GetRecipeByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if recipe.Author != actorID {
		return nil, apperror.Forbidden("you are not allowed to edit this recipe")
	}

	recipe.Title = fields.Title
	recipe.Description = fields.Description
	recipe.Steps = fields.Steps
	recipe.Ingredients = fields.Ingredients

	if err := s.store.UpdateRecipe(ctx, recipe); err != nil {
		return nil, fmt.Errorf("updating recipe %s: %w", id, err)
	}

	s.logger.Info("recipe updated", slog.String("id", id))
	return recipe, nil
}

// Delete removes a recipe owned by actorID. The recipe document, its entry
// in the author's list and its entries in every user's favourites go in one
// transaction. The stored image is removed after the commit; a failure
// there is logged and otherwise ignored.
func (s *RecipeService) Delete(ctx context.Context, id, actorID string) error {
	var image string

	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		recipe, err := tx.GetRecipeByID(ctx, id)
		if err != nil {
			return err
		}
		if recipe.Author != actorID {
			return apperror.Forbidden("you are not allowed to delete this recipe")
		}
		image = recipe.Image

		if err := tx.DeleteRecipe(ctx, id); err != nil {
			return err
		}
		if err := tx.RemoveUserRecipe(ctx, recipe.Author, id); err != nil {
			return err
		}
		return tx.RemoveFavouriteEverywhere(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("deleting recipe %s: %w", id, err)
	}

	metrics.RecipesDeletedTotal.Inc()
	s.logger.Info("recipe deleted", slog.String("id", id))

	s.removeImage(ctx, image)
	return nil
}

func (s *RecipeService) removeImage(ctx context.Context, path string) {
	if path == "" || s.images == nil {
		return
	}
	if err := s.images.Delete(context.WithoutCancel(ctx), path); err != nil {
		metrics.ImageDeleteFailuresTotal.Inc()
		s.logger.Warn("failed to delete recipe image",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}
