package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/recipebook/internal/apperror"
	"github.com/sakif/recipebook/internal/metrics"
	"github.com/sakif/recipebook/internal/model"
	"github.com/sakif/recipebook/internal/repository"
)

// FavouriteState is the outcome of a toggle.
type FavouriteState string

const (
	FavouriteAdded   FavouriteState = "added"
	FavouriteRemoved FavouriteState = "removed"
)

// RelationshipService maintains the links between users and recipes that
// are not authorship: favourites (mirrored as recipe fans), comments and
// ratings.
//
// Invariant: u ∈ recipe.Fans exactly when recipe ∈ u.FavouriteRecipes.
// Both sides are only ever written together inside one transaction.
type RelationshipService struct {
	store  repository.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewRelationshipService(store repository.Store, logger *slog.Logger) *RelationshipService {
	return &RelationshipService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// ToggleFavourite flips whether userID has favourited recipeID and returns
// the new state. The current state is read inside the transaction that
// writes the new one, so two concurrent toggles cannot both see the same
// starting state.
func (s *RelationshipService) ToggleFavourite(ctx context.Context, userID, recipeID string) (FavouriteState, error) {
	var state FavouriteState

	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		user, err := tx.GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		if _, err := tx.GetRecipeByID(ctx, recipeID); err != nil {
			return err
		}

		if user.HasFavourite(recipeID) {
			state = FavouriteRemoved
			if err := tx.RemoveFavourite(ctx, userID, recipeID); err != nil {
				return err
			}
			return tx.RemoveFan(ctx, recipeID, userID)
		}

		state = FavouriteAdded
		if err := tx.AppendFavourite(ctx, userID, recipeID); err != nil {
			return err
		}
		return tx.AppendFan(ctx, recipeID, userID)
	})
	if err != nil {
		return "", fmt.Errorf("toggling favourite %s for user %s: %w", recipeID, userID, err)
	}

	metrics.RecordFavouriteToggle(string(state))
	s.logger.Debug("favourite toggled",
		slog.String("user", userID),
		slog.String("recipe", recipeID),
		slog.String("state", string(state)),
	)
	return state, nil
}

// ListFavourites resolves the user's favourites in list order.
func (s *RelationshipService) ListFavourites(ctx context.Context, userID string) ([]model.Recipe, error) {
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	recipes, err := s.store.ListFavouriteRecipes(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing favourites of user %s: %w", userID, err)
	}
	return recipes, nil
}

// AddComment appends a comment signed with the user's current name. Later
// renames do not change existing comments.
func (s *RelationshipService) AddComment(ctx context.Context, userID, recipeID, text string) (*model.Comment, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetRecipeByID(ctx, recipeID); err != nil {
		return nil, err
	}

	comment := model.Comment{
		Author: user.Name,
		Text:   text,
		Date:   s.now().UTC(),
	}
	if err := s.store.AppendComment(ctx, recipeID, comment); err != nil {
		return nil, fmt.Errorf("adding comment to recipe %s: %w", recipeID, err)
	}

	metrics.RecordComment()
	return &comment, nil
}

// AddRating records userID's rating of recipeID. Each user may rate a
// recipe once; a second attempt is a Conflict and leaves the ratings as
// they were.
func (s *RelationshipService) AddRating(ctx context.Context, userID, recipeID string, rate int) error {
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return err
	}
	recipe, err := s.store.GetRecipeByID(ctx, recipeID)
	if err != nil {
		return err
	}

	if recipe.RatedBy(userID) {
		return apperror.Conflict("you have already rated this recipe")
	}

	// A concurrent rating can still land between the check and the insert;
	// the store reports that as Conflict too.
	if err := s.store.AppendRating(ctx, recipeID, model.Rating{Author: userID, Rate: rate}); err != nil {
		return fmt.Errorf("rating recipe %s: %w", recipeID, err)
	}

	metrics.RecordRating()
	return nil
}
