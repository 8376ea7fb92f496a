// Package repository declares the storage interfaces used by the service
// layer. The sqlite subpackage implements them.
//
// Reads and single-document writes go straight through Store. Anything that
// touches a user document and a recipe document together runs inside
// Store.WithTx, which hands the callback a Tx bound to one transaction: all
// writes made through it commit together or not at all.
package repository

import (
	"context"

	"github.com/sakif/recipebook/internal/model"
)

// RecipeFilter narrows List. An empty field applies no predicate.
type RecipeFilter struct {
	TitlePrefix string // case-sensitive prefix of Title
	Category    string // exact match
}

// IsEmpty reports whether the filter matches every recipe.
func (f RecipeFilter) IsEmpty() bool {
	return f.TitlePrefix == "" && f.Category == ""
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByName(ctx context.Context, name string) (*model.User, error)
}

type RecipeRepository interface {
	ListRecipes(ctx context.Context, filter RecipeFilter) ([]model.Recipe, error)
	GetRecipeByID(ctx context.Context, id string) (*model.Recipe, error)
	ListRecipesByAuthor(ctx context.Context, userID string) ([]model.Recipe, error)
	ListFavouriteRecipes(ctx context.Context, userID string) ([]model.Recipe, error)

	// Single-document writes; no transaction needed.
	UpdateRecipe(ctx context.Context, recipe *model.Recipe) error
	AppendComment(ctx context.Context, recipeID string, comment model.Comment) error
	AppendRating(ctx context.Context, recipeID string, rating model.Rating) error
}

// Tx is the set of operations available inside a transaction. Every method
// runs on the same underlying session.
type Tx interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetRecipeByID(ctx context.Context, id string) (*model.Recipe, error)

	InsertRecipe(ctx context.Context, recipe *model.Recipe) error
	DeleteRecipe(ctx context.Context, id string) error

	AppendUserRecipe(ctx context.Context, userID, recipeID string) error
	RemoveUserRecipe(ctx context.Context, userID, recipeID string) error

	AppendFavourite(ctx context.Context, userID, recipeID string) error
	RemoveFavourite(ctx context.Context, userID, recipeID string) error
	// RemoveFavouriteEverywhere drops recipeID from every user's favourites.
	RemoveFavouriteEverywhere(ctx context.Context, recipeID string) error

	AppendFan(ctx context.Context, recipeID, userID string) error
	RemoveFan(ctx context.Context, recipeID, userID string) error
}

// Store is the full document store: plain repositories plus a transaction
// boundary. Returning an error from fn rolls the transaction back.
type Store interface {
	UserRepository
	RecipeRepository
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
