package model

import (
	"slices"
	"time"
)

// User represents a registered account.
//
// Recipes lists the recipes this user authored, in creation order.
// FavouriteRecipes is a weak relation: the user does not own those recipes,
// and every entry has the user's ID in the matching Recipe.Fans.
type User struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"` // unique
	Email            string    `json:"email"`
	PasswordHash     string    `json:"-"`
	Recipes          []string  `json:"recipes"`
	FavouriteRecipes []string  `json:"favouriteRecipes"`
	CreatedAt        time.Time `json:"createdAt"`
}

// HasFavourite reports whether recipeID is in the user's favourites.
func (u *User) HasFavourite(recipeID string) bool {
	return slices.Contains(u.FavouriteRecipes, recipeID)
}
