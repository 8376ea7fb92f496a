// Package model defines the documents persisted by the store and returned
// by the API.
package model

import (
	"slices"
	"time"
)

// Recipe is a published recipe. Author is the owning user's ID and never
// changes after creation. Fans mirrors the favouriteRecipes lists of the
// users who liked the recipe.
type Recipe struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Steps       []string  `json:"steps"`
	Ingredients []string  `json:"ingredients"`
	Author      string    `json:"author"`
	AuthorName  string    `json:"authorName,omitempty"` // resolved from users on read
	Fans        []string  `json:"fans"`
	Comments    []Comment `json:"comments"`
	Ratings     []Rating  `json:"ratings"`
	Image       string    `json:"image"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Comment stores the author's name as it was when the comment was written,
// not a reference to the user.
type Comment struct {
	Author string    `json:"author"`
	Text   string    `json:"text"`
	Date   time.Time `json:"date"`
}

// Rating is unique per (recipe, Author).
type Rating struct {
	Author string `json:"author"`
	Rate   int    `json:"rate"`
}

// RatedBy reports whether userID already has a rating on the recipe.
func (r *Recipe) RatedBy(userID string) bool {
	return slices.ContainsFunc(r.Ratings, func(rt Rating) bool {
		return rt.Author == userID
	})
}

// HasFan reports whether userID is in the recipe's fans.
func (r *Recipe) HasFan(userID string) bool {
	return slices.Contains(r.Fans, userID)
}

// RecipeFields are the author-editable parts of a recipe.
type RecipeFields struct {
	Title       string
	Description string
	Steps       []string
	Ingredients []string
	Category    string
}
