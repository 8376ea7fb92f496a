package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/sakif/recipebook/internal/apperror"
	"github.com/sakif/recipebook/internal/model"
	"github.com/sakif/recipebook/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================
//
// fakeStore implements repository.Store in memory. WithTx holds a lock for
// the whole callback and restores a snapshot if the callback fails, which
// is enough to observe rollback from the outside.
//
// failOn makes the named method return the given error, for testing
// failure paths.

type fakeState struct {
	users   map[string]model.User
	recipes map[string]model.Recipe
	order   []string // recipe IDs in insertion order
}

func (st *fakeState) clone() *fakeState {
	c := &fakeState{
		users:   make(map[string]model.User, len(st.users)),
		recipes: make(map[string]model.Recipe, len(st.recipes)),
		order:   slices.Clone(st.order),
	}
	for id, u := range st.users {
		c.users[id] = cloneUser(u)
	}
	for id, r := range st.recipes {
		c.recipes[id] = cloneRecipe(r)
	}
	return c
}

type fakeStore struct {
	mu     sync.Mutex
	state  *fakeState
	nextID int
	failOn map[string]error
}

var _ repository.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		state: &fakeState{
			users:   map[string]model.User{},
			recipes: map[string]model.Recipe{},
		},
		failOn: map[string]error{},
	}
}

func cloneUser(u model.User) model.User {
	u.Recipes = slices.Clone(u.Recipes)
	u.FavouriteRecipes = slices.Clone(u.FavouriteRecipes)
	return u
}

func cloneRecipe(r model.Recipe) model.Recipe {
	r.Steps = slices.Clone(r.Steps)
	r.Ingredients = slices.Clone(r.Ingredients)
	r.Fans = slices.Clone(r.Fans)
	r.Comments = slices.Clone(r.Comments)
	r.Ratings = slices.Clone(r.Ratings)
	return r
}

func (f *fakeStore) fail(method string) error {
	return f.failOn[method]
}

func (f *fakeStore) newID(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

// --- Store ---

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	snapshot := f.state.clone()
	if err := fn(ctx, fakeTx{f}); err != nil {
		f.state = snapshot
		return err
	}
	return nil
}

func (f *fakeStore) CreateUser(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateUser"); err != nil {
		return err
	}
	for _, u := range f.state.users {
		if u.Name == user.Name {
			return apperror.ValidationFailed("name", "a user with this name already exists")
		}
	}
	user.ID = f.newID("user")
	user.Recipes = []string{}
	user.FavouriteRecipes = []string{}
	f.state.users[user.ID] = cloneUser(*user)
	return nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getUser(id)
}

func (f *fakeStore) GetUserByName(_ context.Context, name string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.state.users {
		if u.Name == name {
			c := cloneUser(u)
			return &c, nil
		}
	}
	return nil, apperror.NotFound("user", name)
}

func (f *fakeStore) ListRecipes(_ context.Context, filter repository.RecipeFilter) ([]model.Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListRecipes"); err != nil {
		return nil, err
	}
	return f.collect(func(r model.Recipe) bool {
		return strings.HasPrefix(r.Title, filter.TitlePrefix) &&
			(filter.Category == "" || r.Category == filter.Category)
	}), nil
}

func (f *fakeStore) GetRecipeByID(_ context.Context, id string) (*model.Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getRecipe(id)
}

func (f *fakeStore) ListRecipesByAuthor(_ context.Context, userID string) ([]model.Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.collect(func(r model.Recipe) bool { return r.Author == userID }), nil
}

func (f *fakeStore) ListFavouriteRecipes(_ context.Context, userID string) ([]model.Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Recipe{}
	for _, id := range f.state.users[userID].FavouriteRecipes {
		if r, ok := f.state.recipes[id]; ok {
			out = append(out, cloneRecipe(r))
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateRecipe(_ context.Context, recipe *model.Recipe) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("UpdateRecipe"); err != nil {
		return err
	}
	stored, ok := f.state.recipes[recipe.ID]
	if !ok {
		return apperror.NotFound("recipe", recipe.ID)
	}
	stored.Title = recipe.Title
	stored.Description = recipe.Description
	stored.Steps = slices.Clone(recipe.Steps)
	stored.Ingredients = slices.Clone(recipe.Ingredients)
	f.state.recipes[recipe.ID] = stored
	return nil
}

func (f *fakeStore) AppendComment(_ context.Context, recipeID string, c model.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("AppendComment"); err != nil {
		return err
	}
	r := f.state.recipes[recipeID]
	r.Comments = append(r.Comments, c)
	f.state.recipes[recipeID] = r
	return nil
}

func (f *fakeStore) AppendRating(_ context.Context, recipeID string, rt model.Rating) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.state.recipes[recipeID]
	if r.RatedBy(rt.Author) {
		return apperror.Conflict("you have already rated this recipe")
	}
	r.Ratings = append(r.Ratings, rt)
	f.state.recipes[recipeID] = r
	return nil
}

// --- unlocked helpers, shared with fakeTx ---

func (f *fakeStore) getUser(id string) (*model.User, error) {
	u, ok := f.state.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	c := cloneUser(u)
	return &c, nil
}

func (f *fakeStore) getRecipe(id string) (*model.Recipe, error) {
	r, ok := f.state.recipes[id]
	if !ok {
		return nil, apperror.NotFound("recipe", id)
	}
	c := cloneRecipe(r)
	if u, ok := f.state.users[c.Author]; ok {
		c.AuthorName = u.Name
	}
	return &c, nil
}

func (f *fakeStore) collect(keep func(model.Recipe) bool) []model.Recipe {
	out := []model.Recipe{}
	for _, id := range f.state.order {
		if r := f.state.recipes[id]; keep(r) {
			out = append(out, cloneRecipe(r))
		}
	}
	return out
}

// --- Tx ---

type fakeTx struct{ f *fakeStore }

func (t fakeTx) GetUserByID(_ context.Context, id string) (*model.User, error) {
	return t.f.getUser(id)
}

func (t fakeTx) GetRecipeByID(_ context.Context, id string) (*model.Recipe, error) {
	return t.f.getRecipe(id)
}

func (t fakeTx) InsertRecipe(_ context.Context, recipe *model.Recipe) error {
	if err := t.f.fail("InsertRecipe"); err != nil {
		return err
	}
	recipe.ID = t.f.newID("recipe")
	if recipe.Fans == nil {
		recipe.Fans = []string{}
	}
	t.f.state.recipes[recipe.ID] = cloneRecipe(*recipe)
	t.f.state.order = append(t.f.state.order, recipe.ID)
	return nil
}

func (t fakeTx) DeleteRecipe(_ context.Context, id string) error {
	if err := t.f.fail("DeleteRecipe"); err != nil {
		return err
	}
	if _, ok := t.f.state.recipes[id]; !ok {
		return apperror.NotFound("recipe", id)
	}
	delete(t.f.state.recipes, id)
	t.f.state.order = slices.DeleteFunc(t.f.state.order, func(s string) bool { return s == id })
	return nil
}

func (t fakeTx) editUser(userID string, fn func(*model.User)) {
	u := t.f.state.users[userID]
	fn(&u)
	t.f.state.users[userID] = u
}

func (t fakeTx) editRecipe(recipeID string, fn func(*model.Recipe)) {
	r, ok := t.f.state.recipes[recipeID]
	if !ok {
		return
	}
	fn(&r)
	t.f.state.recipes[recipeID] = r
}

func appendOnce(list []string, id string) []string {
	if slices.Contains(list, id) {
		return list
	}
	return append(list, id)
}

func without(list []string, id string) []string {
	return slices.DeleteFunc(slices.Clone(list), func(s string) bool { return s == id })
}

func (t fakeTx) AppendUserRecipe(_ context.Context, userID, recipeID string) error {
	if err := t.f.fail("AppendUserRecipe"); err != nil {
		return err
	}
	t.editUser(userID, func(u *model.User) { u.Recipes = appendOnce(u.Recipes, recipeID) })
	return nil
}

func (t fakeTx) RemoveUserRecipe(_ context.Context, userID, recipeID string) error {
	t.editUser(userID, func(u *model.User) { u.Recipes = without(u.Recipes, recipeID) })
	return nil
}

func (t fakeTx) AppendFavourite(_ context.Context, userID, recipeID string) error {
	if err := t.f.fail("AppendFavourite"); err != nil {
		return err
	}
	t.editUser(userID, func(u *model.User) { u.FavouriteRecipes = appendOnce(u.FavouriteRecipes, recipeID) })
	return nil
}

func (t fakeTx) RemoveFavourite(_ context.Context, userID, recipeID string) error {
	t.editUser(userID, func(u *model.User) { u.FavouriteRecipes = without(u.FavouriteRecipes, recipeID) })
	return nil
}

func (t fakeTx) RemoveFavouriteEverywhere(_ context.Context, recipeID string) error {
	if err := t.f.fail("RemoveFavouriteEverywhere"); err != nil {
		return err
	}
	for id := range t.f.state.users {
		t.editUser(id, func(u *model.User) { u.FavouriteRecipes = without(u.FavouriteRecipes, recipeID) })
	}
	return nil
}

func (t fakeTx) AppendFan(_ context.Context, recipeID, userID string) error {
	if err := t.f.fail("AppendFan"); err != nil {
		return err
	}
	t.editRecipe(recipeID, func(r *model.Recipe) { r.Fans = appendOnce(r.Fans, userID) })
	return nil
}

func (t fakeTx) RemoveFan(_ context.Context, recipeID, userID string) error {
	if err := t.f.fail("RemoveFan"); err != nil {
		return err
	}
	t.editRecipe(recipeID, func(r *model.Recipe) { r.Fans = without(r.Fans, userID) })
	return nil
}

// =========================================================================
// FAKE IMAGE STORE
// =========================================================================

type fakeImages struct {
	mu        sync.Mutex
	deleted   []string
	deleteErr error
}

func (f *fakeImages) Save(_ context.Context, ext string, _ io.Reader) (string, error) {
	return "uploads/images/fake" + ext, nil
}

func (f *fakeImages) Delete(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, path)
	return f.deleteErr
}

// =========================================================================
// HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// seedUser adds a user straight into the fake.
func seedUser(t *testing.T, store *fakeStore, name string) *model.User {
	t.Helper()
	u := &model.User{Name: name, Email: name + "@example.com", PasswordHash: "x"}
	if err := store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("seeding user %q: %v", name, err)
	}
	return u
}

// snapshot returns copies of a user and a recipe for before/after checks.
func snapshot(t *testing.T, store *fakeStore, userID, recipeID string) (model.User, model.Recipe) {
	t.Helper()
	u, err := store.GetUserByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetUserByID(%s): %v", userID, err)
	}
	r, err := store.GetRecipeByID(context.Background(), recipeID)
	if err != nil {
		t.Fatalf("GetRecipeByID(%s): %v", recipeID, err)
	}
	return *u, *r
}
