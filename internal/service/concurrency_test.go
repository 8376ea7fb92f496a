package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/sakif/recipebook/internal/model"
	"github.com/sakif/recipebook/internal/repository/sqlite"
)

// TestToggleFavourite_ConcurrentOnSQLite hammers one recipe with toggles
// from several users against the real store. Each user's toggles must
// alternate added/removed, so the final state follows the parity of the
// number of toggles, and both sides of the relation must agree.
func TestToggleFavourite_ConcurrentOnSQLite(t *testing.T) {
	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	author := &model.User{Name: "alice", Email: "alice@example.com", PasswordHash: "x"}
	if err := db.CreateUser(ctx, author); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	recipes := NewRecipeService(db, &fakeImages{}, testLogger())
	recipe, err := recipes.Create(ctx, author.ID, soupFields(), "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const users, togglesEach = 4, 7
	ids := make([]string, users)
	for i := range ids {
		u := &model.User{Name: fmt.Sprintf("fan%d", i), Email: fmt.Sprintf("fan%d@example.com", i), PasswordHash: "x"}
		if err := db.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		ids[i] = u.ID
	}

	svc := NewRelationshipService(db, testLogger())

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		added   = map[string]int{}
		removed = map[string]int{}
	)
	for _, id := range ids {
		id := id
		for i := 0; i < togglesEach; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				state, err := svc.ToggleFavourite(ctx, id, recipe.ID)
				if err != nil {
					t.Errorf("ToggleFavourite(%s) error = %v", id, err)
					return
				}
				mu.Lock()
				defer mu.Unlock()
				if state == FavouriteAdded {
					added[id]++
				} else {
					removed[id]++
				}
			}()
		}
	}
	wg.Wait()

	got, err := db.GetRecipeByID(ctx, recipe.ID)
	if err != nil {
		t.Fatalf("GetRecipeByID: %v", err)
	}
	for _, id := range ids {
		u, err := db.GetUserByID(ctx, id)
		if err != nil {
			t.Fatalf("GetUserByID: %v", err)
		}
		if u.HasFavourite(recipe.ID) != got.HasFan(id) {
			t.Errorf("user %s: favourite=%v fan=%v", id, u.HasFavourite(recipe.ID), got.HasFan(id))
		}
		// An odd number of toggles starting from "not favourited" ends favourited.
		if !u.HasFavourite(recipe.ID) {
			t.Errorf("user %s: want favourited after %d toggles", id, togglesEach)
		}
		if added[id]-removed[id] != 1 {
			t.Errorf("user %s: added=%d removed=%d, want added-removed=1", id, added[id], removed[id])
		}
	}
	if len(got.Fans) != users {
		t.Errorf("Fans = %v, want %d entries", got.Fans, users)
	}
}
