package handler_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/sakif/recipebook/internal/auth"
	"github.com/sakif/recipebook/internal/handler"
	"github.com/sakif/recipebook/internal/model"
	"github.com/sakif/recipebook/internal/repository/sqlite"
	"github.com/sakif/recipebook/internal/service"
	"github.com/sakif/recipebook/internal/storage"
)

// testUserHeader names the caller in handler tests, standing in for a
// bearer token so these tests do not depend on token issuance.
const testUserHeader = "X-Test-User"

type testEnv struct {
	router http.Handler
	db     *sqlite.DB
	images *storage.LocalStore
	alice  *model.User
	bob    *model.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	images, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	recipes := service.NewRecipeService(db, images, logger)
	relations := service.NewRelationshipService(db, logger)
	h := handler.NewRecipeHandler(recipes, relations, images, 1<<20, logger)

	r := chi.NewRouter()
	r.NotFound(handler.NotFound)
	r.Route("/api/recipes", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/user/{id}", h.HandleListByUser)
		r.Get("/{id}", h.HandleGetByID)

		r.Group(func(r chi.Router) {
			r.Use(asTestUser)
			r.Get("/favourite/all", h.HandleFavourites)
			r.Post("/", h.HandleCreate)
			r.Post("/comment", h.HandleComment)
			r.Post("/rate", h.HandleRate)
			r.Patch("/like/{id}", h.HandleLike)
			r.Patch("/{id}", h.HandleUpdate)
			r.Delete("/{id}", h.HandleDelete)
		})
	})

	env := &testEnv{router: r, db: db, images: images}
	env.alice = env.addUser(t, "alice")
	env.bob = env.addUser(t, "bob")
	return env
}

func asTestUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(testUserHeader)
		ctx := auth.WithIdentity(r.Context(), auth.Identity{UserID: id})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (e *testEnv) addUser(t *testing.T, name string) *model.User {
	t.Helper()
	u := &model.User{Name: name, Email: name + "@example.com", PasswordHash: "x"}
	require.NoError(t, e.db.CreateUser(context.Background(), u))
	return u
}

// do sends req as userID ("" for anonymous) and returns the recorder.
func (e *testEnv) do(req *http.Request, userID string) *httptest.ResponseRecorder {
	if userID != "" {
		req.Header.Set(testUserHeader, userID)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doJSON(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return e.do(req, userID)
}

type upload struct {
	filename string
	content  []byte
}

// multipartRequest builds a create-recipe request. fields are sent as-is,
// so steps and ingredients must already be JSON strings.
func multipartRequest(t *testing.T, fields map[string]string, image *upload) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", image.filename)
		require.NoError(t, err)
		_, err = fw.Write(image.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/recipes", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func soupForm() map[string]string {
	return map[string]string{
		"title":       "Soup",
		"description": "A warm bowl",
		"steps":       `["chop","boil"]`,
		"ingredients": `["water","salt"]`,
		"category":    "soup",
	}
}

// createRecipe posts a recipe as userID and returns the stored copy.
func (e *testEnv) createRecipe(t *testing.T, userID string, fields map[string]string) model.Recipe {
	t.Helper()
	rec := e.do(multipartRequest(t, fields, nil), userID)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body struct {
		Recipe model.Recipe `json:"recipe"`
	}
	decode(t, rec, &body)
	return body.Recipe
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body handler.ErrorResponse
	decode(t, rec, &body)
	return body.Error
}
