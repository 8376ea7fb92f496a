package handler

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/sakif/recipebook/internal/apperror"
	"github.com/sakif/recipebook/internal/auth"
	"github.com/sakif/recipebook/internal/model"
	"github.com/sakif/recipebook/internal/repository"
	"github.com/sakif/recipebook/internal/service"
	"github.com/sakif/recipebook/internal/storage"
	"github.com/sakif/recipebook/internal/validation"
)

// RecipeHandler serves /api/recipes.
//
//	RecipeHandler → RecipeService       (recipes and authorship)
//	              → RelationshipService (favourites, comments, ratings)
//	              → storage.ImageStore  (uploaded images)
//
// Handlers parse and validate input, call one service method and write
// exactly one response. Authorisation decisions live in the services.
type RecipeHandler struct {
	recipes        *service.RecipeService
	relations      *service.RelationshipService
	images         storage.ImageStore
	maxUploadBytes int64
	logger         *slog.Logger
}

func NewRecipeHandler(
	recipes *service.RecipeService,
	relations *service.RelationshipService,
	images storage.ImageStore,
	maxUploadBytes int64,
	logger *slog.Logger,
) *RecipeHandler {
	return &RecipeHandler{
		recipes:        recipes,
		relations:      relations,
		images:         images,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

type recipesResponse struct {
	Recipes []model.Recipe `json:"recipes"`
}

type createRecipeRequest struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Steps       []string `json:"steps"`
	Ingredients []string `json:"ingredients"`
	Category    string   `json:"category"`
}

type updateRecipeRequest struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Steps       []string `json:"steps" validate:"min=1"`
	Ingredients []string `json:"ingredients" validate:"min=1"`
}

type commentRequest struct {
	RecipeID string `json:"recipeId" validate:"required"`
	Text     string `json:"text" validate:"required,min=5"`
}

type rateRequest struct {
	RecipeID string `json:"recipeId" validate:"required"`
	Rate     int    `json:"rate" validate:"min=1,max=5"`
}

// HandleList returns every recipe, optionally filtered.
//
// HTTP: GET /api/recipes?search=So&category=soup
//
// search is a case-sensitive title prefix; category must match exactly.
func (h *RecipeHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.RecipeFilter{
		TitlePrefix: q.Get("search"),
		Category:    q.Get("category"),
	}

	recipes, err := h.recipes.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recipesResponse{Recipes: recipes})
}

// HandleGetByID returns one recipe with its author's name resolved.
//
// HTTP: GET /api/recipes/{id}
func (h *RecipeHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	recipe, err := h.recipes.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

// HandleListByUser returns the recipes a user authored. A user with no
// recipes gets a 404.
//
// HTTP: GET /api/recipes/user/{id}
func (h *RecipeHandler) HandleListByUser(w http.ResponseWriter, r *http.Request) {
	recipes, err := h.recipes.ListByAuthor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recipesResponse{Recipes: recipes})
}

// HandleFavourites returns the caller's favourites as a bare array.
//
// HTTP: GET /api/recipes/favourite/all
func (h *RecipeHandler) HandleFavourites(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	recipes, err := h.relations.ListFavourites(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recipes)
}

// HandleCreate stores a new recipe authored by the caller.
//
// HTTP: POST /api/recipes (multipart/form-data)
//
// FORM FIELDS:
//
//	title, description, category  plain text
//	steps, ingredients            JSON array strings, e.g. ["boil","serve"]
//	image                         optional .png/.jpg/.jpeg file
//
// Fields are validated before the image is written, and the service removes
// the image again if the recipe cannot be stored.
func (h *RecipeHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, apperror.ValidationFailed("image", "upload is too large"))
			return
		}
		writeError(w, apperror.ValidationFailed("body", "expected a multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	req, err := parseCreateForm(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		writeError(w, err)
		return
	}

	imagePath, err := h.saveImage(r)
	if err != nil {
		writeError(w, err)
		return
	}

	recipe, err := h.recipes.Create(r.Context(), userID, model.RecipeFields{
		Title:       req.Title,
		Description: req.Description,
		Steps:       req.Steps,
		Ingredients: req.Ingredients,
		Category:    req.Category,
	}, imagePath)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]*model.Recipe{"recipe": recipe})
}

// HandleUpdate edits a recipe the caller authored.
//
// HTTP: PATCH /api/recipes/{id}
// REQUEST BODY: {"title": "...", "description": "...", "steps": [...], "ingredients": [...]}
func (h *RecipeHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req updateRecipeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		writeError(w, err)
		return
	}

	_, err := h.recipes.Update(r.Context(), chi.URLParam(r, "id"), userID, model.RecipeFields{
		Title:       req.Title,
		Description: req.Description,
		Steps:       req.Steps,
		Ingredients: req.Ingredients,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Recipe updated successfully."})
}

// HandleDelete removes a recipe the caller authored.
//
// HTTP: DELETE /api/recipes/{id}
func (h *RecipeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.recipes.Delete(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Recipe deleted successfully."})
}

// HandleLike toggles the recipe in the caller's favourites.
//
// HTTP: PATCH /api/recipes/like/{id}
// RESPONSE: {"message": "...", "status": "added" | "removed"}
func (h *RecipeHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	state, err := h.relations.ToggleFavourite(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	msg := "Added to favourites."
	if state == service.FavouriteRemoved {
		msg = "Removed from favourites."
	}
	writeJSON(w, http.StatusOK, struct {
		Message string                 `json:"message"`
		Status  service.FavouriteState `json:"status"`
	}{msg, state})
}

// HandleComment appends a comment signed with the caller's name.
//
// HTTP: POST /api/recipes/comment
// REQUEST BODY: {"recipeId": "...", "text": "..."}
func (h *RecipeHandler) HandleComment(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		writeError(w, err)
		return
	}

	if _, err := h.relations.AddComment(r.Context(), userID, req.RecipeID, req.Text); err != nil {
		writeError(w, err)
		return
	}
	writeCreated(w, "Comment added.")
}

// HandleRate records the caller's 1-5 rating. Rating the same recipe twice
// is a 409.
//
// HTTP: POST /api/recipes/rate
// REQUEST BODY: {"recipeId": "...", "rate": 4}
func (h *RecipeHandler) HandleRate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req rateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.relations.AddRating(r.Context(), userID, req.RecipeID, req.Rate); err != nil {
		writeError(w, err)
		return
	}
	writeCreated(w, "Rating added.")
}

// writeCreated is the {message, status: 201} body older clients check.
func writeCreated(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusCreated, struct {
		Message string `json:"message"`
		Status  int    `json:"status"`
	}{msg, http.StatusCreated})
}

// parseCreateForm reads the text fields of a create request. steps and
// ingredients arrive as JSON array strings and are decoded here, once.
func parseCreateForm(r *http.Request) (createRecipeRequest, error) {
	req := createRecipeRequest{
		Title:       strings.TrimSpace(r.FormValue("title")),
		Description: strings.TrimSpace(r.FormValue("description")),
		Category:    strings.TrimSpace(r.FormValue("category")),
	}

	var err error
	if req.Steps, err = decodeList(r.FormValue("steps"), "steps"); err != nil {
		return req, err
	}
	if req.Ingredients, err = decodeList(r.FormValue("ingredients"), "ingredients"); err != nil {
		return req, err
	}
	return req, nil
}

func decodeList(raw, field string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, apperror.ValidationFailed(field, field+" must be a JSON array of strings")
	}
	if list == nil {
		list = []string{}
	}
	return list, nil
}

// saveImage stores the optional "image" part and returns its path, or ""
// when the request carries no image.
func (h *RecipeHandler) saveImage(r *http.Request) (string, error) {
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", apperror.ValidationFailed("image", "could not read the uploaded image")
	}
	defer file.Close()

	ext, err := imageExtension(header)
	if err != nil {
		return "", err
	}

	path, err := h.images.Save(r.Context(), ext, file)
	if err != nil {
		h.logger.Error("failed to store image",
			slog.String("filename", header.Filename),
			slog.String("error", err.Error()),
		)
		return "", err
	}
	return path, nil
}

func imageExtension(header *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if _, ok := storage.AllowedExtensions[ext]; !ok {
		return "", apperror.ValidationFailed("image", "image must be a .png, .jpg or .jpeg file")
	}
	return ext, nil
}
