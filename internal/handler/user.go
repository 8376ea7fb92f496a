package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/recipebook/internal/service"
	"github.com/sakif/recipebook/internal/validation"
)

// UserHandler serves /api/users: account creation and login.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

type signupRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=5"`
}

type loginRequest struct {
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// loginResponse carries the token plus what the client needs to render the
// signed-in state without another round trip.
type loginResponse struct {
	UserID           string   `json:"userId"`
	Name             string   `json:"name"`
	Token            string   `json:"token"`
	FavouriteRecipes []string `json:"favouriteRecipes"`
}

// HandleSignup registers an account. A taken name is a 422 on "name".
//
// HTTP: POST /api/users/signup
// REQUEST BODY: {"name": "alice", "email": "alice@example.com", "password": "secret"}
func (h *UserHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		writeError(w, err)
		return
	}

	if _, err := h.users.Signup(r.Context(), req.Name, req.Email, req.Password); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: "User registered successfully."})
}

// HandleLogin exchanges name and password for a bearer token.
//
// HTTP: POST /api/users/login
// REQUEST BODY: {"name": "alice", "password": "secret"}
func (h *UserHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.users.Login(r.Context(), req.Name, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	favs := res.User.FavouriteRecipes
	if favs == nil {
		favs = []string{}
	}
	writeJSON(w, http.StatusOK, loginResponse{
		UserID:           res.User.ID,
		Name:             res.User.Name,
		Token:            res.Token,
		FavouriteRecipes: favs,
	})
}
