package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/recipebook/internal/apperror"
	"github.com/sakif/recipebook/internal/auth"
	"github.com/sakif/recipebook/internal/model"
	"github.com/sakif/recipebook/internal/repository"
)

// UserService registers users and logs them in.
//
//	UserHandler (HTTP) → UserService → UserRepository (DB)
//	                                 ↘ TokenService, PasswordService
type UserService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// LoginResult is what a successful login hands back to the client.
type LoginResult struct {
	User  *model.User
	Token string
}

// errBadCredentials is used for both an unknown name and a wrong password
// so a caller cannot probe which names exist.
var errBadCredentials = apperror.Unauthorized("invalid credentials, could not log you in")

// Signup creates an account. A name that is already taken is reported as a
// validation failure on "name".
func (s *UserService) Signup(ctx context.Context, name, email, password string) (*model.User, error) {
	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("signing up %q: %w", name, err)
	}

	s.logger.Info("user signed up",
		slog.String("userID", user.ID),
		slog.String("name", user.Name),
	)
	return user, nil
}

// Login checks name and password and issues a bearer token.
func (s *UserService) Login(ctx context.Context, name, password string) (*LoginResult, error) {
	user, err := s.users.GetUserByName(ctx, name)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("logging in %q: %w", name, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("logging in %q: %w", name, err)
	}

	token, err := s.tokens.Generate(user.ID, user.Name)
	if err != nil {
		return nil, fmt.Errorf("logging in %q: %w", name, err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return &LoginResult{User: user, Token: token}, nil
}
