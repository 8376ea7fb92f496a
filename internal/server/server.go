// Package server is the composition root: it opens the database and image
// store, builds the services and handlers, and mounts them on a chi router.
//
//	config → sqlite.DB, storage.ImageStore, auth services
//	       → RecipeService, RelationshipService, UserService
//	       → RecipeHandler, UserHandler → routes
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/recipebook/internal/auth"
	"github.com/sakif/recipebook/internal/config"
	"github.com/sakif/recipebook/internal/handler"
	"github.com/sakif/recipebook/internal/middleware"
	sqliteRepo "github.com/sakif/recipebook/internal/repository/sqlite"
	"github.com/sakif/recipebook/internal/service"
	"github.com/sakif/recipebook/internal/storage"
)

// Server owns the database connection and closes it on shutdown.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	images storage.ImageStore
}

// New opens every dependency named in cfg and wires the routes. The caller
// must call Start, or Close if it never starts the server.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	images, err := newImageStore(ctx, cfg.Storage)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening image store: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
		images: images,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

func newImageStore(ctx context.Context, cfg config.StorageConfig) (storage.ImageStore, error) {
	if cfg.Driver == "s3" {
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			PublicURL: cfg.S3.PublicURL,
		})
	}
	return storage.NewLocalStore(cfg.LocalDir)
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes mounts:
//
//	GET    /healthz
//	GET    /metrics
//	GET    /uploads/images/*              (local storage driver only)
//	POST   /api/users/signup              rate limited per IP
//	POST   /api/users/login               rate limited per IP
//	GET    /api/recipes
//	GET    /api/recipes/{id}
//	GET    /api/recipes/user/{id}
//	GET    /api/recipes/favourite/all     bearer
//	POST   /api/recipes                   bearer, multipart
//	PATCH  /api/recipes/{id}              bearer
//	DELETE /api/recipes/{id}              bearer
//	PATCH  /api/recipes/like/{id}         bearer
//	POST   /api/recipes/comment           bearer
//	POST   /api/recipes/rate              bearer
//
// Middleware order matters: RequestID must run before Logger so the log
// line carries the ID, and Recoverer must sit inside Logger so a panic is
// logged as a 500.
func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.cfg.Auth.JWTSecret, s.cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	passwords := auth.NewPasswordServiceWithCost(s.cfg.Auth.BcryptCost)

	recipeService := service.NewRecipeService(s.db, s.images, s.logger)
	relationService := service.NewRelationshipService(s.db, s.logger)
	userService := service.NewUserService(s.db, tokens, passwords, s.logger)

	recipeHandler := handler.NewRecipeHandler(recipeService, relationService, s.images, s.cfg.Server.MaxUploadBytes, s.logger)
	userHandler := handler.NewUserHandler(userService, s.logger)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Metrics)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Security.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Origin", "X-Requested-With", "Content-Type", "Accept", "Authorization"},
		MaxAge:         300,
	}))

	s.router.NotFound(handler.NotFound)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	if local, ok := s.images.(*storage.LocalStore); ok {
		fileServer := http.FileServer(http.Dir(local.Dir()))
		s.router.Handle("/uploads/images/*", http.StripPrefix("/uploads/images/", fileServer))
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			if s.cfg.Security.RateLimitReqs > 0 {
				r.Use(httprate.LimitByIP(s.cfg.Security.RateLimitReqs, s.cfg.Security.RateLimitWindow))
			}
			r.Post("/signup", userHandler.HandleSignup)
			r.Post("/login", userHandler.HandleLogin)
		})

		r.Route("/recipes", func(r chi.Router) {
			r.Get("/", recipeHandler.HandleList)
			r.Get("/user/{id}", recipeHandler.HandleListByUser)
			r.Get("/{id}", recipeHandler.HandleGetByID)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth(tokens))
				r.Get("/favourite/all", recipeHandler.HandleFavourites)
				r.Post("/", recipeHandler.HandleCreate)
				r.Post("/comment", recipeHandler.HandleComment)
				r.Post("/rate", recipeHandler.HandleRate)
				r.Patch("/like/{id}", recipeHandler.HandleLike)
				r.Patch("/{id}", recipeHandler.HandleUpdate)
				r.Delete("/{id}", recipeHandler.HandleDelete)
			})
		})
	})

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for
// up to Server.ShutdownTimeout and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Server.Port),
			slog.String("database", s.cfg.Database.Path),
			slog.String("storage", s.cfg.Storage.Driver),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
