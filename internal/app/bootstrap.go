package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"recipes-api/internal/auth"
	"recipes-api/internal/catalog"
	"recipes-api/internal/config"
	"recipes-api/internal/db"
	"recipes-api/internal/observability"
	"recipes-api/internal/recipe"
)

type Options struct {
	RunMigrations bool
}

// Runtime is everything main needs to serve: the composed HTTP handler, the
// background token sweeper, and a Close releasing what Build opened.
type Runtime struct {
	Handler http.Handler
	Sweeper *auth.Sweeper
	Close   func() error
}

func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, options Options) (*Runtime, error) {
	database, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(cfg.DBMaxOpenConns)
	database.SetMaxIdleConns(cfg.DBMaxIdleConns)
	database.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	database.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	if err := database.PingContext(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations {
		if err := db.RunMigrations(ctx, database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTokenTTL)

	authRepo := auth.NewRepository(database)
	authService := auth.NewService(
		authRepo,
		issuer,
		auth.NewGoogleVerifier(cfg.GoogleClientID),
		auth.NewFacebookVerifier(cfg.FacebookGraphURL),
		cfg.RefreshTTL,
	)
	authHandler := auth.NewHandler(authService)

	sweeper := auth.NewSweeper(authRepo, logger, cfg.CleanupInterval, cfg.TokenRetention, cfg.CleanupBackoff)

	catalogHandler := catalog.NewHandler(catalog.NewRepository(database))
	recipeHandler := recipe.NewHandler(recipe.NewRepository(database))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", authHandler.Register)
	mux.HandleFunc("POST /auth/login", authHandler.Login)
	mux.HandleFunc("POST /auth/refresh", authHandler.Refresh)
	mux.HandleFunc("POST /auth/logout", authHandler.Logout)
	mux.HandleFunc("POST /auth/google", authHandler.GoogleSignIn)
	mux.HandleFunc("POST /auth/facebook", authHandler.FacebookSignIn)

	mux.HandleFunc("GET /recipes", recipeHandler.List)
	mux.HandleFunc("GET /recipes/{id}", recipeHandler.GetByID)
	mux.Handle("POST /recipes", auth.Middleware(issuer, http.HandlerFunc(recipeHandler.Create)))

	mux.HandleFunc("GET /categories", catalogHandler.ListCategories)
	mux.Handle("POST /categories", auth.Middleware(issuer, http.HandlerFunc(catalogHandler.CreateCategory)))
	mux.HandleFunc("GET /units", catalogHandler.ListUnits)

	mux.HandleFunc("GET /health", healthHandler(database))

	handler := observability.RecoverMiddleware(logger, cfg.IsProduction(),
		observability.RequestLoggingMiddleware(logger, mux))

	return &Runtime{
		Handler: handler,
		Sweeper: sweeper,
		Close: func() error {
			observability.FlushSentry()
			return database.Close()
		},
	}, nil
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
