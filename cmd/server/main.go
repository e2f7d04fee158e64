// Package main runs the Spiritual Journal API server.
//
// @title       Spiritual Journal API
// @version     1.0
// @description Journaling backend: users, entries, comments and categories with Google login.
// @description
// @description Errors share one envelope: {"success": false, "error": {"type", "message", "details", "statusCode"}}.
//
// @BasePath /
// @schemes  http https
//
// @tag.name Users
// @tag.name Entries
// @tag.name Comments
// @tag.name Categories
// @tag.name Auth
// @tag.name Health
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/blandib/spiritual-journal-api/docs"
	"github.com/blandib/spiritual-journal-api/internal/config"
	"github.com/blandib/spiritual-journal-api/internal/database"
	"github.com/blandib/spiritual-journal-api/internal/handlers"
	"github.com/blandib/spiritual-journal-api/internal/logging"
	"github.com/blandib/spiritual-journal-api/internal/middleware"
	"github.com/blandib/spiritual-journal-api/internal/routes"
	"github.com/blandib/spiritual-journal-api/internal/services"
	"github.com/blandib/spiritual-journal-api/internal/store"
)

const (
	connectTimeout  = 15 * time.Second
	shutdownTimeout = 10 * time.Second
	avatarFolder    = "spiritual-journal/avatars"
)

type indexer interface {
	EnsureIndexes(ctx context.Context) error
}

func ensureIndexes(ctx context.Context, db indexer) error {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	return nil
}

func main() {
	// Load env
	envErr := godotenv.Load()
	cfg := config.Load()

	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if envErr != nil {
		logging.Info().Msg("No .env file found")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to MongoDB
	logging.Info().Str("uri", database.MaskURI(cfg.MongoURI)).Msg("Connecting to MongoDB...")
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	mongo, err := database.Connect(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
	cancel()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer func() {
		if err := mongo.Disconnect(); err != nil {
			logging.Warn().Err(err).Msg("MongoDB disconnect")
		}
	}()

	// Duplicate-email detection depends on the unique index.
	if err := ensureIndexes(ctx, mongo); err != nil {
		logging.Fatal().Err(err).Msg("Failed to ensure MongoDB indexes")
	}

	// Connect to Redis (sessions and rate limits); the API runs without it
	var rdb *redis.Client
	logging.Info().Msg("Connecting to Redis...")
	if client, err := database.ConnectRedis(cfg.RedisURI); err != nil {
		logging.Warn().Err(err).Msg("Redis unavailable: login and shared rate limits disabled")
	} else {
		rdb = client
		defer rdb.Close()
	}

	errs := handlers.Errors{Debug: !cfg.IsProduction()}
	st := store.New(mongo)

	var uploader handlers.ImageUploader
	if cfg.CloudinaryEnabled() {
		svc, err := services.NewCloudinaryService(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, avatarFolder)
		if err != nil {
			logging.Warn().Err(err).Msg("Avatar uploads will not be available")
		} else {
			uploader = svc
			logging.Info().Msg("✅ Cloudinary service initialized")
		}
	} else {
		logging.Warn().Msg("Cloudinary credentials not found. Avatar uploads will not be available")
	}

	var sessions handlers.Sessions
	if rdb != nil {
		sessions = services.NewSessionStore(rdb, cfg.SessionDuration)
	}

	var provider services.IdentityProvider
	if cfg.OAuthEnabled() {
		provider = services.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.CallbackURL())
		logging.Info().Str("callback", cfg.CallbackURL()).Msg("✅ Google login enabled")
	} else {
		logging.Warn().Msg("GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set. Google login disabled")
	}

	deps := routes.Deps{
		Users:      handlers.NewUsers(st.Users, st, uploader, errs),
		Entries:    handlers.NewEntries(st.Entries, st, errs),
		Comments:   handlers.NewComments(st.Comments, st, errs),
		Categories: handlers.NewCategories(st.Categories, st, errs),
		Auth: handlers.NewAuth(provider, services.NewAccounts(st.Users), sessions, st.Users, handlers.AuthOptions{
			CookieName: cfg.SessionCookieName,
			Secure:     cfg.IsProduction(),
		}, errs),
		DB:     mongo,
		Errors: errs,
	}

	docs.SwaggerInfo.Host = strings.TrimPrefix(strings.TrimPrefix(cfg.Host, "https://"), "http://")

	// Setup router
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.Recover(errs))
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Production: SecurityHeaders → GlobalRateLimit → LoginRateLimit
	// Non-production: Redis-based rate limit only
	if cfg.IsProduction() {
		global := middleware.NewIPRateLimiter("global", rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
		login := middleware.NewLoginRateLimiter()
		go global.Run(ctx)
		go login.Run(ctx)
		for _, mw := range middleware.ProductionSecurity(global, login, errs, routes.LoginPaths...) {
			r.Use(mw)
		}
		logging.Info().Msg("✅ Production security enabled (security headers, per-IP + login rate limiting)")
	} else if rdb != nil {
		r.Use(middleware.NewRedisRateLimiter(rdb, cfg.RateLimitWindow, cfg.RateLimitMax).Middleware(errs))
	}

	routes.SetupRoutes(r, deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logging.Info().Str("port", cfg.Port).Str("env", cfg.Environment).Str("docs", cfg.Host+"/api-docs/index.html").Msg("🚀 Spiritual Journal API running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logging.Error().Err(err).Msg("Failed to start server")
		}
	case <-ctx.Done():
		logging.Info().Msg("Shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
