package main

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
	"github.com/go-chi/chi/v5/middleware"
	"github.com/toolforge/toolforge/internal/auth"
	"github.com/toolforge/toolforge/internal/background"
	"github.com/toolforge/toolforge/internal/cache"
	"github.com/toolforge/toolforge/internal/config"
	"github.com/toolforge/toolforge/internal/database"
	"github.com/toolforge/toolforge/internal/handlers"
	middlewareCustom "github.com/toolforge/toolforge/internal/middleware"
	"github.com/toolforge/toolforge/internal/models"
	"github.com/toolforge/toolforge/internal/notify"
	"github.com/toolforge/toolforge/internal/repositories"
	"github.com/toolforge/toolforge/internal/routes"
	"github.com/toolforge/toolforge/internal/services"
	pkgauth "github.com/toolforge/toolforge/pkg/auth"
	pkglogger "github.com/toolforge/toolforge/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	challengeRepo := repositories.NewChallengeRepository(db)
	toolRepo := repositories.NewToolRepository(db)
	ratingRepo := repositories.NewRatingRepository(db)
	commentRepo := repositories.NewCommentRepository(db)
	auditLogRepo := repositories.NewAuditLogRepository(db)

	// Initialize cleanup manager for stale login challenges
	cleanupManager := background.NewCleanupManager(challengeRepo, logger, cfg.Auth.CleanupInterval)

	// Initialize token manager
	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.PendingTokenExpiry,
	)

	// Audit logging (structured log stream + persisted trail)
	auditLogger := pkglogger.NewAuditLogger(logger)
	auditService := services.NewAuditService(auditLogRepo, logger, auditLogger)

	// In-process cache for catalog listings and rating stats
	statsCache := cache.New(1 * time.Minute)
	defer statsCache.Close()

	// Telegram delivery for login codes
	telegramClient := notify.NewTelegramClient(cfg.Telegram.BotToken, cfg.Telegram.APIBase)

	// Initialize services
	authService := services.NewAuthService(
		userRepo,
		challengeRepo,
		tokenManager,
		telegramClient,
		auditService,
		logger,
		auditLogger,
		cfg.Auth.ChallengeTTL,
		cfg.Auth.MaxChallengeAttempts,
	)
	toolService := services.NewToolService(toolRepo, statsCache, auditService, logger, cfg.Cache.StatsTTL)
	ratingService := services.NewRatingService(ratingRepo, toolRepo, statsCache, auditService, logger, cfg.Cache.StatsTTL)
	commentService := services.NewCommentService(commentRepo, toolRepo, statsCache, auditService, logger)
	adminService := services.NewAdminService(userRepo, toolRepo, statsCache, auditService, logger)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	toolHandler := handlers.NewToolHandler(toolService)
	ratingHandler := handlers.NewRatingHandler(ratingService)
	commentHandler := handlers.NewCommentHandler(commentService)
	adminHandler := handlers.NewAdminHandler(adminService, auditService)

	// Bootstrap first admin user if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(ctx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	// Setup CORS middleware
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.Env)
	corsConfig.AllowedOrigins = cfg.Server.AllowedOrigins

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, toolHandler, ratingHandler, commentHandler, adminHandler, tokenManager, userRepo)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates the first admin user if ADMIN_USERNAME, ADMIN_EMAIL
// and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminUsername := os.Getenv("ADMIN_USERNAME")
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminUsername == "" || adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_USERNAME, ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	// Check if admin already exists
	_, err := userRepo.GetByUsername(ctx, adminUsername)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	// Hash password
	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	// Create admin user
	admin := &models.User{
		Username:     adminUsername,
		Email:        adminEmail,
		PasswordHash: hashedPassword,
		Role:         models.RoleAdmin,
	}

	if _, err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created successfully")
	return nil
}
