package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/toolforge/toolforge/internal/auth"
	"github.com/toolforge/toolforge/internal/cache"
	"github.com/toolforge/toolforge/internal/config"
	"github.com/toolforge/toolforge/internal/database"
	"github.com/toolforge/toolforge/internal/handlers"
	middlewareCustom "github.com/toolforge/toolforge/internal/middleware"
	"github.com/toolforge/toolforge/internal/repositories"
	"github.com/toolforge/toolforge/internal/routes"
	"github.com/toolforge/toolforge/internal/services"
	pkglogger "github.com/toolforge/toolforge/pkg/logger"
)

// SentCode is a login code captured instead of being delivered
type SentCode struct {
	ChatID string
	Code   string
}

// MockCodeSender captures delivered login codes for test assertions
type MockCodeSender struct {
	SentCodes []SentCode
	mu        sync.Mutex
}

func (m *MockCodeSender) SendLoginCode(ctx context.Context, chatID, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentCodes = append(m.SentCodes, SentCode{ChatID: chatID, Code: code})
	return nil
}

func (m *MockCodeSender) VerifyChatID(ctx context.Context, chatID string) error {
	return nil
}

// LastCode returns the most recently captured login code
func (m *MockCodeSender) LastCode() *SentCode {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.SentCodes) == 0 {
		return nil
	}
	return &m.SentCodes[len(m.SentCodes)-1]
}

// TestServer wraps httptest.Server with database and all dependencies
type TestServer struct {
	Server     *httptest.Server
	DB         *database.DB
	CodeSender *MockCodeSender
	Config     *config.Config
	Cache      *cache.Cache
}

// NewTestServer initializes a complete HTTP server with real database + mocked code delivery
func NewTestServer(db *database.DB) *TestServer {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:            "test-secret-32-characters-long-for-testing",
			AccessTokenExpiry:    30 * time.Minute,
			PendingTokenExpiry:   10 * time.Minute,
			ChallengeTTL:         5 * time.Minute,
			MaxChallengeAttempts: 5,
			CleanupInterval:      1 * time.Hour,
		},
		Server: config.ServerConfig{
			Port:           "0",
			Env:            "test",
			AllowedOrigins: []string{},
		},
		Cache: config.CacheConfig{
			StatsTTL: 5 * time.Minute,
		},
	}

	userRepo := repositories.NewUserRepository(db)
	challengeRepo := repositories.NewChallengeRepository(db)
	toolRepo := repositories.NewToolRepository(db)
	ratingRepo := repositories.NewRatingRepository(db)
	commentRepo := repositories.NewCommentRepository(db)
	auditLogRepo := repositories.NewAuditLogRepository(db)

	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.PendingTokenExpiry,
	)

	auditLogger := pkglogger.NewAuditLogger(logger)
	auditService := services.NewAuditService(auditLogRepo, logger, auditLogger)

	statsCache := cache.New(1 * time.Minute)

	codeSender := &MockCodeSender{}

	authService := services.NewAuthService(
		userRepo,
		challengeRepo,
		tokenManager,
		codeSender,
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

	authHandler := handlers.NewAuthHandler(authService)
	toolHandler := handlers.NewToolHandler(toolService)
	ratingHandler := handlers.NewRatingHandler(ratingService)
	commentHandler := handlers.NewCommentHandler(commentService)
	adminHandler := handlers.NewAdminHandler(adminService, auditService)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(r, authHandler, toolHandler, ratingHandler, commentHandler, adminHandler, tokenManager, userRepo)

	server := httptest.NewServer(r)

	return &TestServer{
		Server:     server,
		DB:         db,
		CodeSender: codeSender,
		Config:     cfg,
		Cache:      statsCache,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
	if ts.Cache != nil {
		ts.Cache.Close()
	}
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	url := ts.Server.URL + path

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return http.DefaultClient.Do(req)
}

// RequestWithAuth makes an authenticated HTTP request with access token
func (ts *TestServer) RequestWithAuth(method, path, accessToken string, body interface{}) (*http.Response, error) {
	headers := map[string]string{
		"Authorization": "Bearer " + accessToken,
	}
	return ts.Request(method, path, body, headers)
}

// ParseJSONResponse parses a JSON response body into target struct
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// LoginResult holds the fields of a login or verify-2fa response
type LoginResult struct {
	AccessToken       string `json:"access_token"`
	PendingToken      string `json:"pending_token"`
	ChallengeRequired bool   `json:"challenge_required"`
}
