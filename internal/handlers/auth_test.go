package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toolforge/toolforge/internal/models"
	"github.com/toolforge/toolforge/internal/services"
)

// mockAuthService implements AuthServiceInterface for testing
type mockAuthService struct {
	RegisterFunc          func(ctx context.Context, username, email, password string) (*services.UserResponse, error)
	BeginLoginFunc        func(ctx context.Context, username, password string) (*services.LoginResponse, error)
	CompleteChallengeFunc func(ctx context.Context, pendingToken, code string) (*services.LoginResponse, error)
	MeFunc                func(ctx context.Context, userID string) (*services.UserResponse, error)
	ChangePasswordFunc    func(ctx context.Context, userID, currentPassword, newPassword string) error
	EnableTwoFAFunc       func(ctx context.Context, userID, telegramChatID string) (*services.UserResponse, error)
	DisableTwoFAFunc      func(ctx context.Context, userID, password string) (*services.UserResponse, error)
}

func (m *mockAuthService) Register(ctx context.Context, username, email, password string) (*services.UserResponse, error) {
	return m.RegisterFunc(ctx, username, email, password)
}

func (m *mockAuthService) BeginLogin(ctx context.Context, username, password string) (*services.LoginResponse, error) {
	return m.BeginLoginFunc(ctx, username, password)
}

func (m *mockAuthService) CompleteChallenge(ctx context.Context, pendingToken, code string) (*services.LoginResponse, error) {
	return m.CompleteChallengeFunc(ctx, pendingToken, code)
}

func (m *mockAuthService) Me(ctx context.Context, userID string) (*services.UserResponse, error) {
	return m.MeFunc(ctx, userID)
}

func (m *mockAuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	return m.ChangePasswordFunc(ctx, userID, currentPassword, newPassword)
}

func (m *mockAuthService) EnableTwoFA(ctx context.Context, userID, telegramChatID string) (*services.UserResponse, error) {
	return m.EnableTwoFAFunc(ctx, userID, telegramChatID)
}

func (m *mockAuthService) DisableTwoFA(ctx context.Context, userID, password string) (*services.UserResponse, error) {
	return m.DisableTwoFAFunc(ctx, userID, password)
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler(rec, req)
	return rec
}

func TestLoginHandler_DirectLogin(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{
		BeginLoginFunc: func(ctx context.Context, username, password string) (*services.LoginResponse, error) {
			assert.Equal(t, "alice", username)
			return &services.LoginResponse{
				AccessToken: "token123",
				User:        &services.UserResponse{Username: "alice"},
			}, nil
		},
	})

	rec := postJSON(t, h.Login, "/api/auth/login", map[string]string{
		"username": "alice",
		"password": "secret-pass1",
	})

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp services.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "token123", resp.AccessToken)
	assert.False(t, resp.ChallengeRequired)
}

func TestLoginHandler_ChallengeRequired(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{
		BeginLoginFunc: func(ctx context.Context, username, password string) (*services.LoginResponse, error) {
			return &services.LoginResponse{
				PendingToken:      "pending123",
				ChallengeRequired: true,
			}, nil
		},
	})

	rec := postJSON(t, h.Login, "/api/auth/login", map[string]string{
		"username": "alice",
		"password": "secret-pass1",
	})

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp services.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.ChallengeRequired)
	assert.Equal(t, "pending123", resp.PendingToken)
	assert.Empty(t, resp.AccessToken)
}

func TestLoginHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		serviceErr error
		wantStatus int
	}{
		{"invalid credentials", models.ErrInvalidCredentials, http.StatusUnauthorized},
		{"delivery failure", models.ErrDeliveryFailed, http.StatusBadGateway},
		{"internal error", models.ErrInternalServer, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuthHandler(&mockAuthService{
				BeginLoginFunc: func(ctx context.Context, username, password string) (*services.LoginResponse, error) {
					return nil, tt.serviceErr
				},
			})

			rec := postJSON(t, h.Login, "/api/auth/login", map[string]string{
				"username": "alice",
				"password": "whatever1",
			})

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestLoginHandler_RejectsMissingFields(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	rec := postJSON(t, h.Login, "/api/auth/login", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyChallengeHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		h := NewAuthHandler(&mockAuthService{
			CompleteChallengeFunc: func(ctx context.Context, pendingToken, code string) (*services.LoginResponse, error) {
				assert.Equal(t, "pending123", pendingToken)
				assert.Equal(t, "042817", code)
				return &services.LoginResponse{AccessToken: "token123"}, nil
			},
		})

		rec := postJSON(t, h.VerifyChallenge, "/api/auth/verify-2fa", map[string]string{
			"pending_token": "pending123",
			"code":          "042817",
		})

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects non-numeric code", func(t *testing.T) {
		h := NewAuthHandler(&mockAuthService{})

		rec := postJSON(t, h.VerifyChallenge, "/api/auth/verify-2fa", map[string]string{
			"pending_token": "pending123",
			"code":          "abc123",
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("error mapping", func(t *testing.T) {
		tests := []struct {
			name       string
			serviceErr error
			wantStatus int
		}{
			{"invalid pending token", models.ErrInvalidPendingToken, http.StatusUnauthorized},
			{"no active challenge", models.ErrNoActiveChallenge, http.StatusConflict},
			{"expired challenge", models.ErrExpiredChallenge, http.StatusGone},
			{"code mismatch", models.ErrCodeMismatch, http.StatusUnauthorized},
			{"locked out", models.ErrChallengeLockedOut, http.StatusTooManyRequests},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				h := NewAuthHandler(&mockAuthService{
					CompleteChallengeFunc: func(ctx context.Context, pendingToken, code string) (*services.LoginResponse, error) {
						return nil, tt.serviceErr
					},
				})

				rec := postJSON(t, h.VerifyChallenge, "/api/auth/verify-2fa", map[string]string{
					"pending_token": "pending123",
					"code":          "000000",
				})

				assert.Equal(t, tt.wantStatus, rec.Code)
			})
		}
	})
}

func TestRegisterHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		h := NewAuthHandler(&mockAuthService{
			RegisterFunc: func(ctx context.Context, username, email, password string) (*services.UserResponse, error) {
				return &services.UserResponse{Username: username, Email: email, Role: models.RoleUser}, nil
			},
		})

		rec := postJSON(t, h.Register, "/api/auth/register", map[string]string{
			"username": "bob123",
			"email":    "bob@example.com",
			"password": "sturdy-pass1",
		})

		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("duplicate", func(t *testing.T) {
		h := NewAuthHandler(&mockAuthService{
			RegisterFunc: func(ctx context.Context, username, email, password string) (*services.UserResponse, error) {
				return nil, models.ErrConflict
			},
		})

		rec := postJSON(t, h.Register, "/api/auth/register", map[string]string{
			"username": "bob123",
			"email":    "bob@example.com",
			"password": "sturdy-pass1",
		})

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("invalid email", func(t *testing.T) {
		h := NewAuthHandler(&mockAuthService{})

		rec := postJSON(t, h.Register, "/api/auth/register", map[string]string{
			"username": "bob123",
			"email":    "not-an-email",
			"password": "sturdy-pass1",
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
