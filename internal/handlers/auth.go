package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/toolforge/toolforge/internal/auth"
	"github.com/toolforge/toolforge/internal/models"
	"github.com/toolforge/toolforge/internal/services"
	pkgauth "github.com/toolforge/toolforge/pkg/auth"
	pkghttp "github.com/toolforge/toolforge/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Register(ctx context.Context, username, email, password string) (*services.UserResponse, error)
	BeginLogin(ctx context.Context, username, password string) (*services.LoginResponse, error)
	CompleteChallenge(ctx context.Context, pendingToken, code string) (*services.LoginResponse, error)
	Me(ctx context.Context, userID string) (*services.UserResponse, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	EnableTwoFA(ctx context.Context, userID, telegramChatID string) (*services.UserResponse, error)
	DisableTwoFA(ctx context.Context, userID, password string) (*services.UserResponse, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// Request DTOs

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32,alphanum"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest represents the request body for the first login step
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// VerifyChallengeRequest represents the request body for the second login step
type VerifyChallengeRequest struct {
	PendingToken string `json:"pending_token" validate:"required"`
	Code         string `json:"code" validate:"required,len=6,numeric"`
}

// ChangePasswordRequest represents the request body for a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// EnableTwoFARequest represents the request body for enabling 2FA
type EnableTwoFARequest struct {
	TelegramChatID string `json:"telegram_chat_id" validate:"required,numeric"`
}

// DisableTwoFARequest represents the request body for disabling 2FA
type DisableTwoFARequest struct {
	Password string `json:"password" validate:"required"`
}

// Register handles user registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.service.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "Username or email already registered")
		case isPasswordValidationError(err):
			pkghttp.WriteBadRequest(w, err.Error())
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, user)
}

// Login handles the first step of login: credential verification. The
// response either carries a session token or a pending token plus
// challenge_required=true.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	resp, err := h.service.BeginLogin(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidCredentials):
			pkghttp.WriteUnauthorized(w, "Invalid username or password")
		case errors.Is(err, models.ErrDeliveryFailed):
			pkghttp.WriteError(w, http.StatusBadGateway, "delivery_failed", "Could not deliver login code")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// VerifyChallenge handles the second step of login: code verification
func (h *AuthHandler) VerifyChallenge(w http.ResponseWriter, r *http.Request) {
	var req VerifyChallengeRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	resp, err := h.service.CompleteChallenge(r.Context(), req.PendingToken, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidPendingToken):
			pkghttp.WriteUnauthorized(w, "Invalid or expired pending token")
		case errors.Is(err, models.ErrNoActiveChallenge):
			pkghttp.WriteError(w, http.StatusConflict, "no_active_challenge", "No active login challenge; start login again")
		case errors.Is(err, models.ErrExpiredChallenge):
			pkghttp.WriteError(w, http.StatusGone, "challenge_expired", "Login code expired; start login again")
		case errors.Is(err, models.ErrCodeMismatch):
			pkghttp.WriteUnauthorized(w, "Incorrect login code")
		case errors.Is(err, models.ErrChallengeLockedOut):
			pkghttp.WriteTooManyRequests(w, "Too many incorrect codes; start login again")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Me returns the authenticated user's profile
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	user, err := h.service.Me(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, user)
}

// ChangePassword updates the caller's password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	err := h.service.ChangePassword(r.Context(), claims.UserID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidCredentials):
			pkghttp.WriteUnauthorized(w, "Current password is incorrect")
		case isPasswordValidationError(err):
			pkghttp.WriteBadRequest(w, err.Error())
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// EnableTwoFA turns on two-factor login for the caller
func (h *AuthHandler) EnableTwoFA(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req EnableTwoFARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.service.EnableTwoFA(r.Context(), claims.UserID, req.TelegramChatID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Invalid Telegram chat id")
		case errors.Is(err, models.ErrDeliveryFailed):
			pkghttp.WriteBadRequest(w, "Telegram chat unreachable; message the bot first")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, user)
}

// DisableTwoFA turns off two-factor login for the caller
func (h *AuthHandler) DisableTwoFA(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req DisableTwoFARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.service.DisableTwoFA(r.Context(), claims.UserID, req.Password)
	if err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) {
			pkghttp.WriteUnauthorized(w, "Password is incorrect")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, user)
}

func isPasswordValidationError(err error) bool {
	var pve *pkgauth.PasswordValidationError
	return errors.As(err, &pve)
}
