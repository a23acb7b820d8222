package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/toolforge/toolforge/internal/auth"
	"github.com/toolforge/toolforge/internal/models"
	"github.com/toolforge/toolforge/internal/notify"
	pkgauth "github.com/toolforge/toolforge/pkg/auth"
	pkglogger "github.com/toolforge/toolforge/pkg/logger"
)

// UserRepository defines the interface for user persistence
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, role string, limit, offset int) ([]*models.User, error)
	Count(ctx context.Context) (int, error)
	CountByRole(ctx context.Context) (map[string]int, error)
	CountTwoFAEnabled(ctx context.Context) (int, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Update(ctx context.Context, user *models.User) (*models.User, error)
	UpdateRole(ctx context.Context, id, role string) (*models.User, error)
}

// ChallengeRepository defines the interface for login challenge persistence
type ChallengeRepository interface {
	Upsert(ctx context.Context, userID, codeHash string, ttl time.Duration) (*models.LoginChallenge, error)
	Get(ctx context.Context, userID string) (*models.LoginChallenge, error)
	IncrementAttempts(ctx context.Context, userID string) (int, error)
	Consume(ctx context.Context, userID string) (bool, error)
	Delete(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// AuthService handles registration and the two-step login flow
type AuthService struct {
	userRepo      UserRepository
	challengeRepo ChallengeRepository
	tm            *auth.TokenManager
	sender        notify.CodeSender
	audit         *AuditService
	logger        *slog.Logger
	auditLogger   *pkglogger.AuditLogger
	challengeTTL  time.Duration
	maxAttempts   int
}

// NewAuthService creates a new AuthService
func NewAuthService(
	userRepo UserRepository,
	challengeRepo ChallengeRepository,
	tm *auth.TokenManager,
	sender notify.CodeSender,
	audit *AuditService,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
	challengeTTL time.Duration,
	maxAttempts int,
) *AuthService {
	if maxAttempts <= 0 {
		maxAttempts = models.MaxChallengeAttempts
	}
	return &AuthService{
		userRepo:      userRepo,
		challengeRepo: challengeRepo,
		tm:            tm,
		sender:        sender,
		audit:         audit,
		logger:        logger,
		auditLogger:   auditLogger,
		challengeTTL:  challengeTTL,
		maxAttempts:   maxAttempts,
	}
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	TwoFAEnabled bool   `json:"two_fa_enabled"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// LoginResponse is the result of the first login step. Exactly one of
// AccessToken or PendingToken is set, keyed by ChallengeRequired.
type LoginResponse struct {
	AccessToken       string        `json:"access_token,omitempty"`
	PendingToken      string        `json:"pending_token,omitempty"`
	ChallengeRequired bool          `json:"challenge_required"`
	User              *UserResponse `json:"user,omitempty"`
}

// Register creates a new account
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*UserResponse, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user, err := s.userRepo.Create(ctx, &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleUser,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			s.logger.Info("registration rejected: username or email taken")
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("email", pkglogger.SanitizedEmail(user.Email)))
	s.audit.Record(ctx, user.ID, models.AuditActionRegister, models.AuditEntityUser, user.ID, nil)

	return userModelToResponse(user), nil
}

// BeginLogin verifies the password and either issues a session token
// directly, or, when two-factor login is enabled, delivers a one-time
// code and returns a pending token.
func (s *AuthService) BeginLogin(ctx context.Context, username, password string) (*LoginResponse, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, models.ErrInvalidCredentials
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Burn a bcrypt comparison so an unknown username costs the
			// same as a wrong password
			_ = pkgauth.ComparePassword(dummyHash, password)
			s.logger.Info("login failed: invalid credentials")
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "login_failed",
				FailureReason: "invalid_credentials",
				Success:       false,
			})
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to get user by username", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		s.logger.Info("login failed: invalid credentials")
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			FailureReason: "invalid_credentials",
			Success:       false,
		})
		return nil, models.ErrInvalidCredentials
	}

	if !user.TwoFAEnabled {
		accessToken, err := s.tm.GenerateAccessToken(user)
		if err != nil {
			s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}

		s.logger.Info("user logged in", slog.String("user_id", user.ID))
		s.audit.Record(ctx, user.ID, models.AuditActionLogin, models.AuditEntityUser, user.ID, nil)

		return &LoginResponse{
			AccessToken: accessToken,
			User:        userModelToResponse(user),
		}, nil
	}

	// Two-factor path: issue a fresh challenge. The upsert atomically
	// replaces any earlier unconsumed code for this user.
	code, err := auth.GenerateLoginCode()
	if err != nil {
		s.logger.Error("failed to generate login code", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if _, err := s.challengeRepo.Upsert(ctx, user.ID, auth.HashLoginCode(code), s.challengeTTL); err != nil {
		s.logger.Error("failed to store login challenge", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.sender.SendLoginCode(ctx, user.TelegramChatID, code); err != nil {
		// Remove the unusable challenge so a later retry starts clean
		_ = s.challengeRepo.Delete(ctx, user.ID)
		s.logger.Error("failed to deliver login code", slog.String("user_id", user.ID), slog.Any("error", err))
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			FailureReason: "code_delivery_failed",
			Success:       false,
		})
		return nil, models.ErrDeliveryFailed
	}

	pendingToken, err := s.tm.GeneratePendingToken(user)
	if err != nil {
		s.logger.Error("failed to generate pending token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("login challenge issued", slog.String("user_id", user.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_challenge_issued",
		UserID:    user.ID,
		Success:   true,
	})

	return &LoginResponse{
		PendingToken:      pendingToken,
		ChallengeRequired: true,
	}, nil
}

// CompleteChallenge exchanges a pending token plus the delivered code
// for a session token.
func (s *AuthService) CompleteChallenge(ctx context.Context, pendingToken, code string) (*LoginResponse, error) {
	claims, err := s.tm.ValidatePendingToken(pendingToken)
	if err != nil {
		s.logger.Info("challenge completion with invalid pending token")
		return nil, models.ErrInvalidPendingToken
	}

	challenge, err := s.challengeRepo.Get(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNoActiveChallenge
		}
		s.logger.Error("failed to load login challenge", slog.String("user_id", claims.UserID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if challenge.Consumed {
		return nil, models.ErrNoActiveChallenge
	}
	if time.Now().After(challenge.ExpiresAt) {
		return nil, models.ErrExpiredChallenge
	}
	if challenge.Attempts >= s.maxAttempts {
		return nil, models.ErrChallengeLockedOut
	}

	if !auth.CodeEqual(challenge.CodeHash, code) {
		attempts, err := s.challengeRepo.IncrementAttempts(ctx, claims.UserID)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to record challenge attempt", slog.String("user_id", claims.UserID), slog.Any("error", err))
		}

		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "challenge_failed",
			UserID:        claims.UserID,
			FailureReason: "code_mismatch",
			Success:       false,
		})

		if attempts >= s.maxAttempts {
			s.logger.Warn("login challenge locked out", slog.String("user_id", claims.UserID))
			return nil, models.ErrChallengeLockedOut
		}
		return nil, models.ErrCodeMismatch
	}

	// CAS on the consumed flag: of two racing correct submissions only
	// one gets the session token
	won, err := s.challengeRepo.Consume(ctx, claims.UserID)
	if err != nil {
		s.logger.Error("failed to consume login challenge", slog.String("user_id", claims.UserID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if !won {
		return nil, models.ErrNoActiveChallenge
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		s.logger.Error("failed to get user after challenge", slog.String("user_id", claims.UserID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	accessToken, err := s.tm.GenerateAccessToken(user)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("login challenge completed", slog.String("user_id", user.ID))
	s.audit.Record(ctx, user.ID, models.AuditActionTwoFAVerified, models.AuditEntityUser, user.ID, nil)

	return &LoginResponse{
		AccessToken: accessToken,
		User:        userModelToResponse(user),
	}, nil
}

// Me returns the caller's profile
func (s *AuthService) Me(ctx context.Context, userID string) (*UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return userModelToResponse(user), nil
}

// ChangePassword verifies the current password before setting a new one
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		s.logger.Error("failed to get user for password change", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "password_change_failed",
			UserID:        userID,
			FailureReason: "invalid_credentials",
			Success:       false,
		})
		return models.ErrInvalidCredentials
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash new password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	user.PasswordHash = hash
	if _, err := s.userRepo.Update(ctx, user); err != nil {
		s.logger.Error("failed to update password", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("password changed", slog.String("user_id", userID))
	s.audit.Record(ctx, userID, models.AuditActionUpdate, models.AuditEntityUser, userID,
		models.AuditDetails{"field": "password"})

	return nil
}

// EnableTwoFA turns on code-over-Telegram login after confirming the bot
// can actually reach the given chat.
func (s *AuthService) EnableTwoFA(ctx context.Context, userID, telegramChatID string) (*UserResponse, error) {
	telegramChatID = strings.TrimSpace(telegramChatID)
	if telegramChatID == "" {
		return nil, models.ErrBadRequest
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		s.logger.Error("failed to get user for 2fa setup", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.sender.VerifyChatID(ctx, telegramChatID); err != nil {
		s.logger.Info("2fa setup rejected: unreachable chat", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrDeliveryFailed
	}

	user.TwoFAEnabled = true
	user.TelegramChatID = telegramChatID

	updated, err := s.userRepo.Update(ctx, user)
	if err != nil {
		s.logger.Error("failed to enable 2fa", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("two-factor login enabled", slog.String("user_id", userID))
	s.audit.Record(ctx, userID, models.AuditActionSetup2FA, models.AuditEntityUser, userID, nil)

	return userModelToResponse(updated), nil
}

// DisableTwoFA requires the password so a stolen session token alone
// cannot strip the second factor.
func (s *AuthService) DisableTwoFA(ctx context.Context, userID, password string) (*UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		s.logger.Error("failed to get user for 2fa disable", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, models.ErrInvalidCredentials
	}

	user.TwoFAEnabled = false
	user.TelegramChatID = ""

	updated, err := s.userRepo.Update(ctx, user)
	if err != nil {
		s.logger.Error("failed to disable 2fa", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// Any pending challenge is now moot
	_ = s.challengeRepo.Delete(ctx, userID)

	s.logger.Info("two-factor login disabled", slog.String("user_id", userID))
	s.audit.Record(ctx, userID, models.AuditActionDisable2FA, models.AuditEntityUser, userID, nil)

	return userModelToResponse(updated), nil
}

// dummyHash is a valid bcrypt hash of a random string, used to equalize
// timing between unknown-user and wrong-password failures.
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		Role:         user.Role,
		TwoFAEnabled: user.TwoFAEnabled,
		CreatedAt:    user.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:    user.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
