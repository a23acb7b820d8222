package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toolforge/toolforge/internal/auth"
	"github.com/toolforge/toolforge/internal/models"
	pkgauth "github.com/toolforge/toolforge/pkg/auth"
	pkglogger "github.com/toolforge/toolforge/pkg/logger"
)

const (
	testJWTSecret = "unit-test-secret-long-enough-for-hs256"
	testPassword  = "correct-horse9"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type authFixture struct {
	service       *AuthService
	userRepo      *MockUserRepository
	challengeRepo *MockChallengeRepository
	sender        *MockCodeSender
	tm            *auth.TokenManager
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	logger := discardLogger()
	tm := auth.NewTokenManager(testJWTSecret, 30*time.Minute, 10*time.Minute)
	userRepo := &MockUserRepository{}
	challengeRepo := &MockChallengeRepository{}
	sender := &MockCodeSender{}
	audit := NewAuditService(&MockAuditLogRepository{}, logger, pkglogger.NewAuditLogger(logger))

	service := NewAuthService(userRepo, challengeRepo, tm, sender, audit, logger,
		pkglogger.NewAuditLogger(logger), 5*time.Minute, 5)

	return &authFixture{
		service:       service,
		userRepo:      userRepo,
		challengeRepo: challengeRepo,
		sender:        sender,
		tm:            tm,
	}
}

func fixtureUser(t *testing.T, twoFA bool) *models.User {
	t.Helper()

	hash, err := pkgauth.HashPassword(testPassword)
	require.NoError(t, err)

	user := &models.User{
		ID:           "8c7f2ab0-0f5e-4c9a-b0cb-0b6a4e9a1f00",
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: hash,
		Role:         models.RoleUser,
		TwoFAEnabled: twoFA,
	}
	if twoFA {
		user.TelegramChatID = "987654321"
	}
	return user
}

func TestBeginLogin_WithoutTwoFA(t *testing.T) {
	f := newAuthFixture(t)
	user := fixtureUser(t, false)

	f.userRepo.GetByUsernameFunc = func(ctx context.Context, username string) (*models.User, error) {
		if username == "alice" {
			return user, nil
		}
		return nil, models.ErrNotFound
	}

	resp, err := f.service.BeginLogin(context.Background(), "alice", testPassword)
	require.NoError(t, err)

	assert.False(t, resp.ChallengeRequired)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Empty(t, resp.PendingToken)
	assert.Empty(t, f.sender.SentCodes, "no code should be sent without 2fa")

	claims, err := f.tm.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.TokenTypeAccess, claims.Type)
}

func TestBeginLogin_InvalidCredentials(t *testing.T) {
	f := newAuthFixture(t)
	user := fixtureUser(t, false)

	f.userRepo.GetByUsernameFunc = func(ctx context.Context, username string) (*models.User, error) {
		if username == "alice" {
			return user, nil
		}
		return nil, models.ErrNotFound
	}

	t.Run("wrong password", func(t *testing.T) {
		_, err := f.service.BeginLogin(context.Background(), "alice", "wrong-password1")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	})

	t.Run("unknown username yields the same error", func(t *testing.T) {
		_, err := f.service.BeginLogin(context.Background(), "nobody", testPassword)
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := f.service.BeginLogin(context.Background(), "", "")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	})
}

func TestBeginLogin_WithTwoFA(t *testing.T) {
	f := newAuthFixture(t)
	user := fixtureUser(t, true)

	var storedHash string
	f.userRepo.GetByUsernameFunc = func(ctx context.Context, username string) (*models.User, error) {
		return user, nil
	}
	f.challengeRepo.UpsertFunc = func(ctx context.Context, userID, codeHash string, ttl time.Duration) (*models.LoginChallenge, error) {
		storedHash = codeHash
		assert.Equal(t, user.ID, userID)
		assert.Equal(t, 5*time.Minute, ttl)
		return &models.LoginChallenge{UserID: userID, CodeHash: codeHash, ExpiresAt: time.Now().Add(ttl)}, nil
	}

	resp, err := f.service.BeginLogin(context.Background(), "alice", testPassword)
	require.NoError(t, err)

	assert.True(t, resp.ChallengeRequired)
	assert.NotEmpty(t, resp.PendingToken)
	assert.Empty(t, resp.AccessToken)
	assert.Nil(t, resp.User)

	require.Len(t, f.sender.SentCodes, 1)
	code := f.sender.SentCodes[0]
	assert.Len(t, code, 6)
	assert.Equal(t, auth.HashLoginCode(code), storedHash, "stored hash must match the delivered code")

	claims, err := f.tm.ValidatePendingToken(resp.PendingToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
}

func TestBeginLogin_DeliveryFailure(t *testing.T) {
	f := newAuthFixture(t)
	user := fixtureUser(t, true)

	deleted := false
	f.userRepo.GetByUsernameFunc = func(ctx context.Context, username string) (*models.User, error) {
		return user, nil
	}
	f.sender.SendLoginCodeFunc = func(ctx context.Context, chatID, code string) error {
		return assert.AnError
	}
	f.challengeRepo.DeleteFunc = func(ctx context.Context, userID string) error {
		deleted = true
		return nil
	}

	_, err := f.service.BeginLogin(context.Background(), "alice", testPassword)
	assert.ErrorIs(t, err, models.ErrDeliveryFailed)
	assert.True(t, deleted, "undeliverable challenge should be removed")
}

func TestCompleteChallenge(t *testing.T) {
	f := newAuthFixture(t)
	user := fixtureUser(t, true)

	code := "123456"
	challenge := &models.LoginChallenge{
		UserID:    user.ID,
		CodeHash:  auth.HashLoginCode(code),
		Attempts:  0,
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}

	f.userRepo.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return user, nil
	}
	f.challengeRepo.GetFunc = func(ctx context.Context, userID string) (*models.LoginChallenge, error) {
		return challenge, nil
	}

	pendingToken, err := f.tm.GeneratePendingToken(user)
	require.NoError(t, err)

	t.Run("correct code yields session token", func(t *testing.T) {
		resp, err := f.service.CompleteChallenge(context.Background(), pendingToken, code)
		require.NoError(t, err)

		assert.NotEmpty(t, resp.AccessToken)
		assert.False(t, resp.ChallengeRequired)
		require.NotNil(t, resp.User)
		assert.Equal(t, "alice", resp.User.Username)

		claims, err := f.tm.ValidateToken(resp.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, models.TokenTypeAccess, claims.Type)
	})

	t.Run("wrong code", func(t *testing.T) {
		_, err := f.service.CompleteChallenge(context.Background(), pendingToken, "000000")
		assert.ErrorIs(t, err, models.ErrCodeMismatch)
	})

	t.Run("garbage pending token", func(t *testing.T) {
		_, err := f.service.CompleteChallenge(context.Background(), "bogus", code)
		assert.ErrorIs(t, err, models.ErrInvalidPendingToken)
	})

	t.Run("access token is not a pending token", func(t *testing.T) {
		accessToken, err := f.tm.GenerateAccessToken(user)
		require.NoError(t, err)

		_, err = f.service.CompleteChallenge(context.Background(), accessToken, code)
		assert.ErrorIs(t, err, models.ErrInvalidPendingToken)
	})
}

func TestCompleteChallenge_NoActiveChallenge(t *testing.T) {
	f := newAuthFixture(t)
	user := fixtureUser(t, true)

	pendingToken, err := f.tm.GeneratePendingToken(user)
	require.NoError(t, err)

	t.Run("never issued", func(t *testing.T) {
		f.challengeRepo.GetFunc = func(ctx context.Context, userID string) (*models.LoginChallenge, error) {
			return nil, models.ErrNotFound
		}

		_, err := f.service.CompleteChallenge(context.Background(), pendingToken, "123456")
		assert.ErrorIs(t, err, models.ErrNoActiveChallenge)
	})

	t.Run("already consumed", func(t *testing.T) {
		f.challengeRepo.GetFunc = func(ctx context.Context, userID string) (*models.LoginChallenge, error) {
			return &models.LoginChallenge{
				UserID:    user.ID,
				CodeHash:  auth.HashLoginCode("123456"),
				Consumed:  true,
				ExpiresAt: time.Now().Add(5 * time.Minute),
			}, nil
		}

		_, err := f.service.CompleteChallenge(context.Background(), pendingToken, "123456")
		assert.ErrorIs(t, err, models.ErrNoActiveChallenge)
	})

	t.Run("expired", func(t *testing.T) {
		f.challengeRepo.GetFunc = func(ctx context.Context, userID string) (*models.LoginChallenge, error) {
			return &models.LoginChallenge{
				UserID:    user.ID,
				CodeHash:  auth.HashLoginCode("123456"),
				ExpiresAt: time.Now().Add(-1 * time.Second),
			}, nil
		}

		_, err := f.service.CompleteChallenge(context.Background(), pendingToken, "123456")
		assert.ErrorIs(t, err, models.ErrExpiredChallenge)
	})
}

func TestCompleteChallenge_Lockout(t *testing.T) {
	f := newAuthFixture(t)
	user := fixtureUser(t, true)

	code := "123456"
	attempts := 0
	f.challengeRepo.GetFunc = func(ctx context.Context, userID string) (*models.LoginChallenge, error) {
		return &models.LoginChallenge{
			UserID:    user.ID,
			CodeHash:  auth.HashLoginCode(code),
			Attempts:  attempts,
			ExpiresAt: time.Now().Add(5 * time.Minute),
		}, nil
	}
	f.challengeRepo.IncrementAttemptsFunc = func(ctx context.Context, userID string) (int, error) {
		attempts++
		return attempts, nil
	}

	pendingToken, err := f.tm.GeneratePendingToken(user)
	require.NoError(t, err)

	for i := 1; i <= 4; i++ {
		_, err := f.service.CompleteChallenge(context.Background(), pendingToken, "999999")
		assert.ErrorIs(t, err, models.ErrCodeMismatch, "attempt %d", i)
	}

	// Fifth wrong code exhausts the budget
	_, err = f.service.CompleteChallenge(context.Background(), pendingToken, "999999")
	assert.ErrorIs(t, err, models.ErrChallengeLockedOut)

	// The correct code is refused once locked
	_, err = f.service.CompleteChallenge(context.Background(), pendingToken, code)
	assert.ErrorIs(t, err, models.ErrChallengeLockedOut)
}

func TestCompleteChallenge_ConsumeRace(t *testing.T) {
	f := newAuthFixture(t)
	user := fixtureUser(t, true)

	code := "123456"
	f.challengeRepo.GetFunc = func(ctx context.Context, userID string) (*models.LoginChallenge, error) {
		return &models.LoginChallenge{
			UserID:    user.ID,
			CodeHash:  auth.HashLoginCode(code),
			ExpiresAt: time.Now().Add(5 * time.Minute),
		}, nil
	}
	f.challengeRepo.ConsumeFunc = func(ctx context.Context, userID string) (bool, error) {
		return false, nil // the other submission won
	}

	pendingToken, err := f.tm.GeneratePendingToken(user)
	require.NoError(t, err)

	_, err = f.service.CompleteChallenge(context.Background(), pendingToken, code)
	assert.ErrorIs(t, err, models.ErrNoActiveChallenge)
}

func TestRegister(t *testing.T) {
	f := newAuthFixture(t)

	f.userRepo.CreateFunc = func(ctx context.Context, user *models.User) (*models.User, error) {
		user.ID = "new-id"
		user.CreatedAt = time.Now()
		user.UpdatedAt = time.Now()
		return user, nil
	}

	t.Run("success", func(t *testing.T) {
		resp, err := f.service.Register(context.Background(), "bob", "Bob@Example.com", "sturdy-pass1")
		require.NoError(t, err)

		assert.Equal(t, "bob", resp.Username)
		assert.Equal(t, "bob@example.com", resp.Email, "email should be lowercased")
		assert.Equal(t, models.RoleUser, resp.Role)
		assert.False(t, resp.TwoFAEnabled)
	})

	t.Run("weak password rejected", func(t *testing.T) {
		_, err := f.service.Register(context.Background(), "bob", "bob@example.com", "short")
		assert.Error(t, err)
	})

	t.Run("duplicate username", func(t *testing.T) {
		f.userRepo.CreateFunc = func(ctx context.Context, user *models.User) (*models.User, error) {
			return nil, models.ErrConflict
		}
		_, err := f.service.Register(context.Background(), "bob", "bob@example.com", "sturdy-pass1")
		assert.ErrorIs(t, err, models.ErrConflict)
	})
}

func TestEnableTwoFA(t *testing.T) {
	f := newAuthFixture(t)
	user := fixtureUser(t, false)

	f.userRepo.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return user, nil
	}
	f.userRepo.UpdateFunc = func(ctx context.Context, u *models.User) (*models.User, error) {
		return u, nil
	}

	t.Run("verifies chat before enabling", func(t *testing.T) {
		verified := false
		f.sender.VerifyChatIDFunc = func(ctx context.Context, chatID string) error {
			verified = true
			assert.Equal(t, "987654321", chatID)
			return nil
		}

		resp, err := f.service.EnableTwoFA(context.Background(), user.ID, "987654321")
		require.NoError(t, err)
		assert.True(t, verified)
		assert.True(t, resp.TwoFAEnabled)
	})

	t.Run("unreachable chat", func(t *testing.T) {
		f.sender.VerifyChatIDFunc = func(ctx context.Context, chatID string) error {
			return assert.AnError
		}

		_, err := f.service.EnableTwoFA(context.Background(), user.ID, "000")
		assert.ErrorIs(t, err, models.ErrDeliveryFailed)
	})

	t.Run("empty chat id", func(t *testing.T) {
		_, err := f.service.EnableTwoFA(context.Background(), user.ID, "  ")
		assert.ErrorIs(t, err, models.ErrBadRequest)
	})
}

func TestDisableTwoFA(t *testing.T) {
	f := newAuthFixture(t)
	user := fixtureUser(t, true)

	challengeDeleted := false
	f.userRepo.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return user, nil
	}
	f.userRepo.UpdateFunc = func(ctx context.Context, u *models.User) (*models.User, error) {
		return u, nil
	}
	f.challengeRepo.DeleteFunc = func(ctx context.Context, userID string) error {
		challengeDeleted = true
		return nil
	}

	t.Run("requires password", func(t *testing.T) {
		_, err := f.service.DisableTwoFA(context.Background(), user.ID, "wrong-password1")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	})

	t.Run("success clears chat id and pending challenge", func(t *testing.T) {
		resp, err := f.service.DisableTwoFA(context.Background(), user.ID, testPassword)
		require.NoError(t, err)
		assert.False(t, resp.TwoFAEnabled)
		assert.True(t, challengeDeleted)
	})
}

func TestChangePassword(t *testing.T) {
	f := newAuthFixture(t)
	user := fixtureUser(t, false)
	originalHash := user.PasswordHash

	f.userRepo.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return user, nil
	}
	f.userRepo.UpdateFunc = func(ctx context.Context, u *models.User) (*models.User, error) {
		return u, nil
	}

	t.Run("wrong current password", func(t *testing.T) {
		err := f.service.ChangePassword(context.Background(), user.ID, "wrong-password1", "new-password9")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
		assert.Equal(t, originalHash, user.PasswordHash)
	})

	t.Run("weak new password", func(t *testing.T) {
		err := f.service.ChangePassword(context.Background(), user.ID, testPassword, "weak")
		assert.Error(t, err)
	})

	t.Run("success", func(t *testing.T) {
		err := f.service.ChangePassword(context.Background(), user.ID, testPassword, "new-password9")
		require.NoError(t, err)
		assert.NotEqual(t, originalHash, user.PasswordHash)
		assert.NoError(t, pkgauth.ComparePassword(user.PasswordHash, "new-password9"))
	})
}
