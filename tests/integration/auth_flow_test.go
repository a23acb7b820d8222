package integration

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAuthSuite(t *testing.T) (*TestServer, *TestDB) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	testDB, err := SetupTestDatabase(ctx)
	require.NoError(t, err, "failed to set up test database")

	ts := NewTestServer(testDB.DB)

	t.Cleanup(func() {
		ts.Close()
		teardownCtx, teardownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer teardownCancel()
		_ = testDB.Teardown(teardownCtx)
	})

	return ts, testDB
}

func TestRegisterAndDirectLogin(t *testing.T) {
	ts, _ := setupAuthSuite(t)

	username, email, password := TestUser("a")

	resp, err := ts.Request(http.MethodPost, "/api/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err = ts.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var login LoginResult
	require.NoError(t, ParseJSONResponse(resp, &login))

	assert.False(t, login.ChallengeRequired)
	assert.NotEmpty(t, login.AccessToken)
	assert.Empty(t, login.PendingToken)

	// Token works against a protected endpoint
	resp, err = ts.RequestWithAuth(http.MethodGet, "/api/auth/me", login.AccessToken, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var me map[string]interface{}
	require.NoError(t, ParseJSONResponse(resp, &me))
	assert.Equal(t, username, me["username"])
}

func TestLoginWithWrongPassword(t *testing.T) {
	ts, testDB := setupAuthSuite(t)

	ctx := context.Background()
	username, email, password := TestUser("b")
	_, err := SeedUser(ctx, testDB.DB, username, email, password, "user")
	require.NoError(t, err)

	resp, err := ts.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"username": username,
		"password": "WrongPassword123!",
	}, nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTwoFALoginFlow(t *testing.T) {
	ts, testDB := setupAuthSuite(t)

	ctx := context.Background()
	username, email, password := TestUser("c")
	_, err := SeedTwoFAUser(ctx, testDB.DB, username, email, password, "123456789")
	require.NoError(t, err)

	// First step returns a pending token and no session
	resp, err := ts.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var login LoginResult
	require.NoError(t, ParseJSONResponse(resp, &login))

	assert.True(t, login.ChallengeRequired)
	assert.NotEmpty(t, login.PendingToken)
	assert.Empty(t, login.AccessToken)

	sent := ts.CodeSender.LastCode()
	require.NotNil(t, sent, "login code was never delivered")
	assert.Equal(t, "123456789", sent.ChatID)
	assert.Len(t, sent.Code, 6)

	// The pending token is not usable as a session token
	resp, err = ts.RequestWithAuth(http.MethodGet, "/api/auth/me", login.PendingToken, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Second step exchanges pending token + code for a session
	resp, err = ts.Request(http.MethodPost, "/api/auth/verify-2fa", map[string]string{
		"pending_token": login.PendingToken,
		"code":          sent.Code,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var verified LoginResult
	require.NoError(t, ParseJSONResponse(resp, &verified))
	assert.NotEmpty(t, verified.AccessToken)

	resp, err = ts.RequestWithAuth(http.MethodGet, "/api/auth/me", verified.AccessToken, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestTwoFAChallengeSingleUse(t *testing.T) {
	ts, testDB := setupAuthSuite(t)

	ctx := context.Background()
	username, email, password := TestUser("d")
	_, err := SeedTwoFAUser(ctx, testDB.DB, username, email, password, "987654321")
	require.NoError(t, err)

	resp, err := ts.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, nil)
	require.NoError(t, err)

	var login LoginResult
	require.NoError(t, ParseJSONResponse(resp, &login))
	require.True(t, login.ChallengeRequired)

	sent := ts.CodeSender.LastCode()
	require.NotNil(t, sent)

	verify := map[string]string{
		"pending_token": login.PendingToken,
		"code":          sent.Code,
	}

	resp, err = ts.Request(http.MethodPost, "/api/auth/verify-2fa", verify, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Replaying the same code against a consumed challenge fails
	resp, err = ts.Request(http.MethodPost, "/api/auth/verify-2fa", verify, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestTwoFAWrongCodeThenLockout(t *testing.T) {
	ts, testDB := setupAuthSuite(t)

	ctx := context.Background()
	username, email, password := TestUser("e")
	_, err := SeedTwoFAUser(ctx, testDB.DB, username, email, password, "555000111")
	require.NoError(t, err)

	resp, err := ts.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, nil)
	require.NoError(t, err)

	var login LoginResult
	require.NoError(t, ParseJSONResponse(resp, &login))
	require.True(t, login.ChallengeRequired)

	sent := ts.CodeSender.LastCode()
	require.NotNil(t, sent)

	// Pick a wrong code that cannot collide with the real one
	wrongCode := "000000"
	if sent.Code == wrongCode {
		wrongCode = "000001"
	}

	// First four mismatches are plain rejections
	for i := 0; i < 4; i++ {
		resp, err = ts.Request(http.MethodPost, "/api/auth/verify-2fa", map[string]string{
			"pending_token": login.PendingToken,
			"code":          wrongCode,
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	}

	// Fifth failure locks the challenge
	resp, err = ts.Request(http.MethodPost, "/api/auth/verify-2fa", map[string]string{
		"pending_token": login.PendingToken,
		"code":          wrongCode,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	resp.Body.Close()

	// Even the correct code is refused after lockout
	resp, err = ts.Request(http.MethodPost, "/api/auth/verify-2fa", map[string]string{
		"pending_token": login.PendingToken,
		"code":          sent.Code,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	resp.Body.Close()
}

func TestReloginReplacesChallenge(t *testing.T) {
	ts, testDB := setupAuthSuite(t)

	ctx := context.Background()
	username, email, password := TestUser("f")
	_, err := SeedTwoFAUser(ctx, testDB.DB, username, email, password, "424242")
	require.NoError(t, err)

	creds := map[string]string{"username": username, "password": password}

	resp, err := ts.Request(http.MethodPost, "/api/auth/login", creds, nil)
	require.NoError(t, err)
	var first LoginResult
	require.NoError(t, ParseJSONResponse(resp, &first))
	firstCode := ts.CodeSender.LastCode().Code

	// Logging in again issues a fresh challenge that replaces the old one
	resp, err = ts.Request(http.MethodPost, "/api/auth/login", creds, nil)
	require.NoError(t, err)
	var second LoginResult
	require.NoError(t, ParseJSONResponse(resp, &second))
	secondCode := ts.CodeSender.LastCode().Code

	// The first code no longer matches unless the codes happen to collide
	if firstCode != secondCode {
		resp, err = ts.Request(http.MethodPost, "/api/auth/verify-2fa", map[string]string{
			"pending_token": second.PendingToken,
			"code":          firstCode,
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	}

	// The fresh code works
	resp, err = ts.Request(http.MethodPost, "/api/auth/verify-2fa", map[string]string{
		"pending_token": second.PendingToken,
		"code":          secondCode,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
