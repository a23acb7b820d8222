package integration

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolforge/toolforge/internal/models"
)

// loginAs logs a seeded user in and returns their access token
func loginAs(t *testing.T, ts *TestServer, username, password string) string {
	t.Helper()

	resp, err := ts.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var login LoginResult
	require.NoError(t, ParseJSONResponse(resp, &login))
	require.NotEmpty(t, login.AccessToken)

	return login.AccessToken
}

type toolResponse struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Status          string   `json:"status"`
	RejectionReason *string  `json:"rejection_reason"`
	AverageRating   *float64 `json:"average_rating"`
	TotalRatings    int      `json:"total_ratings"`
}

func TestToolModerationLifecycle(t *testing.T) {
	ts, testDB := setupAuthSuite(t)

	ctx := context.Background()

	authorName, authorEmail, password := TestUser("author")
	_, err := SeedUser(ctx, testDB.DB, authorName, authorEmail, password, models.RoleUser)
	require.NoError(t, err)

	modName, modEmail, _ := TestUser("mod")
	_, err = SeedUser(ctx, testDB.DB, modName, modEmail, password, models.RoleModerator)
	require.NoError(t, err)

	readerName, readerEmail, _ := TestUser("reader")
	_, err = SeedUser(ctx, testDB.DB, readerName, readerEmail, password, models.RoleUser)
	require.NoError(t, err)

	authorToken := loginAs(t, ts, authorName, password)
	modToken := loginAs(t, ts, modName, password)
	readerToken := loginAs(t, ts, readerName, password)

	// Author submits a tool; it lands in pending
	resp, err := ts.RequestWithAuth(http.MethodPost, "/api/tools", authorToken, map[string]string{
		"name":        "Terraform",
		"description": "Infrastructure as code for cloud resources",
		"category":    models.CategoryDevelopment,
		"url":         "https://terraform.io",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var tool toolResponse
	require.NoError(t, ParseJSONResponse(resp, &tool))
	assert.Equal(t, models.StatusPending, tool.Status)

	// Other users cannot see a pending tool
	resp, err = ts.RequestWithAuth(http.MethodGet, "/api/tools/"+tool.ID, readerToken, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// The author still can
	resp, err = ts.RequestWithAuth(http.MethodGet, "/api/tools/"+tool.ID, authorToken, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// A regular user cannot approve
	resp, err = ts.RequestWithAuth(http.MethodPost, "/api/admin/tools/"+tool.ID+"/approve", readerToken, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// Moderator sees it in the pending queue and approves it
	resp, err = ts.RequestWithAuth(http.MethodGet, "/api/admin/tools/pending", modToken, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = ts.RequestWithAuth(http.MethodPost, "/api/admin/tools/"+tool.ID+"/approve", modToken, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var approved toolResponse
	require.NoError(t, ParseJSONResponse(resp, &approved))
	assert.Equal(t, models.StatusApproved, approved.Status)

	// Approving twice is a conflict
	resp, err = ts.RequestWithAuth(http.MethodPost, "/api/admin/tools/"+tool.ID+"/approve", modToken, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// Now everyone can see it
	resp, err = ts.RequestWithAuth(http.MethodGet, "/api/tools/"+tool.ID, readerToken, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestToolRejectionRequiresReason(t *testing.T) {
	ts, testDB := setupAuthSuite(t)

	ctx := context.Background()

	authorName, authorEmail, password := TestUser("author")
	_, err := SeedUser(ctx, testDB.DB, authorName, authorEmail, password, models.RoleUser)
	require.NoError(t, err)

	modName, modEmail, _ := TestUser("mod")
	_, err = SeedUser(ctx, testDB.DB, modName, modEmail, password, models.RoleModerator)
	require.NoError(t, err)

	authorToken := loginAs(t, ts, authorName, password)
	modToken := loginAs(t, ts, modName, password)

	resp, err := ts.RequestWithAuth(http.MethodPost, "/api/tools", authorToken, map[string]string{
		"name":        "SketchyTool",
		"description": "A tool of questionable provenance",
		"category":    models.CategoryOther,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var tool toolResponse
	require.NoError(t, ParseJSONResponse(resp, &tool))

	// Rejection without a reason is invalid
	resp, err = ts.RequestWithAuth(http.MethodPost, "/api/admin/tools/"+tool.ID+"/reject", modToken, map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err = ts.RequestWithAuth(http.MethodPost, "/api/admin/tools/"+tool.ID+"/reject", modToken, map[string]string{
		"reason": "duplicate of an existing listing",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var rejected toolResponse
	require.NoError(t, ParseJSONResponse(resp, &rejected))
	assert.Equal(t, models.StatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "duplicate of an existing listing", *rejected.RejectionReason)
}

func TestRatingsAndComments(t *testing.T) {
	ts, testDB := setupAuthSuite(t)

	ctx := context.Background()

	authorName, authorEmail, password := TestUser("author")
	_, err := SeedUser(ctx, testDB.DB, authorName, authorEmail, password, models.RoleUser)
	require.NoError(t, err)

	modName, modEmail, _ := TestUser("mod")
	_, err = SeedUser(ctx, testDB.DB, modName, modEmail, password, models.RoleModerator)
	require.NoError(t, err)

	raterName, raterEmail, _ := TestUser("rater")
	_, err = SeedUser(ctx, testDB.DB, raterName, raterEmail, password, models.RoleUser)
	require.NoError(t, err)

	authorToken := loginAs(t, ts, authorName, password)
	modToken := loginAs(t, ts, modName, password)
	raterToken := loginAs(t, ts, raterName, password)

	// Seed an approved tool through the normal flow
	resp, err := ts.RequestWithAuth(http.MethodPost, "/api/tools", authorToken, map[string]string{
		"name":        "Grafana",
		"description": "Dashboards and visualization for metrics",
		"category":    models.CategoryAnalytics,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var tool toolResponse
	require.NoError(t, ParseJSONResponse(resp, &tool))

	resp, err = ts.RequestWithAuth(http.MethodPost, "/api/admin/tools/"+tool.ID+"/approve", modToken, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Rate it twice from the same user; the second rating replaces the first
	for _, rating := range []int{3, 5} {
		resp, err = ts.RequestWithAuth(http.MethodPost, fmt.Sprintf("/api/tools/%s/rating", tool.ID), raterToken, map[string]int{
			"rating": rating,
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	resp, err = ts.RequestWithAuth(http.MethodGet, fmt.Sprintf("/api/tools/%s/rating/stats", tool.ID), raterToken, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var stats struct {
		AverageRating float64        `json:"average_rating"`
		TotalRatings  int            `json:"total_ratings"`
		Distribution  map[string]int `json:"rating_distribution"`
	}
	require.NoError(t, ParseJSONResponse(resp, &stats))
	assert.Equal(t, 1, stats.TotalRatings)
	assert.InDelta(t, 5.0, stats.AverageRating, 0.001)
	assert.Equal(t, 1, stats.Distribution["5"])

	// Out-of-range ratings are rejected
	resp, err = ts.RequestWithAuth(http.MethodPost, fmt.Sprintf("/api/tools/%s/rating", tool.ID), raterToken, map[string]int{
		"rating": 6,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Comment and vote on it
	resp, err = ts.RequestWithAuth(http.MethodPost, fmt.Sprintf("/api/tools/%s/comments", tool.ID), raterToken, map[string]string{
		"content": "Indispensable for on-call dashboards.",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var comment struct {
		ID        string `json:"id"`
		Upvotes   int    `json:"upvotes"`
		Downvotes int    `json:"downvotes"`
	}
	require.NoError(t, ParseJSONResponse(resp, &comment))

	resp, err = ts.RequestWithAuth(http.MethodPost, "/api/comments/"+comment.ID+"/vote", authorToken, map[string]string{
		"vote_type": "up",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var voted struct {
		Upvotes   int `json:"upvotes"`
		Downvotes int `json:"downvotes"`
	}
	require.NoError(t, ParseJSONResponse(resp, &voted))
	assert.Equal(t, 1, voted.Upvotes)

	// Voting the same direction again retracts the vote
	resp, err = ts.RequestWithAuth(http.MethodPost, "/api/comments/"+comment.ID+"/vote", authorToken, map[string]string{
		"vote_type": "up",
	})
	require.NoError(t, err)
	require.NoError(t, ParseJSONResponse(resp, &voted))
	assert.Equal(t, 0, voted.Upvotes)
}
