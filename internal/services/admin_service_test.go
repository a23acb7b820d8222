package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toolforge/toolforge/internal/cache"
	"github.com/toolforge/toolforge/internal/models"
	pkglogger "github.com/toolforge/toolforge/pkg/logger"
)

type adminFixture struct {
	service  *AdminService
	userRepo *MockUserRepository
	toolRepo *MockToolRepository
	auditLog *MockAuditLogRepository
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()

	logger := discardLogger()
	c := cache.New(time.Minute)
	t.Cleanup(c.Close)

	auditRepo := &MockAuditLogRepository{}
	audit := NewAuditService(auditRepo, logger, pkglogger.NewAuditLogger(logger))
	userRepo := &MockUserRepository{}
	toolRepo := &MockToolRepository{}

	return &adminFixture{
		service:  NewAdminService(userRepo, toolRepo, c, audit, logger),
		userRepo: userRepo,
		toolRepo: toolRepo,
		auditLog: auditRepo,
	}
}

func TestChangeRole(t *testing.T) {
	f := newAdminFixture(t)

	f.userRepo.UpdateRoleFunc = func(ctx context.Context, id, role string) (*models.User, error) {
		return &models.User{ID: id, Username: "bob", Role: role}, nil
	}

	t.Run("promotes to moderator", func(t *testing.T) {
		resp, err := f.service.ChangeRole(context.Background(), "admin-id", "bob-id", models.RoleModerator)
		require.NoError(t, err)
		assert.Equal(t, models.RoleModerator, resp.Role)
	})

	t.Run("own role is off limits", func(t *testing.T) {
		_, err := f.service.ChangeRole(context.Background(), "admin-id", "admin-id", models.RoleUser)
		assert.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("unknown role", func(t *testing.T) {
		_, err := f.service.ChangeRole(context.Background(), "admin-id", "bob-id", "superuser")
		assert.ErrorIs(t, err, models.ErrBadRequest)
	})

	t.Run("missing target", func(t *testing.T) {
		f.userRepo.UpdateRoleFunc = func(ctx context.Context, id, role string) (*models.User, error) {
			return nil, models.ErrNotFound
		}
		_, err := f.service.ChangeRole(context.Background(), "admin-id", "ghost", models.RoleModerator)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestApproveTool(t *testing.T) {
	f := newAdminFixture(t)

	pending := approvedTool("t1", "creator")
	pending.Status = models.StatusPending

	f.toolRepo.GetByIDFunc = func(ctx context.Context, id string) (*models.Tool, error) {
		return pending, nil
	}
	f.toolRepo.UpdateFunc = func(ctx context.Context, tool *models.Tool) (*models.Tool, error) {
		return tool, nil
	}

	t.Run("success", func(t *testing.T) {
		resp, err := f.service.ApproveTool(context.Background(), "mod-id", "t1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusApproved, resp.Status)
		require.NotNil(t, resp.ApprovedBy)
		assert.Equal(t, "mod-id", *resp.ApprovedBy)
	})

	t.Run("already decided", func(t *testing.T) {
		decided := approvedTool("t2", "creator")
		f.toolRepo.GetByIDFunc = func(ctx context.Context, id string) (*models.Tool, error) {
			return decided, nil
		}
		_, err := f.service.ApproveTool(context.Background(), "mod-id", "t2")
		assert.ErrorIs(t, err, models.ErrConflict)
	})
}

func TestRejectTool(t *testing.T) {
	f := newAdminFixture(t)

	f.toolRepo.UpdateFunc = func(ctx context.Context, tool *models.Tool) (*models.Tool, error) {
		return tool, nil
	}

	t.Run("requires a reason", func(t *testing.T) {
		_, err := f.service.RejectTool(context.Background(), "mod-id", "t1", "  ")
		assert.ErrorIs(t, err, models.ErrBadRequest)
	})

	t.Run("records the reason", func(t *testing.T) {
		pending := approvedTool("t1", "creator")
		pending.Status = models.StatusPending
		f.toolRepo.GetByIDFunc = func(ctx context.Context, id string) (*models.Tool, error) {
			return pending, nil
		}

		resp, err := f.service.RejectTool(context.Background(), "mod-id", "t1", "duplicate of an existing entry")
		require.NoError(t, err)
		assert.Equal(t, models.StatusRejected, resp.Status)
		require.NotNil(t, resp.RejectionReason)
		assert.Equal(t, "duplicate of an existing entry", *resp.RejectionReason)
	})
}

func TestOverview(t *testing.T) {
	f := newAdminFixture(t)

	f.userRepo.CountFunc = func(ctx context.Context) (int, error) { return 12, nil }
	f.userRepo.CountByRoleFunc = func(ctx context.Context) (map[string]int, error) {
		return map[string]int{
			models.RoleUser:      10,
			models.RoleModerator: 1,
			models.RoleAdmin:     1,
		}, nil
	}
	f.userRepo.CountTwoFAEnabledFunc = func(ctx context.Context) (int, error) { return 4, nil }
	f.toolRepo.CountByStatusFunc = func(ctx context.Context) (map[string]int, error) {
		return map[string]int{
			models.StatusApproved: 7,
			models.StatusPending:  2,
			models.StatusRejected: 1,
		}, nil
	}

	stats, err := f.service.Overview(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 12, stats.TotalUsers)
	assert.Equal(t, 10, stats.UsersByRole[models.RoleUser])
	assert.Equal(t, 4, stats.TwoFAEnabledUsers)
	assert.Equal(t, 10, stats.TotalTools)
	assert.Equal(t, 2, stats.ToolsByStatus[models.StatusPending])
}
