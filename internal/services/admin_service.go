package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/toolforge/toolforge/internal/cache"
	"github.com/toolforge/toolforge/internal/models"
)

// AdminService handles moderation and administration
type AdminService struct {
	userRepo UserRepository
	toolRepo ToolRepository
	cache    *cache.Cache
	audit    *AuditService
	logger   *slog.Logger
}

// NewAdminService creates a new AdminService
func NewAdminService(userRepo UserRepository, toolRepo ToolRepository, c *cache.Cache, audit *AuditService, logger *slog.Logger) *AdminService {
	return &AdminService{
		userRepo: userRepo,
		toolRepo: toolRepo,
		cache:    c,
		audit:    audit,
		logger:   logger,
	}
}

// UserListResponse is a paginated user listing
type UserListResponse struct {
	Users []*UserResponse `json:"users"`
	Total int             `json:"total"`
	Skip  int             `json:"skip"`
	Limit int             `json:"limit"`
}

// OverviewStats is the admin dashboard summary
type OverviewStats struct {
	TotalUsers        int            `json:"total_users"`
	UsersByRole       map[string]int `json:"users_by_role"`
	TwoFAEnabledUsers int            `json:"two_fa_enabled_users"`
	TotalTools        int            `json:"total_tools"`
	ToolsByStatus     map[string]int `json:"tools_by_status"`
	ToolsByCategory   map[string]int `json:"tools_by_category"`
}

// overviewTTL bounds how stale the dashboard counts may get
const overviewTTL = 5 * time.Minute

// ListUsers returns users, optionally filtered by role
func (s *AdminService) ListUsers(ctx context.Context, role string, skip, limit int) (*UserListResponse, error) {
	users, err := s.userRepo.List(ctx, role, limit, skip)
	if err != nil {
		s.logger.Error("failed to list users", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	total, err := s.userRepo.Count(ctx)
	if err != nil {
		s.logger.Error("failed to count users", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	resp := &UserListResponse{
		Users: make([]*UserResponse, 0, len(users)),
		Total: total,
		Skip:  skip,
		Limit: limit,
	}
	for _, user := range users {
		resp.Users = append(resp.Users, userModelToResponse(user))
	}

	return resp, nil
}

// ChangeRole sets a user's role. Admins cannot change their own role, so
// the last admin cannot lock everyone out by demoting themselves.
func (s *AdminService) ChangeRole(ctx context.Context, actorID, targetID, role string) (*UserResponse, error) {
	if role != models.RoleUser && role != models.RoleModerator && role != models.RoleAdmin {
		return nil, models.ErrBadRequest
	}
	if actorID == targetID {
		return nil, models.ErrForbidden
	}

	updated, err := s.userRepo.UpdateRole(ctx, targetID, role)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to change role", slog.String("target_id", targetID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user role changed",
		slog.String("actor_id", actorID),
		slog.String("target_id", targetID),
		slog.String("role", role))
	s.audit.Record(ctx, actorID, models.AuditActionChangeRole, models.AuditEntityUser, targetID,
		models.AuditDetails{"role": role})

	return userModelToResponse(updated), nil
}

// ListPendingTools returns the moderation queue, oldest submissions last
func (s *AdminService) ListPendingTools(ctx context.Context, skip, limit int) (*ToolListResponse, error) {
	filter := models.ToolFilter{Status: models.StatusPending}

	tools, err := s.toolRepo.List(ctx, filter, limit, skip)
	if err != nil {
		s.logger.Error("failed to list pending tools", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	total, err := s.toolRepo.Count(ctx, filter)
	if err != nil {
		s.logger.Error("failed to count pending tools", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return toolListToResponse(tools, total, skip, limit), nil
}

// ApproveTool moves a pending tool into the public catalog
func (s *AdminService) ApproveTool(ctx context.Context, moderatorID, toolID string) (*ToolResponse, error) {
	tool, err := s.toolRepo.GetByID(ctx, toolID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get tool for approval", slog.String("tool_id", toolID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if tool.Status != models.StatusPending {
		return nil, models.ErrConflict
	}

	tool.Status = models.StatusApproved
	tool.ApprovedBy = &moderatorID
	tool.RejectionReason = nil

	updated, err := s.toolRepo.Update(ctx, tool)
	if err != nil {
		s.logger.Error("failed to approve tool", slog.String("tool_id", toolID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.cache.DeletePrefix("tools:")
	s.logger.Info("tool approved", slog.String("tool_id", toolID), slog.String("moderator_id", moderatorID))
	s.audit.Record(ctx, moderatorID, models.AuditActionApprove, models.AuditEntityTool, toolID, nil)

	return toolModelToResponse(updated), nil
}

// RejectTool declines a pending tool with a reason shown to the creator
func (s *AdminService) RejectTool(ctx context.Context, moderatorID, toolID, reason string) (*ToolResponse, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.ErrBadRequest
	}

	tool, err := s.toolRepo.GetByID(ctx, toolID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get tool for rejection", slog.String("tool_id", toolID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if tool.Status != models.StatusPending {
		return nil, models.ErrConflict
	}

	tool.Status = models.StatusRejected
	tool.ApprovedBy = nil
	tool.RejectionReason = &reason

	updated, err := s.toolRepo.Update(ctx, tool)
	if err != nil {
		s.logger.Error("failed to reject tool", slog.String("tool_id", toolID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.cache.DeletePrefix("tools:")
	s.logger.Info("tool rejected", slog.String("tool_id", toolID), slog.String("moderator_id", moderatorID))
	s.audit.Record(ctx, moderatorID, models.AuditActionReject, models.AuditEntityTool, toolID,
		models.AuditDetails{"reason": reason})

	return toolModelToResponse(updated), nil
}

// Overview returns the admin dashboard counts, cached briefly since every
// query behind it is a table scan
func (s *AdminService) Overview(ctx context.Context) (*OverviewStats, error) {
	if cached, ok := s.cache.Get("tools:overview"); ok {
		if stats, ok := cached.(*OverviewStats); ok {
			return stats, nil
		}
	}

	totalUsers, err := s.userRepo.Count(ctx)
	if err != nil {
		s.logger.Error("failed to count users for overview", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	byRole, err := s.userRepo.CountByRole(ctx)
	if err != nil {
		s.logger.Error("failed to count users by role for overview", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	twoFAUsers, err := s.userRepo.CountTwoFAEnabled(ctx)
	if err != nil {
		s.logger.Error("failed to count 2fa users for overview", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	byStatus, err := s.toolRepo.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("failed to count tools for overview", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	byCategory, err := s.toolRepo.CountByCategory(ctx)
	if err != nil {
		s.logger.Error("failed to count tool categories for overview", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	totalTools := 0
	for _, n := range byStatus {
		totalTools += n
	}

	stats := &OverviewStats{
		TotalUsers:        totalUsers,
		UsersByRole:       byRole,
		TwoFAEnabledUsers: twoFAUsers,
		TotalTools:        totalTools,
		ToolsByStatus:     byStatus,
		ToolsByCategory:   byCategory,
	}

	s.cache.Set("tools:overview", stats, overviewTTL)
	return stats, nil
}
