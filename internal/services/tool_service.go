package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/toolforge/toolforge/internal/cache"
	"github.com/toolforge/toolforge/internal/models"
)

// ToolRepository defines the interface for tool persistence
type ToolRepository interface {
	GetByID(ctx context.Context, id string) (*models.Tool, error)
	List(ctx context.Context, filter models.ToolFilter, limit, offset int) ([]*models.Tool, error)
	Count(ctx context.Context, filter models.ToolFilter) (int, error)
	Create(ctx context.Context, tool *models.Tool) (*models.Tool, error)
	Update(ctx context.Context, tool *models.Tool) (*models.Tool, error)
	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context) (map[string]int, error)
	CountByCategory(ctx context.Context) (map[string]int, error)
}

// ToolService handles catalog business logic
type ToolService struct {
	repo     ToolRepository
	cache    *cache.Cache
	audit    *AuditService
	logger   *slog.Logger
	statsTTL time.Duration
}

// NewToolService creates a new ToolService
func NewToolService(repo ToolRepository, c *cache.Cache, audit *AuditService, logger *slog.Logger, statsTTL time.Duration) *ToolService {
	return &ToolService{
		repo:     repo,
		cache:    c,
		audit:    audit,
		logger:   logger,
		statsTTL: statsTTL,
	}
}

// ToolResponse represents a tool in the HTTP response
type ToolResponse struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	Category         string   `json:"category"`
	Status           string   `json:"status"`
	URL              string   `json:"url,omitempty"`
	CreatedBy        string   `json:"created_by"`
	CreatorUsername  string   `json:"creator_username"`
	ApprovedBy       *string  `json:"approved_by,omitempty"`
	ApproverUsername *string  `json:"approver_username,omitempty"`
	RejectionReason  *string  `json:"rejection_reason,omitempty"`
	AverageRating    *float64 `json:"average_rating"`
	TotalRatings     int      `json:"total_ratings"`
	CreatedAt        string   `json:"created_at"`
	UpdatedAt        string   `json:"updated_at"`
}

// ToolListResponse is a paginated tool listing
type ToolListResponse struct {
	Tools []*ToolResponse `json:"tools"`
	Total int             `json:"total"`
	Skip  int             `json:"skip"`
	Limit int             `json:"limit"`
}

// ToolStats is the catalog overview served by /api/tools/stats
type ToolStats struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"by_status"`
	ByCategory map[string]int `json:"by_category"`
}

// CreateToolInput carries validated fields for a new tool
type CreateToolInput struct {
	Name        string
	Description string
	Category    string
	URL         string
}

// UpdateToolInput carries optional fields for a tool update
type UpdateToolInput struct {
	Name        *string
	Description *string
	Category    *string
	URL         *string
}

// List returns approved tools matching the filter. Moderators may pass an
// explicit status to see pending or rejected entries.
func (s *ToolService) List(ctx context.Context, filter models.ToolFilter, viewer *models.User, skip, limit int) (*ToolListResponse, error) {
	// Non-moderators only ever see the approved catalog
	if viewer == nil || !viewer.CanModerate() {
		filter.Status = models.StatusApproved
	} else if filter.Status == "" {
		filter.Status = models.StatusApproved
	}

	tools, err := s.repo.List(ctx, filter, limit, skip)
	if err != nil {
		s.logger.Error("failed to list tools", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		s.logger.Error("failed to count tools", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return toolListToResponse(tools, total, skip, limit), nil
}

// ListMine returns every tool the user submitted, whatever its status.
func (s *ToolService) ListMine(ctx context.Context, userID string, skip, limit int) (*ToolListResponse, error) {
	filter := models.ToolFilter{CreatedBy: userID}

	tools, err := s.repo.List(ctx, filter, limit, skip)
	if err != nil {
		s.logger.Error("failed to list own tools", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		s.logger.Error("failed to count own tools", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return toolListToResponse(tools, total, skip, limit), nil
}

// Get returns a single tool. Pending and rejected tools are only visible
// to their creator and to moderators.
func (s *ToolService) Get(ctx context.Context, id string, viewer *models.User) (*ToolResponse, error) {
	tool, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get tool", slog.String("tool_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if tool.Status != models.StatusApproved {
		if viewer == nil || (tool.CreatedBy != viewer.ID && !viewer.CanModerate()) {
			return nil, models.ErrNotFound
		}
	}

	return toolModelToResponse(tool), nil
}

// Create submits a new tool. It enters the moderation queue as pending.
func (s *ToolService) Create(ctx context.Context, userID string, input CreateToolInput) (*ToolResponse, error) {
	if !models.ValidCategory(input.Category) {
		return nil, models.ErrBadRequest
	}

	tool, err := s.repo.Create(ctx, &models.Tool{
		Name:        input.Name,
		Description: input.Description,
		Category:    input.Category,
		URL:         input.URL,
		Status:      models.StatusPending,
		CreatedBy:   userID,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create tool", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.invalidateCatalog()
	s.logger.Info("tool submitted", slog.String("tool_id", tool.ID), slog.String("user_id", userID))
	s.audit.Record(ctx, userID, models.AuditActionCreate, models.AuditEntityTool, tool.ID,
		models.AuditDetails{"name": tool.Name})

	return toolModelToResponse(tool), nil
}

// Update edits a tool. Only the creator or a moderator may edit; edits by
// the creator send an approved tool back to the moderation queue.
func (s *ToolService) Update(ctx context.Context, id string, actor *models.User, input UpdateToolInput) (*ToolResponse, error) {
	tool, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get tool for update", slog.String("tool_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if tool.CreatedBy != actor.ID && !actor.CanModerate() {
		return nil, models.ErrForbidden
	}

	if input.Name != nil {
		tool.Name = *input.Name
	}
	if input.Description != nil {
		tool.Description = *input.Description
	}
	if input.Category != nil {
		if !models.ValidCategory(*input.Category) {
			return nil, models.ErrBadRequest
		}
		tool.Category = *input.Category
	}
	if input.URL != nil {
		tool.URL = *input.URL
	}

	// A creator edit re-enters moderation; a moderator edit does not
	if !actor.CanModerate() && tool.Status == models.StatusApproved {
		tool.Status = models.StatusPending
		tool.ApprovedBy = nil
	}

	updated, err := s.repo.Update(ctx, tool)
	if err != nil {
		s.logger.Error("failed to update tool", slog.String("tool_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.invalidateCatalog()
	s.audit.Record(ctx, actor.ID, models.AuditActionUpdate, models.AuditEntityTool, id, nil)

	return toolModelToResponse(updated), nil
}

// Delete removes a tool. Only the creator or a moderator may delete.
func (s *ToolService) Delete(ctx context.Context, id string, actor *models.User) error {
	tool, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get tool for delete", slog.String("tool_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if tool.CreatedBy != actor.ID && !actor.CanModerate() {
		return models.ErrForbidden
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error("failed to delete tool", slog.String("tool_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.invalidateCatalog()
	s.logger.Info("tool deleted", slog.String("tool_id", id), slog.String("user_id", actor.ID))
	s.audit.Record(ctx, actor.ID, models.AuditActionDelete, models.AuditEntityTool, id,
		models.AuditDetails{"name": tool.Name})

	return nil
}

// Stats returns catalog counts, cached for the configured TTL.
func (s *ToolService) Stats(ctx context.Context) (*ToolStats, error) {
	if cached, ok := s.cache.Get("tools:stats"); ok {
		if stats, ok := cached.(*ToolStats); ok {
			return stats, nil
		}
	}

	byStatus, err := s.repo.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("failed to compute tool stats", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	byCategory, err := s.repo.CountByCategory(ctx)
	if err != nil {
		s.logger.Error("failed to compute category stats", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	total := 0
	for _, n := range byStatus {
		total += n
	}

	stats := &ToolStats{
		Total:      total,
		ByStatus:   byStatus,
		ByCategory: byCategory,
	}

	s.cache.Set("tools:stats", stats, s.statsTTL)
	return stats, nil
}

// invalidateCatalog drops every cached value derived from the tools table
func (s *ToolService) invalidateCatalog() {
	s.cache.DeletePrefix("tools:")
}

func toolModelToResponse(tool *models.Tool) *ToolResponse {
	return &ToolResponse{
		ID:               tool.ID,
		Name:             tool.Name,
		Description:      tool.Description,
		Category:         tool.Category,
		Status:           tool.Status,
		URL:              tool.URL,
		CreatedBy:        tool.CreatedBy,
		CreatorUsername:  tool.CreatorUsername,
		ApprovedBy:       tool.ApprovedBy,
		ApproverUsername: tool.ApproverUsername,
		RejectionReason:  tool.RejectionReason,
		AverageRating:    tool.AverageRating,
		TotalRatings:     tool.TotalRatings,
		CreatedAt:        tool.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:        tool.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func toolListToResponse(tools []*models.Tool, total, skip, limit int) *ToolListResponse {
	resp := &ToolListResponse{
		Tools: make([]*ToolResponse, 0, len(tools)),
		Total: total,
		Skip:  skip,
		Limit: limit,
	}
	for _, tool := range tools {
		resp.Tools = append(resp.Tools, toolModelToResponse(tool))
	}
	return resp
}
