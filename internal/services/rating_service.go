package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/toolforge/toolforge/internal/cache"
	"github.com/toolforge/toolforge/internal/models"
)

// RatingRepository defines the interface for rating persistence
type RatingRepository interface {
	Upsert(ctx context.Context, toolID, userID string, value int) (*models.Rating, error)
	GetByToolAndUser(ctx context.Context, toolID, userID string) (*models.Rating, error)
	ListByTool(ctx context.Context, toolID string, limit, offset int) ([]*models.Rating, error)
	CountByTool(ctx context.Context, toolID string) (int, error)
	Delete(ctx context.Context, toolID, userID string) error
	Stats(ctx context.Context, toolID string) (*models.RatingStats, error)
}

// RatingService handles tool rating business logic
type RatingService struct {
	repo     RatingRepository
	toolRepo ToolRepository
	cache    *cache.Cache
	audit    *AuditService
	logger   *slog.Logger
	statsTTL time.Duration
}

// NewRatingService creates a new RatingService
func NewRatingService(repo RatingRepository, toolRepo ToolRepository, c *cache.Cache, audit *AuditService, logger *slog.Logger, statsTTL time.Duration) *RatingService {
	return &RatingService{
		repo:     repo,
		toolRepo: toolRepo,
		cache:    c,
		audit:    audit,
		logger:   logger,
		statsTTL: statsTTL,
	}
}

// RatingResponse represents a rating in the HTTP response
type RatingResponse struct {
	ID        string `json:"id"`
	ToolID    string `json:"tool_id"`
	UserID    string `json:"user_id"`
	Username  string `json:"username,omitempty"`
	Rating    int    `json:"rating"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// RatingListResponse is a paginated listing of a tool's ratings
type RatingListResponse struct {
	Ratings []*RatingResponse `json:"ratings"`
	Total   int               `json:"total"`
	Skip    int               `json:"skip"`
	Limit   int               `json:"limit"`
}

// Rate records or replaces the user's 1-5 star rating on an approved tool
func (s *RatingService) Rate(ctx context.Context, toolID, userID string, value int) (*RatingResponse, error) {
	if value < 1 || value > 5 {
		return nil, models.ErrBadRequest
	}

	if err := s.requireApprovedTool(ctx, toolID); err != nil {
		return nil, err
	}

	rating, err := s.repo.Upsert(ctx, toolID, userID, value)
	if err != nil {
		s.logger.Error("failed to upsert rating", slog.String("tool_id", toolID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.invalidate(toolID)
	s.audit.Record(ctx, userID, models.AuditActionCreate, models.AuditEntityRating, rating.ID,
		models.AuditDetails{"tool_id": toolID, "rating": value})

	return ratingModelToResponse(rating), nil
}

// GetOwn returns the caller's rating for a tool, if any
func (s *RatingService) GetOwn(ctx context.Context, toolID, userID string) (*RatingResponse, error) {
	rating, err := s.repo.GetByToolAndUser(ctx, toolID, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get rating", slog.String("tool_id", toolID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return ratingModelToResponse(rating), nil
}

// ListByTool returns a tool's individual ratings, newest first
func (s *RatingService) ListByTool(ctx context.Context, toolID string, skip, limit int) (*RatingListResponse, error) {
	if err := s.requireApprovedTool(ctx, toolID); err != nil {
		return nil, err
	}

	ratings, err := s.repo.ListByTool(ctx, toolID, limit, skip)
	if err != nil {
		s.logger.Error("failed to list ratings", slog.String("tool_id", toolID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	total, err := s.repo.CountByTool(ctx, toolID)
	if err != nil {
		s.logger.Error("failed to count ratings", slog.String("tool_id", toolID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	resp := &RatingListResponse{
		Ratings: make([]*RatingResponse, 0, len(ratings)),
		Total:   total,
		Skip:    skip,
		Limit:   limit,
	}
	for _, rating := range ratings {
		resp.Ratings = append(resp.Ratings, ratingModelToResponse(rating))
	}

	return resp, nil
}

// Remove deletes the caller's rating for a tool
func (s *RatingService) Remove(ctx context.Context, toolID, userID string) error {
	if err := s.repo.Delete(ctx, toolID, userID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to delete rating", slog.String("tool_id", toolID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.invalidate(toolID)
	s.audit.Record(ctx, userID, models.AuditActionDelete, models.AuditEntityRating, "",
		models.AuditDetails{"tool_id": toolID})

	return nil
}

// Stats returns the aggregate rating view for a tool, cached per tool
func (s *RatingService) Stats(ctx context.Context, toolID string) (*models.RatingStats, error) {
	key := "rating:stats:" + toolID
	if cached, ok := s.cache.Get(key); ok {
		if stats, ok := cached.(*models.RatingStats); ok {
			return stats, nil
		}
	}

	if err := s.requireApprovedTool(ctx, toolID); err != nil {
		return nil, err
	}

	stats, err := s.repo.Stats(ctx, toolID)
	if err != nil {
		s.logger.Error("failed to compute rating stats", slog.String("tool_id", toolID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.cache.Set(key, stats, s.statsTTL)
	return stats, nil
}

func (s *RatingService) requireApprovedTool(ctx context.Context, toolID string) error {
	tool, err := s.toolRepo.GetByID(ctx, toolID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get tool for rating", slog.String("tool_id", toolID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	if tool.Status != models.StatusApproved {
		return models.ErrNotFound
	}
	return nil
}

func (s *RatingService) invalidate(toolID string) {
	s.cache.Delete("rating:stats:" + toolID)
	s.cache.DeletePrefix("tools:")
}

func ratingModelToResponse(rating *models.Rating) *RatingResponse {
	return &RatingResponse{
		ID:        rating.ID,
		ToolID:    rating.ToolID,
		UserID:    rating.UserID,
		Username:  rating.Username,
		Rating:    rating.Rating,
		CreatedAt: rating.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: rating.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
