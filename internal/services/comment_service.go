package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/toolforge/toolforge/internal/cache"
	"github.com/toolforge/toolforge/internal/models"
)

// CommentRepository defines the interface for comment persistence
type CommentRepository interface {
	GetByID(ctx context.Context, id, viewerID string) (*models.Comment, error)
	ListByTool(ctx context.Context, toolID, viewerID string, limit, offset int) ([]*models.Comment, error)
	Create(ctx context.Context, comment *models.Comment) (*models.Comment, error)
	Update(ctx context.Context, id, userID, content string) (*models.Comment, error)
	Delete(ctx context.Context, id string) error
	Vote(ctx context.Context, commentID, userID, voteType string) error
}

const maxCommentLength = 2000

// CommentService handles tool comment business logic
type CommentService struct {
	repo     CommentRepository
	toolRepo ToolRepository
	cache    *cache.Cache
	audit    *AuditService
	logger   *slog.Logger
}

// NewCommentService creates a new CommentService
func NewCommentService(repo CommentRepository, toolRepo ToolRepository, c *cache.Cache, audit *AuditService, logger *slog.Logger) *CommentService {
	return &CommentService{
		repo:     repo,
		toolRepo: toolRepo,
		cache:    c,
		audit:    audit,
		logger:   logger,
	}
}

// CommentResponse represents a comment in the HTTP response
type CommentResponse struct {
	ID        string  `json:"id"`
	ToolID    string  `json:"tool_id"`
	UserID    string  `json:"user_id"`
	Username  string  `json:"username"`
	Content   string  `json:"content"`
	Upvotes   int     `json:"upvotes"`
	Downvotes int     `json:"downvotes"`
	UserVote  *string `json:"user_vote"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// ListByTool returns a tool's comments, newest first. viewerID may be
// empty; it only affects the per-comment user_vote field.
func (s *CommentService) ListByTool(ctx context.Context, toolID, viewerID string, skip, limit int) ([]*CommentResponse, error) {
	if err := s.requireApprovedTool(ctx, toolID); err != nil {
		return nil, err
	}

	comments, err := s.repo.ListByTool(ctx, toolID, viewerID, limit, skip)
	if err != nil {
		s.logger.Error("failed to list comments", slog.String("tool_id", toolID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	resp := make([]*CommentResponse, 0, len(comments))
	for _, comment := range comments {
		resp = append(resp, commentModelToResponse(comment))
	}
	return resp, nil
}

// Create posts a comment on an approved tool
func (s *CommentService) Create(ctx context.Context, toolID, userID, content string) (*CommentResponse, error) {
	content = strings.TrimSpace(content)
	if content == "" || len(content) > maxCommentLength {
		return nil, models.ErrBadRequest
	}

	if err := s.requireApprovedTool(ctx, toolID); err != nil {
		return nil, err
	}

	comment, err := s.repo.Create(ctx, &models.Comment{
		ToolID:  toolID,
		UserID:  userID,
		Content: content,
	})
	if err != nil {
		s.logger.Error("failed to create comment", slog.String("tool_id", toolID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.cache.DeletePrefix("comments:" + toolID + ":")
	s.audit.Record(ctx, userID, models.AuditActionCreate, models.AuditEntityComment, comment.ID,
		models.AuditDetails{"tool_id": toolID})

	return commentModelToResponse(comment), nil
}

// Update edits the caller's own comment
func (s *CommentService) Update(ctx context.Context, commentID, userID, content string) (*CommentResponse, error) {
	content = strings.TrimSpace(content)
	if content == "" || len(content) > maxCommentLength {
		return nil, models.ErrBadRequest
	}

	comment, err := s.repo.Update(ctx, commentID, userID, content)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to update comment", slog.String("comment_id", commentID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.cache.DeletePrefix("comments:" + comment.ToolID + ":")
	s.audit.Record(ctx, userID, models.AuditActionUpdate, models.AuditEntityComment, commentID, nil)

	return commentModelToResponse(comment), nil
}

// Delete removes a comment. The author may delete their own; moderators
// may delete any.
func (s *CommentService) Delete(ctx context.Context, commentID string, actor *models.User) error {
	comment, err := s.repo.GetByID(ctx, commentID, "")
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get comment for delete", slog.String("comment_id", commentID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if comment.UserID != actor.ID && !actor.CanModerate() {
		return models.ErrForbidden
	}

	if err := s.repo.Delete(ctx, commentID); err != nil {
		s.logger.Error("failed to delete comment", slog.String("comment_id", commentID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.cache.DeletePrefix("comments:" + comment.ToolID + ":")
	s.audit.Record(ctx, actor.ID, models.AuditActionDelete, models.AuditEntityComment, commentID,
		models.AuditDetails{"tool_id": comment.ToolID})

	return nil
}

// Vote records an up/down vote on a comment. Repeating a vote retracts
// it; voting the other way flips it.
func (s *CommentService) Vote(ctx context.Context, commentID, userID, voteType string) (*CommentResponse, error) {
	if voteType != models.VoteUp && voteType != models.VoteDown {
		return nil, models.ErrBadRequest
	}

	comment, err := s.repo.GetByID(ctx, commentID, "")
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get comment for vote", slog.String("comment_id", commentID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.repo.Vote(ctx, commentID, userID, voteType); err != nil {
		s.logger.Error("failed to record vote", slog.String("comment_id", commentID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.cache.DeletePrefix("comments:" + comment.ToolID + ":")

	updated, err := s.repo.GetByID(ctx, commentID, userID)
	if err != nil {
		s.logger.Error("failed to reload comment after vote", slog.String("comment_id", commentID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return commentModelToResponse(updated), nil
}

func (s *CommentService) requireApprovedTool(ctx context.Context, toolID string) error {
	tool, err := s.toolRepo.GetByID(ctx, toolID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get tool for comment", slog.String("tool_id", toolID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	if tool.Status != models.StatusApproved {
		return models.ErrNotFound
	}
	return nil
}

func commentModelToResponse(comment *models.Comment) *CommentResponse {
	return &CommentResponse{
		ID:        comment.ID,
		ToolID:    comment.ToolID,
		UserID:    comment.UserID,
		Username:  comment.Username,
		Content:   comment.Content,
		Upvotes:   comment.Upvotes,
		Downvotes: comment.Downvotes,
		UserVote:  comment.UserVote,
		CreatedAt: comment.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: comment.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
