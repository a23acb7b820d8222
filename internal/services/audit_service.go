package services

import (
	"context"
	"log/slog"

	"github.com/toolforge/toolforge/internal/models"
	pkglogger "github.com/toolforge/toolforge/pkg/logger"
)

// AuditLogRepository defines the interface for audit log persistence
type AuditLogRepository interface {
	Create(ctx context.Context, log *models.AuditLog) (*models.AuditLog, error)
	List(ctx context.Context, filter models.AuditFilter, limit, offset int) ([]*models.AuditLog, error)
	Count(ctx context.Context, filter models.AuditFilter) (int, error)
}

// AuditService records security-relevant events twice: once through slog
// for immediate visibility and once in Postgres for the admin panel.
// Persistence failures are logged but never fail the calling operation.
type AuditService struct {
	repo        AuditLogRepository
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuditService creates a new AuditService
func NewAuditService(repo AuditLogRepository, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AuditService {
	return &AuditService{
		repo:        repo,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Record persists an audit event. userID may be empty for anonymous
// events (e.g. a failed login for an unknown username).
func (s *AuditService) Record(ctx context.Context, userID, action, entityType, entityID string, details models.AuditDetails) {
	log := &models.AuditLog{
		Action:     action,
		EntityType: entityType,
		Details:    details,
	}
	if userID != "" {
		log.UserID = &userID
	}
	if entityID != "" {
		log.EntityID = &entityID
	}

	if _, err := s.repo.Create(ctx, log); err != nil {
		s.logger.Error("failed to persist audit log",
			slog.String("action", action),
			slog.String("entity_type", entityType),
			slog.Any("error", err))
	}

	metadata := map[string]string{"entity_type": entityType}
	if entityID != "" {
		metadata["entity_id"] = entityID
	}
	s.auditLogger.LogAccountAction(action, userID, metadata)
}

// AuditLogResponse represents an audit log entry in the HTTP response
type AuditLogResponse struct {
	ID         string                 `json:"id"`
	UserID     *string                `json:"user_id"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   *string                `json:"entity_id"`
	Details    map[string]interface{} `json:"details"`
	CreatedAt  string                 `json:"created_at"`
}

// AuditLogListResponse is a paginated audit log listing
type AuditLogListResponse struct {
	Logs  []*AuditLogResponse `json:"logs"`
	Total int                 `json:"total"`
	Skip  int                 `json:"skip"`
	Limit int                 `json:"limit"`
}

// List returns audit logs matching the filter
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter, skip, limit int) (*AuditLogListResponse, error) {
	logs, err := s.repo.List(ctx, filter, limit, skip)
	if err != nil {
		s.logger.Error("failed to list audit logs", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		s.logger.Error("failed to count audit logs", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	resp := &AuditLogListResponse{
		Logs:  make([]*AuditLogResponse, 0, len(logs)),
		Total: total,
		Skip:  skip,
		Limit: limit,
	}
	for _, log := range logs {
		resp.Logs = append(resp.Logs, auditLogModelToResponse(log))
	}

	return resp, nil
}

func auditLogModelToResponse(log *models.AuditLog) *AuditLogResponse {
	return &AuditLogResponse{
		ID:         log.ID,
		UserID:     log.UserID,
		Action:     log.Action,
		EntityType: log.EntityType,
		EntityID:   log.EntityID,
		Details:    log.Details,
		CreatedAt:  log.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}
