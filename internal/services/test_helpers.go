package services

import (
	"context"
	"time"

	"github.com/toolforge/toolforge/internal/models"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc           func(ctx context.Context, id string) (*models.User, error)
	GetByUsernameFunc     func(ctx context.Context, username string) (*models.User, error)
	GetByEmailFunc        func(ctx context.Context, email string) (*models.User, error)
	ListFunc              func(ctx context.Context, role string, limit, offset int) ([]*models.User, error)
	CountFunc             func(ctx context.Context) (int, error)
	CountByRoleFunc       func(ctx context.Context) (map[string]int, error)
	CountTwoFAEnabledFunc func(ctx context.Context) (int, error)
	CreateFunc            func(ctx context.Context, user *models.User) (*models.User, error)
	UpdateFunc            func(ctx context.Context, user *models.User) (*models.User, error)
	UpdateRoleFunc        func(ctx context.Context, id, role string) (*models.User, error)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) List(ctx context.Context, role string, limit, offset int) ([]*models.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, role, limit, offset)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) Count(ctx context.Context) (int, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx)
	}
	return 0, nil
}

func (m *MockUserRepository) CountByRole(ctx context.Context) (map[string]int, error) {
	if m.CountByRoleFunc != nil {
		return m.CountByRoleFunc(ctx)
	}
	return map[string]int{}, nil
}

func (m *MockUserRepository) CountTwoFAEnabled(ctx context.Context) (int, error) {
	if m.CountTwoFAEnabledFunc != nil {
		return m.CountTwoFAEnabledFunc(ctx)
	}
	return 0, nil
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) (*models.User, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) UpdateRole(ctx context.Context, id, role string) (*models.User, error) {
	if m.UpdateRoleFunc != nil {
		return m.UpdateRoleFunc(ctx, id, role)
	}
	return nil, models.ErrInternalServer
}

// MockChallengeRepository implements ChallengeRepository for testing
type MockChallengeRepository struct {
	UpsertFunc            func(ctx context.Context, userID, codeHash string, ttl time.Duration) (*models.LoginChallenge, error)
	GetFunc               func(ctx context.Context, userID string) (*models.LoginChallenge, error)
	IncrementAttemptsFunc func(ctx context.Context, userID string) (int, error)
	ConsumeFunc           func(ctx context.Context, userID string) (bool, error)
	DeleteFunc            func(ctx context.Context, userID string) error
	DeleteExpiredFunc     func(ctx context.Context) (int64, error)
}

func (m *MockChallengeRepository) Upsert(ctx context.Context, userID, codeHash string, ttl time.Duration) (*models.LoginChallenge, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, userID, codeHash, ttl)
	}
	return &models.LoginChallenge{
		UserID:    userID,
		CodeHash:  codeHash,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}

func (m *MockChallengeRepository) Get(ctx context.Context, userID string) (*models.LoginChallenge, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockChallengeRepository) IncrementAttempts(ctx context.Context, userID string) (int, error) {
	if m.IncrementAttemptsFunc != nil {
		return m.IncrementAttemptsFunc(ctx, userID)
	}
	return 1, nil
}

func (m *MockChallengeRepository) Consume(ctx context.Context, userID string) (bool, error) {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, userID)
	}
	return true, nil
}

func (m *MockChallengeRepository) Delete(ctx context.Context, userID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID)
	}
	return nil
}

func (m *MockChallengeRepository) DeleteExpired(ctx context.Context) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx)
	}
	return 0, nil
}

// MockCodeSender implements notify.CodeSender for testing
type MockCodeSender struct {
	SendLoginCodeFunc func(ctx context.Context, chatID, code string) error
	VerifyChatIDFunc  func(ctx context.Context, chatID string) error
	SentCodes         []string
}

func (m *MockCodeSender) SendLoginCode(ctx context.Context, chatID, code string) error {
	m.SentCodes = append(m.SentCodes, code)
	if m.SendLoginCodeFunc != nil {
		return m.SendLoginCodeFunc(ctx, chatID, code)
	}
	return nil
}

func (m *MockCodeSender) VerifyChatID(ctx context.Context, chatID string) error {
	if m.VerifyChatIDFunc != nil {
		return m.VerifyChatIDFunc(ctx, chatID)
	}
	return nil
}

// MockToolRepository implements ToolRepository for testing
type MockToolRepository struct {
	GetByIDFunc         func(ctx context.Context, id string) (*models.Tool, error)
	ListFunc            func(ctx context.Context, filter models.ToolFilter, limit, offset int) ([]*models.Tool, error)
	CountFunc           func(ctx context.Context, filter models.ToolFilter) (int, error)
	CreateFunc          func(ctx context.Context, tool *models.Tool) (*models.Tool, error)
	UpdateFunc          func(ctx context.Context, tool *models.Tool) (*models.Tool, error)
	DeleteFunc          func(ctx context.Context, id string) error
	CountByStatusFunc   func(ctx context.Context) (map[string]int, error)
	CountByCategoryFunc func(ctx context.Context) (map[string]int, error)
}

func (m *MockToolRepository) GetByID(ctx context.Context, id string) (*models.Tool, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockToolRepository) List(ctx context.Context, filter models.ToolFilter, limit, offset int) ([]*models.Tool, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter, limit, offset)
	}
	return []*models.Tool{}, nil
}

func (m *MockToolRepository) Count(ctx context.Context, filter models.ToolFilter) (int, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx, filter)
	}
	return 0, nil
}

func (m *MockToolRepository) Create(ctx context.Context, tool *models.Tool) (*models.Tool, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tool)
	}
	return nil, models.ErrInternalServer
}

func (m *MockToolRepository) Update(ctx context.Context, tool *models.Tool) (*models.Tool, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, tool)
	}
	return nil, models.ErrInternalServer
}

func (m *MockToolRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockToolRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	if m.CountByStatusFunc != nil {
		return m.CountByStatusFunc(ctx)
	}
	return map[string]int{}, nil
}

func (m *MockToolRepository) CountByCategory(ctx context.Context) (map[string]int, error) {
	if m.CountByCategoryFunc != nil {
		return m.CountByCategoryFunc(ctx)
	}
	return map[string]int{}, nil
}

// MockCommentRepository implements CommentRepository for testing
type MockCommentRepository struct {
	GetByIDFunc    func(ctx context.Context, id, viewerID string) (*models.Comment, error)
	ListByToolFunc func(ctx context.Context, toolID, viewerID string, limit, offset int) ([]*models.Comment, error)
	CreateFunc     func(ctx context.Context, comment *models.Comment) (*models.Comment, error)
	UpdateFunc     func(ctx context.Context, id, userID, content string) (*models.Comment, error)
	DeleteFunc     func(ctx context.Context, id string) error
	VoteFunc       func(ctx context.Context, commentID, userID, voteType string) error
}

func (m *MockCommentRepository) GetByID(ctx context.Context, id, viewerID string) (*models.Comment, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id, viewerID)
	}
	return nil, models.ErrNotFound
}

func (m *MockCommentRepository) ListByTool(ctx context.Context, toolID, viewerID string, limit, offset int) ([]*models.Comment, error) {
	if m.ListByToolFunc != nil {
		return m.ListByToolFunc(ctx, toolID, viewerID, limit, offset)
	}
	return []*models.Comment{}, nil
}

func (m *MockCommentRepository) Create(ctx context.Context, comment *models.Comment) (*models.Comment, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, comment)
	}
	return nil, models.ErrInternalServer
}

func (m *MockCommentRepository) Update(ctx context.Context, id, userID, content string) (*models.Comment, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, userID, content)
	}
	return nil, models.ErrInternalServer
}

func (m *MockCommentRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockCommentRepository) Vote(ctx context.Context, commentID, userID, voteType string) error {
	if m.VoteFunc != nil {
		return m.VoteFunc(ctx, commentID, userID, voteType)
	}
	return nil
}

// MockAuditLogRepository implements AuditLogRepository for testing
type MockAuditLogRepository struct {
	CreateFunc func(ctx context.Context, log *models.AuditLog) (*models.AuditLog, error)
	ListFunc   func(ctx context.Context, filter models.AuditFilter, limit, offset int) ([]*models.AuditLog, error)
	CountFunc  func(ctx context.Context, filter models.AuditFilter) (int, error)
	Created    []*models.AuditLog
}

func (m *MockAuditLogRepository) Create(ctx context.Context, log *models.AuditLog) (*models.AuditLog, error) {
	m.Created = append(m.Created, log)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, log)
	}
	return log, nil
}

func (m *MockAuditLogRepository) List(ctx context.Context, filter models.AuditFilter, limit, offset int) ([]*models.AuditLog, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter, limit, offset)
	}
	return []*models.AuditLog{}, nil
}

func (m *MockAuditLogRepository) Count(ctx context.Context, filter models.AuditFilter) (int, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx, filter)
	}
	return 0, nil
}

// MockRatingRepository implements RatingRepository for testing
type MockRatingRepository struct {
	UpsertFunc           func(ctx context.Context, toolID, userID string, value int) (*models.Rating, error)
	GetByToolAndUserFunc func(ctx context.Context, toolID, userID string) (*models.Rating, error)
	ListByToolFunc       func(ctx context.Context, toolID string, limit, offset int) ([]*models.Rating, error)
	CountByToolFunc      func(ctx context.Context, toolID string) (int, error)
	DeleteFunc           func(ctx context.Context, toolID, userID string) error
	StatsFunc            func(ctx context.Context, toolID string) (*models.RatingStats, error)
}

func (m *MockRatingRepository) Upsert(ctx context.Context, toolID, userID string, value int) (*models.Rating, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, toolID, userID, value)
	}
	return &models.Rating{ToolID: toolID, UserID: userID, Rating: value}, nil
}

func (m *MockRatingRepository) GetByToolAndUser(ctx context.Context, toolID, userID string) (*models.Rating, error) {
	if m.GetByToolAndUserFunc != nil {
		return m.GetByToolAndUserFunc(ctx, toolID, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockRatingRepository) ListByTool(ctx context.Context, toolID string, limit, offset int) ([]*models.Rating, error) {
	if m.ListByToolFunc != nil {
		return m.ListByToolFunc(ctx, toolID, limit, offset)
	}
	return []*models.Rating{}, nil
}

func (m *MockRatingRepository) CountByTool(ctx context.Context, toolID string) (int, error) {
	if m.CountByToolFunc != nil {
		return m.CountByToolFunc(ctx, toolID)
	}
	return 0, nil
}

func (m *MockRatingRepository) Delete(ctx context.Context, toolID, userID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, toolID, userID)
	}
	return nil
}

func (m *MockRatingRepository) Stats(ctx context.Context, toolID string) (*models.RatingStats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx, toolID)
	}
	return models.EmptyRatingStats(), nil
}
