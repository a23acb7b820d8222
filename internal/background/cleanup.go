package background

import (
	"context"
	"log/slog"
	"time"
)

// ChallengeCleaner removes dead login challenges
type ChallengeCleaner interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// CleanupManager periodically removes expired and consumed login
// challenges from the database. Expiry is enforced at read time; this
// just keeps the table from growing without bound.
type CleanupManager struct {
	challenges ChallengeCleaner
	logger     *slog.Logger
	interval   time.Duration
	stopCh     chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(challenges ChallengeCleaner, logger *slog.Logger, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		challenges: challenges,
		logger:     logger,
		interval:   interval,
		stopCh:     make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rowsDeleted, err := cm.challenges.DeleteExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to cleanup login challenges", slog.Any("error", err))
		return
	}

	if rowsDeleted > 0 {
		cm.logger.Info("login challenge cleanup completed", slog.Int64("rows_deleted", rowsDeleted))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
