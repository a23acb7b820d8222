package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/toolforge/toolforge/internal/database"
	"github.com/toolforge/toolforge/internal/models"
)

// ChallengeRepository stores pending login challenges. user_id is the
// primary key, so a user can never hold two live codes.
type ChallengeRepository struct {
	pool *pgxpool.Pool
}

func NewChallengeRepository(db *database.DB) *ChallengeRepository {
	return &ChallengeRepository{pool: db.Pool}
}

func scanChallengeRow(scanner rowScanner) (*models.LoginChallenge, error) {
	var c models.LoginChallenge

	err := scanner.Scan(
		&c.UserID, &c.CodeHash, &c.Attempts, &c.Consumed,
		&c.CreatedAt, &c.ExpiresAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &c, nil
}

// Upsert issues a challenge for the user, atomically replacing any
// previous one. The replaced challenge's attempt count does not carry
// over; a fresh code gets a fresh budget.
func (r *ChallengeRepository) Upsert(ctx context.Context, userID, codeHash string, ttl time.Duration) (*models.LoginChallenge, error) {
	query := `
		INSERT INTO login_challenges (user_id, code_hash, attempts, consumed, created_at, expires_at)
		VALUES ($1, $2, 0, false, NOW(), NOW() + $3::interval)
		ON CONFLICT (user_id) DO UPDATE
		SET code_hash = EXCLUDED.code_hash,
		    attempts = 0,
		    consumed = false,
		    created_at = EXCLUDED.created_at,
		    expires_at = EXCLUDED.expires_at
		RETURNING user_id, code_hash, attempts, consumed, created_at, expires_at
	`

	challenge, err := scanChallengeRow(r.pool.QueryRow(ctx, query, userID, codeHash, ttl.String()))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert login challenge: %w", err)
	}

	return challenge, nil
}

func (r *ChallengeRepository) Get(ctx context.Context, userID string) (*models.LoginChallenge, error) {
	query := `
		SELECT user_id, code_hash, attempts, consumed, created_at, expires_at
		FROM login_challenges WHERE user_id = $1
	`

	return scanChallengeRow(r.pool.QueryRow(ctx, query, userID))
}

// IncrementAttempts bumps the failure counter and returns the new value.
// The WHERE clause skips consumed challenges so a raced success is not
// penalized after the fact.
func (r *ChallengeRepository) IncrementAttempts(ctx context.Context, userID string) (int, error) {
	query := `
		UPDATE login_challenges
		SET attempts = attempts + 1
		WHERE user_id = $1 AND consumed = false
		RETURNING attempts
	`

	var attempts int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&attempts); err != nil {
		return 0, database.MapPostgresError(err)
	}

	return attempts, nil
}

// Consume marks the challenge used. The conditional update makes it a
// compare-and-swap: of two concurrent correct submissions, exactly one
// sees a row change and wins.
func (r *ChallengeRepository) Consume(ctx context.Context, userID string) (bool, error) {
	query := `
		UPDATE login_challenges
		SET consumed = true
		WHERE user_id = $1 AND consumed = false AND expires_at > NOW()
	`

	tag, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return false, database.MapPostgresError(err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *ChallengeRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM login_challenges WHERE user_id = $1`, userID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// DeleteExpired removes challenges past their expiry, returning the
// number removed. Called by the background cleanup loop.
func (r *ChallengeRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM login_challenges WHERE expires_at < NOW() OR consumed = true`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired challenges: %w", err)
	}

	return tag.RowsAffected(), nil
}
