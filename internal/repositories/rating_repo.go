package repositories

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/toolforge/toolforge/internal/database"
	"github.com/toolforge/toolforge/internal/models"
)

type RatingRepository struct {
	pool *pgxpool.Pool
}

func NewRatingRepository(db *database.DB) *RatingRepository {
	return &RatingRepository{pool: db.Pool}
}

func scanRatingRow(scanner rowScanner) (*models.Rating, error) {
	var rating models.Rating

	err := scanner.Scan(
		&rating.ID, &rating.ToolID, &rating.UserID, &rating.Rating,
		&rating.CreatedAt, &rating.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &rating, nil
}

// Upsert records or replaces the user's rating for a tool.
func (r *RatingRepository) Upsert(ctx context.Context, toolID, userID string, value int) (*models.Rating, error) {
	query := `
		INSERT INTO tool_ratings (id, tool_id, user_id, rating, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (tool_id, user_id) DO UPDATE
		SET rating = EXCLUDED.rating, updated_at = NOW()
		RETURNING id, tool_id, user_id, rating, created_at, updated_at
	`

	rating, err := scanRatingRow(r.pool.QueryRow(ctx, query, uuid.New().String(), toolID, userID, value))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert rating: %w", err)
	}

	return rating, nil
}

func (r *RatingRepository) GetByToolAndUser(ctx context.Context, toolID, userID string) (*models.Rating, error) {
	query := `
		SELECT id, tool_id, user_id, rating, created_at, updated_at
		FROM tool_ratings WHERE tool_id = $1 AND user_id = $2
	`

	return scanRatingRow(r.pool.QueryRow(ctx, query, toolID, userID))
}

// ListByTool returns a tool's individual ratings, newest first, with the
// rater's username joined in.
func (r *RatingRepository) ListByTool(ctx context.Context, toolID string, limit, offset int) ([]*models.Rating, error) {
	query := `
		SELECT r.id, r.tool_id, r.user_id, r.rating, r.created_at, r.updated_at, u.username
		FROM tool_ratings r
		JOIN users u ON u.id = r.user_id
		WHERE r.tool_id = $1
		ORDER BY r.created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, toolID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query ratings: %w", err)
	}
	defer rows.Close()

	ratings := make([]*models.Rating, 0)
	for rows.Next() {
		var rating models.Rating
		err := rows.Scan(
			&rating.ID, &rating.ToolID, &rating.UserID, &rating.Rating,
			&rating.CreatedAt, &rating.UpdatedAt, &rating.Username,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		ratings = append(ratings, &rating)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rating rows: %w", err)
	}

	return ratings, nil
}

func (r *RatingRepository) CountByTool(ctx context.Context, toolID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM tool_ratings WHERE tool_id = $1`, toolID).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

func (r *RatingRepository) Delete(ctx context.Context, toolID, userID string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM tool_ratings WHERE tool_id = $1 AND user_id = $2`, toolID, userID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Stats aggregates a tool's ratings into average, total and a per-star
// distribution.
func (r *RatingRepository) Stats(ctx context.Context, toolID string) (*models.RatingStats, error) {
	query := `
		SELECT rating, COUNT(*)
		FROM tool_ratings
		WHERE tool_id = $1
		GROUP BY rating
	`

	rows, err := r.pool.Query(ctx, query, toolID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rating stats: %w", err)
	}
	defer rows.Close()

	stats := models.EmptyRatingStats()
	sum := 0

	for rows.Next() {
		var value, count int
		if err := rows.Scan(&value, &count); err != nil {
			return nil, fmt.Errorf("failed to scan rating stats: %w", err)
		}
		stats.Distribution[strconv.Itoa(value)] = count
		stats.TotalRatings += count
		sum += value * count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rating stats: %w", err)
	}

	if stats.TotalRatings > 0 {
		stats.AverageRating = float64(sum) / float64(stats.TotalRatings)
	}

	return stats, nil
}
