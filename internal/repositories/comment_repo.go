package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/toolforge/toolforge/internal/database"
	"github.com/toolforge/toolforge/internal/models"
)

type CommentRepository struct {
	db   *database.DB
	pool *pgxpool.Pool
}

func NewCommentRepository(db *database.DB) *CommentRepository {
	return &CommentRepository{db: db, pool: db.Pool}
}

// commentSelect joins the author's username and, when viewerID is bound,
// that viewer's own vote.
const commentSelect = `
	SELECT cm.id, cm.tool_id, cm.user_id, cm.content, cm.upvotes, cm.downvotes,
	       cm.created_at, cm.updated_at,
	       u.username,
	       v.vote_type
	FROM tool_comments cm
	JOIN users u ON u.id = cm.user_id
	LEFT JOIN comment_votes v ON v.comment_id = cm.id AND v.user_id = $1
`

func scanCommentRow(scanner rowScanner) (*models.Comment, error) {
	var c models.Comment

	err := scanner.Scan(
		&c.ID, &c.ToolID, &c.UserID, &c.Content, &c.Upvotes, &c.Downvotes,
		&c.CreatedAt, &c.UpdatedAt,
		&c.Username, &c.UserVote,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &c, nil
}

func scanCommentRows(rows pgx.Rows) ([]*models.Comment, error) {
	defer rows.Close()

	comments := make([]*models.Comment, 0)

	for rows.Next() {
		comment, err := scanCommentRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, comment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comment rows: %w", err)
	}

	return comments, nil
}

// GetByID fetches a comment. viewerID may be empty when the caller is
// anonymous; the vote column then comes back NULL.
func (r *CommentRepository) GetByID(ctx context.Context, id, viewerID string) (*models.Comment, error) {
	query := commentSelect + ` WHERE cm.id = $2`
	return scanCommentRow(r.pool.QueryRow(ctx, query, nullIfEmpty(viewerID), id))
}

func (r *CommentRepository) ListByTool(ctx context.Context, toolID, viewerID string, limit, offset int) ([]*models.Comment, error) {
	query := commentSelect + ` WHERE cm.tool_id = $2 ORDER BY cm.created_at DESC LIMIT $3 OFFSET $4`

	rows, err := r.pool.Query(ctx, query, nullIfEmpty(viewerID), toolID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}

	return scanCommentRows(rows)
}

func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) (*models.Comment, error) {
	comment.ID = uuid.New().String()

	query := `
		INSERT INTO tool_comments (id, tool_id, user_id, content, upvotes, downvotes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, 0, NOW(), NOW())
	`

	_, err := r.pool.Exec(ctx, query, comment.ID, comment.ToolID, comment.UserID, comment.Content)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return r.GetByID(ctx, comment.ID, comment.UserID)
}

func (r *CommentRepository) Update(ctx context.Context, id, userID, content string) (*models.Comment, error) {
	query := `
		UPDATE tool_comments SET content = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`

	tag, err := r.pool.Exec(ctx, query, id, userID, content)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return nil, models.ErrNotFound
	}

	return r.GetByID(ctx, id, userID)
}

func (r *CommentRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tool_comments WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Vote records an up/down vote and keeps the denormalized counters on the
// comment row in step, all inside one transaction. Voting the same
// direction twice removes the vote; voting the other direction flips it.
func (r *CommentRepository) Vote(ctx context.Context, commentID, userID, voteType string) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		var existing *string
		err := tx.QueryRow(ctx,
			`SELECT vote_type FROM comment_votes WHERE comment_id = $1 AND user_id = $2 FOR UPDATE`,
			commentID, userID,
		).Scan(&existing)
		if err != nil && err != pgx.ErrNoRows {
			return database.MapPostgresError(err)
		}

		switch {
		case existing == nil:
			_, err = tx.Exec(ctx,
				`INSERT INTO comment_votes (id, comment_id, user_id, vote_type, created_at)
				 VALUES ($1, $2, $3, $4, NOW())`,
				uuid.New().String(), commentID, userID, voteType,
			)
			if err != nil {
				return database.MapPostgresError(err)
			}
			return adjustVoteCounters(ctx, tx, commentID, voteType, +1)

		case *existing == voteType:
			// Same direction again: retract the vote
			_, err = tx.Exec(ctx,
				`DELETE FROM comment_votes WHERE comment_id = $1 AND user_id = $2`,
				commentID, userID,
			)
			if err != nil {
				return database.MapPostgresError(err)
			}
			return adjustVoteCounters(ctx, tx, commentID, voteType, -1)

		default:
			// Switch direction
			_, err = tx.Exec(ctx,
				`UPDATE comment_votes SET vote_type = $3 WHERE comment_id = $1 AND user_id = $2`,
				commentID, userID, voteType,
			)
			if err != nil {
				return database.MapPostgresError(err)
			}
			if err := adjustVoteCounters(ctx, tx, commentID, *existing, -1); err != nil {
				return err
			}
			return adjustVoteCounters(ctx, tx, commentID, voteType, +1)
		}
	})
}

func adjustVoteCounters(ctx context.Context, tx pgx.Tx, commentID, voteType string, delta int) error {
	column := "upvotes"
	if voteType == models.VoteDown {
		column = "downvotes"
	}

	tag, err := tx.Exec(ctx,
		fmt.Sprintf(`UPDATE tool_comments SET %s = %s + $2 WHERE id = $1`, column, column),
		commentID, delta,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
