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

type ToolRepository struct {
	pool *pgxpool.Pool
}

func NewToolRepository(db *database.DB) *ToolRepository {
	return &ToolRepository{pool: db.Pool}
}

// toolSelect joins creator/approver usernames and rating aggregates so a
// single listing query carries everything the API response needs.
const toolSelect = `
	SELECT t.id, t.name, t.description, t.category, t.status, t.url,
	       t.created_by, t.approved_by, t.rejection_reason, t.created_at, t.updated_at,
	       c.username AS creator_username,
	       a.username AS approver_username,
	       AVG(r.rating)::float8 AS average_rating,
	       COUNT(r.rating)::int AS total_ratings
	FROM tools t
	JOIN users c ON c.id = t.created_by
	LEFT JOIN users a ON a.id = t.approved_by
	LEFT JOIN tool_ratings r ON r.tool_id = t.id
`

const toolGroupBy = ` GROUP BY t.id, c.username, a.username`

func scanToolRow(scanner rowScanner) (*models.Tool, error) {
	var tool models.Tool
	var url *string

	err := scanner.Scan(
		&tool.ID, &tool.Name, &tool.Description, &tool.Category, &tool.Status, &url,
		&tool.CreatedBy, &tool.ApprovedBy, &tool.RejectionReason,
		&tool.CreatedAt, &tool.UpdatedAt,
		&tool.CreatorUsername, &tool.ApproverUsername,
		&tool.AverageRating, &tool.TotalRatings,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if url != nil {
		tool.URL = *url
	}

	return &tool, nil
}

func scanToolRows(rows pgx.Rows) ([]*models.Tool, error) {
	defer rows.Close()

	tools := make([]*models.Tool, 0)

	for rows.Next() {
		tool, err := scanToolRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tool: %w", err)
		}
		tools = append(tools, tool)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tool rows: %w", err)
	}

	return tools, nil
}

func (r *ToolRepository) GetByID(ctx context.Context, id string) (*models.Tool, error) {
	query := toolSelect + ` WHERE t.id = $1` + toolGroupBy
	return scanToolRow(r.pool.QueryRow(ctx, query, id))
}

// buildFilter translates a ToolFilter into a WHERE clause. Returns the
// clause (with leading " WHERE" when non-empty) and its arguments.
func buildFilter(filter models.ToolFilter) (string, []interface{}) {
	clauses := []string{}
	args := []interface{}{}

	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.Status != "" {
		add("t.status = $%d", filter.Status)
	}
	if filter.Category != "" {
		add("t.category = $%d", filter.Category)
	}
	if filter.CreatedBy != "" {
		add("t.created_by = $%d", filter.CreatedBy)
	}
	if filter.Search != "" {
		args = append(args, filter.Search)
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(
			"(t.name ILIKE '%%' || $%d || '%%' OR t.description ILIKE '%%' || $%d || '%%')", n, n))
	}

	if len(clauses) == 0 {
		return "", args
	}

	where := " WHERE " + clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}
	return where, args
}

func (r *ToolRepository) List(ctx context.Context, filter models.ToolFilter, limit, offset int) ([]*models.Tool, error) {
	where, args := buildFilter(filter)

	query := toolSelect + where + toolGroupBy +
		fmt.Sprintf(" ORDER BY t.created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tools: %w", err)
	}

	return scanToolRows(rows)
}

func (r *ToolRepository) Count(ctx context.Context, filter models.ToolFilter) (int, error) {
	where, args := buildFilter(filter)

	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tools t`+where, args...).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return count, nil
}

func (r *ToolRepository) Create(ctx context.Context, tool *models.Tool) (*models.Tool, error) {
	tool.ID = uuid.New().String()

	if tool.Status == "" {
		tool.Status = models.StatusPending
	}

	var url *string
	if tool.URL != "" {
		url = &tool.URL
	}

	query := `
		INSERT INTO tools (id, name, description, category, status, url, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`

	_, err := r.pool.Exec(ctx, query,
		tool.ID, tool.Name, tool.Description, tool.Category, tool.Status, url, tool.CreatedBy,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return r.GetByID(ctx, tool.ID)
}

func (r *ToolRepository) Update(ctx context.Context, tool *models.Tool) (*models.Tool, error) {
	var url *string
	if tool.URL != "" {
		url = &tool.URL
	}

	query := `
		UPDATE tools
		SET name = $2, description = $3, category = $4, status = $5, url = $6,
		    approved_by = $7, rejection_reason = $8, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query,
		tool.ID, tool.Name, tool.Description, tool.Category, tool.Status, url,
		tool.ApprovedBy, tool.RejectionReason,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return nil, models.ErrNotFound
	}

	return r.GetByID(ctx, tool.ID)
}

func (r *ToolRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tools WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// CountByStatus returns tool counts keyed by moderation status.
func (r *ToolRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM tools GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count tools by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}

	return counts, rows.Err()
}

// CountByCategory returns approved tool counts keyed by category.
func (r *ToolRepository) CountByCategory(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT category, COUNT(*) FROM tools WHERE status = $1 GROUP BY category`,
		models.StatusApproved,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count tools by category: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		counts[category] = count
	}

	return counts, rows.Err()
}
