package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amitsahu0611/chatbot-sub001/internal/storage/models"
)

const knowledgeColumns = `id, tenant_id, question, answer, category, tags, active, views,
	helpful_count, not_helpful_count, sort_order, created_at, updated_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (c *Client) CreateKnowledgeEntry(ctx context.Context, e *models.KnowledgeEntry) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	return insertKnowledge(ctx, c.db, e)
}

func insertKnowledge(ctx context.Context, db execer, e *models.KnowledgeEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = e.CreatedAt
	}
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	query := `
		INSERT INTO knowledge_entries (tenant_id, question, answer, category, tags, active, views,
			helpful_count, not_helpful_count, sort_order, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := db.ExecContext(ctx, query,
		e.TenantID,
		e.Question,
		e.Answer,
		e.Category,
		string(tagsJSON),
		boolInt(e.Active),
		e.Views,
		e.HelpfulCount,
		e.NotHelpfulCount,
		e.SortOrder,
		unix(e.CreatedAt),
		unix(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert knowledge entry: %w", err)
	}

	e.ID, err = res.LastInsertId()
	return err
}

func (c *Client) GetKnowledgeEntry(ctx context.Context, tenantID, id int64) (*models.KnowledgeEntry, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	query := `SELECT ` + knowledgeColumns + ` FROM knowledge_entries WHERE id = ? AND tenant_id = ?`
	e, err := scanKnowledge(c.db.QueryRowContext(ctx, query, id, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get knowledge entry: %w", err)
	}
	return e, nil
}

// SearchKnowledge runs one tier of the matcher as a single LIKE query.
func (c *Client) SearchKnowledge(ctx context.Context, q models.KnowledgeQuery) ([]models.KnowledgeEntry, error) {
	if q.TenantID <= 0 || len(q.Terms) == 0 {
		return []models.KnowledgeEntry{}, nil
	}

	ctx, cancel := c.bound(ctx)
	defer cancel()

	joiner := " AND "
	if q.MatchAny {
		joiner = " OR "
	}

	clauses := make([]string, 0, len(q.Terms))
	args := []any{q.TenantID}
	for _, term := range q.Terms {
		clauses = append(clauses, `(fold(question) LIKE ? ESCAPE '\' OR fold(answer) LIKE ? ESCAPE '\' OR fold(category) LIKE ? ESCAPE '\')`)
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		args = append(args, pattern, pattern, pattern)
	}

	query := `SELECT ` + knowledgeColumns + ` FROM knowledge_entries
		WHERE tenant_id = ? AND active = 1 AND (` + strings.Join(clauses, joiner) + `)
		ORDER BY views DESC, helpful_count DESC, updated_at DESC, id DESC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search knowledge: %w", err)
	}
	defer rows.Close()

	entries := []models.KnowledgeEntry{}
	for rows.Next() {
		e, err := scanKnowledge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (c *Client) IncrementKnowledgeViews(ctx context.Context, tenantID, id int64) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	res, err := c.db.ExecContext(ctx,
		`UPDATE knowledge_entries SET views = views + 1 WHERE id = ? AND tenant_id = ?`, id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to increment views: %w", err)
	}
	return requireOne(res)
}

func (c *Client) RecordKnowledgeFeedback(ctx context.Context, tenantID, id int64, helpful bool) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	column := "not_helpful_count"
	if helpful {
		column = "helpful_count"
	}
	res, err := c.db.ExecContext(ctx,
		`UPDATE knowledge_entries SET `+column+` = `+column+` + 1 WHERE id = ? AND tenant_id = ?`, id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to record feedback: %w", err)
	}
	return requireOne(res)
}

func scanKnowledge(row rowScanner) (*models.KnowledgeEntry, error) {
	var e models.KnowledgeEntry
	var tagsJSON string
	var active int
	var createdAt, updatedAt int64

	err := row.Scan(
		&e.ID,
		&e.TenantID,
		&e.Question,
		&e.Answer,
		&e.Category,
		&tagsJSON,
		&active,
		&e.Views,
		&e.HelpfulCount,
		&e.NotHelpfulCount,
		&e.SortOrder,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tagsJSON), &e.Tags); err != nil {
		e.Tags = nil
	}
	e.Active = active == 1
	e.CreatedAt = fromUnix(createdAt)
	e.UpdatedAt = fromUnix(updatedAt)
	return &e, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
