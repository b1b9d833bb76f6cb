package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amitsahu0611/chatbot-sub001/internal/storage/models"
)

const unansweredColumns = `id, tenant_id, query, frequency, status, priority, ip_address, user_agent,
	session_id, knowledge_entry_id, first_asked_at, last_asked_at, created_at, updated_at`

func (c *Client) ListPendingUnanswered(ctx context.Context, tenantID int64, limit int) ([]models.UnansweredQuery, error) {
	queries, _, err := c.ListUnanswered(ctx, models.UnansweredFilter{
		TenantID: tenantID,
		Status:   models.UnansweredPending,
		Sort:     models.SortLastAsked,
		Limit:    limit,
	})
	return queries, err
}

func (c *Client) CreateUnanswered(ctx context.Context, q *models.UnansweredQuery) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	query := `
		INSERT INTO unanswered_queries (tenant_id, query, frequency, status, priority, ip_address,
			user_agent, session_id, knowledge_entry_id, first_asked_at, last_asked_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := c.db.ExecContext(ctx, query,
		q.TenantID,
		q.Query,
		q.Frequency,
		string(q.Status),
		string(q.Priority),
		q.IPAddress,
		q.UserAgent,
		q.SessionID,
		nullID(q.KnowledgeEntryID),
		unix(q.FirstAskedAt),
		unix(q.LastAskedAt),
		unix(q.CreatedAt),
		unix(q.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert unanswered query: %w", err)
	}

	q.ID, err = res.LastInsertId()
	return err
}

func (c *Client) UpdateUnansweredOccurrence(ctx context.Context, q *models.UnansweredQuery) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	query := `
		UPDATE unanswered_queries
		SET frequency = ?, priority = ?, last_asked_at = ?, ip_address = ?, user_agent = ?,
			session_id = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ?
	`
	res, err := c.db.ExecContext(ctx, query,
		q.Frequency,
		string(q.Priority),
		unix(q.LastAskedAt),
		q.IPAddress,
		q.UserAgent,
		q.SessionID,
		unix(q.UpdatedAt),
		q.ID,
		q.TenantID,
	)
	if err != nil {
		return fmt.Errorf("failed to update unanswered query: %w", err)
	}
	return requireOne(res)
}

func (c *Client) GetUnanswered(ctx context.Context, tenantID, id int64) (*models.UnansweredQuery, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	query := `SELECT ` + unansweredColumns + ` FROM unanswered_queries WHERE id = ? AND tenant_id = ?`
	q, err := scanUnanswered(c.db.QueryRowContext(ctx, query, id, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get unanswered query: %w", err)
	}
	return q, nil
}

func (c *Client) ListUnanswered(ctx context.Context, f models.UnansweredFilter) ([]models.UnansweredQuery, int, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	where := []string{"tenant_id = ?"}
	args := []any{f.TenantID}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Priority != "" {
		where = append(where, "priority = ?")
		args = append(args, string(f.Priority))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM unanswered_queries WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count unanswered queries: %w", err)
	}

	var order string
	switch f.Sort {
	case models.SortFrequency:
		order = "frequency DESC, last_asked_at DESC, id DESC"
	case models.SortPriority:
		order = `CASE priority WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0 END DESC,
			frequency DESC, last_asked_at DESC, id DESC`
	default:
		order = "last_asked_at DESC, id DESC"
	}

	query := `SELECT ` + unansweredColumns + ` FROM unanswered_queries WHERE ` + cond + ` ORDER BY ` + order
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	} else if f.Offset > 0 {
		query += ` LIMIT -1 OFFSET ?`
		args = append(args, f.Offset)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list unanswered queries: %w", err)
	}
	defer rows.Close()

	out := []models.UnansweredQuery{}
	for rows.Next() {
		q, err := scanUnanswered(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, *q)
	}
	return out, total, rows.Err()
}

func (c *Client) UnansweredStats(ctx context.Context, tenantID int64) (models.UnansweredStats, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	query := `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'answered' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'ignored' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN priority = 'high' THEN 1 ELSE 0 END), 0)
		FROM unanswered_queries WHERE tenant_id = ?
	`
	var s models.UnansweredStats
	err := c.db.QueryRowContext(ctx, query, tenantID).Scan(&s.Total, &s.Pending, &s.Answered, &s.Ignored, &s.HighPriority)
	if err != nil {
		return s, fmt.Errorf("failed to compute unanswered stats: %w", err)
	}
	return s, nil
}

func (c *Client) UpdateUnansweredStatus(ctx context.Context, q *models.UnansweredQuery) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	return updateStatus(ctx, c.db, q)
}

func updateStatus(ctx context.Context, db execer, q *models.UnansweredQuery) error {
	res, err := db.ExecContext(ctx,
		`UPDATE unanswered_queries SET status = ?, knowledge_entry_id = ?, updated_at = ? WHERE id = ? AND tenant_id = ?`,
		string(q.Status),
		nullID(q.KnowledgeEntryID),
		unix(q.UpdatedAt),
		q.ID,
		q.TenantID,
	)
	if err != nil {
		return fmt.Errorf("failed to update unanswered status: %w", err)
	}
	return requireOne(res)
}

// ResolveUnansweredWithEntry inserts e and links it to q in one transaction.
func (c *Client) ResolveUnansweredWithEntry(ctx context.Context, q *models.UnansweredQuery, e *models.KnowledgeEntry) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertKnowledge(ctx, tx, e); err != nil {
		return err
	}
	id := e.ID
	q.KnowledgeEntryID = &id
	if q.UpdatedAt.IsZero() {
		q.UpdatedAt = time.Now()
	}
	if err := updateStatus(ctx, tx, q); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit resolution: %w", err)
	}
	return nil
}

func (c *Client) DeleteUnanswered(ctx context.Context, tenantID, id int64) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	res, err := c.db.ExecContext(ctx, `DELETE FROM unanswered_queries WHERE id = ? AND tenant_id = ?`, id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete unanswered query: %w", err)
	}
	return requireOne(res)
}

func scanUnanswered(row rowScanner) (*models.UnansweredQuery, error) {
	var q models.UnansweredQuery
	var status, priority string
	var entryID sql.NullInt64
	var firstAsked, lastAsked, createdAt, updatedAt int64

	err := row.Scan(
		&q.ID,
		&q.TenantID,
		&q.Query,
		&q.Frequency,
		&status,
		&priority,
		&q.IPAddress,
		&q.UserAgent,
		&q.SessionID,
		&entryID,
		&firstAsked,
		&lastAsked,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	q.Status = models.UnansweredStatus(status)
	q.Priority = models.Priority(priority)
	if entryID.Valid {
		id := entryID.Int64
		q.KnowledgeEntryID = &id
	}
	q.FirstAskedAt = fromUnix(firstAsked)
	q.LastAskedAt = fromUnix(lastAsked)
	q.CreatedAt = fromUnix(createdAt)
	q.UpdatedAt = fromUnix(updatedAt)
	return &q, nil
}

func nullID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}
