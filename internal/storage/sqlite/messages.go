package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amitsahu0611/chatbot-sub001/internal/storage/models"
)

const messageColumns = `id, tenant_id, session_token, direction, content, metadata, reaction, created_at`

func (c *Client) AppendMessage(ctx context.Context, m *models.ChatMessage) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	metaJSON, err := json.Marshal(m.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode message metadata: %w", err)
	}

	res, err := c.db.ExecContext(ctx,
		`INSERT INTO chat_messages (tenant_id, session_token, direction, content, metadata, reaction, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.TenantID,
		m.SessionToken,
		string(m.Direction),
		m.Content,
		string(metaJSON),
		string(m.Reaction),
		unix(m.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chat message: %w", err)
	}

	m.ID, err = res.LastInsertId()
	return err
}

// ListSessionMessages returns one page of the session's messages, newest
// first, and the total message count of the session.
func (c *Client) ListSessionMessages(ctx context.Context, tenantID int64, token string, offset, limit int) ([]models.ChatMessage, int, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	var total int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chat_messages WHERE tenant_id = ? AND session_token = ?`, tenantID, token).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	if limit <= 0 {
		limit = -1
	}
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM chat_messages
		WHERE tenant_id = ? AND session_token = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`,
		tenantID, token, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	out := []models.ChatMessage{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, *m)
	}
	return out, total, rows.Err()
}

func (c *Client) GetMessage(ctx context.Context, tenantID, id int64) (*models.ChatMessage, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	m, err := scanMessage(c.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM chat_messages WHERE id = ? AND tenant_id = ?`, id, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return m, nil
}

func (c *Client) SetMessageReaction(ctx context.Context, tenantID, id int64, r models.Reaction) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	res, err := c.db.ExecContext(ctx,
		`UPDATE chat_messages SET reaction = ? WHERE id = ? AND tenant_id = ?`, string(r), id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to set reaction: %w", err)
	}
	return requireOne(res)
}

func scanMessage(row rowScanner) (*models.ChatMessage, error) {
	var m models.ChatMessage
	var direction, metaJSON, reaction string
	var createdAt int64

	err := row.Scan(
		&m.ID,
		&m.TenantID,
		&m.SessionToken,
		&direction,
		&m.Content,
		&metaJSON,
		&reaction,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	m.Direction = models.Direction(direction)
	m.Reaction = models.Reaction(reaction)
	json.Unmarshal([]byte(metaJSON), &m.Metadata)
	m.CreatedAt = fromUnix(createdAt)
	return &m, nil
}
