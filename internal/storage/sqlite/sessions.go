package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/amitsahu0611/chatbot-sub001/internal/storage/models"
)

const sessionColumns = `id, tenant_id, session_token, ip_address, visitor_name, visitor_email,
	visitor_phone, topic, created_at, last_activity, expires_at, active, message_count, lead_created, lead_id`

func (c *Client) CreateSession(ctx context.Context, s *models.VisitorSession) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	query := `
		INSERT INTO visitor_sessions (tenant_id, session_token, ip_address, visitor_name, visitor_email,
			visitor_phone, topic, created_at, last_activity, expires_at, active, message_count, lead_created, lead_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := c.db.ExecContext(ctx, query,
		s.TenantID,
		s.Token,
		s.IPAddress,
		s.VisitorName,
		s.VisitorEmail,
		s.VisitorPhone,
		s.Topic,
		unix(s.CreatedAt),
		unix(s.LastActivity),
		unix(s.ExpiresAt),
		boolInt(s.Active),
		s.MessageCount,
		boolInt(s.LeadCreated),
		nullID(s.LeadID),
	)
	if isUniqueViolation(err) {
		return models.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	s.ID, err = res.LastInsertId()
	return err
}

// FindActiveSession returns the most recently active live session of the
// visitor at ip.
func (c *Client) FindActiveSession(ctx context.Context, tenantID int64, ip string, now time.Time) (*models.VisitorSession, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	query := `SELECT ` + sessionColumns + ` FROM visitor_sessions
		WHERE ip_address = ? AND tenant_id = ? AND active = 1 AND expires_at > ?
		ORDER BY last_activity DESC, id DESC
		LIMIT 1`
	s, err := scanSession(c.db.QueryRowContext(ctx, query, ip, tenantID, unix(now)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active session: %w", err)
	}
	return s, nil
}

func (c *Client) GetSessionByToken(ctx context.Context, token string) (*models.VisitorSession, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	query := `SELECT ` + sessionColumns + ` FROM visitor_sessions WHERE session_token = ?`
	s, err := scanSession(c.db.QueryRowContext(ctx, query, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

func (c *Client) ExpireSessionsFor(ctx context.Context, tenantID int64, ip string, now time.Time) (int64, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	res, err := c.db.ExecContext(ctx,
		`UPDATE visitor_sessions SET active = 0 WHERE ip_address = ? AND tenant_id = ? AND active = 1 AND expires_at <= ?`,
		ip, tenantID, unix(now))
	if err != nil {
		return 0, fmt.Errorf("failed to expire sessions: %w", err)
	}
	return res.RowsAffected()
}

func (c *Client) SweepExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	res, err := c.db.ExecContext(ctx,
		`UPDATE visitor_sessions SET active = 0 WHERE active = 1 AND expires_at <= ?`, unix(now))
	if err != nil {
		return 0, fmt.Errorf("failed to sweep sessions: %w", err)
	}
	return res.RowsAffected()
}

func (c *Client) UpdateSessionVisitor(ctx context.Context, s *models.VisitorSession) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	query := `
		UPDATE visitor_sessions
		SET visitor_name = ?, visitor_email = ?, visitor_phone = ?, topic = ?, last_activity = ?, expires_at = ?
		WHERE session_token = ?
	`
	res, err := c.db.ExecContext(ctx, query,
		s.VisitorName,
		s.VisitorEmail,
		s.VisitorPhone,
		s.Topic,
		unix(s.LastActivity),
		unix(s.ExpiresAt),
		s.Token,
	)
	if err != nil {
		return fmt.Errorf("failed to update session visitor: %w", err)
	}
	return requireOne(res)
}

func (c *Client) TouchSession(ctx context.Context, token string, lastActivity, expiresAt time.Time) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	res, err := c.db.ExecContext(ctx,
		`UPDATE visitor_sessions SET last_activity = ?, expires_at = ? WHERE session_token = ?`,
		unix(lastActivity), unix(expiresAt), token)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return requireOne(res)
}

func (c *Client) IncrementSessionMessages(ctx context.Context, token string, n int) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	res, err := c.db.ExecContext(ctx,
		`UPDATE visitor_sessions SET message_count = message_count + ? WHERE session_token = ?`, n, token)
	if err != nil {
		return fmt.Errorf("failed to increment session messages: %w", err)
	}
	return requireOne(res)
}

func (c *Client) MarkSessionLeadCreated(ctx context.Context, token string, leadID int64) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	res, err := c.db.ExecContext(ctx,
		`UPDATE visitor_sessions SET lead_created = 1, lead_id = ? WHERE session_token = ?`, leadID, token)
	if err != nil {
		return fmt.Errorf("failed to mark lead created: %w", err)
	}
	return requireOne(res)
}

func scanSession(row rowScanner) (*models.VisitorSession, error) {
	var s models.VisitorSession
	var createdAt, lastActivity, expiresAt int64
	var active, leadCreated int
	var leadID sql.NullInt64

	err := row.Scan(
		&s.ID,
		&s.TenantID,
		&s.Token,
		&s.IPAddress,
		&s.VisitorName,
		&s.VisitorEmail,
		&s.VisitorPhone,
		&s.Topic,
		&createdAt,
		&lastActivity,
		&expiresAt,
		&active,
		&s.MessageCount,
		&leadCreated,
		&leadID,
	)
	if err != nil {
		return nil, err
	}

	s.CreatedAt = fromUnix(createdAt)
	s.LastActivity = fromUnix(lastActivity)
	s.ExpiresAt = fromUnix(expiresAt)
	s.Active = active == 1
	s.LeadCreated = leadCreated == 1
	if leadID.Valid {
		id := leadID.Int64
		s.LeadID = &id
	}
	return &s, nil
}
