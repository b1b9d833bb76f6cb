package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/amitsahu0611/chatbot-sub001/internal/storage/models"
)

const leadColumns = `id, tenant_id, visitor_id, name, email, phone, status, priority, source, chat_count,
	form_submissions, visit_count, notes, custom_fields, metadata, first_visit, last_visit, created_at, updated_at`

func (c *Client) FindLeadByEmail(ctx context.Context, tenantID int64, email string) (*models.Lead, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	query := `SELECT ` + leadColumns + ` FROM leads WHERE tenant_id = ? AND email <> '' AND LOWER(email) = LOWER(?)`
	l, err := scanLead(c.db.QueryRowContext(ctx, query, tenantID, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find lead: %w", err)
	}
	return l, nil
}

// CreateLead returns models.ErrConflict when the tenant already has a lead
// with the same email.
func (c *Client) CreateLead(ctx context.Context, l *models.Lead) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	customJSON, metaJSON, err := encodeBags(l)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO leads (tenant_id, visitor_id, name, email, phone, status, priority, source, chat_count,
			form_submissions, visit_count, notes, custom_fields, metadata, first_visit, last_visit, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := c.db.ExecContext(ctx, query,
		l.TenantID,
		l.VisitorID,
		l.Name,
		l.Email,
		l.Phone,
		string(l.Status),
		string(l.Priority),
		l.Source,
		l.ChatCount,
		l.FormSubmissions,
		l.VisitCount,
		l.Notes,
		customJSON,
		metaJSON,
		unix(l.FirstVisit),
		unix(l.LastVisit),
		unix(l.CreatedAt),
		unix(l.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return models.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to insert lead: %w", err)
	}

	l.ID, err = res.LastInsertId()
	return err
}

func (c *Client) UpdateLead(ctx context.Context, l *models.Lead) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	customJSON, metaJSON, err := encodeBags(l)
	if err != nil {
		return err
	}

	query := `
		UPDATE leads
		SET visitor_id = ?, name = ?, email = ?, phone = ?, status = ?, priority = ?, source = ?, chat_count = ?,
			form_submissions = ?, visit_count = ?, notes = ?, custom_fields = ?, metadata = ?, last_visit = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ?
	`
	res, err := c.db.ExecContext(ctx, query,
		l.VisitorID,
		l.Name,
		l.Email,
		l.Phone,
		string(l.Status),
		string(l.Priority),
		l.Source,
		l.ChatCount,
		l.FormSubmissions,
		l.VisitCount,
		l.Notes,
		customJSON,
		metaJSON,
		unix(l.LastVisit),
		unix(l.UpdatedAt),
		l.ID,
		l.TenantID,
	)
	if err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}
	return requireOne(res)
}

func encodeBags(l *models.Lead) (string, string, error) {
	custom := l.CustomFields
	if custom == nil {
		custom = map[string]any{}
	}
	meta := l.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	customJSON, err := json.Marshal(custom)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode custom fields: %w", err)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(customJSON), string(metaJSON), nil
}

func scanLead(row rowScanner) (*models.Lead, error) {
	var l models.Lead
	var status, priority, customJSON, metaJSON string
	var firstVisit, lastVisit, createdAt, updatedAt int64

	err := row.Scan(
		&l.ID,
		&l.TenantID,
		&l.VisitorID,
		&l.Name,
		&l.Email,
		&l.Phone,
		&status,
		&priority,
		&l.Source,
		&l.ChatCount,
		&l.FormSubmissions,
		&l.VisitCount,
		&l.Notes,
		&customJSON,
		&metaJSON,
		&firstVisit,
		&lastVisit,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.Status = models.LeadStatus(status)
	l.Priority = models.Priority(priority)
	json.Unmarshal([]byte(customJSON), &l.CustomFields)
	json.Unmarshal([]byte(metaJSON), &l.Metadata)
	l.FirstVisit = fromUnix(firstVisit)
	l.LastVisit = fromUnix(lastVisit)
	l.CreatedAt = fromUnix(createdAt)
	l.UpdatedAt = fromUnix(updatedAt)
	return &l, nil
}
