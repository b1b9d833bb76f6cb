// Package leads turns engaged visitors into tenant leads, one per email.
package leads

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amitsahu0611/chatbot-sub001/internal/storage/models"
	"github.com/amitsahu0611/chatbot-sub001/pkg/logger"
)

var ErrMissingContact = errors.New("lead needs an email, phone or name")

type Store interface {
	FindLeadByEmail(ctx context.Context, tenantID int64, email string) (*models.Lead, error)
	CreateLead(ctx context.Context, l *models.Lead) error
	UpdateLead(ctx context.Context, l *models.Lead) error
}

type Engine struct {
	store Store
	now   func() time.Time
}

func NewEngine(store Store, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{store: store, now: now}
}

type Input struct {
	TenantID int64
	Email    string
	Name     string
	Phone    string
	// Source is one of the models.Source* labels. Defaults to chat widget.
	Source string
	// VisitorID identifies the visitor across sessions, typically the
	// session token. A random id is used when empty.
	VisitorID    string
	Topic        string
	IPAddress    string
	CustomFields map[string]any
}

type Result struct {
	Lead    *models.Lead
	Created bool
}

// Upsert creates the tenant's lead for in.Email or enriches the existing one.
// Repeated calls with the same email never create a second lead; a unique
// violation from a concurrent create is folded into an update.
func (e *Engine) Upsert(ctx context.Context, in Input) (*Result, error) {
	if in.TenantID <= 0 {
		return nil, models.ErrInvalidTenant
	}
	in.Email = NormalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	if in.Source == "" {
		in.Source = models.SourceChatWidget
	}
	if in.Email == "" && in.Phone == "" && in.Name == "" {
		return nil, ErrMissingContact
	}

	if in.Email != "" {
		existing, err := e.store.FindLeadByEmail(ctx, in.TenantID, in.Email)
		switch {
		case err == nil:
			return e.update(ctx, existing, in)
		case !errors.Is(err, models.ErrNotFound):
			return nil, fmt.Errorf("failed to look up lead: %w", err)
		}
	}

	lead := e.newLead(in)
	err := e.store.CreateLead(ctx, lead)
	if errors.Is(err, models.ErrConflict) && in.Email != "" {
		existing, findErr := e.store.FindLeadByEmail(ctx, in.TenantID, in.Email)
		if findErr != nil {
			return nil, fmt.Errorf("failed to reload conflicting lead: %w", findErr)
		}
		logger.Debug("Lead create raced, updating instead", zap.Int64("tenant_id", in.TenantID))
		return e.update(ctx, existing, in)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create lead: %w", err)
	}

	logger.Info("Lead created",
		zap.Int64("tenant_id", lead.TenantID),
		zap.Int64("lead_id", lead.ID),
		zap.String("source", lead.Source),
	)
	return &Result{Lead: lead, Created: true}, nil
}

func (e *Engine) newLead(in Input) *models.Lead {
	now := e.now()
	visitorID := in.VisitorID
	if visitorID == "" {
		visitorID = uuid.NewString()
	}

	lead := &models.Lead{
		TenantID:     in.TenantID,
		VisitorID:    visitorID,
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		Status:       models.LeadNew,
		Priority:     models.PriorityMedium,
		Source:       in.Source,
		VisitCount:   1,
		Notes:        note(now, in, "First contact"),
		CustomFields: in.CustomFields,
		Metadata:     metadata(in),
		FirstVisit:   now,
		LastVisit:    now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	bumpChannel(lead, in.Source)
	return lead
}

func (e *Engine) update(ctx context.Context, lead *models.Lead, in Input) (*Result, error) {
	now := e.now()

	if lead.Name == "" {
		lead.Name = in.Name
	}
	if lead.Phone == "" {
		lead.Phone = in.Phone
	}
	lead.VisitCount++
	bumpChannel(lead, in.Source)
	lead.LastVisit = now
	lead.UpdatedAt = now

	entry := note(now, in, "Returning contact")
	if lead.Notes == "" {
		lead.Notes = entry
	} else {
		lead.Notes += "\n" + entry
	}

	if len(in.CustomFields) > 0 {
		if lead.CustomFields == nil {
			lead.CustomFields = make(map[string]any, len(in.CustomFields))
		}
		for k, v := range in.CustomFields {
			lead.CustomFields[k] = v
		}
	}
	if lead.Metadata == nil {
		lead.Metadata = map[string]any{}
	}
	for k, v := range metadata(in) {
		lead.Metadata[k] = v
	}

	if err := e.store.UpdateLead(ctx, lead); err != nil {
		return nil, fmt.Errorf("failed to update lead: %w", err)
	}

	logger.Info("Lead updated",
		zap.Int64("tenant_id", lead.TenantID),
		zap.Int64("lead_id", lead.ID),
		zap.Int("visit_count", lead.VisitCount),
	)
	return &Result{Lead: lead, Created: false}, nil
}

func bumpChannel(lead *models.Lead, source string) {
	if source == models.SourceWebsiteForm {
		lead.FormSubmissions++
		return
	}
	lead.ChatCount++
}

func note(now time.Time, in Input, what string) string {
	s := fmt.Sprintf("[%s] %s via %s", now.UTC().Format(time.RFC3339), what, in.Source)
	if in.Topic != "" {
		s += ": " + in.Topic
	}
	return s
}

func metadata(in Input) map[string]any {
	m := map[string]any{}
	if in.IPAddress != "" {
		m["lastIp"] = in.IPAddress
	}
	if in.Topic != "" {
		m["lastTopic"] = in.Topic
	}
	return m
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
