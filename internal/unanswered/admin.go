package unanswered

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/amitsahu0611/chatbot-sub001/internal/ingestion"
	"github.com/amitsahu0611/chatbot-sub001/internal/storage/models"
	"github.com/amitsahu0611/chatbot-sub001/pkg/logger"
)

type ListResult struct {
	Queries []models.UnansweredQuery
	Total   int
	Stats   models.UnansweredStats
}

func (t *Tracker) List(ctx context.Context, f models.UnansweredFilter) (*ListResult, error) {
	if f.TenantID <= 0 {
		return nil, models.ErrInvalidTenant
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return nil, ErrInvalidPriority
	}
	switch f.Sort {
	case models.SortLastAsked, models.SortFrequency, models.SortPriority:
	default:
		f.Sort = models.SortLastAsked
	}

	queries, total, err := t.store.ListUnanswered(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list unanswered queries: %w", err)
	}
	stats, err := t.store.UnansweredStats(ctx, f.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load unanswered stats: %w", err)
	}

	return &ListResult{Queries: queries, Total: total, Stats: stats}, nil
}

func (t *Tracker) Get(ctx context.Context, tenantID, id int64) (*models.UnansweredQuery, error) {
	if tenantID <= 0 {
		return nil, models.ErrInvalidTenant
	}
	return t.store.GetUnanswered(ctx, tenantID, id)
}

// Update is an admin change to one record. AutoCreateEntry turns Answer into
// a new knowledge entry linked to the record and marks it answered.
type Update struct {
	Status          *models.UnansweredStatus
	RelatedEntryID  *int64
	AutoCreateEntry bool
	Answer          string
	Category        string
}

func (t *Tracker) Update(ctx context.Context, tenantID, id int64, u Update) (*models.UnansweredQuery, error) {
	if tenantID <= 0 {
		return nil, models.ErrInvalidTenant
	}
	if u.Status != nil && !u.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if u.AutoCreateEntry && strings.TrimSpace(u.Answer) == "" {
		return nil, ErrAnswerRequired
	}

	q, err := t.store.GetUnanswered(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if u.Status != nil {
		q.Status = *u.Status
	}
	q.UpdatedAt = t.now()

	if u.AutoCreateEntry {
		entry, err := t.ingest.PrepareEntry(ingestion.EntryInput{
			TenantID: tenantID,
			Question: q.Query,
			Answer:   u.Answer,
			Category: u.Category,
		})
		if err != nil {
			return nil, err
		}
		q.Status = models.UnansweredAnswered

		if err := t.store.ResolveUnansweredWithEntry(ctx, q, entry); err != nil {
			return nil, fmt.Errorf("failed to resolve unanswered query: %w", err)
		}

		logger.Info("Unanswered query resolved with new entry",
			zap.Int64("tenant_id", tenantID),
			zap.Int64("id", q.ID),
			zap.Int64("entry_id", entry.ID),
		)
		if t.OnKnowledgeChange != nil {
			t.OnKnowledgeChange(tenantID)
		}
		return q, nil
	}

	if u.RelatedEntryID != nil {
		if _, err := t.store.GetKnowledgeEntry(ctx, tenantID, *u.RelatedEntryID); err != nil {
			return nil, fmt.Errorf("related entry %d: %w", *u.RelatedEntryID, err)
		}
		id := *u.RelatedEntryID
		q.KnowledgeEntryID = &id
		if u.Status == nil {
			q.Status = models.UnansweredAnswered
		}
	}

	if err := t.store.UpdateUnansweredStatus(ctx, q); err != nil {
		return nil, fmt.Errorf("failed to update unanswered query: %w", err)
	}

	logger.Info("Unanswered query updated",
		zap.Int64("tenant_id", tenantID),
		zap.Int64("id", q.ID),
		zap.String("status", string(q.Status)),
	)
	return q, nil
}

func (t *Tracker) Delete(ctx context.Context, tenantID, id int64) error {
	if tenantID <= 0 {
		return models.ErrInvalidTenant
	}
	if err := t.store.DeleteUnanswered(ctx, tenantID, id); err != nil {
		return err
	}
	logger.Info("Unanswered query deleted", zap.Int64("tenant_id", tenantID), zap.Int64("id", id))
	return nil
}
