// Package unanswered keeps a deduplicated, frequency-ranked record of the
// questions the knowledge base could not answer.
package unanswered

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/amitsahu0611/chatbot-sub001/internal/ingestion"
	"github.com/amitsahu0611/chatbot-sub001/internal/keywords"
	"github.com/amitsahu0611/chatbot-sub001/internal/storage/models"
	"github.com/amitsahu0611/chatbot-sub001/pkg/logger"
)

var (
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidPriority = errors.New("invalid priority")
	ErrAnswerRequired  = errors.New("answer is required to create a knowledge entry")
	ErrEmptyQuery      = errors.New("query is empty")
)

const (
	mediumThreshold = 5
	highThreshold   = 10

	maxQueryLength = 500
)

type Store interface {
	ListPendingUnanswered(ctx context.Context, tenantID int64, limit int) ([]models.UnansweredQuery, error)
	CreateUnanswered(ctx context.Context, q *models.UnansweredQuery) error
	UpdateUnansweredOccurrence(ctx context.Context, q *models.UnansweredQuery) error
	GetUnanswered(ctx context.Context, tenantID, id int64) (*models.UnansweredQuery, error)
	ListUnanswered(ctx context.Context, f models.UnansweredFilter) ([]models.UnansweredQuery, int, error)
	UnansweredStats(ctx context.Context, tenantID int64) (models.UnansweredStats, error)
	UpdateUnansweredStatus(ctx context.Context, q *models.UnansweredQuery) error
	ResolveUnansweredWithEntry(ctx context.Context, q *models.UnansweredQuery, e *models.KnowledgeEntry) error
	DeleteUnanswered(ctx context.Context, tenantID, id int64) error
	GetKnowledgeEntry(ctx context.Context, tenantID, id int64) (*models.KnowledgeEntry, error)
}

type Config struct {
	// ScanWindow is how many of the most recently asked pending records a new
	// query is compared against. 1 compares against the latest only.
	ScanWindow int
	// SimilarityThreshold is the keyword Jaccard index at which two queries
	// count as the same question.
	SimilarityThreshold float64
}

type Tracker struct {
	store  Store
	ingest *ingestion.Processor
	cfg    Config
	now    func() time.Time

	// OnKnowledgeChange, when set, is called after a resolution adds a
	// knowledge entry for the tenant.
	OnKnowledgeChange func(tenantID int64)
}

func NewTracker(store Store, ingest *ingestion.Processor, cfg Config, now func() time.Time) *Tracker {
	if cfg.ScanWindow <= 0 {
		cfg.ScanWindow = 1
	}
	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		cfg.SimilarityThreshold = 0.75
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{store: store, ingest: ingest, cfg: cfg, now: now}
}

type Occurrence struct {
	TenantID  int64
	Query     string
	IPAddress string
	UserAgent string
	SessionID string
}

// RecordIfLowQuality records occ when lowQuality is set and is a no-op
// otherwise.
func (t *Tracker) RecordIfLowQuality(ctx context.Context, occ Occurrence, lowQuality bool) (*models.UnansweredQuery, error) {
	if !lowQuality {
		return nil, nil
	}
	return t.Record(ctx, occ)
}

// Record folds occ into the matching pending record of the tenant, or opens a
// new one with frequency 1.
func (t *Tracker) Record(ctx context.Context, occ Occurrence) (*models.UnansweredQuery, error) {
	if occ.TenantID <= 0 {
		return nil, models.ErrInvalidTenant
	}
	text := Normalize(occ.Query)
	if text == "" {
		return nil, ErrEmptyQuery
	}

	pending, err := t.store.ListPendingUnanswered(ctx, occ.TenantID, t.cfg.ScanWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending queries: %w", err)
	}

	now := t.now()
	for i := range pending {
		existing := &pending[i]
		if existing.TenantID != occ.TenantID || !Similar(existing.Query, text, t.cfg.SimilarityThreshold) {
			continue
		}

		existing.Frequency++
		existing.Priority = PriorityFor(existing.Frequency)
		existing.LastAskedAt = now
		existing.UpdatedAt = now
		existing.IPAddress = occ.IPAddress
		existing.UserAgent = occ.UserAgent
		existing.SessionID = occ.SessionID

		if err := t.store.UpdateUnansweredOccurrence(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to update unanswered query: %w", err)
		}

		logger.Debug("Unanswered query repeated",
			zap.Int64("tenant_id", occ.TenantID),
			zap.Int64("id", existing.ID),
			zap.Int("frequency", existing.Frequency),
		)
		return existing, nil
	}

	q := &models.UnansweredQuery{
		TenantID:     occ.TenantID,
		Query:        text,
		Frequency:    1,
		Status:       models.UnansweredPending,
		Priority:     PriorityFor(1),
		IPAddress:    occ.IPAddress,
		UserAgent:    occ.UserAgent,
		SessionID:    occ.SessionID,
		FirstAskedAt: now,
		LastAskedAt:  now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := t.store.CreateUnanswered(ctx, q); err != nil {
		return nil, fmt.Errorf("failed to create unanswered query: %w", err)
	}

	logger.Info("Unanswered query recorded",
		zap.Int64("tenant_id", occ.TenantID),
		zap.Int64("id", q.ID),
	)
	return q, nil
}

// PriorityFor maps a frequency to its triage priority.
func PriorityFor(frequency int) models.Priority {
	switch {
	case frequency >= highThreshold:
		return models.PriorityHigh
	case frequency >= mediumThreshold:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

var spaces = regexp.MustCompile(`\s+`)

// Normalize lowercases q, collapses whitespace and strips trailing
// punctuation.
func Normalize(q string) string {
	q = strings.ToLower(spaces.ReplaceAllString(q, " "))
	q = strings.Trim(q, " ?!.,;:")
	if len(q) > maxQueryLength {
		cut := maxQueryLength
		for cut > 0 && !utf8.RuneStart(q[cut]) {
			cut--
		}
		q = strings.TrimSpace(q[:cut])
	}
	return q
}

// Similar reports whether two normalized queries ask the same thing: one
// contains the other on word boundaries, or their keyword sets overlap by at
// least threshold.
func Similar(a, b string, threshold float64) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b || containsPhrase(a, b) || containsPhrase(b, a) {
		return true
	}
	return jaccard(keywords.Extract(a), keywords.Extract(b)) >= threshold
}

func containsPhrase(haystack, needle string) bool {
	return strings.Contains(" "+wordsOf(haystack)+" ", " "+wordsOf(needle)+" ")
}

func wordsOf(s string) string {
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, w := range a {
		set[w] = true
	}
	inter := 0
	for _, w := range b {
		if set[w] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
