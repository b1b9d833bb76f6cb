// Package matcher finds the knowledge entries that answer a visitor query.
package matcher

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/amitsahu0611/chatbot-sub001/internal/keywords"
	"github.com/amitsahu0611/chatbot-sub001/internal/storage/models"
	"github.com/amitsahu0611/chatbot-sub001/pkg/logger"
)

type Tier int

const (
	TierNone Tier = iota
	TierExact
	TierBroad
	TierPartial
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierBroad:
		return "broad"
	case TierPartial:
		return "partial"
	}
	return "none"
}

type Result struct {
	Entries []models.KnowledgeEntry
	Tier    Tier
}

// KnowledgeMatcher returns up to limit active entries of tenantID ranked by
// relevance. Implementations never return entries of another tenant.
type KnowledgeMatcher interface {
	Match(ctx context.Context, tenantID int64, query string, limit int) (Result, error)
}

type KnowledgeSearcher interface {
	SearchKnowledge(ctx context.Context, q models.KnowledgeQuery) ([]models.KnowledgeEntry, error)
}

// TieredMatcher widens the search in three passes, stopping at the first that
// yields anything: every keyword, every raw word, then any raw word of three
// or more characters.
type TieredMatcher struct {
	store KnowledgeSearcher
}

func NewTieredMatcher(store KnowledgeSearcher) *TieredMatcher {
	return &TieredMatcher{store: store}
}

type tier struct {
	level    Tier
	terms    func(string) []string
	matchAny bool
}

var tiers = []tier{
	{TierExact, keywords.Extract, false},
	{TierBroad, func(q string) []string {
		return keywords.Tokenize(q, keywords.Options{MinLength: 2, KeepStopWords: true})
	}, false},
	{TierPartial, func(q string) []string {
		return keywords.Tokenize(q, keywords.Options{MinLength: 3, KeepStopWords: true})
	}, true},
}

func (m *TieredMatcher) Match(ctx context.Context, tenantID int64, query string, limit int) (Result, error) {
	if tenantID <= 0 {
		return Result{Entries: []models.KnowledgeEntry{}}, nil
	}

	for _, t := range tiers {
		terms := t.terms(query)
		if len(terms) == 0 {
			continue
		}

		entries, err := m.store.SearchKnowledge(ctx, models.KnowledgeQuery{
			TenantID: tenantID,
			Terms:    terms,
			MatchAny: t.matchAny,
			Limit:    limit,
		})
		if err != nil {
			return Result{}, fmt.Errorf("%s tier search failed: %w", t.level, err)
		}

		entries = scoped(entries, tenantID)
		if len(entries) > 0 {
			logger.Debug("Knowledge matched",
				zap.Int64("tenant_id", tenantID),
				zap.String("tier", t.level.String()),
				zap.Int("count", len(entries)),
			)
			return Result{Entries: entries, Tier: t.level}, nil
		}
	}

	return Result{Entries: []models.KnowledgeEntry{}, Tier: TierNone}, nil
}

// scoped drops anything a misbehaving store returned for another tenant or
// that has been disabled.
func scoped(entries []models.KnowledgeEntry, tenantID int64) []models.KnowledgeEntry {
	out := entries[:0]
	for _, e := range entries {
		if e.TenantID == tenantID && e.Active {
			out = append(out, e)
		}
	}
	return out
}
