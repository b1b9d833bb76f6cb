// Package memory is a process-local implementation of every repository the
// chat pipeline needs. It backs tests and the "memory" storage driver.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/amitsahu0611/chatbot-sub001/internal/storage/models"
)

type Store struct {
	mu sync.Mutex

	nextID int64

	knowledge  map[int64]*models.KnowledgeEntry
	unanswered map[int64]*models.UnansweredQuery
	sessions   map[string]*models.VisitorSession
	leads      map[int64]*models.Lead
	messages   []*models.ChatMessage

	// Fail, when set, is returned by every call. Tests use it to simulate an
	// unreachable backend.
	Fail error
}

func New() *Store {
	return &Store{
		knowledge:  make(map[int64]*models.KnowledgeEntry),
		unanswered: make(map[int64]*models.UnansweredQuery),
		sessions:   make(map[string]*models.VisitorSession),
		leads:      make(map[int64]*models.Lead),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.check(ctx)
}

func (s *Store) Close() error { return nil }

func (s *Store) check(ctx context.Context) error {
	if s.Fail != nil {
		return s.Fail
	}
	return ctx.Err()
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// Knowledge entries

func (s *Store) CreateKnowledgeEntry(ctx context.Context, e *models.KnowledgeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	s.insertKnowledge(e)
	return nil
}

func (s *Store) insertKnowledge(e *models.KnowledgeEntry) {
	e.ID = s.id()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = e.CreatedAt
	}
	cp := *e
	cp.Tags = append([]string(nil), e.Tags...)
	s.knowledge[e.ID] = &cp
}

func (s *Store) GetKnowledgeEntry(ctx context.Context, tenantID, id int64) (*models.KnowledgeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	e, ok := s.knowledge[id]
	if !ok || e.TenantID != tenantID {
		return nil, models.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *Store) SearchKnowledge(ctx context.Context, q models.KnowledgeQuery) ([]models.KnowledgeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if q.TenantID <= 0 || len(q.Terms) == 0 {
		return []models.KnowledgeEntry{}, nil
	}

	var out []models.KnowledgeEntry
	for _, e := range s.knowledge {
		if e.TenantID != q.TenantID || !e.Active {
			continue
		}
		if matchesTerms(e, q.Terms, q.MatchAny) {
			cp := *e
			out = append(out, cp)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Views != b.Views {
			return a.Views > b.Views
		}
		if a.HelpfulCount != b.HelpfulCount {
			return a.HelpfulCount > b.HelpfulCount
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID > b.ID
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	if out == nil {
		out = []models.KnowledgeEntry{}
	}
	return out, nil
}

func matchesTerms(e *models.KnowledgeEntry, terms []string, any bool) bool {
	fields := []string{
		strings.ToLower(e.Question),
		strings.ToLower(e.Answer),
		strings.ToLower(e.Category),
	}
	for _, term := range terms {
		hit := false
		for _, f := range fields {
			if strings.Contains(f, strings.ToLower(term)) {
				hit = true
				break
			}
		}
		if any && hit {
			return true
		}
		if !any && !hit {
			return false
		}
	}
	return !any
}

func (s *Store) IncrementKnowledgeViews(ctx context.Context, tenantID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	e, ok := s.knowledge[id]
	if !ok || e.TenantID != tenantID {
		return models.ErrNotFound
	}
	e.Views++
	return nil
}

func (s *Store) RecordKnowledgeFeedback(ctx context.Context, tenantID, id int64, helpful bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	e, ok := s.knowledge[id]
	if !ok || e.TenantID != tenantID {
		return models.ErrNotFound
	}
	if helpful {
		e.HelpfulCount++
	} else {
		e.NotHelpfulCount++
	}
	return nil
}
