package memory

import (
	"context"
	"sort"
	"time"

	"github.com/amitsahu0611/chatbot-sub001/internal/storage/models"
)

func (s *Store) ListPendingUnanswered(ctx context.Context, tenantID int64, limit int) ([]models.UnansweredQuery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	out := s.filterUnanswered(models.UnansweredFilter{
		TenantID: tenantID,
		Status:   models.UnansweredPending,
		Sort:     models.SortLastAsked,
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CreateUnanswered(ctx context.Context, q *models.UnansweredQuery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	q.ID = s.id()
	cp := *q
	s.unanswered[q.ID] = &cp
	return nil
}

func (s *Store) UpdateUnansweredOccurrence(ctx context.Context, q *models.UnansweredQuery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	cur, ok := s.unanswered[q.ID]
	if !ok || cur.TenantID != q.TenantID {
		return models.ErrNotFound
	}
	cur.Frequency = q.Frequency
	cur.Priority = q.Priority
	cur.LastAskedAt = q.LastAskedAt
	cur.IPAddress = q.IPAddress
	cur.UserAgent = q.UserAgent
	cur.SessionID = q.SessionID
	cur.UpdatedAt = q.UpdatedAt
	return nil
}

func (s *Store) GetUnanswered(ctx context.Context, tenantID, id int64) (*models.UnansweredQuery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	q, ok := s.unanswered[id]
	if !ok || q.TenantID != tenantID {
		return nil, models.ErrNotFound
	}
	cp := *q
	return &cp, nil
}

func (s *Store) ListUnanswered(ctx context.Context, f models.UnansweredFilter) ([]models.UnansweredQuery, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, 0, err
	}

	all := s.filterUnanswered(f)
	total := len(all)
	if f.Offset >= total {
		return []models.UnansweredQuery{}, total, nil
	}
	all = all[f.Offset:]
	if f.Limit > 0 && len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, total, nil
}

func (s *Store) filterUnanswered(f models.UnansweredFilter) []models.UnansweredQuery {
	out := []models.UnansweredQuery{}
	for _, q := range s.unanswered {
		if q.TenantID != f.TenantID {
			continue
		}
		if f.Status != "" && q.Status != f.Status {
			continue
		}
		if f.Priority != "" && q.Priority != f.Priority {
			continue
		}
		out = append(out, *q)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch f.Sort {
		case models.SortFrequency:
			if a.Frequency != b.Frequency {
				return a.Frequency > b.Frequency
			}
		case models.SortPriority:
			if a.Priority.Rank() != b.Priority.Rank() {
				return a.Priority.Rank() > b.Priority.Rank()
			}
			if a.Frequency != b.Frequency {
				return a.Frequency > b.Frequency
			}
		}
		if !a.LastAskedAt.Equal(b.LastAskedAt) {
			return a.LastAskedAt.After(b.LastAskedAt)
		}
		return a.ID > b.ID
	})
	return out
}

func (s *Store) UnansweredStats(ctx context.Context, tenantID int64) (models.UnansweredStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats models.UnansweredStats
	if err := s.check(ctx); err != nil {
		return stats, err
	}
	for _, q := range s.unanswered {
		if q.TenantID != tenantID {
			continue
		}
		stats.Total++
		switch q.Status {
		case models.UnansweredPending:
			stats.Pending++
		case models.UnansweredAnswered:
			stats.Answered++
		case models.UnansweredIgnored:
			stats.Ignored++
		}
		if q.Priority == models.PriorityHigh {
			stats.HighPriority++
		}
	}
	return stats, nil
}

func (s *Store) UpdateUnansweredStatus(ctx context.Context, q *models.UnansweredQuery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.setStatus(q)
}

func (s *Store) setStatus(q *models.UnansweredQuery) error {
	cur, ok := s.unanswered[q.ID]
	if !ok || cur.TenantID != q.TenantID {
		return models.ErrNotFound
	}
	cur.Status = q.Status
	cur.KnowledgeEntryID = q.KnowledgeEntryID
	cur.UpdatedAt = q.UpdatedAt
	return nil
}

func (s *Store) ResolveUnansweredWithEntry(ctx context.Context, q *models.UnansweredQuery, e *models.KnowledgeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	cur, ok := s.unanswered[q.ID]
	if !ok || cur.TenantID != q.TenantID {
		return models.ErrNotFound
	}

	s.insertKnowledge(e)
	id := e.ID
	q.KnowledgeEntryID = &id
	if q.UpdatedAt.IsZero() {
		q.UpdatedAt = time.Now()
	}
	return s.setStatus(q)
}

func (s *Store) DeleteUnanswered(ctx context.Context, tenantID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	q, ok := s.unanswered[id]
	if !ok || q.TenantID != tenantID {
		return models.ErrNotFound
	}
	delete(s.unanswered, id)
	return nil
}
