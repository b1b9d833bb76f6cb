package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/amitsahu0611/chatbot-sub001/internal/storage/models"
)

// Visitor sessions

func (s *Store) CreateSession(ctx context.Context, vs *models.VisitorSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	if _, dup := s.sessions[vs.Token]; dup {
		return models.ErrConflict
	}
	vs.ID = s.id()
	cp := *vs
	s.sessions[vs.Token] = &cp
	return nil
}

func (s *Store) FindActiveSession(ctx context.Context, tenantID int64, ip string, now time.Time) (*models.VisitorSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var candidates []*models.VisitorSession
	for _, vs := range s.sessions {
		if vs.TenantID == tenantID && vs.IPAddress == ip && vs.Live(now) {
			candidates = append(candidates, vs)
		}
	}
	if len(candidates) == 0 {
		return nil, models.ErrNotFound
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if !a.LastActivity.Equal(b.LastActivity) {
			return a.LastActivity.After(b.LastActivity)
		}
		return a.ID > b.ID
	})
	cp := *candidates[0]
	return &cp, nil
}

func (s *Store) GetSessionByToken(ctx context.Context, token string) (*models.VisitorSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	vs, ok := s.sessions[token]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *vs
	return &cp, nil
}

func (s *Store) ExpireSessionsFor(ctx context.Context, tenantID int64, ip string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	var n int64
	for _, vs := range s.sessions {
		if vs.TenantID == tenantID && vs.IPAddress == ip && vs.Active && !vs.ExpiresAt.After(now) {
			vs.Active = false
			n++
		}
	}
	return n, nil
}

func (s *Store) SweepExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	var n int64
	for _, vs := range s.sessions {
		if vs.Active && !vs.ExpiresAt.After(now) {
			vs.Active = false
			n++
		}
	}
	return n, nil
}

func (s *Store) UpdateSessionVisitor(ctx context.Context, vs *models.VisitorSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	cur, ok := s.sessions[vs.Token]
	if !ok {
		return models.ErrNotFound
	}
	cur.VisitorName = vs.VisitorName
	cur.VisitorEmail = vs.VisitorEmail
	cur.VisitorPhone = vs.VisitorPhone
	cur.Topic = vs.Topic
	cur.LastActivity = vs.LastActivity
	cur.ExpiresAt = vs.ExpiresAt
	return nil
}

func (s *Store) TouchSession(ctx context.Context, token string, lastActivity, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	cur, ok := s.sessions[token]
	if !ok {
		return models.ErrNotFound
	}
	cur.LastActivity = lastActivity
	cur.ExpiresAt = expiresAt
	return nil
}

func (s *Store) IncrementSessionMessages(ctx context.Context, token string, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	cur, ok := s.sessions[token]
	if !ok {
		return models.ErrNotFound
	}
	cur.MessageCount += n
	return nil
}

func (s *Store) MarkSessionLeadCreated(ctx context.Context, token string, leadID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	cur, ok := s.sessions[token]
	if !ok {
		return models.ErrNotFound
	}
	cur.LeadCreated = true
	id := leadID
	cur.LeadID = &id
	return nil
}

// Leads

func (s *Store) FindLeadByEmail(ctx context.Context, tenantID int64, email string) (*models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	for _, l := range s.leads {
		if l.TenantID == tenantID && l.Email != "" && strings.EqualFold(l.Email, email) {
			cp := copyLead(l)
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *Store) CreateLead(ctx context.Context, l *models.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	if l.Email != "" {
		for _, cur := range s.leads {
			if cur.TenantID == l.TenantID && strings.EqualFold(cur.Email, l.Email) {
				return models.ErrConflict
			}
		}
	}
	l.ID = s.id()
	cp := copyLead(l)
	s.leads[l.ID] = &cp
	return nil
}

func (s *Store) UpdateLead(ctx context.Context, l *models.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	cur, ok := s.leads[l.ID]
	if !ok || cur.TenantID != l.TenantID {
		return models.ErrNotFound
	}
	cp := copyLead(l)
	cp.CreatedAt = cur.CreatedAt
	s.leads[l.ID] = &cp
	return nil
}

// Leads returns every lead of a tenant ordered by id.
func (s *Store) Leads(tenantID int64) []models.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Lead{}
	for _, l := range s.leads {
		if l.TenantID == tenantID {
			out = append(out, copyLead(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func copyLead(l *models.Lead) models.Lead {
	cp := *l
	cp.CustomFields = copyBag(l.CustomFields)
	cp.Metadata = copyBag(l.Metadata)
	return cp
}

func copyBag(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Chat messages

func (s *Store) AppendMessage(ctx context.Context, m *models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	m.ID = s.id()
	cp := *m
	cp.Metadata.EntryIDs = append([]int64(nil), m.Metadata.EntryIDs...)
	s.messages = append(s.messages, &cp)
	return nil
}

// ListSessionMessages returns one page of the session's messages, newest first,
// and the total number of messages in the session.
func (s *Store) ListSessionMessages(ctx context.Context, tenantID int64, token string, offset, limit int) ([]models.ChatMessage, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, 0, err
	}

	var all []models.ChatMessage
	for i := len(s.messages) - 1; i >= 0; i-- {
		m := s.messages[i]
		if m.TenantID == tenantID && m.SessionToken == token {
			all = append(all, *m)
		}
	}
	total := len(all)
	if offset >= total {
		return []models.ChatMessage{}, total, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (s *Store) GetMessage(ctx context.Context, tenantID, id int64) (*models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	for _, m := range s.messages {
		if m.ID == id && m.TenantID == tenantID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *Store) SetMessageReaction(ctx context.Context, tenantID, id int64, r models.Reaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	for _, m := range s.messages {
		if m.ID == id && m.TenantID == tenantID {
			m.Reaction = r
			return nil
		}
	}
	return models.ErrNotFound
}
