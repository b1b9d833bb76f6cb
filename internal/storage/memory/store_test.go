package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amitsahu0611/chatbot-sub001/internal/storage/models"
)

func seed(t *testing.T, s *Store, e models.KnowledgeEntry) int64 {
	t.Helper()
	require.NoError(t, s.CreateKnowledgeEntry(context.Background(), &e))
	return e.ID
}

func TestSearchKnowledge_TenantAndActive(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed(t, s, models.KnowledgeEntry{TenantID: 1, Question: "Refund policy", Answer: "30 days", Active: true})
	seed(t, s, models.KnowledgeEntry{TenantID: 2, Question: "Refund policy", Answer: "none", Active: true})
	seed(t, s, models.KnowledgeEntry{TenantID: 1, Question: "Old refund", Answer: "gone", Active: false})

	got, err := s.SearchKnowledge(ctx, models.KnowledgeQuery{TenantID: 1, Terms: []string{"refund"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "30 days", got[0].Answer)

	got, err = s.SearchKnowledge(ctx, models.KnowledgeQuery{TenantID: 0, Terms: []string{"refund"}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchKnowledge_AndOr(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed(t, s, models.KnowledgeEntry{TenantID: 1, Question: "Shipping times", Answer: "3 days", Category: "orders", Active: true})

	all, err := s.SearchKnowledge(ctx, models.KnowledgeQuery{TenantID: 1, Terms: []string{"shipping", "orders"}})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	none, err := s.SearchKnowledge(ctx, models.KnowledgeQuery{TenantID: 1, Terms: []string{"shipping", "refund"}})
	require.NoError(t, err)
	assert.Empty(t, none)

	any, err := s.SearchKnowledge(ctx, models.KnowledgeQuery{TenantID: 1, Terms: []string{"shipping", "refund"}, MatchAny: true})
	require.NoError(t, err)
	assert.Len(t, any, 1)
}

func TestSearchKnowledge_Ranking(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := seed(t, s, models.KnowledgeEntry{TenantID: 1, Question: "plan a", Active: true, Views: 1, UpdatedAt: base})
	b := seed(t, s, models.KnowledgeEntry{TenantID: 1, Question: "plan b", Active: true, Views: 5, UpdatedAt: base})
	c := seed(t, s, models.KnowledgeEntry{TenantID: 1, Question: "plan c", Active: true, Views: 1, HelpfulCount: 3, UpdatedAt: base})
	d := seed(t, s, models.KnowledgeEntry{TenantID: 1, Question: "plan d", Active: true, Views: 1, UpdatedAt: base.Add(time.Hour)})

	got, err := s.SearchKnowledge(ctx, models.KnowledgeQuery{TenantID: 1, Terms: []string{"plan"}})
	require.NoError(t, err)
	ids := make([]int64, 0, len(got))
	for _, e := range got {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []int64{b, c, d, a}, ids)
}

func TestFindActiveSession_PicksMostRecent(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	older := &models.VisitorSession{TenantID: 1, Token: "a", IPAddress: "1.1.1.1", Active: true, LastActivity: now.Add(-time.Minute), ExpiresAt: now.Add(time.Hour)}
	newer := &models.VisitorSession{TenantID: 1, Token: "b", IPAddress: "1.1.1.1", Active: true, LastActivity: now, ExpiresAt: now.Add(time.Hour)}
	expired := &models.VisitorSession{TenantID: 1, Token: "c", IPAddress: "1.1.1.1", Active: true, LastActivity: now.Add(time.Minute), ExpiresAt: now.Add(-time.Second)}
	for _, vs := range []*models.VisitorSession{older, newer, expired} {
		require.NoError(t, s.CreateSession(ctx, vs))
	}

	got, err := s.FindActiveSession(ctx, 1, "1.1.1.1", now)
	require.NoError(t, err)
	assert.Equal(t, "b", got.Token)

	_, err = s.FindActiveSession(ctx, 2, "1.1.1.1", now)
	assert.ErrorIs(t, err, models.ErrNotFound)

	n, err := s.SweepExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCreateLead_ConflictOnEmail(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.CreateLead(ctx, &models.Lead{TenantID: 1, Email: "a@x.io"}))
	assert.ErrorIs(t, s.CreateLead(ctx, &models.Lead{TenantID: 1, Email: "A@x.io"}), models.ErrConflict)
	require.NoError(t, s.CreateLead(ctx, &models.Lead{TenantID: 2, Email: "a@x.io"}))
}

func TestFail(t *testing.T) {
	s := New()
	boom := errors.New("down")
	s.Fail = boom
	_, err := s.SearchKnowledge(context.Background(), models.KnowledgeQuery{TenantID: 1, Terms: []string{"x"}})
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, s.Ping(context.Background()), boom)
}
