package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amitsahu0611/chatbot-sub001/internal/matcher"
	"github.com/amitsahu0611/chatbot-sub001/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(":memory:", time.Second)
	require.NoError(t, err)
	require.NoError(t, c.InitSchema())
	t.Cleanup(func() { c.Close() })
	return c
}

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func TestKnowledgeSearch(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	entries := []*models.KnowledgeEntry{
		{TenantID: 7, Question: "What are your business hours?", Answer: "9-6 Mon-Fri", Category: "general", Active: true, Views: 2, CreatedAt: t0},
		{TenantID: 7, Question: "Do you ship abroad?", Answer: "Yes, 100% of orders", Category: "shipping", Active: true, Views: 9, CreatedAt: t0},
		{TenantID: 7, Question: "Old business policy", Answer: "retired", Active: false, CreatedAt: t0},
		{TenantID: 8, Question: "Business hours", Answer: "24/7", Active: true, CreatedAt: t0},
	}
	for _, e := range entries {
		require.NoError(t, c.CreateKnowledgeEntry(ctx, e))
	}

	got, err := c.SearchKnowledge(ctx, models.KnowledgeQuery{TenantID: 7, Terms: []string{"business", "hours"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "9-6 Mon-Fri", got[0].Answer)

	got, err = c.SearchKnowledge(ctx, models.KnowledgeQuery{TenantID: 7, Terms: []string{"hours", "ship"}, MatchAny: true})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, entries[1].ID, got[0].ID, "higher view count ranks first")

	got, err = c.SearchKnowledge(ctx, models.KnowledgeQuery{TenantID: 7, Terms: []string{"%"}})
	require.NoError(t, err)
	assert.Len(t, got, 1, "LIKE wildcards are matched literally")

	got, err = c.SearchKnowledge(ctx, models.KnowledgeQuery{TenantID: 0, Terms: []string{"business"}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestKnowledgeSearch_FoldsNonASCII(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.CreateKnowledgeEntry(ctx, &models.KnowledgeEntry{
		TenantID: 7, Question: "Öffnungszeiten im Büro", Answer: "Été: 9-17 Uhr", Active: true, CreatedAt: t0,
	}))

	for _, term := range []string{"öffnungszeiten", "été", "BÜRO"} {
		got, err := c.SearchKnowledge(ctx, models.KnowledgeQuery{TenantID: 7, Terms: []string{term}})
		require.NoError(t, err)
		assert.Len(t, got, 1, term)
	}

	res, err := matcher.NewTieredMatcher(c).Match(ctx, 7, "öffnungszeiten", 5)
	require.NoError(t, err)
	assert.Len(t, res.Entries, 1)
}

func TestKnowledgeCounters(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	e := &models.KnowledgeEntry{TenantID: 1, Question: "q", Answer: "a", Active: true, Tags: []string{"x"}}
	require.NoError(t, c.CreateKnowledgeEntry(ctx, e))

	require.NoError(t, c.IncrementKnowledgeViews(ctx, 1, e.ID))
	require.NoError(t, c.RecordKnowledgeFeedback(ctx, 1, e.ID, true))
	require.NoError(t, c.RecordKnowledgeFeedback(ctx, 1, e.ID, false))
	assert.ErrorIs(t, c.IncrementKnowledgeViews(ctx, 2, e.ID), models.ErrNotFound)

	got, err := c.GetKnowledgeEntry(ctx, 1, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Views)
	assert.Equal(t, 1, got.HelpfulCount)
	assert.Equal(t, 1, got.NotHelpfulCount)
	assert.Equal(t, []string{"x"}, got.Tags)
}

func TestUnansweredLifecycle(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	q := &models.UnansweredQuery{
		TenantID: 3, Query: "do you offer discounts", Frequency: 1,
		Status: models.UnansweredPending, Priority: models.PriorityLow,
		FirstAskedAt: t0, LastAskedAt: t0, CreatedAt: t0, UpdatedAt: t0,
	}
	require.NoError(t, c.CreateUnanswered(ctx, q))

	q.Frequency = 5
	q.Priority = models.PriorityMedium
	q.LastAskedAt = t0.Add(time.Minute)
	require.NoError(t, c.UpdateUnansweredOccurrence(ctx, q))

	pending, err := c.ListPendingUnanswered(ctx, 3, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 5, pending[0].Frequency)
	assert.Equal(t, models.PriorityMedium, pending[0].Priority)

	q.Status = models.UnansweredAnswered
	entry := &models.KnowledgeEntry{TenantID: 3, Question: q.Query, Answer: "10% for students", Active: true}
	require.NoError(t, c.ResolveUnansweredWithEntry(ctx, q, entry))

	got, err := c.GetUnanswered(ctx, 3, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UnansweredAnswered, got.Status)
	require.NotNil(t, got.KnowledgeEntryID)
	assert.Equal(t, entry.ID, *got.KnowledgeEntryID)

	stats, err := c.UnansweredStats(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, models.UnansweredStats{Total: 1, Answered: 1}, stats)

	list, total, err := c.ListUnanswered(ctx, models.UnansweredFilter{TenantID: 3, Status: models.UnansweredPending})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)

	require.NoError(t, c.DeleteUnanswered(ctx, 3, q.ID))
	assert.ErrorIs(t, c.DeleteUnanswered(ctx, 3, q.ID), models.ErrNotFound)
}

func TestSessions(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	a := &models.VisitorSession{TenantID: 1, Token: "tok-a", IPAddress: "10.0.0.1", Active: true,
		CreatedAt: t0, LastActivity: t0, ExpiresAt: t0.Add(2 * time.Hour)}
	b := &models.VisitorSession{TenantID: 1, Token: "tok-b", IPAddress: "10.0.0.1", Active: true,
		CreatedAt: t0, LastActivity: t0.Add(time.Minute), ExpiresAt: t0.Add(2 * time.Hour)}
	require.NoError(t, c.CreateSession(ctx, a))
	require.NoError(t, c.CreateSession(ctx, b))
	assert.ErrorIs(t, c.CreateSession(ctx, &models.VisitorSession{TenantID: 1, Token: "tok-a", IPAddress: "x"}), models.ErrConflict)

	got, err := c.FindActiveSession(ctx, 1, "10.0.0.1", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "tok-b", got.Token)

	_, err = c.FindActiveSession(ctx, 1, "10.0.0.1", t0.Add(3*time.Hour))
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, c.IncrementSessionMessages(ctx, "tok-a", 2))
	require.NoError(t, c.MarkSessionLeadCreated(ctx, "tok-a", 42))
	s, err := c.GetSessionByToken(ctx, "tok-a")
	require.NoError(t, err)
	assert.Equal(t, 2, s.MessageCount)
	assert.True(t, s.LeadCreated)
	require.NotNil(t, s.LeadID)
	assert.Equal(t, int64(42), *s.LeadID)

	n, err := c.SweepExpiredSessions(ctx, t0.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestLeadUniqueEmail(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	l := &models.Lead{TenantID: 1, VisitorID: "v1", Email: "ann@example.com", Status: models.LeadNew,
		Priority: models.PriorityMedium, VisitCount: 1, CustomFields: map[string]any{"plan": "pro"},
		FirstVisit: t0, LastVisit: t0, CreatedAt: t0, UpdatedAt: t0}
	require.NoError(t, c.CreateLead(ctx, l))

	dup := *l
	dup.Email = "ANN@example.com"
	assert.ErrorIs(t, c.CreateLead(ctx, &dup), models.ErrConflict)

	other := *l
	other.TenantID = 2
	require.NoError(t, c.CreateLead(ctx, &other))

	got, err := c.FindLeadByEmail(ctx, 1, "Ann@Example.com")
	require.NoError(t, err)
	assert.Equal(t, l.ID, got.ID)
	assert.Equal(t, "pro", got.CustomFields["plan"])

	got.VisitCount = 2
	got.Notes = "returned"
	require.NoError(t, c.UpdateLead(ctx, got))
	again, err := c.FindLeadByEmail(ctx, 1, "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, again.VisitCount)
	assert.Equal(t, "returned", again.Notes)
}

func TestMessages(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	for i, dir := range []models.Direction{models.DirectionUser, models.DirectionBot, models.DirectionUser} {
		m := &models.ChatMessage{TenantID: 1, SessionToken: "s", Direction: dir, Content: "m",
			Metadata: models.MessageMetadata{Source: "faq", EntryIDs: []int64{int64(i)}}, CreatedAt: t0.Add(time.Duration(i) * time.Second)}
		require.NoError(t, c.AppendMessage(ctx, m))
	}

	page, total, err := c.ListSessionMessages(ctx, 1, "s", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, []int64{2}, page[0].Metadata.EntryIDs)

	require.NoError(t, c.SetMessageReaction(ctx, 1, page[0].ID, models.ReactionHelpful))
	m, err := c.GetMessage(ctx, 1, page[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReactionHelpful, m.Reaction)

	_, err = c.GetMessage(ctx, 2, page[0].ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
