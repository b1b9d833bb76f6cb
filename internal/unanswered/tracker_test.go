package unanswered

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amitsahu0611/chatbot-sub001/internal/ingestion"
	"github.com/amitsahu0611/chatbot-sub001/internal/storage/memory"
	"github.com/amitsahu0611/chatbot-sub001/internal/storage/models"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTracker(t *testing.T, window int) (*Tracker, *memory.Store, *clock) {
	t.Helper()
	store := memory.New()
	clk := &clock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	tr := NewTracker(store, ingestion.NewProcessor(store, clk.now), Config{ScanWindow: window, SimilarityThreshold: 0.75}, clk.now)
	return tr, store, clk
}

func TestPriorityFor(t *testing.T) {
	tests := []struct {
		freq int
		want models.Priority
	}{
		{1, models.PriorityLow}, {4, models.PriorityLow},
		{5, models.PriorityMedium}, {9, models.PriorityMedium},
		{10, models.PriorityHigh}, {42, models.PriorityHigh},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, PriorityFor(tc.freq), "frequency %d", tc.freq)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "what are your prices", Normalize("  What   are your\tprices?! "))
	assert.Equal(t, "", Normalize(" ?? "))
}

func TestNormalize_TruncatesOnRuneBoundary(t *testing.T) {
	got := Normalize(strings.Repeat("a", 499) + "é tail")
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", 499), got)

	got = Normalize(strings.Repeat("é", 300))
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 250, utf8.RuneCountInString(got))
}

func TestSimilar(t *testing.T) {
	assert.True(t, Similar("refund policy", "what is your refund policy", 0.75))
	assert.True(t, Similar("what is your refund policy", "refund policy", 0.75))
	assert.True(t, Similar("shipping costs europe", "europe shipping costs", 0.75))
	assert.False(t, Similar("refund policy", "shipping policy", 0.75))
	assert.False(t, Similar("plan", "explain the plans", 0.75), "containment respects word boundaries")
	assert.False(t, Similar("", "anything", 0.75))
}

func TestRecord_FrequencyReachesN(t *testing.T) {
	tr, store, clk := newTracker(t, 1)
	ctx := context.Background()

	var last *models.UnansweredQuery
	for i := 1; i <= 12; i++ {
		clk.advance(time.Minute)
		q, err := tr.Record(ctx, Occurrence{TenantID: 7, Query: "Do you offer discounts?", IPAddress: "1.2.3.4", SessionID: "s"})
		require.NoError(t, err)
		assert.Equal(t, i, q.Frequency)
		assert.Equal(t, PriorityFor(i), q.Priority)
		last = q
	}

	got, err := store.GetUnanswered(ctx, 7, last.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, got.Frequency)
	assert.Equal(t, models.PriorityHigh, got.Priority)
	assert.Equal(t, clk.t, got.LastAskedAt)

	stats, err := store.UnansweredStats(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
}

func TestRecord_NearIdenticalMerges(t *testing.T) {
	tr, _, _ := newTracker(t, 1)
	ctx := context.Background()

	a, err := tr.Record(ctx, Occurrence{TenantID: 1, Query: "refund policy"})
	require.NoError(t, err)
	b, err := tr.Record(ctx, Occurrence{TenantID: 1, Query: "What is your refund policy?", IPAddress: "9.9.9.9", UserAgent: "ua"})
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, 2, b.Frequency)
	assert.Equal(t, "9.9.9.9", b.IPAddress)
	assert.Equal(t, "ua", b.UserAgent)
}

func TestRecord_ScanWindow(t *testing.T) {
	ctx := context.Background()

	// with a window of one, an interleaved question hides the earlier record
	narrow, _, clk := newTracker(t, 1)
	_, err := narrow.Record(ctx, Occurrence{TenantID: 1, Query: "refund policy"})
	require.NoError(t, err)
	clk.advance(time.Second)
	_, err = narrow.Record(ctx, Occurrence{TenantID: 1, Query: "shipping to canada"})
	require.NoError(t, err)
	clk.advance(time.Second)
	q, err := narrow.Record(ctx, Occurrence{TenantID: 1, Query: "refund policy"})
	require.NoError(t, err)
	assert.Equal(t, 1, q.Frequency)

	wide, _, clk := newTracker(t, 50)
	first, err := wide.Record(ctx, Occurrence{TenantID: 1, Query: "refund policy"})
	require.NoError(t, err)
	clk.advance(time.Second)
	_, err = wide.Record(ctx, Occurrence{TenantID: 1, Query: "shipping to canada"})
	require.NoError(t, err)
	clk.advance(time.Second)
	q, err = wide.Record(ctx, Occurrence{TenantID: 1, Query: "refund policy"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, q.ID)
	assert.Equal(t, 2, q.Frequency)
}

func TestRecord_TenantScoped(t *testing.T) {
	tr, _, _ := newTracker(t, 50)
	ctx := context.Background()

	a, err := tr.Record(ctx, Occurrence{TenantID: 1, Query: "refund policy"})
	require.NoError(t, err)
	b, err := tr.Record(ctx, Occurrence{TenantID: 2, Query: "refund policy"})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 1, b.Frequency)

	_, err = tr.Record(ctx, Occurrence{TenantID: 0, Query: "refund policy"})
	assert.ErrorIs(t, err, models.ErrInvalidTenant)
}

func TestRecordIfLowQuality(t *testing.T) {
	tr, store, _ := newTracker(t, 1)
	ctx := context.Background()

	q, err := tr.RecordIfLowQuality(ctx, Occurrence{TenantID: 1, Query: "hours"}, false)
	require.NoError(t, err)
	assert.Nil(t, q)
	stats, _ := store.UnansweredStats(ctx, 1)
	assert.Zero(t, stats.Total)

	q, err = tr.RecordIfLowQuality(ctx, Occurrence{TenantID: 1, Query: "hours"}, true)
	require.NoError(t, err)
	assert.NotNil(t, q)
}

func TestUpdate_AutoCreateEntry(t *testing.T) {
	tr, store, _ := newTracker(t, 1)
	ctx := context.Background()

	var invalidated []int64
	tr.OnKnowledgeChange = func(tenantID int64) { invalidated = append(invalidated, tenantID) }

	q, err := tr.Record(ctx, Occurrence{TenantID: 3, Query: "Do you ship to Canada?"})
	require.NoError(t, err)

	_, err = tr.Update(ctx, 3, q.ID, Update{AutoCreateEntry: true})
	assert.ErrorIs(t, err, ErrAnswerRequired)

	got, err := tr.Update(ctx, 3, q.ID, Update{AutoCreateEntry: true, Answer: "Yes, within 5 days", Category: "shipping"})
	require.NoError(t, err)
	assert.Equal(t, models.UnansweredAnswered, got.Status)
	require.NotNil(t, got.KnowledgeEntryID)

	entry, err := store.GetKnowledgeEntry(ctx, 3, *got.KnowledgeEntryID)
	require.NoError(t, err)
	assert.Equal(t, "do you ship to canada", entry.Question)
	assert.Equal(t, "Yes, within 5 days", entry.Answer)
	assert.True(t, entry.Active)
	assert.Equal(t, []int64{3}, invalidated)

	stored, err := store.GetUnanswered(ctx, 3, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UnansweredAnswered, stored.Status)
}

func TestUpdate_StatusAndRelatedEntry(t *testing.T) {
	tr, store, _ := newTracker(t, 1)
	ctx := context.Background()

	q, err := tr.Record(ctx, Occurrence{TenantID: 3, Query: "opening hours"})
	require.NoError(t, err)

	bad := models.UnansweredStatus("closed")
	_, err = tr.Update(ctx, 3, q.ID, Update{Status: &bad})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	ignored := models.UnansweredIgnored
	got, err := tr.Update(ctx, 3, q.ID, Update{Status: &ignored})
	require.NoError(t, err)
	assert.Equal(t, models.UnansweredIgnored, got.Status)

	foreign := &models.KnowledgeEntry{TenantID: 4, Question: "hours", Answer: "9-5", Active: true}
	require.NoError(t, store.CreateKnowledgeEntry(ctx, foreign))
	_, err = tr.Update(ctx, 3, q.ID, Update{RelatedEntryID: &foreign.ID})
	assert.ErrorIs(t, err, models.ErrNotFound)

	own := &models.KnowledgeEntry{TenantID: 3, Question: "hours", Answer: "9-5", Active: true}
	require.NoError(t, store.CreateKnowledgeEntry(ctx, own))
	got, err = tr.Update(ctx, 3, q.ID, Update{RelatedEntryID: &own.ID})
	require.NoError(t, err)
	assert.Equal(t, models.UnansweredAnswered, got.Status)
	assert.Equal(t, own.ID, *got.KnowledgeEntryID)
}

func TestListAndDelete(t *testing.T) {
	tr, _, clk := newTracker(t, 50)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := tr.Record(ctx, Occurrence{TenantID: 1, Query: "refund policy"})
		require.NoError(t, err)
	}
	clk.advance(time.Minute)
	other, err := tr.Record(ctx, Occurrence{TenantID: 1, Query: "gift cards"})
	require.NoError(t, err)

	res, err := tr.List(ctx, models.UnansweredFilter{TenantID: 1, Sort: models.SortFrequency})
	require.NoError(t, err)
	require.Len(t, res.Queries, 2)
	assert.Equal(t, "refund policy", res.Queries[0].Query)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 2, res.Stats.Pending)

	res, err = tr.List(ctx, models.UnansweredFilter{TenantID: 1})
	require.NoError(t, err)
	assert.Equal(t, "gift cards", res.Queries[0].Query)

	_, err = tr.List(ctx, models.UnansweredFilter{TenantID: 1, Status: "bogus"})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	require.NoError(t, tr.Delete(ctx, 1, other.ID))
	_, err = tr.Get(ctx, 1, other.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
