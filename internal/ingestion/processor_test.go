package ingestion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amitsahu0611/chatbot-sub001/internal/storage/memory"
	"github.com/amitsahu0611/chatbot-sub001/internal/storage/models"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  open  9-6\n Mon-Fri ", "open 9-6 Mon-Fri"},
		{"markup", "<p>Open <b>9-6</b></p><p>Mon-Fri</p>", "Open 9-6 Mon-Fri"},
		{"script dropped", "<div>Hi<script>alert(1)</script></div>", "Hi"},
		{"entities", "Tom &amp; Jerry", "Tom & Jerry"},
		{"list items", "<ul><li>one</li><li>two</li></ul>", "one two"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, PlainText(tc.in))
		})
	}
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", Excerpt("short", 10))
	assert.Equal(t, "alpha beta...", Excerpt("alpha beta gamma delta", 16))
	assert.Equal(t, "abcde", Excerpt("abcdefghij", 5))
}

func TestPrepareEntry(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	p := NewProcessor(memory.New(), func() time.Time { return now })

	e, err := p.PrepareEntry(EntryInput{TenantID: 4, Question: "  What is your <b>refund</b> policy? ", Answer: "30 days"})
	require.NoError(t, err)
	assert.Equal(t, "What is your refund policy?", e.Question)
	assert.Equal(t, []string{"policy", "refund"}, e.Tags)
	assert.True(t, e.Active)
	assert.Equal(t, now, e.CreatedAt)

	e, err = p.PrepareEntry(EntryInput{TenantID: 4, Question: "q?", Answer: "a", Tags: []string{"Billing", " billing ", ""}})
	require.NoError(t, err)
	assert.Equal(t, []string{"billing"}, e.Tags)

	_, err = p.PrepareEntry(EntryInput{TenantID: 0, Question: "q", Answer: "a"})
	assert.ErrorIs(t, err, models.ErrInvalidTenant)
	_, err = p.PrepareEntry(EntryInput{TenantID: 1, Question: " ", Answer: "a"})
	assert.ErrorIs(t, err, ErrEmptyQuestion)
	_, err = p.PrepareEntry(EntryInput{TenantID: 1, Question: "q", Answer: "<p></p>"})
	assert.ErrorIs(t, err, ErrEmptyAnswer)
}

func TestCreateEntry(t *testing.T) {
	store := memory.New()
	p := NewProcessor(store, nil)

	e, err := p.CreateEntry(context.Background(), EntryInput{TenantID: 2, Question: "Do you ship abroad?", Answer: "Yes"})
	require.NoError(t, err)
	require.NotZero(t, e.ID)

	got, err := store.GetKnowledgeEntry(context.Background(), 2, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Yes", got.Answer)
}

func TestRenderMarkdown(t *testing.T) {
	out, err := RenderMarkdown("We open at **9am**.\n\n- Mon\n- Tue")
	require.NoError(t, err)
	assert.Contains(t, out, "<strong>9am</strong>")
	assert.Contains(t, out, "<li>Mon</li>")

	out, err = RenderMarkdown("hi <script>alert(1)</script>")
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
}

func TestPrepareEntry_Markdown(t *testing.T) {
	p := NewProcessor(memory.New(), nil)

	e, err := p.PrepareEntry(EntryInput{TenantID: 3, Question: "Hours?", Answer: "Open *daily*", Format: FormatMarkdown})
	require.NoError(t, err)
	assert.Equal(t, "<p>Open <em>daily</em></p>", e.Answer)

	_, err = p.PrepareEntry(EntryInput{TenantID: 3, Question: "Hours?", Answer: "<div></div>", Format: FormatMarkdown})
	assert.ErrorIs(t, err, ErrEmptyAnswer)
}
