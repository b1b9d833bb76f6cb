package answer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/amitsahu0611/chatbot-sub001/internal/storage/models"
)

type fakeGenerator struct {
	text    string
	err     error
	calls   int
	entries []models.KnowledgeEntry
}

func (f *fakeGenerator) GenerateAnswer(_ context.Context, _ string, entries []models.KnowledgeEntry) (string, error) {
	f.calls++
	f.entries = entries
	return f.text, f.err
}

var hours = []models.KnowledgeEntry{
	{ID: 11, TenantID: 7, Question: "What are your business hours?", Answer: "9-6 Mon-Fri", Active: true},
	{ID: 12, TenantID: 7, Question: "Holiday hours", Answer: "Closed", Active: true},
}

func TestSynthesize_MatchedWithoutGenerator(t *testing.T) {
	got := NewSynthesizer(nil).Synthesize(context.Background(), "business hours", hours)
	assert.Equal(t, Answer{Text: "9-6 Mon-Fri", Confidence: ConfidenceMatched, Source: "faq:11"}, got)
}

func TestSynthesize_MatchedWithGenerator(t *testing.T) {
	gen := &fakeGenerator{text: "We're open 9-6, Monday to Friday."}
	got := NewSynthesizer(gen).Synthesize(context.Background(), "business hours", hours)

	assert.Equal(t, "We're open 9-6, Monday to Friday.", got.Text)
	assert.Equal(t, ConfidenceMatched, got.Confidence)
	assert.Equal(t, "faq:11", got.Source)
	assert.True(t, got.Generated)
	assert.Len(t, gen.entries, 2)
}

func TestSynthesize_GeneratorFailureKeepsMatchedAnswer(t *testing.T) {
	for _, gen := range []*fakeGenerator{{err: errors.New("timeout")}, {text: "  "}} {
		got := NewSynthesizer(gen).Synthesize(context.Background(), "business hours", hours)
		assert.Equal(t, "9-6 Mon-Fri", got.Text)
		assert.False(t, got.Generated)
	}
}

func TestSynthesize_NoMatchesUsesGeneratorDecline(t *testing.T) {
	gen := &fakeGenerator{text: "I don't have specific information about that."}
	got := NewSynthesizer(gen).Synthesize(context.Background(), "do you sell boats", nil)

	assert.Equal(t, SourceFallback, got.Source)
	assert.Equal(t, ConfidenceGenerated, got.Confidence)
	assert.Nil(t, gen.entries)
}

func TestSynthesize_NoMatchesGeneratorErrorFallsBackToTemplate(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("429")}
	got := NewSynthesizer(gen).Synthesize(context.Background(), "Hello there", nil)
	assert.Equal(t, "Hello! How can I help you today?", got.Text)
	assert.Equal(t, 0.7, got.Confidence)
	assert.Equal(t, 1, gen.calls)
}

func TestTemplate(t *testing.T) {
	tests := []struct {
		query      string
		intent     string
		confidence float64
	}{
		{"hi!", "greeting", 0.7},
		{"How much does it cost?", "pricing", 0.6},
		{"what's your phone number", "contact", 0.6},
		{"the app is not working", "support", 0.6},
		{"they sell boats", "", ConfidenceGeneric},
		{"", "", ConfidenceGeneric},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			got := Template(tc.query)
			assert.Equal(t, tc.intent, got.Intent)
			assert.Equal(t, tc.confidence, got.Confidence)
			assert.Equal(t, SourceFallback, got.Source)
			assert.NotEmpty(t, got.Text)
		})
	}
	assert.Equal(t, GenericFallback, Template("quantum flux").Text)
}
