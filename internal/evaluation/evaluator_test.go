package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/amitsahu0611/chatbot-sub001/internal/storage/models"
)

func TestClassify(t *testing.T) {
	one := []models.KnowledgeEntry{{ID: 1, TenantID: 1, Active: true}}

	tests := []struct {
		name    string
		answer  string
		entries []models.KnowledgeEntry
		want    Verdict
	}{
		{"no matches", "9-6 Mon-Fri", nil, Verdict{LowQuality: true, Reason: ReasonNoMatches}},
		{"good answer", "We are open 9-6 Mon-Fri", one, Verdict{}},
		{"decline marker", "I don't have specific information about that.", one,
			Verdict{LowQuality: true, Reason: ReasonDeclined, Marker: "don't have specific information"}},
		{"case insensitive", "Please CONTACT SUPPORT for details", one,
			Verdict{LowQuality: true, Reason: ReasonDeclined, Marker: "contact support"}},
		{"curly apostrophe", "I don’t know", one,
			Verdict{LowQuality: true, Reason: ReasonDeclined, Marker: "don't know"}},
		{"substring semantics", "honestly i'm not sure!", one,
			Verdict{LowQuality: true, Reason: ReasonDeclined, Marker: "not sure"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.answer, tc.entries))
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	entries := []models.KnowledgeEntry{{ID: 3}}
	first := Classify("Our plans start at $10", entries)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify("Our plans start at $10", entries))
	}
}

