// Package evaluation decides whether a synthesized answer actually answered
// the visitor.
package evaluation

import (
	"strings"

	"github.com/amitsahu0611/chatbot-sub001/internal/storage/models"
)

// Reason labels why an answer was judged inadequate.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonNoMatches Reason = "no_matches"
	ReasonDeclined  Reason = "declined"
)

// declineMarkers are lowercase phrases that signal the answer does not
// contain the information asked for.
var declineMarkers = []string{
	"don't have specific information",
	"do not have specific information",
	"don't have that information",
	"do not have that information",
	"don't have information",
	"contact support",
	"contact our support",
	"not sure",
	"don't know",
	"do not know",
	"unable to find",
	"couldn't find",
	"could not find",
	"no information available",
}

type Verdict struct {
	LowQuality bool
	Reason     Reason
	Marker     string
}

// Classify is a pure function of its inputs.
func Classify(answerText string, entries []models.KnowledgeEntry) Verdict {
	if len(entries) == 0 {
		return Verdict{LowQuality: true, Reason: ReasonNoMatches}
	}

	lower := normalizeApostrophes(strings.ToLower(answerText))
	for _, marker := range declineMarkers {
		if strings.Contains(lower, marker) {
			return Verdict{LowQuality: true, Reason: ReasonDeclined, Marker: marker}
		}
	}
	return Verdict{}
}

func normalizeApostrophes(s string) string {
	return strings.NewReplacer("’", "'", "‘", "'").Replace(s)
}
